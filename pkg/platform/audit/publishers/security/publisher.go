// Package security provides a non-blocking audit publisher for events that
// feed fraud monitoring. Events are buffered in memory and flushed to the
// store in the background; under sustained store failure the oldest events
// are dropped rather than blocking decisions.
package security

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
)

const (
	defaultCapacity      = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = 250 * time.Millisecond
	closeTimeout         = 5 * time.Second
)

// Publisher buffers security events and flushes them asynchronously.
type Publisher struct {
	store         audit.Store
	pending       *backlog
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	// mu orders Emit against Close: anything pushed before Close takes the
	// write lock is included in the final drain.
	mu       sync.RWMutex
	closed   bool
	rejected atomic.Int64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// ErrClosed is returned by Emit once Close has been called.
var ErrClosed = errors.New("security audit publisher closed")

type Option func(*Publisher)

func WithCapacity(n int) Option {
	return func(p *Publisher) { p.pending = newBacklog(n) }
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// New starts a publisher's flush loop. Call Close to drain and stop it.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		pending:       newBacklog(defaultCapacity),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit enqueues the event and never blocks on the store. After Close the
// event is counted as dropped and ErrClosed is returned.
func (p *Publisher) Emit(_ context.Context, event audit.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.rejected.Add(1)
		return ErrClosed
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityWarning
	}
	event.Category = audit.CategorySecurity
	p.pending.push(event)
	return nil
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	return p.pending.len()
}

// Dropped returns the number of events lost to buffer overflow or emitted
// after Close.
func (p *Publisher) Dropped() int64 {
	return p.pending.dropped() + p.rejected.Load()
}

// Close stops the flush loop after a final drain.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
		<-p.done
	})
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			for p.pending.len() > 0 && ctx.Err() == nil {
				if !p.flush(ctx) {
					break
				}
			}
			cancel()
			return
		case <-ticker.C:
			p.flush(context.Background())
		}
	}
}

// flush writes one batch. The failed event and everything after it go back
// to the front of the backlog for the next tick.
// It reports whether the whole batch was written.
func (p *Publisher) flush(ctx context.Context) bool {
	batch := p.pending.take(p.batchSize)
	for i, event := range batch {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.WarnContext(ctx, "security audit flush failed",
				"action", event.Action,
				"pending", len(batch)-i,
				"error", err,
			)
			p.pending.requeue(batch[i:])
			return false
		}
	}
	return true
}
