package ops

import (
	"encoding/binary"
	"math/rand"
	"sync"

	"golang.org/x/crypto/blake2b"

	audit "verigate/pkg/platform/audit"
)

// DefaultRates thins the high-volume read events. Everything else is kept.
var DefaultRates = map[audit.AuditEvent]float64{
	audit.EventReportViewed: 0.25,
}

// Sampler decides which ops events are kept. Events that carry a subject
// hash are sampled by that hash, so a subject's trail is either kept whole
// or dropped whole for a given rate.
type Sampler struct {
	mu       sync.RWMutex
	fallback float64
	rates    map[audit.AuditEvent]float64
	random   func() float64
}

// NewSampler creates a sampler that keeps fallback of unlisted actions.
func NewSampler(fallback float64, rates map[audit.AuditEvent]float64) *Sampler {
	s := &Sampler{
		fallback: clamp(fallback),
		rates:    make(map[audit.AuditEvent]float64, len(rates)),
		random:   rand.Float64, //nolint:gosec // sampling, not security
	}
	for action, rate := range rates {
		s.rates[action] = clamp(rate)
	}
	return s
}

// Keep reports whether event survives sampling.
func (s *Sampler) Keep(event audit.Event) bool {
	rate := s.rate(audit.AuditEvent(event.Action))
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	case event.SubjectIDHash != "":
		return bucket(event.Action, event.SubjectIDHash) < rate
	default:
		return s.random() < rate
	}
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action audit.AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[action] = clamp(rate)
}

func (s *Sampler) rate(action audit.AuditEvent) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[action]; ok {
		return r
	}
	return s.fallback
}

// bucket maps (action, subject) uniformly onto [0, 1).
func bucket(action, subject string) float64 {
	sum := blake2b.Sum256([]byte(action + "\x00" + subject))
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}

func clamp(rate float64) float64 {
	return min(max(rate, 0), 1)
}
