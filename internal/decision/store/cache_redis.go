package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"verigate/internal/decision"
	"verigate/internal/level"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
)

const keyPrefix = "verigate:report:"

// RedisCache caches reports by ID. Reports are immutable, so entries are
// never invalidated, only expired.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a cache whose entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

type cachedReport struct {
	ID           string                  `json:"id"`
	SubjectID    string                  `json:"subject_id"`
	EvidenceRef  string                  `json:"evidence_ref"`
	Risk         scoring.RiskScore       `json:"risk"`
	Level        level.VerificationLevel `json:"verification_level"`
	Requirements level.Requirements      `json:"requirements"`
	CreatedAt    time.Time               `json:"created_at"`
	SupersedesID string                  `json:"supersedes_id,omitempty"`
}

func (c *RedisCache) Get(ctx context.Context, reportID id.ReportID) (*decision.DecisionReport, error) {
	raw, err := c.client.Get(ctx, keyPrefix+reportID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get cached report: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	var entry cachedReport
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return entry.toReport()
}

func (c *RedisCache) Set(ctx context.Context, report *decision.DecisionReport) error {
	raw, err := json.Marshal(fromReport(report))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+report.ID.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached report: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func fromReport(r *decision.DecisionReport) cachedReport {
	entry := cachedReport{
		ID:           r.ID.String(),
		SubjectID:    r.SubjectID.String(),
		EvidenceRef:  r.EvidenceRef.String(),
		Risk:         r.Risk,
		Level:        r.Level,
		Requirements: r.Requirements,
		CreatedAt:    r.CreatedAt,
	}
	if r.SupersedesID != nil {
		entry.SupersedesID = r.SupersedesID.String()
	}
	return entry
}

func (e cachedReport) toReport() (*decision.DecisionReport, error) {
	reportID, err := uuid.Parse(e.ID)
	if err != nil {
		return nil, fmt.Errorf("cached report id: %w", err)
	}
	subjectID, err := uuid.Parse(e.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("cached subject id: %w", err)
	}
	ref, err := uuid.Parse(e.EvidenceRef)
	if err != nil {
		return nil, fmt.Errorf("cached evidence ref: %w", err)
	}
	r := &decision.DecisionReport{
		ID:           id.ReportID(reportID),
		SubjectID:    id.SubjectID(subjectID),
		EvidenceRef:  id.EvidenceRef(ref),
		Risk:         e.Risk,
		Level:        e.Level,
		Requirements: e.Requirements,
		CreatedAt:    e.CreatedAt,
	}
	r.Risk.Flags = nonNil(r.Risk.Flags)
	r.Risk.Recommendations = nonNil(r.Risk.Recommendations)
	if e.SupersedesID != "" {
		prev, err := uuid.Parse(e.SupersedesID)
		if err != nil {
			return nil, fmt.Errorf("cached supersedes id: %w", err)
		}
		p := id.ReportID(prev)
		r.SupersedesID = &p
	}
	return r, nil
}
