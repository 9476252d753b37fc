package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"verigate/internal/decision"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
)

// InMemoryStore keeps reports in process. Each subject's reports are held
// in insertion order, which is also supersession order.
type InMemoryStore struct {
	mu        sync.RWMutex
	reports   map[id.ReportID]*decision.DecisionReport
	bySubject map[id.SubjectID][]id.ReportID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reports:   make(map[id.ReportID]*decision.DecisionReport),
		bySubject: make(map[id.SubjectID][]id.ReportID),
	}
}

// Save stores report as the subject's latest and points SupersedesID at the
// previous latest, if any.
func (s *InMemoryStore) Save(_ context.Context, report *decision.DecisionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.ID]; exists {
		return fmt.Errorf("report %s: %w", report.ID, sentinel.ErrConflict)
	}
	history := s.bySubject[report.SubjectID]
	if n := len(history); n > 0 {
		prev := history[n-1]
		report.SupersedesID = &prev
	} else {
		report.SupersedesID = nil
	}
	s.reports[report.ID] = report.Clone()
	s.bySubject[report.SubjectID] = append(history, report.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, reportID id.ReportID) (*decision.DecisionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[reportID]; ok {
		return r.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListBySubject returns the subject's reports newest first.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*decision.DecisionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.bySubject[subjectID]
	out := make([]*decision.DecisionReport, 0, len(history))
	for _, reportID := range slices.Backward(history) {
		out = append(out, s.reports[reportID].Clone())
	}
	return out, nil
}
