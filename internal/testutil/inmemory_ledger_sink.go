package testutil

import (
	"context"
	"sync"

	"github.com/packlane/packlane/internal/domain/finance"
	ierr "github.com/packlane/packlane/internal/errors"
)

// InMemoryLedgerSink records income emissions and can simulate the
// finance ledger being down.
type InMemoryLedgerSink struct {
	mu       sync.Mutex
	requests []*finance.IncomeRequest
	failing  bool
}

var _ finance.LedgerSink = (*InMemoryLedgerSink)(nil)

func NewInMemoryLedgerSink() *InMemoryLedgerSink {
	return &InMemoryLedgerSink{requests: make([]*finance.IncomeRequest, 0)}
}

// SetFailing makes every subsequent RecordIncome fail until reset
func (s *InMemoryLedgerSink) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *InMemoryLedgerSink) RecordIncome(ctx context.Context, req *finance.IncomeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ierr.NewError("finance ledger unavailable").
			WithHint("The income entry could not be delivered").
			Mark(ierr.ErrDependencyDegraded)
	}
	copied := *req
	s.requests = append(s.requests, &copied)
	return nil
}

// Requests returns a snapshot of everything delivered so far
func (s *InMemoryLedgerSink) Requests() []*finance.IncomeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*finance.IncomeRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
