package memory

import (
	"context"
	"fmt"
	"sync"

	"kitty/internal/core"
)

// Store is an in-memory ArchiveWriter for local development and tests.
type Store struct {
	mu       sync.Mutex
	periods  []core.Period
	expenses map[string][]core.Expense
}

func New() *Store {
	return &Store{expenses: make(map[string][]core.Expense)}
}

// AppendHandover stores the archive and returns a synthetic row reference.
func (s *Store) AppendHandover(_ context.Context, p core.Period, expenses []core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, p)
	s.expenses[p.ID] = append([]core.Expense(nil), expenses...)
	return fmt.Sprintf("mem:%d", len(s.periods)), nil
}

// Periods returns the archived periods in append order.
func (s *Store) Periods() []core.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Period(nil), s.periods...)
}

// Expenses returns the archived expenses for a period.
func (s *Store) Expenses(periodID string) []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.expenses[periodID]...)
}
