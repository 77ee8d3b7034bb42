package memory

import (
	"context"
	"sync"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

// Store is an in-memory SummaryExporter used by tests and local runs
// without Google credentials.
type Store struct {
	mu      sync.Mutex
	exports map[int64][]core.MonthSummary
}

var _ ports.SummaryExporter = (*Store)(nil)

func New() *Store {
	return &Store{exports: make(map[int64][]core.MonthSummary)}
}

// ExportMonthSummaries replaces the user's stored rows with the new batch.
func (s *Store) ExportMonthSummaries(_ context.Context, userID int64, summaries []core.MonthSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[userID] = append([]core.MonthSummary(nil), summaries...)
	return nil
}

// Exported returns the last batch stored for a user.
func (s *Store) Exported(userID int64) []core.MonthSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MonthSummary(nil), s.exports[userID]...)
}
