// Package memory is an in-process TransactionWriter used in tests and when
// no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "mymoney/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.TransactionRow
}

var _ ports.TransactionWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, row ports.TransactionRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []ports.TransactionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.TransactionRow(nil), s.rows...)
}
