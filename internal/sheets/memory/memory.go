package memory

import (
	"context"
	"fmt"
	"sync"

	ports "pft/internal/sheets"
)

// Store keeps ledger rows in memory. It backs local runs without Google
// credentials and the worker tests.
type Store struct {
	mu     sync.Mutex
	ledger [][]string
	alerts [][]string
}

var _ ports.LedgerSink = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, e ports.TransactionEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, e.Row())
	return fmt.Sprintf("mem:ledger:%d", len(s.ledger)), nil
}

func (s *Store) AppendAlert(_ context.Context, e ports.AlertEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, e.Row())
	return fmt.Sprintf("mem:alerts:%d", len(s.alerts)), nil
}

// Ledger returns a copy of the transaction rows.
func (s *Store) Ledger() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.ledger...)
}

// Alerts returns a copy of the alert rows.
func (s *Store) Alerts() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.alerts...)
}
