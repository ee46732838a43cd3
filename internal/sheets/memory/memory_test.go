package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pft/internal/core"
	ports "pft/internal/sheets"
)

func TestMemoryStoreAppend(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ref, err := s.AppendTransaction(ctx, ports.TransactionEntry{
		Event: "transaction.deleted",
		At:    at,
		Transaction: core.Transaction{
			ID:              3,
			Amount:          decimal.NewFromInt(5),
			Type:            core.Income,
			TransactionDate: "2024-05-01",
		},
	})
	if err != nil || ref != "mem:ledger:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	ref, err = s.AppendAlert(ctx, ports.AlertEntry{At: at, Budget: core.Budget{ID: 2, Month: 5, Year: 2024}})
	if err != nil || ref != "mem:alerts:1" {
		t.Fatalf("unexpected alert append: ref=%q err=%v", ref, err)
	}

	ledger := s.Ledger()
	if len(ledger) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(ledger))
	}
	// uncategorised transactions leave the category column empty
	if ledger[0][1] != "transaction.deleted" || ledger[0][5] != "" || ledger[0][7] != "5.00" {
		t.Errorf("unexpected ledger row: %v", ledger[0])
	}
	alerts := s.Alerts()
	if len(alerts) != 1 || alerts[0][2] != "05/2024" || alerts[0][3] != "Overall" {
		t.Errorf("unexpected alert rows: %v", alerts)
	}

	// returned slices are copies
	ledger[0] = nil
	if s.Ledger()[0] == nil {
		t.Error("Ledger() exposed internal state")
	}
}

func TestTransactionEntryYear(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		date string
		want int
	}{
		{"2023-12-31", 2023},
		{"", 2025},
		{"garbage", 2025},
	}
	for _, tt := range tests {
		e := ports.TransactionEntry{At: at, Transaction: core.Transaction{TransactionDate: tt.date}}
		if got := e.Year(); got != tt.want {
			t.Errorf("Year() for %q = %d, want %d", tt.date, got, tt.want)
		}
	}
}
