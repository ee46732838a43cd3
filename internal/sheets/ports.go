// Package sheets defines the ledger the worker mirrors finance events into.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pft/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerSink appends one row per event. The returned reference locates
	// the written row in the sink.
	LedgerSink interface {
		AppendTransaction(ctx context.Context, entry TransactionEntry) (rowRef string, err error)
		AppendAlert(ctx context.Context, entry AlertEntry) (rowRef string, err error)
	}

	TransactionEntry struct {
		Event       string
		At          time.Time
		Transaction core.Transaction
	}

	AlertEntry struct {
		At     time.Time
		Budget core.Budget
	}
)

// Row columns: recorded, event, id, date, type, category, description, amount.
func (e TransactionEntry) Row() []string {
	t := e.Transaction
	category := ""
	if t.CategoryName != nil {
		category = *t.CategoryName
	}
	return []string{
		e.At.UTC().Format(time.RFC3339),
		e.Event,
		strconv.FormatInt(t.ID, 10),
		t.TransactionDate,
		string(t.Type),
		category,
		t.Description,
		core.FormatAmount(t.Amount),
	}
}

// Year picks the ledger year: the transaction's own date, else the event time.
func (e TransactionEntry) Year() int {
	if d, err := time.Parse(core.DateLayout, e.Transaction.TransactionDate); err == nil {
		return d.Year()
	}
	return e.At.Year()
}

// Row columns: recorded, budget id, period, category, limit, spent, remaining.
func (e AlertEntry) Row() []string {
	b := e.Budget
	category := "Overall"
	if b.CategoryName != nil {
		category = *b.CategoryName
	}
	return []string{
		e.At.UTC().Format(time.RFC3339),
		strconv.FormatInt(b.ID, 10),
		fmt.Sprintf("%02d/%d", b.Month, b.Year),
		category,
		core.FormatAmount(b.LimitAmount),
		core.FormatAmount(b.Spent),
		core.FormatAmount(b.Remaining),
	}
}
