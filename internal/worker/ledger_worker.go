// Package worker mirrors finance events into a ledger sink.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pft/internal/amqp"
	"pft/internal/log"
	"pft/internal/sheets"
)

// Consumer delivers decoded events to a handler until ctx ends.
// *amqp.Client implements it.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// LedgerWorker appends every finance event to the ledger sink.
type LedgerWorker struct {
	sink sheets.LedgerSink
}

func NewLedgerWorker(sink sheets.LedgerSink) *LedgerWorker {
	return &LedgerWorker{sink: sink}
}

// Run consumes events until ctx is cancelled.
func (w *LedgerWorker) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, w.Handle)
}

// Handle writes one event. A returned error asks for redelivery.
func (w *LedgerWorker) Handle(ctx context.Context, ev *amqp.FinanceEvent) error {
	var (
		ref string
		err error
	)
	switch ev.Type {
	case amqp.EventBudgetAlert:
		ref, err = w.sink.AppendAlert(ctx, sheets.AlertEntry{At: ev.Timestamp, Budget: *ev.Budget})
	default:
		ref, err = w.sink.AppendTransaction(ctx, sheets.TransactionEntry{
			Event:       string(ev.Type),
			At:          ev.Timestamp,
			Transaction: *ev.Transaction,
		})
	}
	if err != nil {
		return fmt.Errorf("append %s to ledger: %w", ev.Type, err)
	}

	slog.InfoContext(ctx, "Event written to ledger",
		log.FieldEvent, ev.Type,
		log.FieldMessageID, ev.MessageID,
		"ledger_ref", ref)
	return nil
}
