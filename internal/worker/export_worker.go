// Package worker exports created expenses to the external sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/export"
)

// ExpenseReader is the slice of the repository the worker needs.
type ExpenseReader interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListPendingExport(ctx context.Context, limit int) ([]int64, error)
	MarkExported(ctx context.Context, id int64) error
}

// ExportWorker appends created expenses to the export sheet, driven by AMQP
// events with a periodic sweep as a backstop for lost messages.
type ExportWorker struct {
	store     ExpenseReader
	appender  export.RowAppender
	batchSize int
}

func NewExportWorker(store ExpenseReader, appender export.RowAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleEvent processes one expense event from the queue. Returning an error
// requeues the delivery.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	switch ev.Type {
	case amqp.EventExpenseCreated:
		return w.exportExpense(ctx, ev.ExpenseID)
	case amqp.EventExpenseDeleted:
		// The export sheet is append-only; deletions are not propagated.
		slog.InfoContext(ctx, "Ignoring delete event", "expense_id", ev.ExpenseID)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown event type", "type", ev.Type, "expense_id", ev.ExpenseID)
		return nil
	}
}

func (w *ExportWorker) exportExpense(ctx context.Context, id int64) error {
	expense, err := w.store.GetExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between event and processing; nothing left to export.
		slog.WarnContext(ctx, "Expense gone before export", "expense_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", id, err)
	}

	if err := w.appender.AppendExpense(ctx, expense); err != nil {
		return fmt.Errorf("append expense %d: %w", id, err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		return fmt.Errorf("mark expense %d exported: %w", id, err)
	}

	return nil
}

// ProcessPending sweeps one batch of expenses that were never exported.
// It keeps going past individual failures so one bad row cannot wedge the
// whole sweep.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	var failed int
	for _, id := range pending {
		if err := w.exportExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Pending export failed", "expense_id", id, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pending exports failed", failed, len(pending))
	}
	return nil
}
