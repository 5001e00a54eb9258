// Package services orchestrates ledger writes with event publishing.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

// ExpenseStore is the slice of the repository the service needs.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	DeleteExpense(ctx context.Context, expenseID, userID int64) error
	ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
}

// EventPublisher emits expense events to the broker.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ExpenseService stores expenses and publishes created/deleted events. The
// publisher is optional: without a broker the service degrades to plain
// storage, and a publish failure never fails the request — the row is the
// source of truth, the export worker's sweep catches up later.
type ExpenseService struct {
	store  ExpenseStore
	events EventPublisher
}

func NewExpenseService(store ExpenseStore, events EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:  store,
		events: events,
	}
}

// CreateExpense saves an expense and publishes an expense.created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	id, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseCreated, id, e.UserID))
	return id, nil
}

// DeleteExpense removes an expense owned by userID and publishes an
// expense.deleted event. A not-found delete publishes nothing.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID, userID int64) error {
	if err := s.store.DeleteExpense(ctx, expenseID, userID); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseDeleted, expenseID, userID))
	return nil
}

// ListExpenses delegates to the store.
func (s *ExpenseService) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, userID)
}

func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.events == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping", "type", ev.Type)
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"error", err,
			"type", ev.Type,
			"expense_id", ev.ExpenseID)
	}
}
