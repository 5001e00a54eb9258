package services

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

type fakeStore struct {
	nextID    int64
	deleteErr error
	created   []core.Expense
	deleted   []int64
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	f.nextID++
	f.created = append(f.created, e)
	return f.nextID, nil
}

func (f *fakeStore) DeleteExpense(ctx context.Context, expenseID, userID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, expenseID)
	return nil
}

func (f *fakeStore) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return []core.Expense{}, nil
}

type fakePublisher struct {
	err    error
	events []*amqp.ExpenseEvent
}

func (f *fakePublisher) PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func TestCreateExpensePublishesEvent(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	id, err := svc.CreateExpense(context.Background(), core.Expense{UserID: 7, CategoryID: 1})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != amqp.EventExpenseCreated || ev.ExpenseID != 1 || ev.UserID != 7 {
		t.Errorf("event = %+v", ev)
	}
}

func TestCreateExpenseSurvivesPublishFailure(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewExpenseService(store, pub)

	if _, err := svc.CreateExpense(context.Background(), core.Expense{UserID: 1}); err != nil {
		t.Fatalf("CreateExpense failed on publish error: %v", err)
	}
	if len(store.created) != 1 {
		t.Error("expense was not stored")
	}
}

func TestCreateExpenseWithoutPublisher(t *testing.T) {
	store := &fakeStore{}
	svc := NewExpenseService(store, nil)

	if _, err := svc.CreateExpense(context.Background(), core.Expense{UserID: 1}); err != nil {
		t.Fatalf("CreateExpense without publisher: %v", err)
	}
}

func TestDeleteExpensePublishesEvent(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	if err := svc.DeleteExpense(context.Background(), 42, 7); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventExpenseDeleted {
		t.Fatalf("events = %+v, want one expense.deleted", pub.events)
	}
}

func TestDeleteExpenseNotFoundPublishesNothing(t *testing.T) {
	store := &fakeStore{deleteErr: core.ErrNotFound}
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub)

	err := svc.DeleteExpense(context.Background(), 42, 7)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events for a failed delete", len(pub.events))
	}
}
