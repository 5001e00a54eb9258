// Package storage implements the ledger repository over sqlite.
//
// Every operation is a single parameterized statement executed on a pooled
// connection; there are no multi-statement transactions and no state is held
// between calls, so concurrent requests may interleave freely.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

// Repository is the query/command layer over the users, categories and
// expenses tables.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if necessary) the sqlite database at dbPath
// and brings its schema up to date.
func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new user and returns its store-assigned id. There is
// no pre-check query: a duplicate username or email surfaces as the store's
// uniqueness violation.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password, full_name) VALUES (?, ?, ?, ?)`,
		u.Username, u.Email, u.Password, u.FullName,
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", id, "username", u.Username)
	return id, nil
}

// Authenticate looks up the exact (username, password) pair. Passwords are
// compared verbatim, so a byte-exact match is required. No match returns
// core.ErrNotFound; the returned user never carries the password back out.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, email, full_name FROM users WHERE username = ? AND password = ?`,
		username, password,
	).Scan(&u.ID, &u.Username, &u.Email, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// CreateExpense inserts an expense and returns its id. Referential integrity
// of UserID and CategoryID is the store's job (foreign keys are enabled on
// the connection).
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, amount_cents, description, expense_date)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.CategoryID, e.Amount.Cents, e.Description, e.Date.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", id,
		"user_id", e.UserID,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())

	return id, nil
}

// GetExpense returns a single expense by id with its category name joined in.
func (r *Repository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var (
		e    core.Expense
		date string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT e.expense_id, e.user_id, e.category_id, e.amount_cents, e.description, e.expense_date, c.category_name
		 FROM expenses e
		 JOIN categories c ON e.category_id = c.category_id
		 WHERE e.expense_id = ?`,
		id,
	).Scan(&e.ID, &e.UserID, &e.CategoryID, &e.Amount.Cents, &e.Description, &date, &e.CategoryName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("select expense: %w", err)
	}

	e.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	return e, nil
}

// ListExpenses returns all of a user's expenses ordered by date descending.
// The order of expenses sharing a date is whatever the store yields and is
// not part of the contract. A user with no expenses gets an empty slice.
func (r *Repository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	return r.listExpenses(ctx,
		`SELECT e.expense_id, e.user_id, e.category_id, e.amount_cents, e.description, e.expense_date, c.category_name
		 FROM expenses e
		 JOIN categories c ON e.category_id = c.category_id
		 WHERE e.user_id = ?
		 ORDER BY e.expense_date DESC`,
		userID)
}

// ListRecentExpenses is ListExpenses truncated to at most limit rows.
func (r *Repository) ListRecentExpenses(ctx context.Context, userID int64, limit int) ([]core.Expense, error) {
	return r.listExpenses(ctx,
		`SELECT e.expense_id, e.user_id, e.category_id, e.amount_cents, e.description, e.expense_date, c.category_name
		 FROM expenses e
		 JOIN categories c ON e.category_id = c.category_id
		 WHERE e.user_id = ?
		 ORDER BY e.expense_date DESC
		 LIMIT ?`,
		userID, int64(limit))
}

func (r *Repository) listExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e    core.Expense
			date string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.CategoryID, &e.Amount.Cents, &e.Description, &date, &e.CategoryName); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// SumByCategory returns the summed amount per category for one user, one
// entry per category that has at least one expense. Categories without
// expenses are absent, not zero-valued. Group ordering follows the store.
func (r *Repository) SumByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.category_name, SUM(e.amount_cents) AS total_cents
		 FROM expenses e
		 JOIN categories c ON e.category_id = c.category_id
		 WHERE e.user_id = ?
		 GROUP BY c.category_name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Name, &ct.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// MonthTotal sums a user's expenses for one calendar month. A combination
// with no matching rows yields zero, not an error.
func (r *Repository) MonthTotal(ctx context.Context, userID int64, year, month int) (core.Money, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_cents) FROM expenses
		 WHERE user_id = ?
		   AND CAST(strftime('%Y', expense_date) AS INTEGER) = ?
		   AND CAST(strftime('%m', expense_date) AS INTEGER) = ?`,
		userID, year, month,
	).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum month total: %w", err)
	}
	return core.Money{Cents: total.Int64}, nil
}

// YearTotal sums a user's expenses for one calendar year, zero when none.
func (r *Repository) YearTotal(ctx context.Context, userID int64, year int) (core.Money, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(amount_cents) FROM expenses
		 WHERE user_id = ?
		   AND CAST(strftime('%Y', expense_date) AS INTEGER) = ?`,
		userID, year,
	).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum year total: %w", err)
	}
	return core.Money{Cents: total.Int64}, nil
}

// DeleteExpense removes the expense only when both its id and owning user
// match. Zero affected rows — wrong id, or an id owned by somebody else —
// comes back as core.ErrNotFound; the two cases are indistinguishable so
// that existence of other users' records never leaks.
func (r *Repository) DeleteExpense(ctx context.Context, expenseID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE expense_id = ? AND user_id = ?`,
		expenseID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "user_id", userID)
	return nil
}

// ListCategories returns the fixed category taxonomy for the shells.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, category_name FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// ListPendingExport returns ids of expenses not yet appended to the export
// sheet, oldest first. This backs the worker's sweep for lost messages.
func (r *Repository) ListPendingExport(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT expense_id FROM expenses WHERE exported = 0 ORDER BY expense_id LIMIT ?`,
		int64(limit))
	if err != nil {
		return nil, fmt.Errorf("query pending export: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending export id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending export: %w", err)
	}
	return ids, nil
}

// MarkExported flags an expense as appended to the export sheet.
func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET exported = 1 WHERE expense_id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}
