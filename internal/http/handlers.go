package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ledger/internal/core"
)

// Fixed response lines. Failures are indistinguishable from one another on
// the wire; the diagnostic goes to the log instead.
const (
	msgRegistered     = "registered successfully"
	msgRegisterFailed = "registration failed"
	msgLoginOK        = "login successful"
	msgLoginFailed    = "invalid credentials"
	msgExpenseAdded   = "expense added"
	msgExpenseFailed  = "failed to add expense"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeText(w, msgRegisterFailed)
		return
	}

	user := core.User{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		FullName: r.PostForm.Get("fullName"),
	}

	if _, err := s.users.CreateUser(r.Context(), user); err != nil {
		slog.ErrorContext(r.Context(), "Registration failed", "error", err, "username", user.Username)
		writeText(w, msgRegisterFailed)
		return
	}
	writeText(w, msgRegistered)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeText(w, msgLoginFailed)
		return
	}

	// The user record stays server-side; the client only learns yes or no.
	_, err := s.users.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			slog.ErrorContext(r.Context(), "Login lookup failed", "error", err)
		}
		writeText(w, msgLoginFailed)
		return
	}
	writeText(w, msgLoginOK)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeText(w, msgExpenseFailed)
		return
	}

	userID, err := strconv.ParseInt(r.PostForm.Get("userId"), 10, 64)
	if err != nil {
		slog.WarnContext(r.Context(), "Bad userId", "value", r.PostForm.Get("userId"))
		writeText(w, msgExpenseFailed)
		return
	}
	categoryID, err := strconv.ParseInt(r.PostForm.Get("categoryId"), 10, 64)
	if err != nil {
		slog.WarnContext(r.Context(), "Bad categoryId", "value", r.PostForm.Get("categoryId"))
		writeText(w, msgExpenseFailed)
		return
	}
	cents, err := core.ParseCents(r.PostForm.Get("amount"))
	if err != nil {
		slog.WarnContext(r.Context(), "Bad amount", "value", r.PostForm.Get("amount"))
		writeText(w, msgExpenseFailed)
		return
	}

	expense := core.Expense{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      core.Money{Cents: cents},
		Description: r.PostForm.Get("description"),
		// The date is always the server's today; clients cannot backdate.
		Date: core.Today(),
	}

	if _, err := s.expenses.CreateExpense(r.Context(), expense); err != nil {
		slog.ErrorContext(r.Context(), "Add expense failed", "error", err, "user_id", userID)
		writeText(w, msgExpenseFailed)
		return
	}
	writeText(w, msgExpenseAdded)
}

// expenseJSON is the wire shape of one expense row on /getExpenses.
type expenseJSON struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
	Desc     string     `json:"desc"`
	Date     string     `json:"date"`
}

func (s *Server) handleGetExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		slog.WarnContext(r.Context(), "Bad userId", "value", r.URL.Query().Get("userId"))
		writeJSON(w, []expenseJSON{})
		return
	}

	expenses, err := s.expenses.ListExpenses(r.Context(), userID)
	if err != nil {
		// Same shape as "no expenses": the wire contract has no error channel.
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err, "user_id", userID)
		writeJSON(w, []expenseJSON{})
		return
	}

	rows := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, expenseJSON{
			Category: e.CategoryName,
			Amount:   e.Amount,
			Desc:     e.Description,
			Date:     e.Date.String(),
		})
	}
	writeJSON(w, rows)
}

// requirePost answers wrong-method requests with 405 and reports whether the
// handler should proceed.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}
