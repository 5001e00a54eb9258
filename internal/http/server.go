// Package http is the ledger's HTTP gateway: four routes mapped onto the
// repository plus a catch-all that only serves CORS.
//
// The wire contract is deliberately plain: every application-level outcome,
// success or failure, is a 200 with a fixed text line (or a JSON array for
// /getExpenses), so a remote client cannot distinguish "no data" from
// "store failure". Only OPTIONS preflights (204) and wrong-method requests
// (405) use other status codes.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ledger/internal/core"
)

// UserStore is the slice of the repository the gateway needs for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (int64, error)
	Authenticate(ctx context.Context, username, password string) (core.User, error)
}

// ExpenseStore is the slice of the repository (or the expense service) the
// gateway needs for expenses.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
}

type Server struct {
	http.Server
	users    UserStore
	expenses ExpenseStore
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, users UserStore, expenses ExpenseStore) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		users:    users,
		expenses: expenses,
	}

	mux.HandleFunc("/register", s.withCORS(s.handleRegister))
	mux.HandleFunc("/login", s.withCORS(s.handleLogin))
	mux.HandleFunc("/addExpense", s.withCORS(s.handleAddExpense))
	mux.HandleFunc("/getExpenses", s.withCORS(s.handleGetExpenses))
	// Everything else gets CORS headers and nothing more.
	mux.HandleFunc("/", s.withCORS(s.handleFallback))

	return s
}

// withCORS attaches the permissive CORS headers to every response, answers
// OPTIONS preflights with 204, and logs each request with an id, status and
// duration.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"remote_addr", r.RemoteAddr)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	// CORS headers are already set; an unknown path has no body to serve.
	w.WriteHeader(http.StatusOK)
}
