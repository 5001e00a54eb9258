package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ledger/internal/core"
)

type fakeUserStore struct {
	createErr error
	authErr   error
	lastUser  core.User
}

func (f *fakeUserStore) CreateUser(ctx context.Context, u core.User) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.lastUser = u
	return 1, nil
}

func (f *fakeUserStore) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	if f.authErr != nil {
		return core.User{}, f.authErr
	}
	return core.User{ID: 1, Username: username}, nil
}

type fakeExpenseStore struct {
	createErr error
	listErr   error
	expenses  []core.Expense
	last      core.Expense
}

func (f *fakeExpenseStore) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.last = e
	return 1, nil
}

func (f *fakeExpenseStore) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.expenses, nil
}

func newTestServer(users *fakeUserStore, expenses *fakeExpenseStore) *Server {
	if users == nil {
		users = &fakeUserStore{}
	}
	if expenses == nil {
		expenses = &fakeExpenseStore{}
	}
	return NewServer(":0", users, expenses)
}

func doForm(s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func doGet(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	s := newTestServer(nil, nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/register"},
		{http.MethodPost, "/login"},
		{http.MethodPost, "/addExpense"},
		{http.MethodGet, "/getExpenses?userId=1"},
		{http.MethodGet, "/anything/else"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, strings.NewReader(""))
		if p.method == http.MethodPost {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("%s %s: Allow-Origin = %q, want *", p.method, p.path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Errorf("%s %s: Allow-Methods = %q", p.method, p.path, got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
			t.Errorf("%s %s: Allow-Headers = %q", p.method, p.path, got)
		}
	}
}

func TestOptionsPreflight(t *testing.T) {
	s := newTestServer(nil, nil)

	for _, path := range []string{"/", "/register", "/getExpenses", "/nope"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("OPTIONS %s: status = %d, want 204", path, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("OPTIONS %s: body = %q, want empty", path, rec.Body.String())
		}
	}
}

func TestHandleRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		users := &fakeUserStore{}
		s := newTestServer(users, nil)

		rec := doForm(s, "/register", url.Values{
			"username": {"alice"},
			"email":    {"alice@example.com"},
			"password": {"p&ss=word"},
			"fullName": {"Alice Doe"},
		})

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != msgRegistered {
			t.Errorf("body = %q, want %q", rec.Body.String(), msgRegistered)
		}
		// Form decoding must survive characters the old split-on-= parser choked on.
		if users.lastUser.Password != "p&ss=word" {
			t.Errorf("password decoded as %q", users.lastUser.Password)
		}
		if users.lastUser.FullName != "Alice Doe" {
			t.Errorf("fullName decoded as %q", users.lastUser.FullName)
		}
	})

	t.Run("store failure is a text line with 200", func(t *testing.T) {
		users := &fakeUserStore{createErr: errors.New("UNIQUE constraint failed")}
		s := newTestServer(users, nil)

		rec := doForm(s, "/register", url.Values{"username": {"alice"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != msgRegisterFailed {
			t.Errorf("body = %q, want %q", rec.Body.String(), msgRegisterFailed)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		s := newTestServer(nil, nil)
		rec := doGet(s, "/register")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestHandleLogin(t *testing.T) {
	tests := []struct {
		name    string
		authErr error
		want    string
	}{
		{name: "success", want: msgLoginOK},
		{name: "no match", authErr: core.ErrNotFound, want: msgLoginFailed},
		// A store failure must be indistinguishable from bad credentials.
		{name: "store failure", authErr: errors.New("disk on fire"), want: msgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeUserStore{authErr: tt.authErr}, nil)
			rec := doForm(s, "/login", url.Values{"username": {"alice"}, "password": {"secret"}})

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestHandleAddExpense(t *testing.T) {
	t.Run("success uses server-side today", func(t *testing.T) {
		expenses := &fakeExpenseStore{}
		s := newTestServer(nil, expenses)

		rec := doForm(s, "/addExpense", url.Values{
			"userId":      {"7"},
			"categoryId":  {"2"},
			"amount":      {"12.34"},
			"description": {"taxi to airport"},
		})

		if rec.Body.String() != msgExpenseAdded {
			t.Fatalf("body = %q, want %q", rec.Body.String(), msgExpenseAdded)
		}
		e := expenses.last
		if e.UserID != 7 || e.CategoryID != 2 || e.Amount.Cents != 1234 {
			t.Errorf("stored expense = %+v", e)
		}
		if e.Date.String() != core.Today().String() {
			t.Errorf("date = %s, want today (%s); clients must not backdate", e.Date, core.Today())
		}
	})

	t.Run("malformed input", func(t *testing.T) {
		bad := []url.Values{
			{"userId": {"x"}, "categoryId": {"1"}, "amount": {"1.00"}},
			{"userId": {"1"}, "categoryId": {""}, "amount": {"1.00"}},
			{"userId": {"1"}, "categoryId": {"1"}, "amount": {"lots"}},
			{"userId": {"1"}, "categoryId": {"1"}}, // missing amount
		}
		for _, form := range bad {
			s := newTestServer(nil, &fakeExpenseStore{})
			rec := doForm(s, "/addExpense", form)
			if rec.Code != http.StatusOK || rec.Body.String() != msgExpenseFailed {
				t.Errorf("form %v: status %d body %q, want 200 %q",
					form, rec.Code, rec.Body.String(), msgExpenseFailed)
			}
		}
	})

	t.Run("store failure", func(t *testing.T) {
		s := newTestServer(nil, &fakeExpenseStore{createErr: errors.New("FOREIGN KEY constraint failed")})
		rec := doForm(s, "/addExpense", url.Values{
			"userId": {"99"}, "categoryId": {"1"}, "amount": {"5.00"},
		})
		if rec.Body.String() != msgExpenseFailed {
			t.Errorf("body = %q, want %q", rec.Body.String(), msgExpenseFailed)
		}
	})
}

func TestHandleGetExpenses(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		expenses := &fakeExpenseStore{expenses: []core.Expense{
			{
				CategoryName: "Food",
				Amount:       core.Money{Cents: 1234},
				Description:  `lunch with "friends"`,
				Date:         core.NewDate(2025, 6, 1),
			},
			{
				CategoryName: "Travel",
				Amount:       core.Money{Cents: 2000},
				Description:  "",
				Date:         core.NewDate(2025, 5, 30),
			},
		}}
		s := newTestServer(nil, expenses)

		rec := doGet(s, "/getExpenses?userId=7")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var rows []map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
			t.Fatalf("response is not valid JSON (quotes must be escaped): %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(rows))
		}
		if rows[0]["category"] != "Food" || rows[0]["desc"] != `lunch with "friends"` || rows[0]["date"] != "2025-06-01" {
			t.Errorf("first row = %v", rows[0])
		}
		if rows[0]["amount"] != 12.34 {
			t.Errorf("amount = %v, want 12.34", rows[0]["amount"])
		}
	})

	t.Run("no expenses is an empty array", func(t *testing.T) {
		s := newTestServer(nil, &fakeExpenseStore{expenses: []core.Expense{}})
		rec := doGet(s, "/getExpenses?userId=7")
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("body = %q, want []", got)
		}
	})

	t.Run("store failure looks like no expenses", func(t *testing.T) {
		s := newTestServer(nil, &fakeExpenseStore{listErr: errors.New("db gone")})
		rec := doGet(s, "/getExpenses?userId=7")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("body = %q, want []", got)
		}
	})

	t.Run("bad userId", func(t *testing.T) {
		s := newTestServer(nil, &fakeExpenseStore{})
		rec := doGet(s, "/getExpenses?userId=abc")
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("body = %q, want []", got)
		}
	})
}

func TestFallbackPath(t *testing.T) {
	s := newTestServer(nil, nil)
	rec := doGet(s, "/some/other/path")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}
