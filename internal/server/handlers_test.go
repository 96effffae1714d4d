package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shelfkeeper/shelfkeeper/internal/library"
)

func setupServer(t *testing.T) (http.Handler, *library.Manager) {
	t.Helper()
	mgr, err := library.Open(t.TempDir())
	if err != nil {
		t.Fatalf("library.Open failed: %v", err)
	}
	cfg := DefaultConfig()
	return NewRouter(mgr, &cfg), mgr
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResp[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t)
	rec := doJSON(t, h, "GET", "/api/health", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decodeResp[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("body = %v, want status ok", got)
	}
}

func TestBookEndpoints(t *testing.T) {
	h, _ := setupServer(t)
	book := library.Book{ID: "B1", Title: "Dune", Author: "Herbert", Category: "SciFi", AvailableQuantity: 2}

	rec := doJSON(t, h, "POST", "/api/books", book)
	wantStatus(t, rec, http.StatusCreated)

	t.Run("duplicate create conflicts", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/books", book)
		wantStatus(t, rec, http.StatusConflict)
		if got := decodeResp[ErrorResponse](t, rec); got.Code != "CONFLICT" {
			t.Errorf("code = %q, want CONFLICT", got.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := doJSON(t, h, "GET", "/api/books/B1", nil)
		wantStatus(t, rec, http.StatusOK)
		if got := decodeResp[library.Book](t, rec); got != book {
			t.Errorf("book = %+v, want %+v", got, book)
		}
	})

	t.Run("get missing is 404", func(t *testing.T) {
		rec := doJSON(t, h, "GET", "/api/books/B9", nil)
		wantStatus(t, rec, http.StatusNotFound)
		if got := decodeResp[ErrorResponse](t, rec); got.Code != "NOT_FOUND" {
			t.Errorf("code = %q, want NOT_FOUND", got.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, h, "GET", "/api/books", nil)
		wantStatus(t, rec, http.StatusOK)
		got := decodeResp[map[string][]library.Book](t, rec)
		if len(got["books"]) != 1 {
			t.Errorf("books = %v, want one entry", got["books"])
		}
	})

	t.Run("list with search", func(t *testing.T) {
		rec := doJSON(t, h, "GET", "/api/books?q=nosuch", nil)
		wantStatus(t, rec, http.StatusOK)
		got := decodeResp[map[string][]library.Book](t, rec)
		if got["books"] == nil || len(got["books"]) != 0 {
			t.Errorf("books = %v, want empty non-null array", got["books"])
		}
	})

	t.Run("update", func(t *testing.T) {
		updated := book
		updated.Title = "Dune, annotated"
		rec := doJSON(t, h, "PUT", "/api/books/B1", updated)
		wantStatus(t, rec, http.StatusOK)
		rec = doJSON(t, h, "GET", "/api/books/B1", nil)
		if got := decodeResp[library.Book](t, rec); got.Title != "Dune, annotated" {
			t.Errorf("Title = %q, want updated", got.Title)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/books", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("negative quantity is 400", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/books", library.Book{ID: "B2", AvailableQuantity: -1})
		wantStatus(t, rec, http.StatusBadRequest)
		if got := decodeResp[ErrorResponse](t, rec); got.Code != "VALIDATION_FAILED" {
			t.Errorf("code = %q, want VALIDATION_FAILED", got.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, h, "DELETE", "/api/books/B1", nil)
		wantStatus(t, rec, http.StatusNoContent)
		rec = doJSON(t, h, "DELETE", "/api/books/B1", nil)
		wantStatus(t, rec, http.StatusNotFound)
	})
}

func TestMemberEndpoints(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, "POST", "/api/members", library.Member{ID: "M1", Name: "Alice", Phone: "555", Email: "a@x.com"})
	wantStatus(t, rec, http.StatusCreated)

	t.Run("update keeps stored borrowed list", func(t *testing.T) {
		doJSON(t, h, "POST", "/api/books", library.Book{ID: "B1", Title: "Dune", AvailableQuantity: 1})
		rec := doJSON(t, h, "POST", "/api/loans", BorrowRequest{MemberID: "M1", BookID: "B1"})
		wantStatus(t, rec, http.StatusCreated)

		rec = doJSON(t, h, "PUT", "/api/members/M1", library.Member{Name: "Alice Smith", Phone: "556", Email: "a@x.com", Borrowed: []string{"bogus"}})
		wantStatus(t, rec, http.StatusOK)
		got := decodeResp[library.Member](t, rec)
		if got.Name != "Alice Smith" {
			t.Errorf("Name = %q, want updated", got.Name)
		}
		if len(got.Borrowed) != 1 || got.Borrowed[0] != "B1" {
			t.Errorf("Borrowed = %v, want [B1]", got.Borrowed)
		}
	})

	t.Run("delete with loans conflicts", func(t *testing.T) {
		rec := doJSON(t, h, "DELETE", "/api/members/M1", nil)
		wantStatus(t, rec, http.StatusConflict)
	})
}

func TestLoanEndpoints(t *testing.T) {
	h, _ := setupServer(t)
	doJSON(t, h, "POST", "/api/books", library.Book{ID: "B1", Title: "Dune", AvailableQuantity: 1})
	doJSON(t, h, "POST", "/api/members", library.Member{ID: "M1", Name: "Alice"})

	t.Run("borrow defaults the loan period", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/loans", BorrowRequest{MemberID: "M1", BookID: "B1"})
		wantStatus(t, rec, http.StatusCreated)
		got := decodeResp[LoanResponse](t, rec)
		if got.MemberID != "M1" || got.BookID != "B1" {
			t.Errorf("loan = %+v, want M1/B1", got)
		}
		if got.BorrowedOn == "" || got.DueOn == "" {
			t.Errorf("loan dates missing: %+v", got)
		}
		if got.Overdue {
			t.Errorf("fresh loan reported overdue")
		}
	})

	t.Run("borrow with no copies is unavailable", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/loans", BorrowRequest{MemberID: "M1", BookID: "B1"})
		wantStatus(t, rec, http.StatusConflict)
		if got := decodeResp[ErrorResponse](t, rec); got.Code != "UNAVAILABLE" {
			t.Errorf("code = %q, want UNAVAILABLE", got.Code)
		}
	})

	t.Run("negative days is 400", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/loans", BorrowRequest{MemberID: "M1", BookID: "B1", Days: -1})
		wantStatus(t, rec, http.StatusBadRequest)
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, h, "GET", "/api/loans", nil)
		wantStatus(t, rec, http.StatusOK)
		got := decodeResp[map[string][]LoanResponse](t, rec)
		if len(got["loans"]) != 1 {
			t.Errorf("loans = %v, want one entry", got["loans"])
		}
	})

	t.Run("return", func(t *testing.T) {
		rec := doJSON(t, h, "POST", "/api/returns", ReturnRequest{MemberID: "M1", BookID: "B1"})
		wantStatus(t, rec, http.StatusOK)
		rec = doJSON(t, h, "POST", "/api/returns", ReturnRequest{MemberID: "M1", BookID: "B1"})
		wantStatus(t, rec, http.StatusNotFound)
	})
}

func TestReloadEndpoint(t *testing.T) {
	h, _ := setupServer(t)
	rec := doJSON(t, h, "POST", "/api/reload", nil)
	wantStatus(t, rec, http.StatusOK)
}

func TestRateLimit(t *testing.T) {
	mgr, err := library.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.RateLimitPerMin = 2
	h := NewRouter(mgr, &cfg)

	// The limiter's burst equals the per-minute budget.
	for i := 0; i < 2; i++ {
		rec := doJSON(t, h, "GET", "/api/health", nil)
		wantStatus(t, rec, http.StatusOK)
	}
	rec := doJSON(t, h, "GET", "/api/health", nil)
	wantStatus(t, rec, http.StatusTooManyRequests)
	if got := decodeResp[ErrorResponse](t, rec); got.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", got.Code)
	}
}
