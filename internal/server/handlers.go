package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/library"
)

// Handler exposes the library manager's operations over HTTP. It holds
// identifiers and invokes manager operations; all business rules live in the
// manager.
type Handler struct {
	mgr *library.Manager
	cfg *Config
}

// NewHandler creates a handler backed by mgr.
func NewHandler(mgr *library.Manager, cfg *Config) *Handler {
	return &Handler{mgr: mgr, cfg: cfg}
}

// LoanResponse is the wire form of a loan, with dates as calendar days and
// the derived overdue flag.
type LoanResponse struct {
	MemberID   string `json:"member_id"`
	BookID     string `json:"book_id"`
	BorrowedOn string `json:"borrowed_on"`
	DueOn      string `json:"due_on"`
	Overdue    bool   `json:"overdue"`
}

func loanResponse(l library.Loan, now time.Time) LoanResponse {
	return LoanResponse{
		MemberID:   l.MemberID,
		BookID:     l.BookID,
		BorrowedOn: l.BorrowedOn.Format(library.DateFormat),
		DueOn:      l.DueOn.Format(library.DateFormat),
		Overdue:    l.Overdue(now),
	}
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListBooks returns the catalog, filtered by ?q= substring search and
// ?available=1 when present.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	var books []library.Book
	switch {
	case r.URL.Query().Get("q") != "":
		books = h.mgr.SearchBooks(r.URL.Query().Get("q"))
	case r.URL.Query().Get("available") == "1":
		books = h.mgr.AvailableBooks()
	default:
		books = h.mgr.Books()
	}
	if books == nil {
		books = []library.Book{}
	}
	respondJSON(w, http.StatusOK, map[string][]library.Book{"books": books})
}

// GetBook returns one book by identifier.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.mgr.Book(r.PathValue("id"))
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// CreateBook adds a book to the catalog.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var b library.Book
	if !decodeBody(w, r, &b) {
		return
	}
	if err := h.mgr.AddBook(b); err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// UpdateBook replaces the book named in the path.
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var b library.Book
	if !decodeBody(w, r, &b) {
		return
	}
	b.ID = r.PathValue("id")
	if err := h.mgr.UpdateBook(b); err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// DeleteBook removes the book named in the path.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.RemoveBook(r.PathValue("id")); err != nil {
		respondManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers returns the roster, filtered by ?q= substring search.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	var members []library.Member
	if q := r.URL.Query().Get("q"); q != "" {
		members = h.mgr.SearchMembers(q)
	} else {
		members = h.mgr.Members()
	}
	if members == nil {
		members = []library.Member{}
	}
	respondJSON(w, http.StatusOK, map[string][]library.Member{"members": members})
}

// GetMember returns one member by identifier.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.mgr.Member(r.PathValue("id"))
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// CreateMember adds a member to the roster.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var m library.Member
	if !decodeBody(w, r, &m) {
		return
	}
	if err := h.mgr.AddMember(m); err != nil {
		respondManagerError(w, err)
		return
	}
	m.Borrowed = nil
	respondJSON(w, http.StatusCreated, m)
}

// UpdateMember replaces the member named in the path. The stored borrowed
// list always wins over the request body's.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var m library.Member
	if !decodeBody(w, r, &m) {
		return
	}
	m.ID = r.PathValue("id")
	if err := h.mgr.UpdateMember(m); err != nil {
		respondManagerError(w, err)
		return
	}
	stored, err := h.mgr.Member(m.ID)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stored)
}

// DeleteMember removes the member named in the path.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.RemoveMember(r.PathValue("id")); err != nil {
		respondManagerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLoans returns the whole lending ledger.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	loans := []LoanResponse{}
	for _, l := range h.mgr.Loans() {
		loans = append(loans, loanResponse(l, now))
	}
	respondJSON(w, http.StatusOK, map[string][]LoanResponse{"loans": loans})
}

// BorrowRequest is a request to lend a book to a member.
type BorrowRequest struct {
	MemberID string `json:"member_id"`
	BookID   string `json:"book_id"`
	// Days is the loan period; 0 means the configured default.
	Days int `json:"days"`
}

// Borrow lends one copy of a book to a member.
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Days < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "days must be non-negative")
		return
	}
	if req.Days == 0 {
		req.Days = h.cfg.DefaultLoanDays
	}
	loan, err := h.mgr.Borrow(req.MemberID, req.BookID, req.Days)
	if err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, loanResponse(loan, time.Now()))
}

// ReturnRequest is a request to end a loan.
type ReturnRequest struct {
	MemberID string `json:"member_id"`
	BookID   string `json:"book_id"`
}

// Return ends the first loan matching the (member, book) pair.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.mgr.Return(req.MemberID, req.BookID); err != nil {
		respondManagerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

// Reload discards the in-memory collections and reloads them from disk.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.Reload(); err != nil {
		slog.ErrorContext(r.Context(), "Reload failed", "err", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}
