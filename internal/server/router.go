// Package server exposes the library manager over a JSON HTTP API.
//
// The server is a caller of the manager in the same sense as any other
// presentation surface: it holds catalog and member identifiers and invokes
// the manager's operations, rendering results as JSON.
package server

import (
	"net/http"

	"github.com/shelfkeeper/shelfkeeper/internal/library"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(mgr *library.Manager, cfg *Config) http.Handler {
	mux := http.NewServeMux()
	h := NewHandler(mgr, cfg)

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("GET /api/books", h.ListBooks)
	mux.HandleFunc("POST /api/books", h.CreateBook)
	mux.HandleFunc("GET /api/books/{id}", h.GetBook)
	mux.HandleFunc("PUT /api/books/{id}", h.UpdateBook)
	mux.HandleFunc("DELETE /api/books/{id}", h.DeleteBook)

	mux.HandleFunc("GET /api/members", h.ListMembers)
	mux.HandleFunc("POST /api/members", h.CreateMember)
	mux.HandleFunc("GET /api/members/{id}", h.GetMember)
	mux.HandleFunc("PUT /api/members/{id}", h.UpdateMember)
	mux.HandleFunc("DELETE /api/members/{id}", h.DeleteMember)

	mux.HandleFunc("GET /api/loans", h.ListLoans)
	mux.HandleFunc("POST /api/loans", h.Borrow)
	mux.HandleFunc("POST /api/returns", h.Return)
	mux.HandleFunc("POST /api/reload", h.Reload)

	return withRequestLog(withRateLimit(mux, cfg.RateLimitPerMin))
}
