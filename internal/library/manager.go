// Package library implements the catalog, member roster and lending ledger of
// a small lending library, persisted as delimited text files.
//
// A Manager owns all three collections for the lifetime of the process and is
// the only component that mutates them. Every mutating operation persists the
// affected collections before returning. Persistence faults are logged and
// absorbed: memory stays authoritative and disk catches up on the next
// successful save. Business-rule failures are reported as sentinel errors and
// leave all collections untouched.
package library

import (
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/flatdb"
)

var (
	// ErrIDRequired is returned when an add is attempted with an empty identifier.
	ErrIDRequired = errors.New("id is required")
	// ErrNegativeQuantity is returned when a book carries a negative quantity.
	ErrNegativeQuantity = errors.New("quantity must be non-negative")
	// ErrBookNotFound is returned when no book has the given identifier.
	ErrBookNotFound = errors.New("book not found")
	// ErrBookExists is returned when adding a book with a taken identifier.
	ErrBookExists = errors.New("book already exists")
	// ErrBookOnLoan is returned when removing a book the ledger still references.
	ErrBookOnLoan = errors.New("book has open loans")
	// ErrMemberNotFound is returned when no member has the given identifier.
	ErrMemberNotFound = errors.New("member not found")
	// ErrMemberExists is returned when adding a member with a taken identifier.
	ErrMemberExists = errors.New("member already exists")
	// ErrMemberHasLoans is returned when removing a member with borrowed books.
	ErrMemberHasLoans = errors.New("member has borrowed books")
	// ErrLoanNotFound is returned when no loan matches a (member, book) pair.
	ErrLoanNotFound = errors.New("no matching loan")
	// ErrNoCopies is returned when borrowing a book with no available copies.
	ErrNoCopies = errors.New("no copies available")
)

const (
	booksFile   = "books.txt"
	membersFile = "members.txt"
	loansFile   = "loans.txt"
)

// Manager composes the catalog, the member roster and the lending ledger.
// One mutex serializes all operations so the cross-collection invariants hold
// between any two of them, matching a single logical thread of control even
// when the caller is a concurrent HTTP listener.
type Manager struct {
	mu      sync.Mutex
	books   *flatdb.Table[Book]
	members *flatdb.Table[Member]
	loans   *flatdb.Table[Loan]

	now func() time.Time
}

// Open loads the three collections from dataDir, creating the directory when
// missing. A file that fails to decode aborts that file's load; the manager
// starts with whatever rows were read and logs the fault, so a damaged file
// never prevents startup.
func Open(dataDir string) (*Manager, error) {
	m := &Manager{now: time.Now}
	var err error
	if m.books, err = flatdb.Open(filepath.Join(dataDir, booksFile), bookCodec); err != nil {
		if m.books == nil {
			return nil, err
		}
		slog.Warn("Failed to load catalog, continuing with rows read so far", "err", err)
	}
	if m.members, err = flatdb.Open(filepath.Join(dataDir, membersFile), memberCodec); err != nil {
		if m.members == nil {
			return nil, err
		}
		slog.Warn("Failed to load member roster, continuing with rows read so far", "err", err)
	}
	if m.loans, err = flatdb.Open(filepath.Join(dataDir, loansFile), loanCodec); err != nil {
		if m.loans == nil {
			return nil, err
		}
		slog.Warn("Failed to load lending ledger, continuing with rows read so far", "err", err)
	}
	return m, nil
}

// persist rewrites a table, logging instead of failing the operation when the
// write faults. A failed save means durability is not yet achieved, not that
// the operation failed.
func persist[T flatdb.Row[T]](t *flatdb.Table[T], rows []T) {
	if err := t.Replace(rows); err != nil {
		slog.Error("Failed to persist table", "path", t.Path(), "err", err)
	}
}

func findBook(rows []Book, id string) (int, bool) {
	for i := range rows {
		if rows[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func findMember(rows []Member, id string) (int, bool) {
	for i := range rows {
		if rows[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// AddBook appends a book to the catalog.
func (m *Manager) AddBook(b Book) error {
	if b.ID == "" {
		return ErrIDRequired
	}
	if b.AvailableQuantity < 0 {
		return ErrNegativeQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.books.Rows()
	if _, ok := findBook(rows, b.ID); ok {
		return ErrBookExists
	}
	persist(m.books, append(rows, b))
	return nil
}

// UpdateBook replaces the stored book with the same identifier, preserving
// catalog order.
func (m *Manager) UpdateBook(b Book) error {
	if b.AvailableQuantity < 0 {
		return ErrNegativeQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.books.Rows()
	i, ok := findBook(rows, b.ID)
	if !ok {
		return ErrBookNotFound
	}
	rows[i] = b
	persist(m.books, rows)
	return nil
}

// RemoveBook deletes a book. It fails while any loan references the book.
func (m *Manager) RemoveBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.books.Rows()
	i, ok := findBook(rows, id)
	if !ok {
		return ErrBookNotFound
	}
	for loan := range m.loans.All() {
		if loan.BookID == id {
			return ErrBookOnLoan
		}
	}
	persist(m.books, slices.Delete(rows, i, i+1))
	return nil
}

// Book retrieves a book by identifier.
func (m *Manager) Book(id string) (Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for b := range m.books.All() {
		if b.ID == id {
			return b, nil
		}
	}
	return Book{}, ErrBookNotFound
}

// Books returns the whole catalog in file order.
func (m *Manager) Books() []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books.Rows()
}

// AvailableBooks returns the books with at least one loanable copy.
func (m *Manager) AvailableBooks() []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	var avail []Book
	for b := range m.books.All() {
		if b.AvailableQuantity > 0 {
			avail = append(avail, b)
		}
	}
	return avail
}

// SearchBooks returns the books whose identifier, title, author or category
// contains term, case-insensitively, in catalog order.
func (m *Manager) SearchBooks(term string) []Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	term = strings.ToLower(term)
	var results []Book
	for b := range m.books.All() {
		if b.matches(term) {
			results = append(results, b)
		}
	}
	return results
}

// AddMember appends a member to the roster. The borrowed list of the passed-in
// member is ignored; it is owned by Borrow and Return.
func (m *Manager) AddMember(mem Member) error {
	if mem.ID == "" {
		return ErrIDRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.members.Rows()
	if _, ok := findMember(rows, mem.ID); ok {
		return ErrMemberExists
	}
	mem.Borrowed = nil
	persist(m.members, append(rows, mem))
	return nil
}

// UpdateMember replaces the stored member with the same identifier, keeping
// the stored borrowed list rather than the caller-supplied one.
func (m *Manager) UpdateMember(mem Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.members.Rows()
	i, ok := findMember(rows, mem.ID)
	if !ok {
		return ErrMemberNotFound
	}
	mem.Borrowed = rows[i].Borrowed
	rows[i] = mem
	persist(m.members, rows)
	return nil
}

// RemoveMember deletes a member. It fails while the member has borrowed books.
func (m *Manager) RemoveMember(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.members.Rows()
	i, ok := findMember(rows, id)
	if !ok {
		return ErrMemberNotFound
	}
	if len(rows[i].Borrowed) > 0 {
		return ErrMemberHasLoans
	}
	persist(m.members, slices.Delete(rows, i, i+1))
	return nil
}

// Member retrieves a member by identifier.
func (m *Manager) Member(id string) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for mem := range m.members.All() {
		if mem.ID == id {
			return mem, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

// Members returns the whole roster in file order.
func (m *Manager) Members() []Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members.Rows()
}

// SearchMembers returns the members whose identifier, name, phone or email
// contains term, case-insensitively, in roster order.
func (m *Manager) SearchMembers(term string) []Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	term = strings.ToLower(term)
	var results []Member
	for mem := range m.members.All() {
		if mem.matches(term) {
			results = append(results, mem)
		}
	}
	return results
}

// Borrow lends one copy of a book to a member for days days. It appends a
// ledger record, decrements the book's available quantity and appends the
// book to the member's borrowed list, then persists all three collections.
// Nothing is mutated when a precondition fails. The due date uses calendar
// arithmetic, so it rolls correctly across month and year boundaries.
func (m *Manager) Borrow(memberID, bookID string, days int) (Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.members.Rows()
	mi, ok := findMember(members, memberID)
	if !ok {
		return Loan{}, ErrMemberNotFound
	}
	books := m.books.Rows()
	bi, ok := findBook(books, bookID)
	if !ok {
		return Loan{}, ErrBookNotFound
	}
	if books[bi].AvailableQuantity <= 0 {
		return Loan{}, ErrNoCopies
	}

	borrowedOn := dateOnly(m.now())
	loan := Loan{
		MemberID:   memberID,
		BookID:     bookID,
		BorrowedOn: borrowedOn,
		DueOn:      borrowedOn.AddDate(0, 0, days),
	}
	books[bi].AvailableQuantity--
	members[mi].Borrowed = append(members[mi].Borrowed, bookID)

	persist(m.books, books)
	persist(m.members, members)
	persist(m.loans, append(m.loans.Rows(), loan))
	return loan, nil
}

// Return ends the first loan matching the (member, book) pair: the ledger
// record is removed, the book's available quantity incremented and one
// occurrence of the book removed from the member's borrowed list, then all
// three collections are persisted.
func (m *Manager) Return(memberID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.members.Rows()
	mi, ok := findMember(members, memberID)
	if !ok {
		return ErrMemberNotFound
	}
	books := m.books.Rows()
	bi, ok := findBook(books, bookID)
	if !ok {
		return ErrBookNotFound
	}

	loans := m.loans.Rows()
	li := -1
	for i := range loans {
		if loans[i].MemberID == memberID && loans[i].BookID == bookID {
			li = i
			break
		}
	}
	if li < 0 {
		return ErrLoanNotFound
	}

	books[bi].AvailableQuantity++
	if j := slices.Index(members[mi].Borrowed, bookID); j >= 0 {
		members[mi].Borrowed = slices.Delete(members[mi].Borrowed, j, j+1)
	}

	persist(m.books, books)
	persist(m.members, members)
	persist(m.loans, slices.Delete(loans, li, li+1))
	return nil
}

// Loans returns the whole lending ledger in file order.
func (m *Manager) Loans() []Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loans.Rows()
}

// Reload discards the in-memory collections and reads all three files again.
// It recovers a known-good view after the files were changed externally.
func (m *Manager) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.books.Reload(), m.members.Reload(), m.loans.Reload())
}

// Files returns the paths of the three backing files, for callers that watch
// them for external changes.
func (m *Manager) Files() []string {
	return []string{m.books.Path(), m.members.Path(), m.loans.Path()}
}
