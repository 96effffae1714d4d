package library

import (
	"fmt"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/flatdb"
)

// DateFormat is the calendar date layout used in the ledger file.
const DateFormat = "2006-01-02"

// Loan is an active lending record linking one member to one book. Loans are
// not independently addressable; the (member, book) pair identifies them for
// lookup and removal, and ledger order is significant when the same pair
// appears twice.
type Loan struct {
	MemberID   string
	BookID     string
	BorrowedOn time.Time
	DueOn      time.Time
}

// Clone returns a copy of the loan.
func (l Loan) Clone() Loan {
	return l
}

// Overdue reports whether the loan is past due at the given time. Overdue-ness
// is derived, never stored.
func (l Loan) Overdue(now time.Time) bool {
	return dateOnly(now).After(l.DueOn)
}

// dateOnly truncates t to midnight in its location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// loanCodec maps loans to memberId|bookId|borrowedOn|dueOn lines.
var loanCodec = flatdb.Codec[Loan]{
	MinFields: 4,
	Encode: func(l Loan) []string {
		return []string{l.MemberID, l.BookID, l.BorrowedOn.Format(DateFormat), l.DueOn.Format(DateFormat)}
	},
	Decode: func(fields []string) (Loan, error) {
		borrowedOn, err := time.ParseInLocation(DateFormat, fields[2], time.Local)
		if err != nil {
			return Loan{}, fmt.Errorf("invalid borrow date %q: %w", fields[2], err)
		}
		dueOn, err := time.ParseInLocation(DateFormat, fields[3], time.Local)
		if err != nil {
			return Loan{}, fmt.Errorf("invalid due date %q: %w", fields[3], err)
		}
		return Loan{MemberID: fields[0], BookID: fields[1], BorrowedOn: borrowedOn, DueOn: dueOn}, nil
	},
}
