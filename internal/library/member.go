package library

import (
	"slices"
	"strings"

	"github.com/shelfkeeper/shelfkeeper/internal/flatdb"
)

// Member is a person eligible to borrow books. Borrowed holds the IDs of
// currently borrowed books, one entry per open loan, in borrow order.
// The list is mutated exclusively by Borrow and Return.
type Member struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	Email    string   `json:"email"`
	Borrowed []string `json:"borrowed"`
}

// Clone returns a copy of the member with its own borrowed list.
func (m Member) Clone() Member {
	c := m
	if m.Borrowed != nil {
		c.Borrowed = slices.Clone(m.Borrowed)
	}
	return c
}

func (m Member) matches(term string) bool {
	return strings.Contains(strings.ToLower(m.ID), term) ||
		strings.Contains(strings.ToLower(m.Name), term) ||
		strings.Contains(strings.ToLower(m.Phone), term) ||
		strings.Contains(strings.ToLower(m.Email), term)
}

// memberCodec maps members to id|name|phone|email|bookId1,bookId2 lines.
// The trailing borrowed list field is optional and empty-tolerant.
var memberCodec = flatdb.Codec[Member]{
	MinFields: 4,
	Encode: func(m Member) []string {
		return []string{m.ID, m.Name, m.Phone, m.Email, strings.Join(m.Borrowed, flatdb.ListSep)}
	},
	Decode: func(fields []string) (Member, error) {
		m := Member{ID: fields[0], Name: fields[1], Phone: fields[2], Email: fields[3]}
		if len(fields) > 4 && fields[4] != "" {
			for _, id := range strings.Split(fields[4], flatdb.ListSep) {
				if id = strings.TrimSpace(id); id != "" {
					m.Borrowed = append(m.Borrowed, id)
				}
			}
		}
		return m, nil
	},
}
