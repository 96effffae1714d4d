package library

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfkeeper/shelfkeeper/internal/flatdb"
)

// Book is a lendable catalog entry. AvailableQuantity counts the copies
// currently loanable; it is decremented on borrow and incremented on return,
// so total capacity is whatever the quantity was before the first borrow.
type Book struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Author            string `json:"author"`
	Category          string `json:"category"`
	AvailableQuantity int    `json:"available_quantity"`
}

// Clone returns a copy of the book.
func (b Book) Clone() Book {
	return b
}

// matches reports whether term, already lowercased, occurs in any searchable
// field.
func (b Book) matches(term string) bool {
	return strings.Contains(strings.ToLower(b.ID), term) ||
		strings.Contains(strings.ToLower(b.Title), term) ||
		strings.Contains(strings.ToLower(b.Author), term) ||
		strings.Contains(strings.ToLower(b.Category), term)
}

// bookCodec maps books to id|title|author|category|availableQuantity lines.
var bookCodec = flatdb.Codec[Book]{
	MinFields: 5,
	Encode: func(b Book) []string {
		return []string{b.ID, b.Title, b.Author, b.Category, strconv.Itoa(b.AvailableQuantity)}
	},
	Decode: func(fields []string) (Book, error) {
		qty, err := strconv.Atoi(fields[4])
		if err != nil {
			return Book{}, fmt.Errorf("invalid quantity %q: %w", fields[4], err)
		}
		return Book{
			ID:                fields[0],
			Title:             fields[1],
			Author:            fields[2],
			Category:          fields[3],
			AvailableQuantity: qty,
		}, nil
	},
}
