// Package flatdb provides line-oriented delimited text storage for small
// in-memory collections.
//
// Each Table[T] owns one text file. Rows live in memory in file order and
// every save rewrites the whole file, so the committed file always reflects
// exactly the current row set. A missing file is an empty table, which keeps
// first-run bootstrap free of special cases.
package flatdb

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// FieldSep separates fields within a line.
	FieldSep = "|"
	// ListSep separates elements of a list stored inside a single field.
	ListSep = ","
)

// Row is implemented by types stored in a Table.
type Row[T any] interface {
	Clone() T
}

// Codec converts a record to and from its delimited field form.
type Codec[T any] struct {
	// MinFields is the smallest field count a line must split into to be
	// decoded. Shorter lines are skipped.
	MinFields int
	Encode    func(T) []string
	Decode    func([]string) (T, error)
}

// Table handles storage and in-memory caching for one record kind.
type Table[T Row[T]] struct {
	path  string
	codec Codec[T]

	mu   sync.RWMutex
	rows []T
}

// Open creates the parent directory if needed and loads all rows from path.
// When a row fails to decode the rows read so far are kept and the error is
// returned alongside the usable table.
func Open[T Row[T]](path string, codec Codec[T]) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path, codec: codec}
	return t, t.Reload()
}

// Path returns the file backing this table.
func (t *Table[T]) Path() string {
	return t.path
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Rows returns clones of all rows in file order.
func (t *Table[T]) Rows() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]T, len(t.rows))
	for i, row := range t.rows {
		rows[i] = row.Clone()
	}
	return rows
}

// All returns an iterator over clones of all rows.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Reload discards the in-memory rows and reads the file again.
func (t *Table[T]) Reload() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rows, err := t.load()
	t.rows = rows
	return err
}

func (t *Table[T]) load() ([]T, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, FieldSep)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < t.codec.MinFields {
			continue
		}
		row, err := t.codec.Decode(fields)
		if err != nil {
			return rows, fmt.Errorf("failed to decode row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return rows, fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}
	return rows, nil
}

// Replace swaps in rows as the new table content and rewrites the file.
// The in-memory rows are kept even when the write fails; disk catches up on
// the next successful Replace.
func (t *Table[T]) Replace(rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows

	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create table file %s: %w", t.path, err)
	}
	writer := bufio.NewWriter(f)
	for _, row := range rows {
		if _, err := writer.WriteString(strings.Join(t.codec.Encode(row), FieldSep)); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close table file %s: %w", t.path, err)
	}
	return nil
}
