// Package table is a small in-memory, string-celled table used by every
// pipeline task. A Table is loaded whole from a CSV file with a header row,
// transformed, and written back whole; there is no streaming.
package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingColumn is matched by errors.Is for every ColumnError.
var ErrMissingColumn = errors.New("missing required column")

// ColumnError reports a column a transform needs but the table lacks.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %q", ErrMissingColumn, e.Column)
}

func (e *ColumnError) Unwrap() error { return ErrMissingColumn }

// ValueError reports a cell that could not be interpreted as a number.
type ValueError struct {
	Column string
	Row    int // 0-based data row
	Value  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("column %q row %d: %q is not numeric", e.Column, e.Row, e.Value)
}

// Table is a header plus rows. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New returns an empty table with the given header.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of the first column named name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column named name.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Require returns a ColumnError for the first name the table lacks.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return &ColumnError{Column: n}
		}
	}
	return nil
}

// Append adds a row. It panics when the width does not match the header;
// callers build rows from the header they already hold.
func (t *Table) Append(row ...string) {
	if len(row) != len(t.Columns) {
		panic(fmt.Sprintf("table: row width %d != %d columns", len(row), len(t.Columns)))
	}
	t.Rows = append(t.Rows, row)
}

// Column returns a copy of the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	i := t.Index(name)
	if i < 0 {
		return nil, &ColumnError{Column: name}
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// Filter returns the rows whose value in column col satisfies keep. The
// header is unchanged. Rows are shared with t, not copied.
func (t *Table) Filter(col string, keep func(v string) bool) (*Table, error) {
	i := t.Index(col)
	if i < 0 {
		return nil, &ColumnError{Column: col}
	}
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows {
		if keep(row[i]) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// DropColumn returns a copy of t without column col. A missing column is an
// error, never a no-op.
func (t *Table) DropColumn(col string) (*Table, error) {
	i := t.Index(col)
	if i < 0 {
		return nil, &ColumnError{Column: col}
	}
	out := &Table{Columns: without(t.Columns, i), Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		out.Rows[r] = without(row, i)
	}
	return out, nil
}

func without(s []string, i int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// SetColumn replaces the values of column name, or appends the column when it
// does not exist yet. len(values) must equal t.Len().
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("set column %q: %d values for %d rows", name, len(values), len(t.Rows))
	}
	if i := t.Index(name); i >= 0 {
		for r := range t.Rows {
			t.Rows[r][i] = values[r]
		}
		return nil
	}
	t.Columns = append(t.Columns, name)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], values[r])
	}
	return nil
}

// Floats parses the named column. Blank cells are reported as missing
// (ok[r] == false); any other unparsable cell is a ValueError.
func (t *Table) Floats(name string) (vals []float64, ok []bool, err error) {
	i := t.Index(name)
	if i < 0 {
		return nil, nil, &ColumnError{Column: name}
	}
	vals = make([]float64, len(t.Rows))
	ok = make([]bool, len(t.Rows))
	for r, row := range t.Rows {
		s := strings.TrimSpace(row[i])
		if s == "" {
			continue
		}
		f, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return nil, nil, &ValueError{Column: name, Row: r, Value: row[i]}
		}
		if math.IsNaN(f) {
			continue // written back out as a blank cell
		}
		vals[r], ok[r] = f, true
	}
	return vals, ok, nil
}

// FormatFloat renders f with the fewest digits that round-trip.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
