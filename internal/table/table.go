package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the detected type of a column.
type Kind int

const (
	String Kind = iota
	Numeric
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	default:
		return "string"
	}
}

var (
	// ErrColumnNotFound is returned when a column name is not part of a table.
	ErrColumnNotFound = errors.New("column not found")
	// ErrDuplicateColumn is returned when a column name is already taken.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrRowCount is returned when a column length differs from the table row count.
	ErrRowCount = errors.New("column length mismatch")
)

// Column is a named, typed sequence of values. Exactly one of Numbers or
// Strings is populated, depending on Kind. Missing numeric values are NaN.
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Strings []string
}

// NewNumeric returns a numeric column backed by vals.
func NewNumeric(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Numbers: vals}
}

// NewString returns a string column backed by vals.
func NewString(name string, vals []string) *Column {
	return &Column{Name: name, Kind: String, Strings: vals}
}

// IsNumeric reports whether the column holds numbers.
func (c *Column) IsNumeric() bool { return c.Kind == Numeric }

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numbers)
	}
	return len(c.Strings)
}

// Missing reports whether the value at row i is absent.
func (c *Column) Missing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Strings[i] == ""
}

// Format renders the value at row i the way it is written to CSV.
func (c *Column) Format(i int) string {
	if c.Kind == Numeric {
		return FormatFloat(c.Numbers[i])
	}
	return c.Strings[i]
}

// FormatFloat renders a number with the shortest representation that
// round-trips. NaN renders as an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Table is an ordered set of equally long, uniquely named columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New returns an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// FromColumns builds a table from cols, enforcing the table invariants.
func FromColumns(cols ...*Column) (*Table, error) {
	t := New()
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddColumn appends c. The first column fixes the row count.
func (t *Table) AddColumn(c *Column) error {
	if c.Name == "" {
		return fmt.Errorf("add column: empty column name")
	}
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("add column %q: %w", c.Name, ErrDuplicateColumn)
	}
	if len(t.cols) == 0 {
		t.rows = c.Len()
	} else if c.Len() != t.rows {
		return fmt.Errorf("add column %q: %w: %d values, table has %d rows", c.Name, ErrRowCount, c.Len(), t.rows)
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// SetColumn replaces the column named c.Name in place, or appends c when the
// name is new.
func (t *Table) SetColumn(c *Column) error {
	i, ok := t.index[c.Name]
	if !ok {
		return t.AddColumn(c)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("set column %q: %w: %d values, table has %d rows", c.Name, ErrRowCount, c.Len(), t.rows)
	}
	t.cols[i] = c
	return nil
}

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.cols) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// Column returns the column at index i.
func (t *Table) Column(i int) *Column { return t.cols[i] }

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column named name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Lookup returns the column named name.
func (t *Table) Lookup(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.cols[i], nil
}

// Row returns the formatted cells of row i.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.Format(i)
	}
	return out
}

// Extend returns a new table sharing the columns of t, so that columns can be
// appended without touching t.
func (t *Table) Extend() *Table {
	out := &Table{
		cols:  make([]*Column, len(t.cols), len(t.cols)+4),
		index: make(map[string]int, len(t.index)),
		rows:  t.rows,
	}
	copy(out.cols, t.cols)
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}
