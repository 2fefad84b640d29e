package pipeline

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
)

// Selection is the set of columns a run is interested in: either every
// column of the input table or an explicit ordered list of names.
type Selection struct {
	all   bool
	names []string
}

// AllColumns selects every column of the table, resolved when the request
// is built.
func AllColumns() Selection { return Selection{all: true} }

// Columns selects the given names in order.
func Columns(names ...string) Selection { return Selection{names: names} }

// All reports whether the selection defers to the full table.
func (s Selection) All() bool { return s.all }

func (s Selection) String() string {
	if s.all {
		return "all"
	}
	return strings.Join(s.names, ", ")
}

// Resolve returns the selected names against t. Repeated names keep their
// first position; names not in t are an error.
func (s Selection) Resolve(t *table.Table) ([]string, error) {
	if s.all {
		return t.ColumnNames(), nil
	}
	seen := make(map[string]bool, len(s.names))
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if seen[n] {
			continue
		}
		if !t.Has(n) {
			return nil, fmt.Errorf("column %q not found in input data: %w", n, table.ErrColumnNotFound)
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no columns of interest")
	}
	return out, nil
}

// ReadColumnList reads a headerless comma-delimited file and returns the
// cells of its first row as a Selection. Blank cells are ignored.
func ReadColumnList(path string) (Selection, error) {
	recs, err := table.ReadRecords(path)
	if err != nil {
		return Selection{}, fmt.Errorf("read columns of interest: %w", err)
	}
	if len(recs) == 0 {
		return Selection{}, fmt.Errorf("read columns of interest: %s is empty", path)
	}
	var names []string
	for _, cell := range recs[0] {
		if n := strings.TrimSpace(cell); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return Selection{}, fmt.Errorf("read columns of interest: %s names no column", path)
	}
	return Columns(names...), nil
}
