package table

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Dump writes up to maxRows rows of t as an aligned text grid, preceded by the
// header. maxRows <= 0 dumps every row.
func Dump(w io.Writer, t *Table, maxRows int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.ColumnNames(), "\t"))
	n := t.NumRows()
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for i := 0; i < n; i++ {
		fmt.Fprintln(tw, strings.Join(t.Row(i), "\t"))
	}
	if n < t.NumRows() {
		fmt.Fprintf(tw, "... (%d more rows)\n", t.NumRows()-n)
	}
	return tw.Flush()
}

// DumpString is Dump into a string.
func DumpString(t *Table, maxRows int) string {
	var b strings.Builder
	_ = Dump(&b, t, maxRows)
	return b.String()
}
