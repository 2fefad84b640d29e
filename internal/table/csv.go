package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadOptions controls how input tables are loaded.
type ReadOptions struct {
	// Sheet selects the XLSX worksheet. Empty means the first sheet.
	Sheet string
}

// Read loads a table from path, choosing the reader by file extension.
func Read(path string, opt ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, opt.Sheet)
	default:
		return ReadCSV(path)
	}
}

// ReadCSV loads a comma-delimited file whose first row is the header.
func ReadCSV(path string) (*Table, error) {
	recs, err := ReadRecords(path)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read %s: no header row", filepath.Base(path))
	}
	t, err := FromRecords(recs[0], recs[1:])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// ReadRecords returns every record of a comma-delimited file, without any
// header interpretation.
func ReadRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readRecords(f)
}

func readRecords(rd io.Reader) ([][]string, error) {
	r := csv.NewReader(rd)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var out [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromRecords builds a table from a header and raw rows. Short rows are padded
// with empty cells and long rows are truncated to the header width. A column is
// numeric when every non-empty cell parses as a number and at least one cell is
// non-empty.
func FromRecords(header []string, rows [][]string) (*Table, error) {
	ncol := len(header)
	if ncol == 0 {
		return nil, fmt.Errorf("empty header row")
	}
	t := New()
	for j := 0; j < ncol; j++ {
		name := strings.TrimSpace(header[j])
		if name == "" {
			return nil, fmt.Errorf("empty column name at position %d", j+1)
		}
		cells := make([]string, len(rows))
		for i, rec := range rows {
			if j < len(rec) {
				cells[i] = strings.TrimSpace(rec[j])
			}
		}
		if err := t.AddColumn(inferColumn(name, cells)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func inferColumn(name string, cells []string) *Column {
	nums := make([]float64, len(cells))
	seen := 0
	for i, v := range cells {
		if v == "" {
			nums[i] = math.NaN()
			continue
		}
		x, ok := parseDecimal(v)
		if !ok {
			return NewString(name, cells)
		}
		nums[i] = x
		seen++
	}
	if seen == 0 {
		return NewString(name, cells)
	}
	return NewNumeric(name, nums)
}

// parseDecimal accepts plain decimal numbers only. Hex floats, inf and nan
// literals would turn identifiers into numbers.
func parseDecimal(v string) (float64, bool) {
	if strings.Trim(v, "0123456789+-.eE") != "" {
		return 0, false
	}
	x, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

// WriteCSV writes t to path with a header row, truncating any existing file.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Write encodes t as comma-delimited text with a header row.
func Write(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	for i := 0; i < t.NumRows(); i++ {
		if err := cw.Write(t.Row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
