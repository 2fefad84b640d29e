package table

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadCSV_TypeDetection(t *testing.T) {
	p := writeFile(t, t.TempDir(), "in.csv",
		"id, weight,label,empty\n"+
			"1,2.5,a,\n"+
			"2,,b,\n"+
			"3,1e3,c\n")

	tbl, err := ReadCSV(p)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"id", "weight", "label", "empty"}, tbl.ColumnNames())

	id, err := tbl.Lookup("id")
	require.NoError(t, err)
	assert.True(t, id.IsNumeric())
	assert.Equal(t, []float64{1, 2, 3}, id.Numbers)

	w, _ := tbl.Lookup("weight")
	require.True(t, w.IsNumeric())
	assert.True(t, math.IsNaN(w.Numbers[1]))
	assert.Equal(t, 1000.0, w.Numbers[2])

	lbl, _ := tbl.Lookup("label")
	assert.Equal(t, String, lbl.Kind)

	// no non-empty cell: not numeric
	e, _ := tbl.Lookup("empty")
	assert.Equal(t, String, e.Kind)
	assert.Equal(t, []string{"", "", ""}, e.Strings)
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadCSV(writeFile(t, dir, "empty.csv", ""))
	assert.ErrorContains(t, err, "no header row")

	_, err = ReadCSV(writeFile(t, dir, "dup.csv", "A,B,A\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrDuplicateColumn)

	_, err = ReadCSV(writeFile(t, dir, "blank.csv", "A,,C\n1,2,3\n"))
	assert.ErrorContains(t, err, "empty column name at position 2")

	_, err = ReadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestFromRecords_PadsAndTruncates(t *testing.T) {
	tbl, err := FromRecords([]string{"A", "B"}, [][]string{{"1"}, {"2", "3", "extra"}})
	require.NoError(t, err)
	b, _ := tbl.Lookup("B")
	require.True(t, b.IsNumeric())
	assert.True(t, math.IsNaN(b.Numbers[0]))
	assert.Equal(t, 3.0, b.Numbers[1])
	assert.Equal(t, 2, tbl.NumColumns())
}

func TestFromRecords_KeepsIdentifiersAsStrings(t *testing.T) {
	tbl, err := FromRecords([]string{"hex", "inf", "nan", "num"}, [][]string{
		{"0x1A", "inf", "nan", "1e3"},
		{"0x1B", "-Inf", "NaN", "-.5"},
	})
	require.NoError(t, err)
	for _, name := range []string{"hex", "inf", "nan"} {
		c, err := tbl.Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, String, c.Kind, name)
	}
	hex, _ := tbl.Lookup("hex")
	assert.Equal(t, "0x1A", hex.Format(0))
	num, _ := tbl.Lookup("num")
	assert.Equal(t, Numeric, num.Kind)
	assert.Equal(t, []float64{1000, -0.5}, num.Numbers)
}

func TestSetColumn_ReplacesOrAppends(t *testing.T) {
	tbl, err := FromColumns(NewNumeric("x", []float64{1, 2}), NewNumeric("d(x)", []float64{0, 0}))
	require.NoError(t, err)

	require.NoError(t, tbl.SetColumn(NewNumeric("d(x)", []float64{-1, 1})))
	assert.Equal(t, []string{"x", "d(x)"}, tbl.ColumnNames())
	c, _ := tbl.Lookup("d(x)")
	assert.Equal(t, []float64{-1, 1}, c.Numbers)

	require.NoError(t, tbl.SetColumn(NewString("tag", []string{"a", "b"})))
	assert.Equal(t, []string{"x", "d(x)", "tag"}, tbl.ColumnNames())
	assert.ErrorIs(t, tbl.SetColumn(NewNumeric("x", []float64{1})), ErrRowCount)
}

func TestAddColumn_Invariants(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn(NewNumeric("x", []float64{1, 2})))
	assert.ErrorIs(t, tbl.AddColumn(NewNumeric("x", []float64{3, 4})), ErrDuplicateColumn)
	assert.ErrorIs(t, tbl.AddColumn(NewString("y", []string{"a"})), ErrRowCount)

	_, err := tbl.Lookup("nope")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestExtend_LeavesSourceUntouched(t *testing.T) {
	src, err := FromColumns(NewNumeric("x", []float64{1, 2}))
	require.NoError(t, err)

	ext := src.Extend()
	require.NoError(t, ext.AddColumn(NewString("tag", []string{"a", "b"})))
	assert.Equal(t, 1, src.NumColumns())
	assert.False(t, src.Has("tag"))
	assert.Equal(t, []string{"x", "tag"}, ext.ColumnNames())
}

func TestWrite_FormatsNumbers(t *testing.T) {
	tbl, err := FromColumns(
		NewNumeric("x", []float64{1, 2.5, math.NaN(), 1e21}),
		NewString("s", []string{"a", "b,c", "", "d"}),
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tbl))
	assert.Equal(t, "x,s\n1,a\n2.5,\"b,c\"\n,\n1e+21,d\n", buf.String())
}

func TestWriteCSV_Truncates(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "out.csv", strings.Repeat("stale\n", 100))
	tbl, err := FromColumns(NewNumeric("x", []float64{1}))
	require.NoError(t, err)

	require.NoError(t, WriteCSV(p, tbl))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "x\n1\n", string(b))
}

func TestReadXLSX_MatchesCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "in.csv", "A,B,C\n1,x,2.5\n2,y,3.5\n")

	xlsxPath := filepath.Join(dir, "in.xlsx")
	f := excelize.NewFile()
	for i, row := range [][]any{{"A", "B", "C"}, {"1", "x", "2.5"}, {"2", "y", "3.5"}} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(xlsxPath))
	require.NoError(t, f.Close())

	fromCSV, err := Read(csvPath, ReadOptions{})
	require.NoError(t, err)
	fromXLSX, err := Read(xlsxPath, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, DumpString(fromCSV, 0), DumpString(fromXLSX, 0))

	_, err = Read(xlsxPath, ReadOptions{Sheet: "Nope"})
	assert.ErrorContains(t, err, "sheet 'Nope' not found")
}

func TestDump_LimitsRows(t *testing.T) {
	tbl, err := FromColumns(NewNumeric("x", []float64{1, 2, 3}))
	require.NoError(t, err)
	out := DumpString(tbl, 2)
	assert.Contains(t, out, "x\n1\n2\n")
	assert.Contains(t, out, "(1 more rows)")
}
