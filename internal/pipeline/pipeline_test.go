package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/logging"
	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sample = "A,B,C,S\n" +
	"1,2,1,x\n" +
	"2,1,3,y\n" +
	"3,4,2,x\n" +
	"4,3,5,y\n" +
	"5,6,4,x\n" +
	"6,5,7,x\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func abc(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords([]string{"A", "B", "C"}, [][]string{{"1", "2", "3"}})
	require.NoError(t, err)
	return tbl
}

func TestSelectAllColumns(t *testing.T) {
	got, err := AllColumns().Resolve(abc(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestSelectionResolve(t *testing.T) {
	got, err := Columns("C", "A", "C").Resolve(abc(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, got)

	_, err = Columns("A", "Z").Resolve(abc(t))
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.ErrorContains(t, err, `column "Z" not found in input data`)
}

func TestReadColumnList(t *testing.T) {
	dir := t.TempDir()
	sel, err := ReadColumnList(writeFile(t, dir, "cols.csv", "A, C\nB\n"))
	require.NoError(t, err)
	assert.False(t, sel.All())
	assert.Equal(t, "A, C", sel.String())

	_, err = ReadColumnList(writeFile(t, dir, "empty.csv", ""))
	assert.ErrorContains(t, err, "is empty")

	_, err = ReadColumnList(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestBuildRequestUnivariate(t *testing.T) {
	req := BuildRequest(engine.Univariate, []string{"A", "B", "C"}, []string{"A", "B"}, logging.Discard())
	assert.Equal(t, engine.Request{
		engine.UnivariateRequest{X: "A"},
		engine.UnivariateRequest{X: "B"},
	}, req)
}

func TestBuildRequestBivariate(t *testing.T) {
	req := BuildRequest(engine.Bivariate, []string{"A", "B", "C"}, []string{"A", "B"}, logging.Discard())
	assert.Equal(t, engine.Request{
		engine.BivariateRequest{X: "A", Y: "B"},
		engine.BivariateRequest{X: "A", Y: "C"},
		engine.BivariateRequest{X: "B", Y: "C"},
	}, req)

	// the second index runs over the full table, self pairs are dropped
	req = BuildRequest(engine.Bivariate, []string{"A", "B", "C"}, []string{"C", "A"}, logging.Discard())
	assert.Equal(t, engine.Request{
		engine.BivariateRequest{X: "C", Y: "B"},
		engine.BivariateRequest{X: "A", Y: "C"},
	}, req)
}

func TestBuildRequestMultivariate(t *testing.T) {
	var buf bytes.Buffer
	req := BuildRequest(engine.Multivariate, []string{"A", "B", "C"}, []string{"A", "C"}, logging.New(1, "text", &buf))
	assert.Equal(t, engine.Request{engine.MultivariateRequest{Vars: []string{"A", "C"}}}, req)
	assert.Contains(t, buf.String(), "Adding column C to the request")
}

func TestWriteModelSingleTable(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "model")
	paths, err := WriteModel(prefix, engine.SingleTable{Table: abc(t)}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{prefix + "-0.csv"}, paths)
	assert.Equal(t, []string{"model-0.csv"}, listDir(t, dir))
}

func TestWriteModelBlocks(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "model")
	m := engine.MultiTable{Blocks: []*table.Table{abc(t), abc(t), abc(t)}}
	paths, err := WriteModel(prefix, m, logging.Discard())
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.Equal(t, []string{"model-0.csv", "model-1.csv", "model-2.csv"}, listDir(t, dir))

	b, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "A,B,C\n1,2,3\n", string(b))
}

func TestWriteDataDumpsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	p := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteData(p, abc(t), logging.New(2, "text", &buf)))
	assert.Contains(t, buf.String(), "Wrote output data to")
	assert.Contains(t, buf.String(), "A  B  C")
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func options(dir string, k engine.Kind) Options {
	return Options{
		InputData:         filepath.Join(dir, "in.csv"),
		Kind:              k,
		OutputModelPrefix: filepath.Join(dir, "outputModel"),
		OutputData:        filepath.Join(dir, "outputData.csv"),
		Settings:          engine.DefaultSettings(),
	}
}

func TestRunEveryEngine(t *testing.T) {
	for _, k := range engine.Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "in.csv", sample)
			cols := "A,B,C\n"
			if k.Arity() != engine.Multivariate {
				cols = "A,B\n"
			}
			o := options(dir, k)
			o.ColumnsFile = writeFile(t, dir, "cols.csv", cols)

			m, err := Run(o, logging.Discard())
			require.NoError(t, err)
			assert.Equal(t, k.String(), m.Engine)
			assert.NotEmpty(t, m.ID)
			assert.FileExists(t, o.OutputData)
			for _, p := range m.Model {
				assert.FileExists(t, p)
			}
			if k.Shape() == engine.ShapeSingle {
				assert.Len(t, m.Model, 1)
			}

			out, err := table.ReadCSV(o.OutputData)
			require.NoError(t, err)
			assert.Equal(t, 6, out.NumRows())
			assert.Equal(t, []string{"A", "B", "C", "S"}, out.ColumnNames()[:4])
		})
	}
}

func TestRunDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "in.csv", sample)
	o := options(dir, engine.PCA)

	snapshot := func() map[string][]byte {
		_, err := Run(o, logging.Discard())
		require.NoError(t, err)
		files := map[string][]byte{}
		for _, name := range listDir(t, dir) {
			b, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			files[name] = b
		}
		return files
	}
	first := snapshot()
	second := snapshot()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "outputModel-0.csv")
	assert.Contains(t, first, "outputModel-2.csv")
}

func TestRunBivariateAllColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "in.csv", "A,B,C\n1,2,4\n2,4,3\n3,5,1\n4,9,2\n")
	m, err := Run(options(dir, engine.Correlative), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"A,B", "A,C", "B,C"}, m.Requests)

	model, err := table.ReadCSV(m.Model[0])
	require.NoError(t, err)
	assert.Equal(t, 3, model.NumRows())
}

func TestRunManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "in.csv", sample)
	o := options(dir, engine.Descriptive)
	o.Manifest = filepath.Join(dir, "run.yaml")
	o.InputModelPrefix = "previous"

	m, err := Run(o, logging.Discard())
	require.NoError(t, err)
	b, err := os.ReadFile(o.Manifest)
	require.NoError(t, err)

	var got Manifest
	require.NoError(t, yaml.Unmarshal(b, &got))
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "descriptive", got.Engine)
	assert.Equal(t, "univariate", got.Arity)
	assert.Equal(t, "previous", got.InputModel)
	assert.Equal(t, 6, got.Rows)
	assert.Equal(t, 4, got.Columns)
	assert.Equal(t, []string{"A", "B", "C", "S"}, got.Requests)
	assert.Equal(t, []string{"descriptive: column S is not numeric, skipped"}, got.Warnings)
}

func TestRunKMeansParameters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "in.csv", "X,Y\n0,0\n10,10\n0,1\n10,11\n")
	o := options(dir, engine.KMeans)
	o.KMeansParametersFile = writeFile(t, dir, "params.csv", "K,X,Y\n2,0,0\n2,10,10\n1,5,5\n")

	m, err := Run(o, logging.Discard())
	require.NoError(t, err)
	ranked, err := table.ReadCSV(m.Model[1])
	require.NoError(t, err)
	k, _ := ranked.Lookup("K")
	assert.Equal(t, []float64{2, 1}, k.Numbers)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	o := options(dir, engine.Descriptive)
	o.InputData = ""
	_, err := Run(o, logging.Discard())
	assert.EqualError(t, err, "a data file name is required")

	o = options(dir, engine.Descriptive)
	_, err = Run(o, logging.Discard())
	assert.ErrorContains(t, err, "read input data")
	assert.NoFileExists(t, o.OutputData)

	writeFile(t, dir, "in.csv", sample)
	o.ColumnsFile = writeFile(t, dir, "cols.csv", "A,Nope\n")
	_, err = Run(o, logging.Discard())
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
	assert.NoFileExists(t, o.OutputData)

	// the only candidate pair is B with itself
	o = options(dir, engine.Correlative)
	writeFile(t, dir, "in.csv", "A,B\n1,2\n2,3\n")
	o.ColumnsFile = writeFile(t, dir, "cols.csv", "B\n")
	_, err = Run(o, logging.Discard())
	assert.EqualError(t, err, "no bivariate request can be built from columns B")
	assert.NoFileExists(t, o.OutputData)
}

func TestRunOnAnnotatedOutput(t *testing.T) {
	for _, k := range engine.Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "in.csv", sample)
			cols := "A,B,C\n"
			if k.Arity() != engine.Multivariate {
				cols = "A,B\n"
			}
			o := options(dir, k)
			o.ColumnsFile = writeFile(t, dir, "cols.csv", cols)
			_, err := Run(o, logging.Discard())
			require.NoError(t, err)
			first, err := table.ReadCSV(o.OutputData)
			require.NoError(t, err)

			o.InputData = o.OutputData
			o.OutputData = filepath.Join(dir, "again.csv")
			_, err = Run(o, logging.Discard())
			require.NoError(t, err)
			second, err := table.ReadCSV(o.OutputData)
			require.NoError(t, err)

			// annotations are replaced in place with the same values
			require.GreaterOrEqual(t, second.NumColumns(), first.NumColumns())
			assert.Equal(t, first.ColumnNames(), second.ColumnNames()[:first.NumColumns()])
			for i := 0; i < first.NumColumns(); i++ {
				want, got := first.Column(i), second.Column(i)
				for row := 0; row < first.NumRows(); row++ {
					assert.Equal(t, want.Format(row), got.Format(row), "%s row %d", want.Name, row)
				}
			}
		})
	}
}
