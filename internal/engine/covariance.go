package engine

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// covModel is the primary model shared by the multicorrelative and pca
// engines: means and covariance of the complete rows of a column set.
type covModel struct {
	vars  []string
	n     int
	means []float64
	cov   *mat.SymDense
}

// numericVars keeps the numeric columns of r, reporting the others.
func numericVars(in *table.Table, r MultivariateRequest, res *Result, engine string) ([]string, [][]float64) {
	var vars []string
	var cols [][]float64
	for _, name := range r.Vars {
		v, ok := numericValues(in, name)
		if !ok {
			res.warnf("%s: column %s is not numeric, skipped", engine, name)
			continue
		}
		vars = append(vars, name)
		cols = append(cols, v)
	}
	return vars, cols
}

// completeRows returns the row indices where every column has a value.
func completeRows(cols [][]float64) []int {
	if len(cols) == 0 {
		return nil
	}
	var rows []int
outer:
	for i := range cols[0] {
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				continue outer
			}
		}
		rows = append(rows, i)
	}
	return rows
}

// dataMatrix packs the complete rows of cols into an n×k matrix.
func dataMatrix(cols [][]float64, rows []int) *mat.Dense {
	m := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			m.Set(i, j, c[r])
		}
	}
	return m
}

func learnCovariance(vars []string, cols [][]float64) (*covModel, error) {
	rows := completeRows(cols)
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %d complete rows for (%v)", ErrInsufficientData, len(rows), vars)
	}
	x := dataMatrix(cols, rows)
	m := &covModel{vars: vars, n: len(rows), means: make([]float64, len(vars))}
	for j := range vars {
		m.means[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	m.cov = &mat.SymDense{}
	stat.CovarianceMatrix(m.cov, x, nil)
	return m, nil
}

// sparseCovariance renders the primary models as the Column1/Column2/Entries
// block: cardinality, means, then the upper triangle of each covariance.
func sparseCovariance(models []*covModel) (*table.Table, error) {
	var c1, c2 []string
	var entries []float64
	for _, m := range models {
		c1 = append(c1, "Cardinality")
		c2 = append(c2, "")
		entries = append(entries, float64(m.n))
		for j, v := range m.vars {
			c1 = append(c1, v)
			c2 = append(c2, "")
			entries = append(entries, m.means[j])
		}
		for i := range m.vars {
			for j := i; j < len(m.vars); j++ {
				c1 = append(c1, m.vars[i])
				c2 = append(c2, m.vars[j])
				entries = append(entries, m.cov.At(i, j))
			}
		}
	}
	return table.FromColumns(
		table.NewString("Column1", c1),
		table.NewString("Column2", c2),
		table.NewNumeric("Entries", entries),
	)
}

// covarianceBlock renders the covariance matrix, one row per variable,
// followed by extra rows (such as a Cholesky factor) when given.
func covarianceBlock(m *covModel, extraLabel string, extra mat.Matrix) (*table.Table, error) {
	k := len(m.vars)
	rows := k
	if extra != nil {
		rows += k
	}
	labels := make([]string, rows)
	means := make([]float64, rows)
	entries := make([][]float64, k)
	for j := range entries {
		entries[j] = make([]float64, rows)
	}
	for i, v := range m.vars {
		labels[i] = v
		means[i] = m.means[i]
		for j := 0; j < k; j++ {
			entries[j][i] = m.cov.At(i, j)
		}
		if extra != nil {
			labels[k+i] = extraLabel + "(" + v + ")"
			means[k+i] = math.NaN()
			for j := 0; j < k; j++ {
				entries[j][k+i] = extra.At(i, j)
			}
		}
	}
	cols := []*table.Column{
		table.NewString("Column", labels),
		table.NewNumeric("Mean", means),
	}
	for j, v := range m.vars {
		cols = append(cols, table.NewNumeric(v, entries[j]))
	}
	return table.FromColumns(cols...)
}
