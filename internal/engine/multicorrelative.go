package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"gonum.org/v1/gonum/mat"
)

type multicorrelative struct{}

func (multicorrelative) Kind() Kind { return Multicorrelative }

func (e multicorrelative) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var models []*covModel
	var data [][][]float64
	for _, r := range req {
		vars, cols := numericVars(in, r.(MultivariateRequest), res, "multicorrelative")
		if len(vars) == 0 {
			res.warnf("multicorrelative: request (%s) has no numeric columns, skipped", r)
			continue
		}
		m, err := learnCovariance(vars, cols)
		if err != nil {
			return nil, fmt.Errorf("multicorrelative: %w", err)
		}
		models = append(models, m)
		data = append(data, cols)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("multicorrelative: %w", ErrNoNumericColumns)
	}

	sparse, err := sparseCovariance(models)
	if err != nil {
		return nil, fmt.Errorf("multicorrelative: %w", err)
	}
	blocks := []*table.Table{sparse}

	chols := make([]*mat.Cholesky, len(models))
	if ph.Derive || ph.Assess {
		for i, m := range models {
			var chol mat.Cholesky
			if ok := chol.Factorize(m.cov); !ok {
				return nil, fmt.Errorf("multicorrelative: (%s): %w", strings.Join(m.vars, ","), ErrSingularCovariance)
			}
			chols[i] = &chol
		}
	}
	if ph.Derive {
		for i, m := range models {
			var l mat.TriDense
			chols[i].LTo(&l)
			b, err := covarianceBlock(m, "Cholesky", &l)
			if err != nil {
				return nil, fmt.Errorf("multicorrelative: %w", err)
			}
			blocks = append(blocks, b)
		}
	}
	res.Model = MultiTable{Blocks: blocks}

	if ph.Assess {
		for i, m := range models {
			out := mahalanobis(m, chols[i], data[i])
			name := "Mahalanobis(" + strings.Join(m.vars, ",") + ")" + requestSuffix(i)
			if err := res.Data.SetColumn(table.NewNumeric(name, out)); err != nil {
				return nil, fmt.Errorf("multicorrelative: %w", err)
			}
		}
	}
	return res, nil
}

// mahalanobis returns the squared Mahalanobis distance of every row, NaN for
// rows with a missing value.
func mahalanobis(m *covModel, chol *mat.Cholesky, cols [][]float64) []float64 {
	k := len(m.vars)
	rows := len(cols[0])
	out := make([]float64, rows)
	d := mat.NewVecDense(k, nil)
	var z mat.VecDense
	for row := 0; row < rows; row++ {
		missing := false
		for j := 0; j < k; j++ {
			v := cols[j][row]
			if math.IsNaN(v) {
				missing = true
				break
			}
			d.SetVec(j, v-m.means[j])
		}
		if missing {
			out[row] = math.NaN()
			continue
		}
		if err := chol.SolveVecTo(&z, d); err != nil {
			// ill-conditioned solves still carry a usable result
			if _, ok := err.(mat.Condition); !ok {
				out[row] = math.NaN()
				continue
			}
		}
		out[row] = mat.Dot(d, &z)
	}
	return out
}
