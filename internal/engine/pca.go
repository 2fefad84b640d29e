package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"gonum.org/v1/gonum/mat"
)

// Normalization selects the matrix the principal components are taken from.
type Normalization string

const (
	// NormalizeNone decomposes the covariance matrix.
	NormalizeNone Normalization = "none"
	// NormalizeDiagonal scales by the variances, decomposing the correlation matrix.
	NormalizeDiagonal Normalization = "diagonal"
)

// Basis selects how many components are used when assessing.
type Basis string

const (
	BasisFull        Basis = "full"
	BasisFixedSize   Basis = "fixed-size"
	BasisFixedEnergy Basis = "fixed-energy"
)

// PCASettings configures the pca engine.
type PCASettings struct {
	Normalization Normalization
	Basis         Basis
	// BasisSize is the number of components for BasisFixedSize.
	BasisSize int
	// BasisEnergy is the fraction of variance to retain for BasisFixedEnergy.
	BasisEnergy float64
}

// Validate checks the enumerated settings.
func (s PCASettings) Validate() error {
	switch s.Normalization {
	case NormalizeNone, NormalizeDiagonal, "":
	default:
		return fmt.Errorf("invalid pca normalization: %s (use none or diagonal)", s.Normalization)
	}
	switch s.Basis {
	case BasisFull, BasisFixedSize, BasisFixedEnergy, "":
	default:
		return fmt.Errorf("invalid pca basis: %s (use full, fixed-size or fixed-energy)", s.Basis)
	}
	if s.Basis == BasisFixedEnergy && (s.BasisEnergy <= 0 || s.BasisEnergy > 1) {
		return fmt.Errorf("invalid pca basis energy: %g (must be in (0,1])", s.BasisEnergy)
	}
	return nil
}

type pca struct {
	settings PCASettings
}

func (pca) Kind() Kind { return PCA }

// eigenModel holds the principal components of one request, in decreasing
// order of eigenvalue.
type eigenModel struct {
	values  []float64
	vectors *mat.Dense // columns are components
	scale   []float64  // per-variable divisor applied before projection
}

func (e pca) decompose(m *covModel) (*eigenModel, error) {
	k := len(m.vars)
	em := &eigenModel{scale: make([]float64, k)}
	a := mat.NewSymDense(k, nil)
	a.CopySym(m.cov)
	for i := range em.scale {
		em.scale[i] = 1
	}
	if e.settings.Normalization == NormalizeDiagonal {
		for i := 0; i < k; i++ {
			sd := math.Sqrt(m.cov.At(i, i))
			if sd == 0 {
				return nil, fmt.Errorf("variable %s has zero variance: %w", m.vars[i], ErrSingularCovariance)
			}
			em.scale[i] = sd
		}
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				a.SetSym(i, j, m.cov.At(i, j)/(em.scale[i]*em.scale[j]))
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, fmt.Errorf("eigen decomposition of (%s) failed", strings.Join(m.vars, ","))
	}
	asc := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	em.values = make([]float64, k)
	em.vectors = mat.NewDense(k, k, nil)
	for c := 0; c < k; c++ {
		src := k - 1 - c
		em.values[c] = asc[src]
		// fix the sign so the largest-magnitude component is positive
		sign, best := 1.0, -1.0
		for r := 0; r < k; r++ {
			if v := math.Abs(vecs.At(r, src)); v > best {
				best = v
				if vecs.At(r, src) < 0 {
					sign = -1
				} else {
					sign = 1
				}
			}
		}
		for r := 0; r < k; r++ {
			em.vectors.Set(r, c, sign*vecs.At(r, src))
		}
	}
	return em, nil
}

// basisSize returns how many leading components the configured basis keeps.
func (e pca) basisSize(em *eigenModel) int {
	k := len(em.values)
	switch e.settings.Basis {
	case BasisFixedSize:
		if e.settings.BasisSize > 0 && e.settings.BasisSize < k {
			return e.settings.BasisSize
		}
	case BasisFixedEnergy:
		var total float64
		for _, v := range em.values {
			total += math.Max(v, 0)
		}
		if total == 0 {
			return k
		}
		var cum float64
		for i, v := range em.values {
			cum += math.Max(v, 0)
			if cum/total >= e.settings.BasisEnergy-1e-12 {
				return i + 1
			}
		}
	}
	return k
}

func (e pca) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	if err := e.settings.Validate(); err != nil {
		return nil, fmt.Errorf("pca: %w", err)
	}
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var models []*covModel
	var data [][][]float64
	for _, r := range req {
		vars, cols := numericVars(in, r.(MultivariateRequest), res, "pca")
		if len(vars) == 0 {
			res.warnf("pca: request (%s) has no numeric columns, skipped", r)
			continue
		}
		m, err := learnCovariance(vars, cols)
		if err != nil {
			return nil, fmt.Errorf("pca: %w", err)
		}
		models = append(models, m)
		data = append(data, cols)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("pca: %w", ErrNoNumericColumns)
	}

	sparse, err := sparseCovariance(models)
	if err != nil {
		return nil, fmt.Errorf("pca: %w", err)
	}
	blocks := []*table.Table{sparse}

	eigen := make([]*eigenModel, len(models))
	if ph.Derive || ph.Assess {
		for i, m := range models {
			if eigen[i], err = e.decompose(m); err != nil {
				return nil, fmt.Errorf("pca: %w", err)
			}
		}
	}
	if ph.Derive {
		for i, m := range models {
			cb, err := covarianceBlock(m, "", nil)
			if err != nil {
				return nil, fmt.Errorf("pca: %w", err)
			}
			eb, err := eigenBlock(m, eigen[i])
			if err != nil {
				return nil, fmt.Errorf("pca: %w", err)
			}
			blocks = append(blocks, cb, eb)
		}
	}
	res.Model = MultiTable{Blocks: blocks}

	if ph.Assess {
		for i, m := range models {
			em := eigen[i]
			size := e.basisSize(em)
			cols := data[i]
			rows := in.NumRows()
			proj := make([][]float64, size)
			for c := range proj {
				proj[c] = make([]float64, rows)
			}
			centered := make([]float64, len(m.vars))
			for row := 0; row < rows; row++ {
				missing := false
				for j := range m.vars {
					v := cols[j][row]
					if math.IsNaN(v) {
						missing = true
						break
					}
					centered[j] = (v - m.means[j]) / em.scale[j]
				}
				for c := 0; c < size; c++ {
					if missing {
						proj[c][row] = math.NaN()
						continue
					}
					var s float64
					for j := range centered {
						s += em.vectors.At(j, c) * centered[j]
					}
					proj[c][row] = s
				}
			}
			for c := 0; c < size; c++ {
				name := "PCA(" + strconv.Itoa(c) + ")" + requestSuffix(i)
				if err := res.Data.SetColumn(table.NewNumeric(name, proj[c])); err != nil {
					return nil, fmt.Errorf("pca: %w", err)
				}
			}
		}
	}
	return res, nil
}

// eigenBlock renders one row per component: eigenvalue, explained and
// cumulative variance ratio, then the eigenvector entries per variable.
func eigenBlock(m *covModel, em *eigenModel) (*table.Table, error) {
	k := len(em.values)
	var total float64
	for _, v := range em.values {
		total += v
	}
	labels := make([]string, k)
	explained := make([]float64, k)
	cumulative := make([]float64, k)
	var cum float64
	for c, v := range em.values {
		labels[c] = "PCA(" + strconv.Itoa(c) + ")"
		explained[c] = math.NaN()
		cumulative[c] = math.NaN()
		if total != 0 {
			cum += v
			explained[c] = v / total
			cumulative[c] = cum / total
		}
	}
	cols := []*table.Column{
		table.NewString("Component", labels),
		table.NewNumeric("Eigenvalue", append([]float64(nil), em.values...)),
		table.NewNumeric("Explained Variance", explained),
		table.NewNumeric("Cumulative Variance", cumulative),
	}
	for j, v := range m.vars {
		cols = append(cols, table.NewNumeric(v, mat.Row(nil, j, em.vectors)))
	}
	return table.FromColumns(cols...)
}
