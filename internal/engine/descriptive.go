package engine

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

type descriptive struct{}

func (descriptive) Kind() Kind { return Descriptive }

// moments is the primary descriptive model of one variable. M2, M3 and M4 are
// sums of centered powers.
type moments struct {
	name           string
	n              int
	min, max, mean float64
	m2, m3, m4     float64
}

func (m moments) variance() float64 {
	if m.n < 2 {
		return 0
	}
	return m.m2 / float64(m.n-1)
}

// skewness is the population skewness g1.
func (m moments) skewness() float64 {
	if m.n < 2 || m.m2 == 0 {
		return math.NaN()
	}
	nf := float64(m.n)
	return math.Sqrt(nf) * m.m3 / math.Pow(m.m2, 1.5)
}

// kurtosis is the excess kurtosis g2.
func (m moments) kurtosis() float64 {
	if m.n < 2 || m.m2 == 0 {
		return math.NaN()
	}
	nf := float64(m.n)
	return nf*m.m4/(m.m2*m.m2) - 3
}

func learnMoments(name string, vals []float64) (moments, error) {
	data := make(stats.Float64Data, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			data = append(data, v)
		}
	}
	m := moments{name: name, n: len(data)}
	var err error
	if m.min, err = stats.Min(data); err != nil {
		return m, err
	}
	if m.max, err = stats.Max(data); err != nil {
		return m, err
	}
	if m.mean, err = stats.Mean(data); err != nil {
		return m, err
	}
	for _, v := range data {
		d := v - m.mean
		d2 := d * d
		m.m2 += d2
		m.m3 += d2 * d
		m.m4 += d2 * d2
	}
	return m, nil
}

func (e descriptive) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var model []moments
	for _, r := range req {
		name := r.(UnivariateRequest).X
		vals, ok := numericValues(in, name)
		if !ok {
			res.warnf("descriptive: column %s is not numeric, skipped", name)
			continue
		}
		m, err := learnMoments(name, vals)
		if err != nil {
			res.warnf("descriptive: column %s has no values, skipped", name)
			continue
		}
		model = append(model, m)
	}
	if len(model) == 0 {
		return nil, fmt.Errorf("descriptive: %w", ErrNoNumericColumns)
	}

	n := len(model)
	names := make([]string, n)
	card := make([]float64, n)
	mins := make([]float64, n)
	maxs := make([]float64, n)
	means := make([]float64, n)
	m2 := make([]float64, n)
	m3 := make([]float64, n)
	m4 := make([]float64, n)
	for i, m := range model {
		names[i] = m.name
		card[i] = float64(m.n)
		mins[i], maxs[i], means[i] = m.min, m.max, m.mean
		m2[i], m3[i], m4[i] = m.m2, m.m3, m.m4
	}
	cols := []*table.Column{
		table.NewString("Variable", names),
		table.NewNumeric("Cardinality", card),
		table.NewNumeric("Minimum", mins),
		table.NewNumeric("Maximum", maxs),
		table.NewNumeric("Mean", means),
		table.NewNumeric("M2", m2),
		table.NewNumeric("M3", m3),
		table.NewNumeric("M4", m4),
	}
	if ph.Derive {
		std := make([]float64, n)
		variance := make([]float64, n)
		skew := make([]float64, n)
		kurt := make([]float64, n)
		sum := make([]float64, n)
		for i, m := range model {
			variance[i] = m.variance()
			std[i] = math.Sqrt(variance[i])
			skew[i] = m.skewness()
			kurt[i] = m.kurtosis()
			sum[i] = m.mean * float64(m.n)
		}
		cols = append(cols,
			table.NewNumeric("Standard Deviation", std),
			table.NewNumeric("Variance", variance),
			table.NewNumeric("Skewness", skew),
			table.NewNumeric("Kurtosis", kurt),
			table.NewNumeric("Sum", sum),
		)
	}
	mt, err := table.FromColumns(cols...)
	if err != nil {
		return nil, fmt.Errorf("descriptive: %w", err)
	}
	res.Model = SingleTable{Table: mt}

	if ph.Assess {
		for _, m := range model {
			vals, _ := numericValues(in, m.name)
			std := math.Sqrt(m.variance())
			dev := make([]float64, len(vals))
			for i, v := range vals {
				if math.IsNaN(v) || std == 0 {
					dev[i] = math.NaN()
					continue
				}
				dev[i] = (v - m.mean) / std
			}
			if err := res.Data.SetColumn(table.NewNumeric("d("+m.name+")", dev)); err != nil {
				return nil, fmt.Errorf("descriptive: %w", err)
			}
		}
	}

	if ph.Test {
		jb := make([]float64, n)
		p := make([]float64, n)
		chi2 := distuv.ChiSquared{K: 2}
		for i, m := range model {
			g1, g2 := m.skewness(), m.kurtosis()
			jb[i] = float64(m.n) / 6 * (g1*g1 + g2*g2/4)
			p[i] = math.NaN()
			if !math.IsNaN(jb[i]) {
				p[i] = chi2.Survival(jb[i])
			}
		}
		tt, err := table.FromColumns(
			table.NewString("Variable", names),
			table.NewNumeric("Jarque-Bera", jb),
			table.NewNumeric("P", p),
		)
		if err != nil {
			return nil, fmt.Errorf("descriptive: %w", err)
		}
		res.Test = tt
	}
	return res, nil
}
