package engine

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"gonum.org/v1/gonum/stat/distuv"
)

type correlative struct{}

func (correlative) Kind() Kind { return Correlative }

// pairMoments is the primary correlative model of one column pair: means and
// centered second-order sums over complete rows.
type pairMoments struct {
	x, y         string
	n            int
	meanX, meanY float64
	m2X, m2Y     float64
	mXY          float64
}

type pairDerived struct {
	varX, varY, cov, det float64
	slopeYX, interYX     float64
	slopeXY, interXY     float64
	r                    float64
}

func learnPair(name [2]string, xs, ys []float64) pairMoments {
	m := pairMoments{x: name[0], y: name[1]}
	// Welford update
	for i := range xs {
		x, y := xs[i], ys[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		m.n++
		nf := float64(m.n)
		dx := x - m.meanX
		dy := y - m.meanY
		m.meanX += dx / nf
		m.meanY += dy / nf
		m.m2X += dx * (x - m.meanX)
		m.m2Y += dy * (y - m.meanY)
		m.mXY += dx * (y - m.meanY)
	}
	return m
}

func (m pairMoments) derive() pairDerived {
	var d pairDerived
	if m.n < 2 {
		nan := math.NaN()
		return pairDerived{nan, nan, nan, nan, nan, nan, nan, nan, nan}
	}
	k := float64(m.n - 1)
	d.varX = m.m2X / k
	d.varY = m.m2Y / k
	d.cov = m.mXY / k
	d.det = d.varX*d.varY - d.cov*d.cov
	d.slopeYX, d.interYX = math.NaN(), math.NaN()
	d.slopeXY, d.interXY = math.NaN(), math.NaN()
	d.r = math.NaN()
	if d.varX > 0 {
		d.slopeYX = d.cov / d.varX
		d.interYX = m.meanY - d.slopeYX*m.meanX
	}
	if d.varY > 0 {
		d.slopeXY = d.cov / d.varY
		d.interXY = m.meanX - d.slopeXY*m.meanY
	}
	if d.varX > 0 && d.varY > 0 {
		d.r = d.cov / math.Sqrt(d.varX*d.varY)
	}
	return d
}

func (e correlative) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var model []pairMoments
	for _, r := range req {
		br := r.(BivariateRequest)
		xs, okX := numericValues(in, br.X)
		ys, okY := numericValues(in, br.Y)
		if !okX || !okY {
			res.warnf("correlative: pair (%s,%s) is not numeric, skipped", br.X, br.Y)
			continue
		}
		m := learnPair([2]string{br.X, br.Y}, xs, ys)
		if m.n == 0 {
			res.warnf("correlative: pair (%s,%s) has no complete rows, skipped", br.X, br.Y)
			continue
		}
		model = append(model, m)
	}
	if len(model) == 0 {
		return nil, fmt.Errorf("correlative: %w", ErrNoNumericColumns)
	}

	n := len(model)
	derived := make([]pairDerived, n)
	for i, m := range model {
		derived[i] = m.derive()
	}

	col := func(f func(i int) float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = f(i)
		}
		return out
	}
	xs := make([]string, n)
	ys := make([]string, n)
	for i, m := range model {
		xs[i], ys[i] = m.x, m.y
	}
	cols := []*table.Column{
		table.NewString("Variable X", xs),
		table.NewString("Variable Y", ys),
		table.NewNumeric("Cardinality", col(func(i int) float64 { return float64(model[i].n) })),
		table.NewNumeric("Mean X", col(func(i int) float64 { return model[i].meanX })),
		table.NewNumeric("Mean Y", col(func(i int) float64 { return model[i].meanY })),
		table.NewNumeric("M2 X", col(func(i int) float64 { return model[i].m2X })),
		table.NewNumeric("M2 Y", col(func(i int) float64 { return model[i].m2Y })),
		table.NewNumeric("M XY", col(func(i int) float64 { return model[i].mXY })),
	}
	if ph.Derive {
		cols = append(cols,
			table.NewNumeric("Variance X", col(func(i int) float64 { return derived[i].varX })),
			table.NewNumeric("Variance Y", col(func(i int) float64 { return derived[i].varY })),
			table.NewNumeric("Covariance", col(func(i int) float64 { return derived[i].cov })),
			table.NewNumeric("Determinant", col(func(i int) float64 { return derived[i].det })),
			table.NewNumeric("Slope Y/X", col(func(i int) float64 { return derived[i].slopeYX })),
			table.NewNumeric("Intercept Y/X", col(func(i int) float64 { return derived[i].interYX })),
			table.NewNumeric("Slope X/Y", col(func(i int) float64 { return derived[i].slopeXY })),
			table.NewNumeric("Intercept X/Y", col(func(i int) float64 { return derived[i].interXY })),
			table.NewNumeric("Pearson r", col(func(i int) float64 { return derived[i].r })),
		)
	}
	mt, err := table.FromColumns(cols...)
	if err != nil {
		return nil, fmt.Errorf("correlative: %w", err)
	}
	res.Model = SingleTable{Table: mt}

	if ph.Assess {
		for i, m := range model {
			d := derived[i]
			xv, _ := numericValues(in, m.x)
			yv, _ := numericValues(in, m.y)
			out := make([]float64, len(xv))
			for row := range out {
				x, y := xv[row], yv[row]
				if math.IsNaN(x) || math.IsNaN(y) || !(d.det > 0) {
					out[row] = math.NaN()
					continue
				}
				dx, dy := x-m.meanX, y-m.meanY
				out[row] = (d.varY*dx*dx - 2*d.cov*dx*dy + d.varX*dy*dy) / d.det
			}
			name := "d^2(" + m.x + "," + m.y + ")"
			if err := res.Data.SetColumn(table.NewNumeric(name, out)); err != nil {
				return nil, fmt.Errorf("correlative: %w", err)
			}
		}
	}

	if ph.Test {
		tv := make([]float64, n)
		dof := make([]float64, n)
		p := make([]float64, n)
		for i, m := range model {
			r := derived[i].r
			dof[i] = float64(m.n - 2)
			tv[i], p[i] = math.NaN(), math.NaN()
			if m.n <= 2 || math.IsNaN(r) {
				continue
			}
			if math.Abs(r) >= 1 {
				tv[i] = math.Copysign(math.Inf(1), r)
				p[i] = 0
				continue
			}
			tv[i] = r * math.Sqrt(dof[i]/(1-r*r))
			p[i] = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof[i]}.Survival(math.Abs(tv[i]))
		}
		tt, err := table.FromColumns(
			table.NewString("Variable X", xs),
			table.NewString("Variable Y", ys),
			table.NewNumeric("Pearson r", col(func(i int) float64 { return derived[i].r })),
			table.NewNumeric("t", tv),
			table.NewNumeric("DOF", dof),
			table.NewNumeric("P", p),
		)
		if err != nil {
			return nil, fmt.Errorf("correlative: %w", err)
		}
		res.Test = tt
	}
	return res, nil
}
