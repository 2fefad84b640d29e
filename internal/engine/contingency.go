package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
	"gonum.org/v1/gonum/stat/distuv"
)

type contingency struct{}

func (contingency) Kind() Kind { return Contingency }

type cell struct{ x, y string }

// jointCounts is the primary contingency model of one column pair. Values
// are compared by their rendered form, so numeric columns are treated as
// categories.
type jointCounts struct {
	x, y   string
	n      int
	counts map[cell]int
	px, py map[string]int
}

func (j *jointCounts) cells() []cell {
	out := make([]cell, 0, len(j.counts))
	for c := range j.counts {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].x == out[b].x {
			return out[a].y < out[b].y
		}
		return out[a].x < out[b].x
	})
	return out
}

// derived returns P(x,y), P(y|x), P(x|y) and the pointwise mutual information.
func (j *jointCounts) derived(c cell) (p, pyx, pxy, pmi float64) {
	cnt, ok := j.counts[c]
	if !ok {
		return math.NaN(), math.NaN(), math.NaN(), math.NaN()
	}
	n := float64(j.n)
	p = float64(cnt) / n
	pyx = float64(cnt) / float64(j.px[c.x])
	pxy = float64(cnt) / float64(j.py[c.y])
	pmi = math.Log(p / (float64(j.px[c.x]) / n * float64(j.py[c.y]) / n))
	return
}

func learnJoint(x, y *table.Column) *jointCounts {
	j := &jointCounts{x: x.Name, y: y.Name, counts: map[cell]int{}, px: map[string]int{}, py: map[string]int{}}
	for row := 0; row < x.Len(); row++ {
		if x.Missing(row) || y.Missing(row) {
			continue
		}
		c := cell{x.Format(row), y.Format(row)}
		j.counts[c]++
		j.px[c.x]++
		j.py[c.y]++
		j.n++
	}
	return j
}

func (e contingency) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var model []*jointCounts
	for _, r := range req {
		br := r.(BivariateRequest)
		x, _ := in.Lookup(br.X)
		y, _ := in.Lookup(br.Y)
		j := learnJoint(x, y)
		if j.n == 0 {
			res.warnf("contingency: pair (%s,%s) has no complete rows, skipped", br.X, br.Y)
			continue
		}
		model = append(model, j)
	}
	if len(model) == 0 {
		return nil, fmt.Errorf("contingency: %w", ErrInsufficientData)
	}

	// block 0: one row per pair; block 1: one row per observed cell, keyed by pair
	var (
		sx, sy  []string
		scard   []float64
		keys    []float64
		cx, cy  []string
		ccard   []float64
		cp, cyx []float64
		cxy, pm []float64
	)
	for k, j := range model {
		sx = append(sx, j.x)
		sy = append(sy, j.y)
		scard = append(scard, float64(j.n))
		for _, c := range j.cells() {
			keys = append(keys, float64(k))
			cx = append(cx, c.x)
			cy = append(cy, c.y)
			ccard = append(ccard, float64(j.counts[c]))
			p, pyx, pxy, pmi := j.derived(c)
			cp = append(cp, p)
			cyx = append(cyx, pyx)
			cxy = append(cxy, pxy)
			pm = append(pm, pmi)
		}
	}
	summary, err := table.FromColumns(
		table.NewNumeric("Key", seq(len(model))),
		table.NewString("Variable X", sx),
		table.NewString("Variable Y", sy),
		table.NewNumeric("Cardinality", scard),
	)
	if err != nil {
		return nil, fmt.Errorf("contingency: %w", err)
	}
	cols := []*table.Column{
		table.NewNumeric("Key", keys),
		table.NewString("x", cx),
		table.NewString("y", cy),
		table.NewNumeric("Cardinality", ccard),
	}
	if ph.Derive {
		cols = append(cols,
			table.NewNumeric("P", cp),
			table.NewNumeric("Py|x", cyx),
			table.NewNumeric("Px|y", cxy),
			table.NewNumeric("PMI", pm),
		)
	}
	ct, err := table.FromColumns(cols...)
	if err != nil {
		return nil, fmt.Errorf("contingency: %w", err)
	}
	res.Model = MultiTable{Blocks: []*table.Table{summary, ct}}

	if ph.Assess {
		for _, j := range model {
			x, _ := in.Lookup(j.x)
			y, _ := in.Lookup(j.y)
			rows := in.NumRows()
			p := make([]float64, rows)
			pyx := make([]float64, rows)
			pxy := make([]float64, rows)
			pmi := make([]float64, rows)
			for row := 0; row < rows; row++ {
				if x.Missing(row) || y.Missing(row) {
					p[row], pyx[row], pxy[row], pmi[row] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
					continue
				}
				p[row], pyx[row], pxy[row], pmi[row] = j.derived(cell{x.Format(row), y.Format(row)})
			}
			suffix := "(" + j.x + "," + j.y + ")"
			for _, c := range []*table.Column{
				table.NewNumeric("P"+suffix, p),
				table.NewNumeric("Py|x"+suffix, pyx),
				table.NewNumeric("Px|y"+suffix, pxy),
				table.NewNumeric("PMI"+suffix, pmi),
			} {
				if err := res.Data.SetColumn(c); err != nil {
					return nil, fmt.Errorf("contingency: %w", err)
				}
			}
		}
	}

	if ph.Test {
		tt, err := independenceTest(model)
		if err != nil {
			return nil, fmt.Errorf("contingency: %w", err)
		}
		res.Test = tt
	}
	return res, nil
}

// independenceTest runs Pearson's chi-square test of independence per pair.
func independenceTest(model []*jointCounts) (*table.Table, error) {
	n := len(model)
	xs := make([]string, n)
	ys := make([]string, n)
	chi := make([]float64, n)
	dof := make([]float64, n)
	p := make([]float64, n)
	for k, j := range model {
		xs[k], ys[k] = j.x, j.y
		total := float64(j.n)
		var sum float64
		for _, vx := range sortedLevels(j.px) {
			for _, vy := range sortedLevels(j.py) {
				expected := float64(j.px[vx]) * float64(j.py[vy]) / total
				d := float64(j.counts[cell{vx, vy}]) - expected
				sum += d * d / expected
			}
		}
		chi[k] = sum
		dof[k] = float64((len(j.px) - 1) * (len(j.py) - 1))
		p[k] = math.NaN()
		if dof[k] > 0 {
			p[k] = distuv.ChiSquared{K: dof[k]}.Survival(sum)
		}
	}
	return table.FromColumns(
		table.NewString("Variable X", xs),
		table.NewString("Variable Y", ys),
		table.NewNumeric("Chi2", chi),
		table.NewNumeric("DOF", dof),
		table.NewNumeric("P", p),
	)
}

func sortedLevels(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
