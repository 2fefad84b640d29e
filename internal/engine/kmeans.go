package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
)

// KMeansSettings configures the kmeans engine.
type KMeansSettings struct {
	// DefaultClusters is K when no learn parameters are given.
	DefaultClusters int
	MaxIterations   int
	// Tolerance is the fraction of rows allowed to change cluster in the
	// last iteration for a run to be considered converged.
	Tolerance float64
	// Parameters holds initial cluster centers: a K column plus one column
	// per variable. Consecutive rows with the same K form one run.
	Parameters *table.Table
}

type kmeans struct {
	settings KMeansSettings
}

func (kmeans) Kind() Kind { return KMeans }

// clusterRun is one Lloyd run: its centers, the per-cluster cardinality, and
// the sum of squared distances of the rows to their closest center.
type clusterRun struct {
	k          int
	centers    [][]float64
	card       []int
	iterations int
	totalError float64
}

// initialRuns returns the starting centers of every run: either the learn
// parameters, where a run is a row carrying K followed by the rest of its K
// center rows, or the first K complete rows.
func (e kmeans) initialRuns(vars []string, x [][]float64) ([][][]float64, error) {
	p := e.settings.Parameters
	if p == nil {
		k := e.settings.DefaultClusters
		if k <= 0 {
			return nil, fmt.Errorf("invalid number of clusters: %d", k)
		}
		if len(x) < k {
			return nil, fmt.Errorf("%w: %d complete rows for %d clusters", ErrInsufficientData, len(x), k)
		}
		centers := make([][]float64, k)
		for i := range centers {
			centers[i] = append([]float64(nil), x[i]...)
		}
		return [][][]float64{centers}, nil
	}

	kc, err := p.Lookup("K")
	if err != nil || !kc.IsNumeric() {
		return nil, fmt.Errorf("learn parameters: numeric K column required")
	}
	coords := make([][]float64, len(vars))
	for j, v := range vars {
		c, err := p.Lookup(v)
		if err != nil {
			return nil, fmt.Errorf("learn parameters: %w", err)
		}
		if !c.IsNumeric() {
			return nil, fmt.Errorf("learn parameters: column %s is not numeric", v)
		}
		coords[j] = c.Numbers
	}

	var runs [][][]float64
	for row := 0; row < p.NumRows(); {
		k := kc.Numbers[row]
		if math.IsNaN(k) || k < 1 || k != math.Trunc(k) {
			return nil, fmt.Errorf("learn parameters: invalid K %s at row %d", table.FormatFloat(k), row)
		}
		end := row + int(k)
		if end > p.NumRows() {
			return nil, fmt.Errorf("learn parameters: run at row %d has K=%d but %d centers", row, int(k), p.NumRows()-row)
		}
		for r := row + 1; r < end; r++ {
			if kc.Numbers[r] != k {
				return nil, fmt.Errorf("learn parameters: run at row %d has K=%d but row %d has K=%s", row, int(k), r, table.FormatFloat(kc.Numbers[r]))
			}
		}
		centers := make([][]float64, 0, end-row)
		for r := row; r < end; r++ {
			c := make([]float64, len(vars))
			for j := range vars {
				c[j] = coords[j][r]
				if math.IsNaN(c[j]) {
					return nil, fmt.Errorf("learn parameters: missing %s at row %d", vars[j], r)
				}
			}
			centers = append(centers, c)
		}
		runs = append(runs, centers)
		row = end
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("learn parameters: no rows")
	}
	return runs, nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// closest returns the id of the nearest center; ties go to the lowest id.
func closest(centers [][]float64, p []float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for id, c := range centers {
		if d := sqDist(c, p); d < bestD {
			best, bestD = id, d
		}
	}
	return best, bestD
}

func (e kmeans) lloyd(init [][]float64, x [][]float64) clusterRun {
	k := len(init)
	dim := len(init[0])
	run := clusterRun{k: k, centers: make([][]float64, k)}
	for i, c := range init {
		run.centers[i] = append([]float64(nil), c...)
	}
	assign := make([]int, len(x))
	for i := range assign {
		assign[i] = -1
	}
	maxIter := e.settings.MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}
	for run.iterations < maxIter {
		run.iterations++
		changed := 0
		for i, p := range x {
			id, _ := closest(run.centers, p)
			if id != assign[i] {
				changed++
				assign[i] = id
			}
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, p := range x {
			counts[assign[i]]++
			for j, v := range p {
				sums[assign[i]][j] += v
			}
		}
		for id := range run.centers {
			if counts[id] == 0 {
				continue
			}
			for j := range sums[id] {
				run.centers[id][j] = sums[id][j] / float64(counts[id])
			}
		}
		if float64(changed) <= e.settings.Tolerance*float64(len(x)) {
			break
		}
	}

	run.card = make([]int, k)
	for _, p := range x {
		id, d := closest(run.centers, p)
		run.card[id]++
		run.totalError += d
	}
	return run
}

func (e kmeans) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	type learned struct {
		vars []string
		cols [][]float64
		runs []clusterRun
	}
	var models []learned
	for _, r := range req {
		vars, cols := numericVars(in, r.(MultivariateRequest), res, "kmeans")
		if len(vars) == 0 {
			res.warnf("kmeans: request (%s) has no numeric columns, skipped", r)
			continue
		}
		rows := completeRows(cols)
		x := make([][]float64, len(rows))
		for i, row := range rows {
			x[i] = make([]float64, len(vars))
			for j := range vars {
				x[i][j] = cols[j][row]
			}
		}
		inits, err := e.initialRuns(vars, x)
		if err != nil {
			return nil, fmt.Errorf("kmeans: %w", err)
		}
		if len(x) == 0 {
			return nil, fmt.Errorf("kmeans: %w: no complete rows for (%s)", ErrInsufficientData, r)
		}
		m := learned{vars: vars, cols: cols}
		for _, c := range inits {
			m.runs = append(m.runs, e.lloyd(c, x))
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("kmeans: %w", ErrNoNumericColumns)
	}

	var blocks []*table.Table
	for _, m := range models {
		cb, err := clusterBlock(m.vars, m.runs)
		if err != nil {
			return nil, fmt.Errorf("kmeans: %w", err)
		}
		blocks = append(blocks, cb)
		if ph.Derive {
			rb, err := rankBlock(m.runs)
			if err != nil {
				return nil, fmt.Errorf("kmeans: %w", err)
			}
			blocks = append(blocks, rb)
		}
	}
	res.Model = MultiTable{Blocks: blocks}

	if ph.Assess {
		rows := in.NumRows()
		p := make([]float64, 0, 8)
		for i, m := range models {
			for r, run := range m.runs {
				dist := make([]float64, rows)
				ids := make([]float64, rows)
				for row := 0; row < rows; row++ {
					p = p[:0]
					for j := range m.vars {
						p = append(p, m.cols[j][row])
					}
					if hasNaN(p) {
						dist[row], ids[row] = math.NaN(), math.NaN()
						continue
					}
					id, d := closest(run.centers, p)
					dist[row], ids[row] = math.Sqrt(d), float64(id)
				}
				suffix := "(" + strconv.Itoa(r) + ")" + requestSuffix(i)
				for _, c := range []*table.Column{
					table.NewNumeric("Distance"+suffix, dist),
					table.NewNumeric("ClosestId"+suffix, ids),
				} {
					if err := res.Data.SetColumn(c); err != nil {
						return nil, fmt.Errorf("kmeans: %w", err)
					}
				}
			}
		}
	}
	return res, nil
}

func hasNaN(p []float64) bool {
	for _, v := range p {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// clusterBlock lists every center of every run.
func clusterBlock(vars []string, runs []clusterRun) (*table.Table, error) {
	var runID, clusterID, card, iters []float64
	coords := make([][]float64, len(vars))
	for r, run := range runs {
		for id, c := range run.centers {
			runID = append(runID, float64(r))
			clusterID = append(clusterID, float64(id))
			card = append(card, float64(run.card[id]))
			iters = append(iters, float64(run.iterations))
			for j := range vars {
				coords[j] = append(coords[j], c[j])
			}
		}
	}
	cols := []*table.Column{
		table.NewNumeric("Run ID", runID),
		table.NewNumeric("Cluster ID", clusterID),
		table.NewNumeric("Cardinality", card),
		table.NewNumeric("Iterations", iters),
	}
	for j, v := range vars {
		cols = append(cols, table.NewNumeric(v, coords[j]))
	}
	return table.FromColumns(cols...)
}

// rankBlock ranks runs by total error, 1 being the best.
func rankBlock(runs []clusterRun) (*table.Table, error) {
	n := len(runs)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return runs[order[a]].totalError < runs[order[b]].totalError
	})
	rank := make([]float64, n)
	for pos, r := range order {
		rank[r] = float64(pos + 1)
	}
	ks := make([]float64, n)
	errs := make([]float64, n)
	for r, run := range runs {
		ks[r] = float64(run.k)
		errs[r] = run.totalError
	}
	return table.FromColumns(
		table.NewNumeric("Run ID", seq(n)),
		table.NewNumeric("K", ks),
		table.NewNumeric("Total Error", errs),
		table.NewNumeric("Rank", rank),
	)
}
