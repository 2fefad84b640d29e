package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
)

type order struct{}

func (order) Kind() Kind { return Order }

// histogram is the primary order model of one variable: distinct values in
// ascending order with their counts. Numeric variables use nums, string
// variables use strs.
type histogram struct {
	name    string
	numeric bool
	nums    []float64
	strs    []string
	counts  []int
	n       int
}

func (h *histogram) len() int { return len(h.counts) }

func (h *histogram) label(i int) string {
	if h.numeric {
		return table.FormatFloat(h.nums[i])
	}
	return h.strs[i]
}

// quantileIndex returns the histogram bin of the q-quantile by inverse
// empirical CDF: the first value whose cumulative frequency reaches q.
func (h *histogram) quantileIndex(q float64) int {
	if q <= 0 {
		return 0
	}
	target := q * float64(h.n)
	cum := 0
	for i, c := range h.counts {
		cum += c
		if float64(cum) >= target-1e-9 {
			return i
		}
	}
	return h.len() - 1
}

func learnHistogram(c *table.Column) *histogram {
	h := &histogram{name: c.Name, numeric: c.IsNumeric()}
	if h.numeric {
		counts := map[float64]int{}
		for _, v := range c.Numbers {
			if math.IsNaN(v) {
				continue
			}
			counts[v]++
			h.n++
		}
		for v := range counts {
			h.nums = append(h.nums, v)
		}
		sort.Float64s(h.nums)
		for _, v := range h.nums {
			h.counts = append(h.counts, counts[v])
		}
		return h
	}
	counts := map[string]int{}
	for _, v := range c.Strings {
		if v == "" {
			continue
		}
		counts[v]++
		h.n++
	}
	for v := range counts {
		h.strs = append(h.strs, v)
	}
	sort.Strings(h.strs)
	for _, v := range h.strs {
		h.counts = append(h.counts, counts[v])
	}
	return h
}

var quartiles = []struct {
	name string
	q    float64
}{
	{"Minimum", 0},
	{"First Quartile", 0.25},
	{"Median", 0.5},
	{"Third Quartile", 0.75},
	{"Maximum", 1},
}

func (e order) Run(in *table.Table, req Request, ph Phases) (*Result, error) {
	res, err := begin(e.Kind(), in, req, ph)
	if err != nil {
		return nil, err
	}

	var model []*histogram
	for _, r := range req {
		c, _ := in.Lookup(r.(UnivariateRequest).X)
		h := learnHistogram(c)
		if h.n == 0 {
			res.warnf("order: column %s has no values, skipped", c.Name)
			continue
		}
		model = append(model, h)
	}
	if len(model) == 0 {
		return nil, fmt.Errorf("order: %w", ErrInsufficientData)
	}

	// quartile bins per variable, used by derive and assess
	bins := make([][]int, len(model))
	for i, h := range model {
		bins[i] = make([]int, len(quartiles))
		for j, q := range quartiles {
			bins[i][j] = h.quantileIndex(q.q)
		}
	}

	n := len(model)
	names := make([]string, n)
	card := make([]float64, n)
	for i, h := range model {
		names[i] = h.name
		card[i] = float64(h.n)
	}
	summary := []*table.Column{
		table.NewString("Variable", names),
		table.NewNumeric("Cardinality", card),
	}
	if ph.Derive {
		for j, q := range quartiles {
			vals := make([]string, n)
			for i, h := range model {
				vals[i] = h.label(bins[i][j])
			}
			summary = append(summary, table.NewString(q.name, vals))
		}
		iqr := make([]float64, n)
		for i, h := range model {
			iqr[i] = math.NaN()
			if h.numeric {
				iqr[i] = h.nums[bins[i][3]] - h.nums[bins[i][1]]
			}
		}
		summary = append(summary, table.NewNumeric("Interquartile Range", iqr))
	}
	st, err := table.FromColumns(summary...)
	if err != nil {
		return nil, fmt.Errorf("order: %w", err)
	}
	blocks := []*table.Table{st}

	for _, h := range model {
		var value *table.Column
		if h.numeric {
			value = table.NewNumeric("Value", h.nums)
		} else {
			value = table.NewString("Value", h.strs)
		}
		counts := make([]float64, h.len())
		for i, c := range h.counts {
			counts[i] = float64(c)
		}
		cols := []*table.Column{value, table.NewNumeric("Cardinality", counts)}
		if ph.Derive {
			cdf := make([]float64, h.len())
			cum := 0
			for i, c := range h.counts {
				cum += c
				cdf[i] = float64(cum) / float64(h.n)
			}
			cols = append(cols, table.NewNumeric("CDF", cdf))
		}
		ht, err := table.FromColumns(cols...)
		if err != nil {
			return nil, fmt.Errorf("order: %w", err)
		}
		blocks = append(blocks, ht)
	}
	res.Model = MultiTable{Blocks: blocks}

	if ph.Assess {
		for i, h := range model {
			c, _ := in.Lookup(h.name)
			out := make([]float64, c.Len())
			for row := range out {
				if c.Missing(row) {
					out[row] = math.NaN()
					continue
				}
				out[row] = float64(quartileInterval(h, bins[i], c, row))
			}
			if err := res.Data.SetColumn(table.NewNumeric("Quantile("+h.name+")", out)); err != nil {
				return nil, fmt.Errorf("order: %w", err)
			}
		}
	}
	return res, nil
}

// quartileInterval returns 0..3, the quartile interval holding the value at
// row of c: 0 up to the first quartile, 3 above the third.
func quartileInterval(h *histogram, bins []int, c *table.Column, row int) int {
	for k := 1; k <= 3; k++ {
		b := bins[k]
		if h.numeric {
			if c.Numbers[row] <= h.nums[b] {
				return k - 1
			}
		} else if c.Strings[row] <= h.strs[b] {
			return k - 1
		}
	}
	return 3
}
