package engine

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
)

// ColumnRequest selects the columns one statistics computation runs over.
// It is one of UnivariateRequest, BivariateRequest or MultivariateRequest.
type ColumnRequest interface {
	Arity() Arity
	Columns() []string
	String() string
}

// UnivariateRequest asks for statistics of a single column.
type UnivariateRequest struct{ X string }

func (r UnivariateRequest) Arity() Arity      { return Univariate }
func (r UnivariateRequest) Columns() []string { return []string{r.X} }
func (r UnivariateRequest) String() string    { return r.X }

// BivariateRequest asks for statistics of a column pair.
type BivariateRequest struct{ X, Y string }

func (r BivariateRequest) Arity() Arity      { return Bivariate }
func (r BivariateRequest) Columns() []string { return []string{r.X, r.Y} }
func (r BivariateRequest) String() string    { return r.X + "," + r.Y }

// MultivariateRequest asks for statistics over a set of columns at once.
type MultivariateRequest struct{ Vars []string }

func (r MultivariateRequest) Arity() Arity      { return Multivariate }
func (r MultivariateRequest) Columns() []string { return r.Vars }
func (r MultivariateRequest) String() string    { return strings.Join(r.Vars, ",") }

// Request is the ordered list of column requests for one run.
type Request []ColumnRequest

// Check verifies that every item has the wanted arity and names existing
// columns of in.
func (req Request) Check(in *table.Table, want Arity) error {
	if len(req) == 0 {
		return fmt.Errorf("empty request")
	}
	for _, r := range req {
		if r.Arity() != want {
			return fmt.Errorf("request %s is %s, engine is %s", r, r.Arity(), want)
		}
		if len(r.Columns()) == 0 {
			return fmt.Errorf("request has no columns")
		}
		for _, name := range r.Columns() {
			if !in.Has(name) {
				return fmt.Errorf("request %s: %w: %q", r, table.ErrColumnNotFound, name)
			}
		}
	}
	return nil
}
