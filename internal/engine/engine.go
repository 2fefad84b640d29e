// Package engine implements the statistics engines: descriptive, order,
// contingency, correlative, multicorrelative, pca and kmeans. Every engine
// runs the same phases over an input table: learn a primary model, derive
// secondary statistics from it, assess each input row against it and
// optionally test hypotheses on it.
package engine

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/haruspex-cli/internal/table"
)

var (
	// ErrLearnRequired is returned when the learn phase is off; input models
	// are not re-loaded, so every run must learn.
	ErrLearnRequired = errors.New("learn phase is required")
	// ErrNoNumericColumns is returned when none of the requested columns can
	// be used by a numeric engine.
	ErrNoNumericColumns = errors.New("no usable numeric columns")
	// ErrInsufficientData is returned when there are too few complete rows.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSingularCovariance is returned when a covariance matrix is not
	// positive definite.
	ErrSingularCovariance = errors.New("covariance matrix is not positive definite")
)

// Phases toggles the engine phases.
type Phases struct {
	Learn  bool
	Derive bool
	Assess bool
	Test   bool
}

// DriverPhases is the fixed policy of the command-line driver.
var DriverPhases = Phases{Learn: true, Derive: true, Assess: true, Test: false}

// Model is the statistical summary produced by an engine: either a
// SingleTable or a MultiTable.
type Model interface {
	Tables() []*table.Table
	model()
}

// SingleTable is a model made of exactly one table.
type SingleTable struct{ Table *table.Table }

func (m SingleTable) Tables() []*table.Table { return []*table.Table{m.Table} }
func (SingleTable) model()                   {}

// MultiTable is a model made of an ordered collection of blocks.
type MultiTable struct{ Blocks []*table.Table }

func (m MultiTable) Tables() []*table.Table { return m.Blocks }
func (MultiTable) model()                   {}

// Result is the output of one engine run.
type Result struct {
	// Data is the input table plus the assessment columns.
	Data *table.Table
	// Model is the learned (and derived) model.
	Model Model
	// Test holds hypothesis test results, nil unless the test phase ran.
	Test *table.Table
	// Warnings lists requests or columns the engine skipped.
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Engine computes statistics over a table.
type Engine interface {
	Kind() Kind
	Run(in *table.Table, req Request, ph Phases) (*Result, error)
}

// Settings carries engine parameters that do not come from the request.
type Settings struct {
	KMeans KMeansSettings
	PCA    PCASettings
}

// DefaultSettings returns the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		KMeans: KMeansSettings{DefaultClusters: 3, MaxIterations: 50, Tolerance: 0.01},
		PCA:    PCASettings{Normalization: NormalizeNone, Basis: BasisFull},
	}
}

// New instantiates the engine of kind k.
func New(k Kind, s Settings) (Engine, error) {
	switch k {
	case Descriptive:
		return descriptive{}, nil
	case Order:
		return order{}, nil
	case Contingency:
		return contingency{}, nil
	case Correlative:
		return correlative{}, nil
	case Multicorrelative:
		return multicorrelative{}, nil
	case PCA:
		return pca{settings: s.PCA}, nil
	case KMeans:
		return kmeans{settings: s.KMeans}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, k)
}

func begin(k Kind, in *table.Table, req Request, ph Phases) (*Result, error) {
	if !ph.Learn {
		return nil, fmt.Errorf("%s: %w", k, ErrLearnRequired)
	}
	if err := req.Check(in, k.Arity()); err != nil {
		return nil, fmt.Errorf("%s: %w", k, err)
	}
	return &Result{Data: in.Extend()}, nil
}

// numericValues returns the values of a numeric column, or false when the
// column holds strings.
func numericValues(in *table.Table, name string) ([]float64, bool) {
	c, err := in.Lookup(name)
	if err != nil || !c.IsNumeric() {
		return nil, false
	}
	return c.Numbers, true
}

// requestSuffix disambiguates assessment columns when a multivariate run
// carries more than one request.
func requestSuffix(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("#%d", i)
}
