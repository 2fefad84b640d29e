package engine

import (
	"errors"
	"fmt"
)

// Kind identifies one of the statistics engines.
type Kind int

const (
	Descriptive Kind = iota
	Order
	Contingency
	Correlative
	Multicorrelative
	PCA
	KMeans

	numKinds
)

// Arity is the column-request shape an engine consumes.
type Arity int

const (
	Univariate Arity = iota
	Bivariate
	Multivariate
)

func (a Arity) String() string {
	switch a {
	case Univariate:
		return "univariate"
	case Bivariate:
		return "bivariate"
	default:
		return "multivariate"
	}
}

// Shape is the model layout an engine produces.
type Shape int

const (
	ShapeSingle Shape = iota
	ShapeMulti
)

func (s Shape) String() string {
	if s == ShapeSingle {
		return "single table"
	}
	return "multiple tables"
}

// ErrUnknownEngine is returned by ParseKind for names outside the catalog.
var ErrUnknownEngine = errors.New("invalid statistics engine")

type kindInfo struct {
	name  string
	arity Arity
	shape Shape
	desc  string
}

// The array type pins the catalog length to the number of kinds.
var catalog = [numKinds]kindInfo{
	Descriptive:      {"descriptive", Univariate, ShapeSingle, "moments, extrema, skewness and kurtosis"},
	Order:            {"order", Univariate, ShapeMulti, "histograms and quartiles"},
	Contingency:      {"contingency", Bivariate, ShapeMulti, "joint frequencies and information measures"},
	Correlative:      {"correlative", Bivariate, ShapeSingle, "covariance, linear regression and Pearson r"},
	Multicorrelative: {"multicorrelative", Multivariate, ShapeMulti, "covariance matrix and Cholesky factor"},
	PCA:              {"pca", Multivariate, ShapeMulti, "principal component analysis"},
	KMeans:           {"kmeans", Multivariate, ShapeMulti, "k-means clustering"},
}

// Kinds returns every engine kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind maps an exact engine name to its Kind.
func ParseKind(name string) (Kind, error) {
	for i, info := range catalog {
		if info.name == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return catalog[k].name
}

// Arity returns the request shape of the engine.
func (k Kind) Arity() Arity { return catalog[k].arity }

// Shape returns the model layout of the engine.
func (k Kind) Shape() Shape { return catalog[k].shape }

// Description is a one-line summary of what the engine computes.
func (k Kind) Description() string { return catalog[k].desc }
