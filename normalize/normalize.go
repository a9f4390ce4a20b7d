// Package normalize rescales a region-by-sample read count matrix so that
// values are comparable across samples.  Three strategies are supported:
// total-count (reads per million), quantile normalization, and GC-content
// correction.  The latter two run through a pluggable statistical Backend.
package normalize

import (
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/regionmatrix"
)

// Method selects a normalization strategy.
type Method int

const (
	// Total divides each sample column by its column sum and scales by
	// DefaultScale (reads per million).
	Total Method = iota
	// Quantile forces the empirical value distribution to be identical
	// across sample columns.
	Quantile
	// GCContent regresses out the per-region GC fraction and region
	// length covariates.  Callers are expected to pass a
	// quantile-normalized matrix.
	GCContent
)

// ParseMethod maps a strategy name to its Method.
func ParseMethod(name string) (Method, error) {
	switch name {
	case "total":
		return Total, nil
	case "quantile":
		return Quantile, nil
	case "gc_content":
		return GCContent, nil
	}
	return 0, errors.Errorf("normalize: unknown method %q (want total, quantile, or gc_content)", name)
}

func (m Method) String() string {
	switch m {
	case Total:
		return "total"
	case Quantile:
		return "quantile"
	case GCContent:
		return "gc_content"
	}
	return "invalid"
}

// DefaultScale is the total-count scale factor (reads per million).
const DefaultScale = 1e6

// Normalize routes to the strategy selected by method and returns exactly
// what the strategy function returns.  backend is required for Quantile
// and GCContent; cov is required for GCContent only.
func Normalize(m *regionmatrix.Matrix, method Method, backend Backend, cov *CovariateTable) (*regionmatrix.Matrix, error) {
	switch method {
	case Total:
		return TotalCount(m, DefaultScale)
	case Quantile:
		return QuantileNormalize(m, backend)
	case GCContent:
		return GCCorrect(m, cov, backend)
	}
	return nil, errors.Errorf("normalize: unknown method %v", method)
}

// TotalCount divides each sample column by its column sum and multiplies
// by scale.  A zero column sum is an error since the sample evidently has
// no reads in any region.
func TotalCount(m *regionmatrix.Matrix, scale float64) (*regionmatrix.Matrix, error) {
	if m == nil {
		return nil, errors.New("normalize: nil matrix")
	}
	sums := m.ColumnSums()
	for j, s := range sums {
		if s == 0 {
			return nil, errors.Errorf("normalize: sample %s has zero total count", m.Cols()[j])
		}
	}
	out := m.Clone()
	for i := 0; i < out.NRows(); i++ {
		for j := 0; j < out.NCols(); j++ {
			out.Set(i, j, out.At(i, j)/sums[j]*scale)
		}
	}
	return out, nil
}

// QuantileNormalize equalizes the value distribution across sample columns
// using the given backend.
func QuantileNormalize(m *regionmatrix.Matrix, backend Backend) (*regionmatrix.Matrix, error) {
	if m == nil {
		return nil, errors.New("normalize: nil matrix")
	}
	if backend == nil {
		return nil, errors.New("normalize: quantile normalization needs a backend")
	}
	q, err := backend.QuantileNormalize(m.ToDense())
	if err != nil {
		return nil, &BackendError{Op: "quantile_normalize", Err: err}
	}
	return m.FromDense(q)
}

// GCCorrect regresses each sample column on the per-region GC fraction and
// length covariates and returns the covariate-adjusted matrix on the
// original scale.
func GCCorrect(m *regionmatrix.Matrix, cov *CovariateTable, backend Backend) (*regionmatrix.Matrix, error) {
	if m == nil {
		return nil, errors.New("normalize: nil matrix")
	}
	if backend == nil {
		return nil, errors.New("normalize: gc correction needs a backend")
	}
	if cov == nil {
		return nil, errors.New("normalize: gc correction needs a covariate table")
	}
	if len(cov.GC) != m.NRows() {
		return nil, errors.Errorf("normalize: covariate table has %d regions, matrix has %d rows",
			len(cov.GC), m.NRows())
	}
	adj, err := backend.CovariateRegress(m.ToDense(), cov.GC, cov.Length)
	if err != nil {
		return nil, &BackendError{Op: "covariate_regress", Err: err}
	}
	return m.FromDense(adj)
}
