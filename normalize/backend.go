package normalize

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pkg/errors"
)

// Backend is the statistical engine behind quantile normalization and
// covariate regression.  Implementations must leave the input untouched
// and return a new matrix of the same shape.
type Backend interface {
	// QuantileNormalize returns x with every column forced to the common
	// reference distribution (the row-wise mean of the per-column order
	// statistics).
	QuantileNormalize(x *mat.Dense) (*mat.Dense, error)
	// CovariateRegress returns x with, per column, the component
	// explained by the gc and length covariates removed and the column
	// mean added back.
	CovariateRegress(x *mat.Dense, gc, length []float64) (*mat.Dense, error)
}

// BackendError wraps a failure from the statistical backend.  Backend
// calls are deterministic, so callers must not retry.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("normalize: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// GonumBackend runs both operations in-process.
type GonumBackend struct{}

// QuantileNormalize implements standard order-statistics averaging: the
// reference distribution is the row-wise mean of each column's sorted
// values, and every entry is replaced by the reference value at its rank.
// Tied values within a column receive the mean of the reference values
// over the tied rank range, matching preprocessCore's handling.
func (GonumBackend) QuantileNormalize(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, errors.New("empty matrix")
	}
	// order[j][k] is the row holding column j's k-th smallest value.
	order := make([][]int, c)
	ref := make([]float64, r)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		idx := make([]int, r)
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return col[idx[a]] < col[idx[b]] })
		order[j] = idx
		for k, i := range idx {
			ref[k] += col[i]
		}
	}
	for k := range ref {
		ref[k] /= float64(c)
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		idx := order[j]
		for k := 0; k < r; {
			// Ranks [k, k2) hold the same value; all get the mean
			// reference value over that range.
			k2 := k + 1
			for k2 < r && col[idx[k2]] == col[idx[k]] {
				k2++
			}
			v := stat.Mean(ref[k:k2], nil)
			for ; k < k2; k++ {
				out.Set(idx[k], j, v)
			}
		}
	}
	return out, nil
}

// CovariateRegress fits, per sample column, a least squares model of the
// column on [1, gc, gc^2, log(length)] and returns the residuals with the
// column mean added back, keeping values on the input scale.
func (GonumBackend) CovariateRegress(x *mat.Dense, gc, length []float64) (*mat.Dense, error) {
	r, c := x.Dims()
	if len(gc) != r || len(length) != r {
		return nil, errors.Errorf("covariate length mismatch: %d rows, %d gc, %d length",
			r, len(gc), len(length))
	}
	design := mat.NewDense(r, 4, nil)
	for i := 0; i < r; i++ {
		if length[i] <= 0 {
			return nil, errors.Errorf("region %d has non-positive length %g", i, length[i])
		}
		design.Set(i, 0, 1)
		design.Set(i, 1, gc[i])
		design.Set(i, 2, gc[i]*gc[i])
		design.Set(i, 3, math.Log(length[i]))
	}
	out := mat.NewDense(r, c, nil)
	y := mat.NewVecDense(r, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			y.SetVec(i, x.At(i, j))
		}
		var beta mat.VecDense
		if err := beta.SolveVec(design, y); err != nil {
			return nil, errors.Wrapf(err, "column %d", j)
		}
		var fitted mat.VecDense
		fitted.MulVec(design, &beta)
		mean := stat.Mean(y.RawVector().Data, nil)
		for i := 0; i < r; i++ {
			out.Set(i, j, y.AtVec(i)-fitted.AtVec(i)+mean)
		}
	}
	return out, nil
}
