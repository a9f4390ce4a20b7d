// Package regionmatrix implements the region-by-sample numeric matrix shared
// by the coverage, normalization and annotation stages.  Rows are keyed by
// (chrom, start, end) in a stable order so that coordinate-keyed joins stay
// valid across every derived matrix; columns are sample names in
// caller-supplied order.
package regionmatrix

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/grailbio/atacseq/interval"
)

// Matrix is a dense regions x samples matrix.  The zero value is not usable;
// use New.
type Matrix struct {
	rows []interval.Interval
	cols []string
	// data is row-major: data[r][c].
	data   [][]float64
	colIdx map[string]int
	rowIdx map[string]int
}

// New returns a zero-filled matrix over the given regions and sample names.
// Region and sample keys must be unique.
func New(rows []interval.Interval, cols []string) (*Matrix, error) {
	m := &Matrix{
		rows:   append([]interval.Interval(nil), rows...),
		cols:   append([]string(nil), cols...),
		data:   make([][]float64, len(rows)),
		colIdx: make(map[string]int, len(cols)),
		rowIdx: make(map[string]int, len(rows)),
	}
	for i := range m.data {
		m.data[i] = make([]float64, len(cols))
	}
	for j, name := range cols {
		if _, dup := m.colIdx[name]; dup {
			return nil, errors.Errorf("regionmatrix: duplicate sample column %q", name)
		}
		m.colIdx[name] = j
	}
	for i, iv := range rows {
		key := iv.RegionString()
		if _, dup := m.rowIdx[key]; dup {
			return nil, errors.Errorf("regionmatrix: duplicate region %s", key)
		}
		m.rowIdx[key] = i
	}
	return m, nil
}

// NRows returns the number of regions.
func (m *Matrix) NRows() int { return len(m.rows) }

// NCols returns the number of sample columns.
func (m *Matrix) NCols() int { return len(m.cols) }

// Rows returns the region keys in row order.
func (m *Matrix) Rows() []interval.Interval {
	return append([]interval.Interval(nil), m.rows...)
}

// Cols returns the sample names in column order.
func (m *Matrix) Cols() []string {
	return append([]string(nil), m.cols...)
}

// RowKey returns the coordinate key of row i.
func (m *Matrix) RowKey(i int) string { return m.rows[i].RegionString() }

// RowIndex returns the row index of the region key, or -1.
func (m *Matrix) RowIndex(key string) int {
	if i, ok := m.rowIdx[key]; ok {
		return i
	}
	return -1
}

// ColIndex returns the column index of the sample, or -1.
func (m *Matrix) ColIndex(name string) int {
	if j, ok := m.colIdx[name]; ok {
		return j
	}
	return -1
}

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.data[i][j] }

// Set stores v at row i, column j.
func (m *Matrix) Set(i, j int, v float64) { m.data[i][j] = v }

// Incr adds delta to row i, column j.
func (m *Matrix) Incr(i, j int, delta float64) { m.data[i][j] += delta }

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.data[i]...)
}

// Column returns a copy of the named sample column.
func (m *Matrix) Column(name string) ([]float64, error) {
	j, ok := m.colIdx[name]
	if !ok {
		return nil, errors.Errorf("regionmatrix: no column %q", name)
	}
	col := make([]float64, len(m.rows))
	for i := range m.rows {
		col[i] = m.data[i][j]
	}
	return col, nil
}

// Clone returns a deep copy sharing nothing with m.
func (m *Matrix) Clone() *Matrix {
	out, _ := New(m.rows, m.cols)
	for i := range m.data {
		copy(out.data[i], m.data[i])
	}
	return out
}

// ToDense copies the values into a gonum dense matrix.
func (m *Matrix) ToDense() *mat.Dense {
	d := mat.NewDense(len(m.rows), len(m.cols), nil)
	for i := range m.data {
		d.SetRow(i, m.data[i])
	}
	return d
}

// FromDense returns a copy of m with values replaced by d, which must have
// m's shape.
func (m *Matrix) FromDense(d *mat.Dense) (*Matrix, error) {
	r, c := d.Dims()
	if r != len(m.rows) || c != len(m.cols) {
		return nil, errors.Errorf("regionmatrix: shape mismatch: matrix is %dx%d, dense is %dx%d",
			len(m.rows), len(m.cols), r, c)
	}
	out, _ := New(m.rows, m.cols)
	for i := 0; i < r; i++ {
		mat.Row(out.data[i], i, d)
	}
	return out, nil
}

// ColumnSums returns per-column totals.
func (m *Matrix) ColumnSums() []float64 {
	sums := make([]float64, len(m.cols))
	for _, row := range m.data {
		floats.Add(sums, row)
	}
	return sums
}

// EqualValues reports whether two matrices have identical keys and
// element-wise identical values (no tolerance).
func (m *Matrix) EqualValues(other *Matrix) bool {
	if len(m.rows) != len(other.rows) || len(m.cols) != len(other.cols) {
		return false
	}
	for i := range m.rows {
		if m.rows[i] != other.rows[i] {
			return false
		}
	}
	for j := range m.cols {
		if m.cols[j] != other.cols[j] {
			return false
		}
	}
	for i := range m.data {
		for j := range m.data[i] {
			if m.data[i][j] != other.data[i][j] {
				return false
			}
		}
	}
	return true
}

// Stats holds the derived per-region statistics computed over the sample
// columns.
type Stats struct {
	Mean         []float64
	Variance     []float64
	StdDeviation []float64
	Dispersion   []float64 // variance / mean
	QV2          []float64 // (std / mean)^2
	Amplitude    []float64 // max - min
}

// RowStats computes the derived statistics row-wise over all sample
// columns.  Variance is the sample variance (n-1 denominator); a row mean
// of zero yields IEEE NaN/Inf for dispersion and qv2, which is preserved
// rather than special-cased.
func (m *Matrix) RowStats() Stats {
	n := len(m.rows)
	s := Stats{
		Mean:         make([]float64, n),
		Variance:     make([]float64, n),
		StdDeviation: make([]float64, n),
		Dispersion:   make([]float64, n),
		QV2:          make([]float64, n),
		Amplitude:    make([]float64, n),
	}
	for i, row := range m.data {
		mean, variance := stat.MeanVariance(row, nil)
		std := math.Sqrt(variance)
		s.Mean[i] = mean
		s.Variance[i] = variance
		s.StdDeviation[i] = std
		s.Dispersion[i] = variance / mean
		s.QV2[i] = (std / mean) * (std / mean)
		s.Amplitude[i] = floats.Max(row) - floats.Min(row)
	}
	return s
}
