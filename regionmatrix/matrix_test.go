package regionmatrix_test

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/regionmatrix"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows() []interval.Interval {
	return []interval.Interval{
		{Chrom: "chr1", Start: 100, End: 400},
		{Chrom: "chr2", Start: 50, End: 150},
	}
}

func TestNewAndAccessors(t *testing.T) {
	m, err := regionmatrix.New(testRows(), []string{"s1", "s2", "s3"})
	require.NoError(t, err)
	expect.EQ(t, m.NRows(), 2)
	expect.EQ(t, m.NCols(), 3)
	expect.EQ(t, m.RowKey(0), "chr1:100-400")
	expect.EQ(t, m.RowIndex("chr2:50-150"), 1)
	expect.EQ(t, m.RowIndex("chr3:0-1"), -1)
	expect.EQ(t, m.ColIndex("s2"), 1)

	m.Set(0, 1, 7)
	m.Incr(0, 1, 3)
	expect.EQ(t, m.At(0, 1), 10.0)

	col, err := m.Column("s2")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 0}, col)
	_, err = m.Column("nope")
	assert.Error(t, err)

	_, err = regionmatrix.New(testRows(), []string{"s1", "s1"})
	assert.Error(t, err)
	_, err = regionmatrix.New(append(testRows(), testRows()[0]), []string{"s1"})
	assert.Error(t, err)
}

func TestDenseRoundTrip(t *testing.T) {
	m, err := regionmatrix.New(testRows(), []string{"a", "b"})
	require.NoError(t, err)
	m.Set(0, 0, 1.5)
	m.Set(1, 1, -2)
	d := m.ToDense()
	back, err := m.FromDense(d)
	require.NoError(t, err)
	assert.True(t, m.EqualValues(back))
}

func TestColumnSums(t *testing.T) {
	m, err := regionmatrix.New(testRows(), []string{"a", "b"})
	require.NoError(t, err)
	m.Set(0, 0, 2)
	m.Set(1, 0, 3)
	m.Set(1, 1, 4)
	assert.Equal(t, []float64{5, 4}, m.ColumnSums())
}

func TestRowStats(t *testing.T) {
	m, err := regionmatrix.New(testRows(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	for j, v := range []float64{2, 4, 4, 6} {
		m.Set(0, j, v)
	}
	// Row 1 stays all zero.
	s := m.RowStats()

	expect.EQ(t, s.Mean[0], 4.0)
	expect.EQ(t, s.Variance[0], 8.0/3.0) // sample variance, n-1
	assert.InDelta(t, math.Sqrt(8.0/3.0), s.StdDeviation[0], 1e-12)
	assert.InDelta(t, (8.0/3.0)/4.0, s.Dispersion[0], 1e-12)
	assert.InDelta(t, (8.0/3.0)/16.0, s.QV2[0], 1e-12)
	expect.EQ(t, s.Amplitude[0], 4.0)

	expect.EQ(t, s.Mean[1], 0.0)
	assert.True(t, math.IsNaN(s.Dispersion[1]))
	assert.True(t, math.IsNaN(s.QV2[1]))
}

func TestCSVRoundTrip(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "regionmatrix")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	m, err := regionmatrix.New(testRows(), []string{"s1", "s2"})
	require.NoError(t, err)
	m.Set(0, 0, 10)
	m.Set(0, 1, 0.125)
	m.Set(1, 0, 1e6)
	m.Set(1, 1, 3.141592653589793)

	path := filepath.Join(tempDir, "m.csv")
	require.NoError(t, m.WriteCSV(path))
	got, err := regionmatrix.ReadCSV(path)
	require.NoError(t, err)
	assert.True(t, m.EqualValues(got))
	assert.Equal(t, m.Rows(), got.Rows())
	assert.Equal(t, m.Cols(), got.Cols())
}
