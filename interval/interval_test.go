package interval_test

import (
	"bytes"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iv(chrom string, start, end interval.PosType) interval.Interval {
	return interval.Interval{Chrom: chrom, Start: start, End: end}
}

func TestNewSetMerges(t *testing.T) {
	tests := []struct {
		name string
		in   []interval.Interval
		want []interval.Interval
	}{
		{
			"overlapping",
			[]interval.Interval{iv("chr1", 100, 300), iv("chr1", 280, 400), iv("chr2", 50, 150)},
			[]interval.Interval{iv("chr1", 100, 400), iv("chr2", 50, 150)},
		},
		{
			"abutting",
			[]interval.Interval{iv("chr1", 0, 10), iv("chr1", 10, 20)},
			[]interval.Interval{iv("chr1", 0, 20)},
		},
		{
			"unsorted input",
			[]interval.Interval{iv("chr2", 5, 9), iv("chr1", 50, 60), iv("chr1", 10, 20)},
			[]interval.Interval{iv("chr1", 10, 20), iv("chr1", 50, 60), iv("chr2", 5, 9)},
		},
		{
			"empty intervals dropped",
			[]interval.Interval{iv("chr1", 5, 5), iv("chr1", 7, 9)},
			[]interval.Interval{iv("chr1", 7, 9)},
		},
		{
			"contained",
			[]interval.Interval{iv("chr1", 100, 500), iv("chr1", 200, 300)},
			[]interval.Interval{iv("chr1", 100, 500)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interval.NewSet(tt.in)
			assert.Equal(t, tt.want, got.Intervals())
		})
	}
}

func TestMergeIdempotence(t *testing.T) {
	s := interval.NewSet([]interval.Interval{
		iv("chr1", 100, 300), iv("chr1", 280, 400), iv("chr1", 400, 450), iv("chr2", 50, 150),
	})
	again := interval.NewSet(s.Intervals())
	assert.True(t, s.Equal(again))
	expect.EQ(t, again.NumIntervals(), s.NumIntervals())
	assert.Equal(t, s.Intervals(), again.Intervals())
}

func TestUnionSubtractDrop(t *testing.T) {
	a := interval.NewSet([]interval.Interval{iv("chr1", 0, 10), iv("chr1", 100, 200)})
	b := interval.NewSet([]interval.Interval{iv("chr1", 5, 20), iv("chrM", 0, 100)})

	u := a.Union(b)
	assert.Equal(t,
		[]interval.Interval{iv("chr1", 0, 20), iv("chr1", 100, 200), iv("chrM", 0, 100)},
		u.Intervals())

	// Interval-level subtraction drops whole intervals that touch b.
	sub := a.Subtract(b)
	assert.Equal(t, []interval.Interval{iv("chr1", 100, 200)}, sub.Intervals())

	drop := u.DropChroms("chrM")
	assert.Equal(t, []interval.Interval{iv("chr1", 0, 20), iv("chr1", 100, 200)}, drop.Intervals())
}

func TestOverlapQueries(t *testing.T) {
	s := interval.NewSet([]interval.Interval{
		iv("chr1", 10, 20), iv("chr1", 30, 40), iv("chr1", 50, 60), iv("chr2", 0, 5),
	})
	tests := []struct {
		chrom      string
		start, end interval.PosType
		count      int
	}{
		{"chr1", 0, 10, 0}, // abuts first interval, half-open: no overlap
		{"chr1", 0, 11, 1},
		{"chr1", 19, 31, 2},
		{"chr1", 20, 30, 0}, // exactly the gap
		{"chr1", 5, 65, 3},
		{"chr1", 60, 70, 0},
		{"chr2", 4, 5, 1},
		{"chr3", 0, 100, 0},
	}
	for _, tt := range tests {
		got := s.CountOverlaps(iv(tt.chrom, tt.start, tt.end))
		expect.EQ(t, got, tt.count, "query %s:%d-%d", tt.chrom, tt.start, tt.end)
		expect.EQ(t, s.AnyOverlap(tt.chrom, tt.start, tt.end), tt.count > 0)
	}

	lo, hi := s.OverlapRange("chr2", 0, 5)
	expect.EQ(t, lo, 3)
	expect.EQ(t, hi, 4)
}

func TestFractionCovered(t *testing.T) {
	s := interval.NewSet([]interval.Interval{iv("chr1", 10, 20), iv("chr1", 30, 40)})
	expect.EQ(t, s.FractionCovered(iv("chr1", 10, 20)), 1.0)
	expect.EQ(t, s.FractionCovered(iv("chr1", 15, 35)), 0.5)
	expect.EQ(t, s.FractionCovered(iv("chr1", 20, 30)), 0.0)
	expect.EQ(t, s.FractionCovered(iv("chr1", 0, 100)), 0.2)
}

func TestMaxFractionCovered(t *testing.T) {
	s := interval.NewSet([]interval.Interval{iv("chr1", 10, 20), iv("chr1", 30, 45)})
	// Two disjoint intervals cover 25% together, but the largest single
	// one covers only 15%.
	expect.EQ(t, s.FractionCovered(iv("chr1", 0, 100)), 0.25)
	expect.EQ(t, s.MaxFractionCovered(iv("chr1", 0, 100)), 0.15)
	expect.EQ(t, s.MaxFractionCovered(iv("chr1", 10, 20)), 1.0)
	expect.EQ(t, s.MaxFractionCovered(iv("chr1", 20, 30)), 0.0)
	expect.EQ(t, s.MaxFractionCovered(iv("chr2", 0, 100)), 0.0)
}

func TestAscendingQuery(t *testing.T) {
	s := interval.NewSet([]interval.Interval{
		iv("chr1", 100, 300), iv("chr1", 400, 500), iv("chr1", 600, 900),
		iv("chr2", 50, 150),
	})
	queries := []interval.Interval{
		// Ascending within chr1, then a chromosome switch, then a
		// backward jump.
		iv("chr1", 0, 50), iv("chr1", 0, 150), iv("chr1", 250, 450),
		iv("chr1", 250, 450), iv("chr1", 450, 700), iv("chr1", 950, 999),
		iv("chr2", 100, 120), iv("chr1", 100, 101), iv("chr3", 0, 100),
	}
	q := s.NewAscendingQuery()
	for _, query := range queries {
		wantLo, wantHi := s.OverlapRange(query.Chrom, query.Start, query.End)
		lo, hi := q.OverlapRange(query.Chrom, query.Start, query.End)
		assert.Equal(t, wantLo, lo, "query %v", query)
		assert.Equal(t, wantHi, hi, "query %v", query)
	}
}

func TestSlop(t *testing.T) {
	sizes := map[string]interval.PosType{"chr1": 1000}
	s := interval.NewSet([]interval.Interval{iv("chr1", 5, 10), iv("chr1", 600, 990)})
	got := s.Slop(20, sizes)
	assert.Equal(t, []interval.Interval{iv("chr1", 0, 30), iv("chr1", 580, 1000)}, got.Intervals())

	// Slopped summits that come to overlap must merge.
	summits := interval.NewSet([]interval.Interval{iv("chr1", 100, 101), iv("chr1", 120, 121)})
	got = summits.Slop(250, sizes)
	assert.Equal(t, []interval.Interval{iv("chr1", 0, 371)}, got.Intervals())
}

func TestClosest(t *testing.T) {
	s := interval.NewSet([]interval.Interval{iv("chr1", 100, 200), iv("chr1", 500, 600)})
	tests := []struct {
		q    interval.Interval
		want interval.Interval
		dist interval.PosType
		ok   bool
	}{
		{iv("chr1", 150, 160), iv("chr1", 100, 200), 0, true},
		{iv("chr1", 250, 260), iv("chr1", 100, 200), 51, true},
		{iv("chr1", 450, 460), iv("chr1", 500, 600), 41, true},
		{iv("chr1", 200, 210), iv("chr1", 100, 200), 1, true},
		{iv("chr2", 0, 10), interval.Interval{}, 0, false},
	}
	for _, tt := range tests {
		got, dist, ok := s.Closest(tt.q)
		expect.EQ(t, ok, tt.ok, "query %v", tt.q)
		if ok {
			assert.Equal(t, tt.want, got)
			expect.EQ(t, dist, tt.dist, "query %v", tt.q)
		}
	}
}

func TestShuffle(t *testing.T) {
	sizes := map[string]interval.PosType{"chr1": 10000, "chr2": 500}
	in := []interval.Interval{iv("chr1", 100, 400), iv("chr2", 50, 150), iv("chr3", 5, 10)}
	rng := rand.New(rand.NewSource(1))
	got := interval.Shuffle(in, sizes, rng)
	require.Equal(t, len(in), len(got))
	for i := range in {
		expect.EQ(t, got[i].Chrom, in[i].Chrom)
		expect.EQ(t, got[i].Len(), in[i].Len())
		if _, ok := sizes[in[i].Chrom]; ok {
			assert.True(t, got[i].Start >= 0 && got[i].End <= sizes[in[i].Chrom])
		} else {
			assert.Equal(t, in[i], got[i])
		}
	}
}

func TestRegionStringRoundTrip(t *testing.T) {
	for _, want := range []interval.Interval{iv("chr1", 0, 10), iv("chrX", 12345, 700000)} {
		got, err := interval.ParseRegion(want.RegionString())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "chr1", "chr1:5", "chr1:-5-10", "chr1:10-10", ":5-10"} {
		_, err := interval.ParseRegion(bad)
		assert.True(t, err != nil, "expected error for %q", bad)
	}
}

func TestBEDRoundTrip(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "bed")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	s := interval.NewSet([]interval.Interval{
		iv("chr1", 100, 300), iv("chr1", 280, 400), iv("chr2", 50, 150),
	})
	path := filepath.Join(tempDir, "sites.bed")
	require.NoError(t, s.WriteBED(path))
	got, err := interval.ReadBED(path)
	require.NoError(t, err)
	assert.True(t, s.Equal(got))
	assert.Equal(t, s.Intervals(), got.Intervals())
}

func TestReadBEDExtraColumnsAndComments(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "bed")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	path := filepath.Join(tempDir, "peaks.bed")
	data := "# comment\ntrack name=peaks\nchr1\t100\t300\tpeak_1\t960\t+\nchr1\t280\t400\tpeak_2\t312\t-\n\nchr2\t50\t150\tpeak_3\t77\t.\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	got, err := interval.ReadBED(path)
	require.NoError(t, err)
	assert.Equal(t,
		[]interval.Interval{iv("chr1", 100, 400), iv("chr2", 50, 150)},
		got.Intervals())

	// Gzipped input is detected from the path suffix.
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	gzPath := filepath.Join(tempDir, "peaks.bed.gz")
	require.NoError(t, ioutil.WriteFile(gzPath, buf.Bytes(), 0644))
	gotGz, err := interval.ReadBED(gzPath)
	require.NoError(t, err)
	assert.True(t, got.Equal(gotGz))
}
