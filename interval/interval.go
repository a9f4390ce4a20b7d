package interval

import (
	"fmt"
	"math"
	"sort"
)

// PosType is the coordinate type used throughout this package.
type PosType int32

const posTypeMax = math.MaxInt32

// Interval is a single genomic interval with 0-based half-open coordinates,
// Start < End.
type Interval struct {
	Chrom string
	Start PosType
	End   PosType
}

// Len returns the interval width in bases.
func (iv Interval) Len() PosType { return iv.End - iv.Start }

// Compare orders intervals by (chrom, start, end).
func Compare(a, b Interval) int {
	if a.Chrom != b.Chrom {
		if a.Chrom < b.Chrom {
			return -1
		}
		return 1
	}
	if a.Start != b.Start {
		if a.Start < b.Start {
			return -1
		}
		return 1
	}
	if a.End != b.End {
		if a.End < b.End {
			return -1
		}
		return 1
	}
	return 0
}

// Set is an ordered collection of non-overlapping, non-abutting intervals.
// Construction always sorts and merges, so every Set satisfies the merged
// invariant.  The zero value is an empty set; use NewSet.
type Set struct {
	// chroms lists chromosomes with at least one interval, sorted.
	chroms []string
	// ivs maps a chromosome to its flattened endpoint pairs.
	ivs map[string][]PosType
	// offsets maps a chromosome to the number of intervals on earlier
	// chromosomes, giving each interval a stable global row index.
	offsets map[string]int
	n       int
}

// NewSet builds a merged Set from intervals in any order.  Empty intervals
// (End <= Start) are dropped.  Overlapping or abutting intervals are merged.
func NewSet(intervals []Interval) *Set {
	sorted := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.End > iv.Start {
			sorted = append(sorted, iv)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return Compare(sorted[i], sorted[j]) < 0 })

	s := &Set{ivs: make(map[string][]PosType)}
	prevChrom := ""
	var prevStart, prevEnd PosType
	var chrIntervals []PosType
	flush := func() {
		if prevChrom != "" {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			s.ivs[prevChrom] = chrIntervals
			s.chroms = append(s.chroms, prevChrom)
		}
	}
	for _, iv := range sorted {
		if iv.Chrom != prevChrom {
			flush()
			prevChrom = iv.Chrom
			chrIntervals = nil
			prevStart = iv.Start
			prevEnd = iv.End
			continue
		}
		if iv.Start > prevEnd {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			prevStart = iv.Start
			prevEnd = iv.End
		} else if iv.End > prevEnd {
			// Overlapping or abutting: extend.
			prevEnd = iv.End
		}
	}
	flush()
	s.reindex()
	return s
}

func (s *Set) reindex() {
	s.offsets = make(map[string]int, len(s.chroms))
	s.n = 0
	for _, chrom := range s.chroms {
		s.offsets[chrom] = s.n
		s.n += len(s.ivs[chrom]) / 2
	}
}

// NumIntervals returns the number of intervals in the set.
func (s *Set) NumIntervals() int { return s.n }

// Chroms returns the chromosomes with at least one interval, sorted.
func (s *Set) Chroms() []string {
	out := make([]string, len(s.chroms))
	copy(out, s.chroms)
	return out
}

// Intervals returns all intervals in (chrom, start) order.
func (s *Set) Intervals() []Interval {
	out := make([]Interval, 0, s.n)
	for _, chrom := range s.chroms {
		a := s.ivs[chrom]
		for k := 0; k < len(a); k += 2 {
			out = append(out, Interval{Chrom: chrom, Start: a[k], End: a[k+1]})
		}
	}
	return out
}

// Union returns the merged union of s and other.
func (s *Set) Union(other *Set) *Set {
	return NewSet(append(s.Intervals(), other.Intervals()...))
}

// Subtract returns the intervals of s that do not overlap any interval of
// other.  This is interval-level subtraction (BEDTools intersect -v):
// an interval touching other at all is dropped whole.
func (s *Set) Subtract(other *Set) *Set {
	kept := make([]Interval, 0, s.n)
	for _, iv := range s.Intervals() {
		if !other.AnyOverlap(iv.Chrom, iv.Start, iv.End) {
			kept = append(kept, iv)
		}
	}
	return NewSet(kept)
}

// DropChroms returns s without any intervals on the named chromosomes.
func (s *Set) DropChroms(names ...string) *Set {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	kept := make([]Interval, 0, s.n)
	for _, iv := range s.Intervals() {
		if !drop[iv.Chrom] {
			kept = append(kept, iv)
		}
	}
	return NewSet(kept)
}

// overlapRange returns the half-open range [lo, hi) of chromosome-local
// interval indices overlapping [start, end).
func (s *Set) overlapRange(chrom string, start, end PosType) (int, int) {
	a := s.ivs[chrom]
	if len(a) == 0 || end <= start {
		return 0, 0
	}
	lo := searchPosType(a, start+1) / 2
	i := searchPosType(a, end)
	hi := i / 2
	if i&1 == 1 {
		hi++
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// OverlapRange returns the half-open range [lo, hi) of global interval
// indices (row indices in Intervals() order) overlapping [start, end) on
// chrom.  lo == hi means no overlap.
func (s *Set) OverlapRange(chrom string, start, end PosType) (int, int) {
	lo, hi := s.overlapRange(chrom, start, end)
	off := s.offsets[chrom]
	return off + lo, off + hi
}

// CountOverlaps returns the number of set intervals overlapping iv.
func (s *Set) CountOverlaps(iv Interval) int {
	lo, hi := s.overlapRange(iv.Chrom, iv.Start, iv.End)
	return hi - lo
}

// AnyOverlap reports whether any set interval overlaps [start, end) on chrom.
func (s *Set) AnyOverlap(chrom string, start, end PosType) bool {
	lo, hi := s.overlapRange(chrom, start, end)
	return hi > lo
}

// FractionCovered returns the fraction of iv's bases covered by the set, a
// value in [0, 1].
func (s *Set) FractionCovered(iv Interval) float64 {
	a := s.ivs[iv.Chrom]
	lo, hi := s.overlapRange(iv.Chrom, iv.Start, iv.End)
	var covered PosType
	for k := lo; k < hi; k++ {
		start, end := a[2*k], a[2*k+1]
		if start < iv.Start {
			start = iv.Start
		}
		if end > iv.End {
			end = iv.End
		}
		covered += end - start
	}
	return float64(covered) / float64(iv.Len())
}

// MaxFractionCovered returns the largest fraction of iv's bases covered by
// any single interval of the set, a value in [0, 1].  Unlike
// FractionCovered it does not add up disjoint intervals, matching the
// per-feature minimum overlap of bedtools intersect -f.
func (s *Set) MaxFractionCovered(iv Interval) float64 {
	a := s.ivs[iv.Chrom]
	lo, hi := s.overlapRange(iv.Chrom, iv.Start, iv.End)
	var best PosType
	for k := lo; k < hi; k++ {
		start, end := a[2*k], a[2*k+1]
		if start < iv.Start {
			start = iv.Start
		}
		if end > iv.End {
			end = iv.End
		}
		if end-start > best {
			best = end - start
		}
	}
	return float64(best) / float64(iv.Len())
}

// Slop returns a new Set with every interval symmetrically extended by b
// bases, clamped to [0, size] when sizes has an entry for the chromosome.
// Extended intervals that come to overlap or abut are merged.
func (s *Set) Slop(b PosType, sizes map[string]PosType) *Set {
	out := make([]Interval, 0, s.n)
	for _, iv := range s.Intervals() {
		start := iv.Start - b
		if start < 0 {
			start = 0
		}
		end := iv.End + b
		if size, ok := sizes[iv.Chrom]; ok && end > size {
			end = size
		}
		out = append(out, Interval{Chrom: iv.Chrom, Start: start, End: end})
	}
	return NewSet(out)
}

// Closest returns the set interval nearest to iv on the same chromosome and
// the distance to it: 0 when they overlap, otherwise 1 plus the number of
// bases between them (BEDTools closest -d convention).  ok is false when the
// chromosome has no intervals.
func (s *Set) Closest(iv Interval) (nearest Interval, distance PosType, ok bool) {
	a := s.ivs[iv.Chrom]
	if len(a) == 0 {
		return Interval{}, 0, false
	}
	lo, hi := s.overlapRange(iv.Chrom, iv.Start, iv.End)
	if hi > lo {
		return Interval{Chrom: iv.Chrom, Start: a[2*lo], End: a[2*lo+1]}, 0, true
	}
	// lo is the first interval starting after iv; lo-1 ends before it.
	best := -1
	var bestDist PosType = posTypeMax
	if lo < len(a)/2 {
		if d := a[2*lo] - iv.End + 1; d < bestDist {
			best, bestDist = lo, d
		}
	}
	if lo > 0 {
		if d := iv.Start - a[2*lo-1] + 1; d < bestDist {
			best, bestDist = lo-1, d
		}
	}
	return Interval{Chrom: iv.Chrom, Start: a[2*best], End: a[2*best+1]}, bestDist, true
}

// Equal reports whether two sets contain identical intervals.
func (s *Set) Equal(other *Set) bool {
	if s.n != other.n || len(s.chroms) != len(other.chroms) {
		return false
	}
	for i, chrom := range s.chroms {
		if other.chroms[i] != chrom {
			return false
		}
		a, b := s.ivs[chrom], other.ivs[chrom]
		for k := range a {
			if a[k] != b[k] {
				return false
			}
		}
	}
	return true
}

func (s *Set) String() string {
	return fmt.Sprintf("interval.Set{%d intervals on %d chromosomes}", s.n, len(s.chroms))
}
