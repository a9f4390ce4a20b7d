package interval

import "sort"

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInt(), except for PosType.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], then
// a[idx + 7], etc., and then uses binary search to finish the job.  It's
// usually a better choice than searchPosType when iterating in increasing
// position order.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// AscendingQuery answers the same overlap queries as Set.OverlapRange, but
// remembers where the previous query landed so that a stream of queries
// with nondecreasing start positions (e.g. records from a coordinate-sorted
// BAM) resumes a short forward search instead of running a fresh binary
// search each time.  A query that moves backward or switches chromosomes
// resets the cache, so results match Set.OverlapRange for any query order.
type AscendingQuery struct {
	set       *Set
	chrom     string
	a         []PosType
	off       int
	lastIdx   int
	lastStart PosType
}

// NewAscendingQuery returns a query cursor over s.
func (s *Set) NewAscendingQuery() *AscendingQuery {
	return &AscendingQuery{set: s}
}

// OverlapRange returns the half-open range [lo, hi) of global interval
// indices overlapping [start, end) on chrom, like Set.OverlapRange.
func (q *AscendingQuery) OverlapRange(chrom string, start, end PosType) (int, int) {
	if chrom != q.chrom {
		q.chrom = chrom
		q.a = q.set.ivs[chrom]
		q.off = q.set.offsets[chrom]
		q.lastIdx = 0
	} else if start < q.lastStart {
		q.lastIdx = 0
	}
	q.lastStart = start
	if len(q.a) == 0 || end <= start {
		return q.off, q.off
	}
	i := fwdsearchPosType(q.a, start+1, q.lastIdx)
	q.lastIdx = i
	lo := i / 2
	j := fwdsearchPosType(q.a, end, i)
	hi := j / 2
	if j&1 == 1 {
		hi++
	}
	if hi < lo {
		hi = lo
	}
	return q.off + lo, q.off + hi
}
