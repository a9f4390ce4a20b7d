package interval

import "math/rand"

// Shuffle randomly repositions each interval within its own chromosome,
// preserving interval widths (BEDTools shuffle -chrom).  sizes supplies
// chromosome lengths; an interval on a chromosome absent from sizes, or
// wider than its chromosome, keeps its original position.  The result is a
// plain interval list, not a Set: shuffled intervals may overlap each other
// and row-wise correspondence with the input is preserved.
func Shuffle(intervals []Interval, sizes map[string]PosType, rng *rand.Rand) []Interval {
	out := make([]Interval, len(intervals))
	for i, iv := range intervals {
		width := iv.Len()
		size, ok := sizes[iv.Chrom]
		if !ok || width > size {
			out[i] = iv
			continue
		}
		start := PosType(rng.Int63n(int64(size-width) + 1))
		out[i] = Interval{Chrom: iv.Chrom, Start: start, End: start + width}
	}
	return out
}
