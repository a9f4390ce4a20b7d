package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionString formats iv as "chrom:start-end" with 0-based half-open
// coordinates.  These strings are the row keys of every pipeline matrix.
func (iv Interval) RegionString() string {
	return fmt.Sprintf("%s:%d-%d", iv.Chrom, iv.Start, iv.End)
}

// ParseRegion parses a "chrom:start-end" region key produced by
// RegionString back into an Interval.
func ParseRegion(region string) (Interval, error) {
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos <= 0 {
		return Interval{}, fmt.Errorf("interval.ParseRegion: malformed region %q", region)
	}
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos <= 0 {
		return Interval{}, fmt.Errorf("interval.ParseRegion: malformed range in %q", region)
	}
	start, err := strconv.Atoi(rangeStr[:dashPos])
	if err != nil {
		return Interval{}, fmt.Errorf("interval.ParseRegion: bad start in %q: %v", region, err)
	}
	end, err := strconv.Atoi(rangeStr[dashPos+1:])
	if err != nil {
		return Interval{}, fmt.Errorf("interval.ParseRegion: bad end in %q: %v", region, err)
	}
	if start < 0 || end <= start || end >= posTypeMax {
		return Interval{}, fmt.Errorf("interval.ParseRegion: invalid coordinates in %q", region)
	}
	return Interval{Chrom: region[:colonPos], Start: PosType(start), End: PosType(end)}, nil
}
