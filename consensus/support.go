package consensus

import (
	"encoding/csv"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/sample"
)

// SupportTable records, for each consensus region, how many of each
// sample's own intervals overlap it.  Counts are kept raw (interval-level
// containment counts, not booleans); clamping to {0,1} happens at
// aggregation time in Support.
type SupportTable struct {
	regions []interval.Interval
	samples []string
	colIdx  map[string]int
	// counts is [region][sample].
	counts [][]int
	// total is the number of samples support is computed over, including
	// skipped ones: a sample with no peaks file contributes zero support.
	total int
}

// ComputeSupport scores every consensus region against each sample's own
// interval set.  Samples with a missing peaks file are skipped with a
// logged warning; they still count in the support denominator.  Zero usable
// samples is an error.
func ComputeSupport(sites *interval.Set, samples []sample.Sample, opts Opts) (*SupportTable, []sample.Skipped, error) {
	if sites == nil || sites.NumIntervals() == 0 {
		return nil, nil, errors.New("consensus: support requested with no consensus set")
	}
	usable, skipped := sample.Partition(samples, opts.inputKind())
	for _, sk := range skipped {
		log.Error.Printf("consensus: support: skipping sample: %v", sk.Reason)
	}
	if len(usable) == 0 {
		return nil, skipped, errors.New("consensus: support: no usable samples")
	}

	regions := sites.Intervals()
	t := &SupportTable{
		regions: regions,
		samples: sample.Names(usable),
		colIdx:  make(map[string]int, len(usable)),
		counts:  make([][]int, len(regions)),
		total:   len(samples),
	}
	for i := range t.counts {
		t.counts[i] = make([]int, len(usable))
	}
	for j, s := range usable {
		t.colIdx[s.Name] = j
		raw, err := loadRawRegions(s, opts)
		if err != nil {
			return nil, skipped, errors.Wrapf(err, "consensus: support: sample %s", s.Name)
		}
		// Raw, unmerged sample intervals: two overlapping peaks hitting the
		// same consensus region both count.
		for _, iv := range raw {
			lo, hi := sites.OverlapRange(iv.Chrom, iv.Start, iv.End)
			for i := lo; i < hi; i++ {
				t.counts[i][j]++
			}
		}
	}
	return t, skipped, nil
}

// loadRawRegions reads a sample's intervals without merging, slopping
// summits by opts.Extension when the summits variant is selected.
func loadRawRegions(s sample.Sample, opts Opts) ([]interval.Interval, error) {
	if opts.RegionType != Summits {
		return interval.ReadBEDIntervals(s.Peaks)
	}
	raw, err := interval.ReadBEDIntervals(s.Summits)
	if err != nil {
		return nil, err
	}
	for i, iv := range raw {
		start := iv.Start - opts.Extension
		if start < 0 {
			start = 0
		}
		end := iv.End + opts.Extension
		if size, ok := opts.ChromSizes[iv.Chrom]; ok && end > size {
			end = size
		}
		raw[i] = interval.Interval{Chrom: iv.Chrom, Start: start, End: end}
	}
	return raw, nil
}

// Regions returns the region keys in row order (identical to the consensus
// set order).
func (t *SupportTable) Regions() []interval.Interval {
	return append([]interval.Interval(nil), t.regions...)
}

// Samples returns the scored sample names in column order.
func (t *SupportTable) Samples() []string {
	return append([]string(nil), t.samples...)
}

// Count returns the raw overlap count for region row i and the named sample.
func (t *SupportTable) Count(i int, name string) (int, error) {
	j, ok := t.colIdx[name]
	if !ok {
		return 0, errors.Errorf("consensus: support has no sample %q", name)
	}
	return t.counts[i][j], nil
}

// Support returns, per region, the fraction of samples whose interval set
// overlaps it: the mean over samples of min(count, 1), a value in [0, 1].
func (t *SupportTable) Support() []float64 {
	out := make([]float64, len(t.regions))
	for i, row := range t.counts {
		overlapped := 0
		for _, c := range row {
			if c > 0 {
				overlapped++
			}
		}
		out[i] = float64(overlapped) / float64(t.total)
	}
	return out
}

// SupportedMask returns, per region, whether the sum of the named samples'
// raw indicator columns is nonzero.  This is deliberately computed from the
// raw unclamped counts rather than by thresholding Support.
func (t *SupportTable) SupportedMask(names []string) ([]bool, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		j, ok := t.colIdx[name]
		if !ok {
			return nil, errors.Errorf("consensus: support has no sample %q", name)
		}
		idx[k] = j
	}
	mask := make([]bool, len(t.regions))
	for i, row := range t.counts {
		sum := 0
		for _, j := range idx {
			sum += row[j]
		}
		mask[i] = sum != 0
	}
	return mask, nil
}

// WriteCSV persists the raw per-sample counts plus the aggregate support
// column.
func (t *SupportTable) WriteCSV(path string) (err error) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(out.Writer(ctx))
	header := append([]string{"region", "chrom", "start", "end"}, t.samples...)
	header = append(header, "support")
	if err := w.Write(header); err != nil {
		return err
	}
	support := t.Support()
	record := make([]string, 0, len(header))
	for i, iv := range t.regions {
		record = record[:0]
		record = append(record, iv.RegionString(), iv.Chrom,
			strconv.Itoa(int(iv.Start)), strconv.Itoa(int(iv.End)))
		for _, c := range t.counts[i] {
			record = append(record, strconv.Itoa(c))
		}
		record = append(record, strconv.FormatFloat(support[i], 'g', -1, 64))
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
