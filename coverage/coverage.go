// Package coverage counts, per sample and per consensus region, the number
// of read alignments overlapping the region.  Counting is embarrassingly
// parallel across samples: each worker scans only its own BAM and writes
// only its own matrix columns, so no locking is needed; results are joined
// by sample name once all workers finish.
package coverage

import (
	"context"
	"io"
	"runtime"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/regionmatrix"
	"github.com/grailbio/atacseq/sample"
)

// Opts configures coverage counting.
type Opts struct {
	// Parallelism is the maximum number of samples counted at once.
	// 0 means runtime.NumCPU().
	Parallelism int
	// FlagExclude skips reads with any of these FLAG bits set.
	FlagExclude sam.Flags
}

// DefaultOpts skips secondary, supplementary, unmapped, duplicate and
// QC-failed alignments.
var DefaultOpts = Opts{
	FlagExclude: sam.Unmapped | sam.Secondary | sam.Supplementary | sam.Duplicate | sam.QCFail,
}

// Count builds the region-by-sample read count matrix over sites.  Samples
// whose alignment file is missing are dropped with a logged warning and
// returned in skipped; zero usable samples is an error.  Matrix columns
// follow the caller-supplied sample order (minus skipped samples); rows
// follow the site order.
func Count(ctx context.Context, samples []sample.Sample, sites *interval.Set, opts Opts) (*regionmatrix.Matrix, []sample.Skipped, error) {
	if sites == nil || sites.NumIntervals() == 0 {
		return nil, nil, errors.New("coverage: no regions to quantify")
	}
	usable, skipped := sample.Partition(samples, sample.AlignedReads)
	for _, sk := range skipped {
		log.Error.Printf("coverage: skipping sample: %v", sk.Reason)
	}
	if len(usable) == 0 {
		return nil, skipped, errors.New("coverage: all samples are missing alignment files")
	}

	m, err := regionmatrix.New(sites.Intervals(), sample.Names(usable))
	if err != nil {
		return nil, skipped, err
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(usable) {
		parallelism = len(usable)
	}
	log.Printf("coverage: counting %d sample(s) over %d regions (%d jobs)",
		len(usable), sites.NumIntervals(), parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(usable)) / parallelism
		endIdx := ((jobIdx + 1) * len(usable)) / parallelism
		for col := startIdx; col < endIdx; col++ {
			s := usable[col]
			if err := countSample(ctx, s, sites, m, col, opts); err != nil {
				return errors.Wrapf(err, "coverage: sample %s", s.Name)
			}
			log.Printf("coverage: finished sample %s", s.Name)
		}
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}
	return m, skipped, nil
}

// countSample scans one BAM once, incrementing the sample's column for
// every region each kept read overlaps.  A read spanning k regions
// increments all k.
func countSample(ctx context.Context, s sample.Sample, sites *interval.Set, m *regionmatrix.Matrix, col int, opts Opts) (err error) {
	in, err := file.Open(ctx, s.AlignedReads)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	br, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := br.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	// Coordinate-sorted input keeps the query stream ascending, so each
	// lookup resumes from the previous one; unsorted records just reset
	// the cursor.
	q := sites.NewAscendingQuery()
	for {
		rec, err := br.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Flags&opts.FlagExclude != 0 || rec.Ref == nil {
			continue
		}
		start, end := interval.PosType(rec.Start()), interval.PosType(rec.End())
		if end <= start {
			continue
		}
		lo, hi := q.OverlapRange(rec.Ref.Name(), start, end)
		for row := lo; row < hi; row++ {
			m.Incr(row, col, 1)
		}
	}
}
