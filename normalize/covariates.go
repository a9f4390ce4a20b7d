package normalize

import (
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/fasta"
	"github.com/grailbio/atacseq/interval"
)

// CovariateTable holds the per-region covariates used by GC-content
// correction.  Rows are parallel to the region set they were computed
// from.
type CovariateTable struct {
	Regions []interval.Interval
	GC      []float64 // GC fraction over non-N bases, in [0, 1]
	Length  []float64 // region width in bases
}

// Covariates computes GC fraction and length for every region in sites
// from the reference sequence.  Regions on contigs absent from the
// reference are an error, not a skip, since a partial covariate table
// would silently misalign with the coverage matrix rows.
func Covariates(ref *fasta.Reference, sites *interval.Set) (*CovariateTable, error) {
	if ref == nil {
		return nil, errors.New("normalize: nil reference")
	}
	if sites == nil || sites.NumIntervals() == 0 {
		return nil, errors.New("normalize: no regions to compute covariates for")
	}
	regions := sites.Intervals()
	t := &CovariateTable{
		Regions: regions,
		GC:      make([]float64, len(regions)),
		Length:  make([]float64, len(regions)),
	}
	for i, iv := range regions {
		gc, err := ref.GC(iv)
		if err != nil {
			return nil, errors.Wrapf(err, "normalize: covariates for %s", iv.RegionString())
		}
		t.GC[i] = gc
		t.Length[i] = float64(iv.Len())
	}
	return t, nil
}
