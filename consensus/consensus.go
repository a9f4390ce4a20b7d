// Package consensus folds per-sample peak interval sets into one merged,
// filtered consensus set, and scores per-region sample support against it.
package consensus

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/sample"
)

// RegionType selects which per-sample interval file seeds the consensus.
type RegionType string

const (
	// Summits uses point summit intervals, extended by Opts.Extension on
	// each side.
	Summits RegionType = "summits"
	// Peaks uses the called peak intervals directly.
	Peaks RegionType = "peaks"
)

// Opts configures consensus construction.
type Opts struct {
	// RegionType selects summits (slopped by Extension) or whole peaks.
	RegionType RegionType
	// Extension is the symmetric flank added to summit points.  Ignored
	// for RegionType == Peaks.
	Extension interval.PosType
	// ChromSizes bounds summit extension; optional.
	ChromSizes map[string]interval.PosType
	// Blacklist intervals are subtracted from the consensus (whole
	// overlapping regions dropped).  Optional.
	Blacklist *interval.Set
	// ExcludeChroms drops every region on the named contigs (e.g. chrM).
	ExcludeChroms []string
}

// DefaultOpts is the configuration matching standard ATAC-seq practice.
var DefaultOpts = Opts{
	RegionType:    Summits,
	Extension:     250,
	ExcludeChroms: []string{"chrM"},
}

func (o Opts) inputKind() sample.InputKind {
	if o.RegionType == Summits {
		return sample.Summits
	}
	return sample.Peaks
}

// loadRegions reads one sample's interval set per opts.  The returned set is
// self-merged by construction.
func loadRegions(s sample.Sample, opts Opts) (*interval.Set, error) {
	if opts.RegionType == Summits {
		set, err := interval.ReadBED(s.Summits)
		if err != nil {
			return nil, err
		}
		return set.Slop(opts.Extension, opts.ChromSizes), nil
	}
	return interval.ReadBED(s.Peaks)
}

// Build folds the samples' interval sets into a merged consensus set, then
// subtracts the blacklist and drops excluded contigs.  Samples whose peak
// file is missing are skipped with a logged warning and returned in
// skipped; zero usable samples is an error.
func Build(samples []sample.Sample, opts Opts) (sites *interval.Set, skipped []sample.Skipped, err error) {
	usable, skipped := sample.Partition(samples, opts.inputKind())
	for _, sk := range skipped {
		log.Error.Printf("consensus: skipping sample: %v", sk.Reason)
	}
	if len(usable) == 0 {
		return nil, skipped, errors.New("consensus: no usable samples: cannot build a consensus set")
	}

	sites = interval.NewSet(nil)
	for _, s := range usable {
		log.Printf("consensus: folding sample %s", s.Name)
		regions, err := loadRegions(s, opts)
		if err != nil {
			return nil, skipped, errors.Wrapf(err, "consensus: sample %s", s.Name)
		}
		sites = sites.Union(regions)
	}

	if opts.Blacklist != nil {
		sites = sites.Subtract(opts.Blacklist)
	}
	if len(opts.ExcludeChroms) > 0 {
		sites = sites.DropChroms(opts.ExcludeChroms...)
	}
	log.Printf("consensus: %d regions from %d sample(s)", sites.NumIntervals(), len(usable))
	return sites, skipped, nil
}
