package annotate

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
)

// GeneAnnotation is the nearest-gene assignment for one region.  Several
// features at the same minimal distance are joined with commas after
// name deduplication, in sorted name order.
type GeneAnnotation struct {
	Region   string
	Genes    string
	Strand   string
	Distance float64 // 0 when overlapping, -1 when the chromosome has no features
}

// NearestGenes assigns every region in sites its closest feature(s).
// Distance follows the BEDTools closest -d convention: 0 for overlap,
// otherwise 1 plus the base gap.  A region on a chromosome without any
// feature gets Genes "." and Distance -1.
func NearestGenes(sites *interval.Set, features []Feature) ([]GeneAnnotation, error) {
	if sites == nil || sites.NumIntervals() == 0 {
		return nil, errors.New("annotate: no regions to annotate")
	}
	if len(features) == 0 {
		return nil, errors.New("annotate: no features")
	}
	byChrom := map[string][]Feature{}
	for _, f := range features {
		byChrom[f.Interval.Chrom] = append(byChrom[f.Interval.Chrom], f)
	}
	regions := sites.Intervals()
	out := make([]GeneAnnotation, len(regions))
	for i, iv := range regions {
		out[i] = nearest(iv, byChrom[iv.Chrom])
	}
	return out, nil
}

func featureDistance(iv interval.Interval, f Feature) interval.PosType {
	if f.Interval.Start < iv.End && iv.Start < f.Interval.End {
		return 0
	}
	if f.Interval.Start >= iv.End {
		return f.Interval.Start - iv.End + 1
	}
	return iv.Start - f.Interval.End + 1
}

func nearest(iv interval.Interval, candidates []Feature) GeneAnnotation {
	a := GeneAnnotation{Region: iv.RegionString(), Genes: ".", Strand: ".", Distance: -1}
	if len(candidates) == 0 {
		return a
	}
	best := interval.PosType(-1)
	var hits []Feature
	for _, f := range candidates {
		d := featureDistance(iv, f)
		switch {
		case best < 0 || d < best:
			best = d
			hits = append(hits[:0], f)
		case d == best:
			hits = append(hits, f)
		}
	}
	// Deduplicate by gene name, keeping the first strand seen per name.
	strand := map[string]string{}
	names := make([]string, 0, len(hits))
	for _, f := range hits {
		if _, ok := strand[f.Name]; !ok {
			strand[f.Name] = f.Strand
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	strands := make([]string, len(names))
	for i, name := range names {
		strands[i] = strand[name]
	}
	a.Genes = strings.Join(names, ",")
	a.Strand = strings.Join(strands, ",")
	a.Distance = float64(best)
	return a
}
