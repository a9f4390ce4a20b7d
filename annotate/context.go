package annotate

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
)

// ClassifyOpts controls fractional-overlap classification.
type ClassifyOpts struct {
	// MinOverlap is the minimum fraction of the region a single track
	// interval must cover to contribute the track's label.  0 means
	// DefaultMinOverlap.
	MinOverlap float64
	// Fallback labels regions matched by no track.
	Fallback string
}

// DefaultMinOverlap is the classification threshold: a track must cover at
// least a fifth of the region.
const DefaultMinOverlap = 0.2

func (o ClassifyOpts) minOverlap() float64 {
	if o.MinOverlap == 0 {
		return DefaultMinOverlap
	}
	return o.MinOverlap
}

// Classify labels every region with the tracks having an interval that by
// itself covers at least the minimum fraction of it, comma-joined in track
// order with duplicates dropped.  Two sub-threshold intervals on one track
// do not add up (bedtools intersect -u -f).  Regions matching no track get
// the fallback label.
func Classify(regions []interval.Interval, tracks []Track, opts ClassifyOpts) []string {
	minOverlap := opts.minOverlap()
	out := make([]string, len(regions))
	for i, iv := range regions {
		var labels []string
		seen := map[string]bool{}
		for _, track := range tracks {
			if seen[track.Label] {
				continue
			}
			if track.Regions.MaxFractionCovered(iv) >= minOverlap {
				labels = append(labels, track.Label)
				seen[track.Label] = true
			}
		}
		if len(labels) == 0 {
			out[i] = opts.Fallback
			continue
		}
		out[i] = strings.Join(labels, ",")
	}
	return out
}

// Classification pairs foreground labels with labels of a same-shape
// shuffled background, for enrichment comparisons downstream.
type Classification struct {
	Foreground []string
	Background []string
	// BackgroundRegions are the shuffled regions the background labels
	// were computed from, parallel to Background.
	BackgroundRegions []interval.Interval
}

// ClassifyWithBackground classifies sites and an equally sized background
// of randomly repositioned same-width regions on the same chromosomes.
func ClassifyWithBackground(sites *interval.Set, tracks []Track, sizes map[string]interval.PosType, rng *rand.Rand, opts ClassifyOpts) (*Classification, error) {
	if sites == nil || sites.NumIntervals() == 0 {
		return nil, errors.New("annotate: no regions to classify")
	}
	if len(tracks) == 0 {
		return nil, errors.New("annotate: no tracks")
	}
	regions := sites.Intervals()
	bg := interval.Shuffle(regions, sizes, rng)
	return &Classification{
		Foreground:        Classify(regions, tracks, opts),
		Background:        Classify(bg, tracks, opts),
		BackgroundRegions: bg,
	}, nil
}

// GenomicContext classifies sites against an ordered list of genomic
// feature tracks (gene body, promoter window, UTRs, exon, intron and the
// like).  Unmatched regions are labeled "intergenic".
func GenomicContext(sites *interval.Set, tracks []Track, sizes map[string]interval.PosType, rng *rand.Rand) (*Classification, error) {
	return ClassifyWithBackground(sites, tracks, sizes, rng, ClassifyOpts{Fallback: "intergenic"})
}

// ChromatinState classifies sites against a chromatin state segmentation.
// Unmatched regions get an empty label.
func ChromatinState(sites *interval.Set, states []Track, sizes map[string]interval.PosType, rng *rand.Rand) (*Classification, error) {
	return ClassifyWithBackground(sites, states, sizes, rng, ClassifyOpts{})
}
