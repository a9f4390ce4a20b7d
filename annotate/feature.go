// Package annotate attaches reference annotations to a consensus region
// set: the nearest gene with its distance, one or more genomic context
// labels, chromatin state labels, and the final left-join of all per-region
// tables onto the coverage matrix together with derived row statistics.
package annotate

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
)

// Feature is a named, optionally stranded reference interval, e.g. a
// transcription start site.
type Feature struct {
	Interval interval.Interval
	Name     string
	Strand   string // "+", "-", or "." when absent
}

// Track is a labeled interval set used for fractional-overlap
// classification.
type Track struct {
	Label   string
	Regions *interval.Set
}

// ReadFeatureBED reads a BED file with a name in column 4 and, when
// present, a strand in column 6.  Comment, track, and browser lines are
// skipped.
func ReadFeatureBED(path string) (features []Feature, err error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	scanner := bufio.NewScanner(in.Reader(ctx))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if skipBEDLine(line) {
			continue
		}
		tokens := strings.Split(line, "\t")
		if len(tokens) < 4 {
			return nil, errors.Errorf("%s:%d: want at least 4 BED columns, got %d", path, lineno, len(tokens))
		}
		iv, err := parseBEDInterval(tokens)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineno)
		}
		strand := "."
		if len(tokens) >= 6 && (tokens[5] == "+" || tokens[5] == "-") {
			strand = tokens[5]
		}
		features = append(features, Feature{Interval: iv, Name: tokens[3], Strand: strand})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, errors.Errorf("%s: no features", path)
	}
	return features, nil
}

// ReadTrackBED reads a BED file whose column 4 labels each interval and
// groups the intervals into one Track per label, ordered by first
// appearance.  This is the on-disk form of a chromatin state segmentation.
func ReadTrackBED(path string) ([]Track, error) {
	features, err := ReadFeatureBED(path)
	if err != nil {
		return nil, err
	}
	var labels []string
	grouped := map[string][]interval.Interval{}
	for _, f := range features {
		if _, ok := grouped[f.Name]; !ok {
			labels = append(labels, f.Name)
		}
		grouped[f.Name] = append(grouped[f.Name], f.Interval)
	}
	tracks := make([]Track, 0, len(labels))
	for _, label := range labels {
		tracks = append(tracks, Track{Label: label, Regions: interval.NewSet(grouped[label])})
	}
	return tracks, nil
}

func skipBEDLine(line string) bool {
	return line == "" || strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser")
}

func parseBEDInterval(tokens []string) (interval.Interval, error) {
	start, err := strconv.ParseInt(tokens[1], 10, 32)
	if err != nil {
		return interval.Interval{}, err
	}
	end, err := strconv.ParseInt(tokens[2], 10, 32)
	if err != nil {
		return interval.Interval{}, err
	}
	if start < 0 || end < start {
		return interval.Interval{}, errors.Errorf("bad interval [%d, %d)", start, end)
	}
	return interval.Interval{
		Chrom: tokens[0],
		Start: interval.PosType(start),
		End:   interval.PosType(end),
	}, nil
}
