// Package sample defines the per-sample inputs of an analysis and the
// explicit partitioning of a sample list into usable and skipped samples.
package sample

import (
	"fmt"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

// Sample identifies one sequencing sample.  Name is the unique, stable key
// used for matrix columns; values are immutable for the duration of an
// analysis run.
type Sample struct {
	// Name is the unique sample identifier.
	Name string
	// Genome is the assembly tag (e.g. "hg19").
	Genome string
	// Peaks is the path to the sample's called peak intervals (BED).
	Peaks string
	// Summits is the path to the sample's point summit intervals (BED),
	// optional.
	Summits string
	// AlignedReads is the path to the sample's alignment file (BAM).
	AlignedReads string
	// Metadata holds free-form sample attributes (batch, condition,
	// donor and the like) carried through to annotation outputs.
	Metadata map[string]string
}

// MissingInputError reports a sample input file that does not exist.  It is
// non-fatal at the per-sample level: the sample is skipped with a logged
// warning.  It becomes fatal when it leaves zero usable samples.
type MissingInputError struct {
	Sample string
	Kind   string // "peaks", "summits" or "alignments"
	Path   string
}

func (e *MissingInputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("sample %s has no %s file configured", e.Sample, e.Kind)
	}
	return fmt.Sprintf("sample %s is missing its %s file: %s", e.Sample, e.Kind, e.Path)
}

// Skipped pairs a dropped sample with the reason it was dropped.
type Skipped struct {
	Sample Sample
	Reason error
}

// InputKind selects which per-sample file Partition checks.
type InputKind int

const (
	// Peaks checks Sample.Peaks.
	Peaks InputKind = iota
	// Summits checks Sample.Summits.
	Summits
	// AlignedReads checks Sample.AlignedReads.
	AlignedReads
)

func (k InputKind) String() string {
	switch k {
	case Peaks:
		return "peaks"
	case Summits:
		return "summits"
	case AlignedReads:
		return "alignments"
	}
	return "unknown"
}

func (k InputKind) path(s Sample) string {
	switch k {
	case Peaks:
		return s.Peaks
	case Summits:
		return s.Summits
	case AlignedReads:
		return s.AlignedReads
	}
	return ""
}

// Partition splits samples into those whose file of the given kind exists
// and those that must be skipped, preserving input order.  Skipped entries
// carry a *MissingInputError; the caller decides whether to log them or
// fail (every stage treats zero usable samples as fatal).
func Partition(samples []Sample, kind InputKind) (usable []Sample, skipped []Skipped) {
	ctx := vcontext.Background()
	for _, s := range samples {
		path := kind.path(s)
		missing := path == ""
		if !missing {
			if _, err := file.Stat(ctx, path); err != nil {
				missing = true
			}
		}
		if missing {
			skipped = append(skipped, Skipped{
				Sample: s,
				Reason: &MissingInputError{Sample: s.Name, Kind: kind.String(), Path: path},
			})
			continue
		}
		usable = append(usable, s)
	}
	return usable, skipped
}

// Names returns the sample names in order.
func Names(samples []Sample) []string {
	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.Name
	}
	return names
}
