// Package analysis orchestrates the pipeline stages over one cohort of
// samples: consensus site construction, support scoring, coverage
// quantification, normalization and annotation.  Computed results live in
// explicit optional fields (nil means not yet computed); re-running a
// stage replaces its field and leaves downstream fields stale until the
// caller re-runs them.  An Analysis is not safe for concurrent stage
// invocations.
package analysis

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/annotate"
	"github.com/grailbio/atacseq/consensus"
	"github.com/grailbio/atacseq/coverage"
	"github.com/grailbio/atacseq/fasta"
	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/normalize"
	"github.com/grailbio/atacseq/regionmatrix"
	"github.com/grailbio/atacseq/sample"
)

// PreconditionError reports a stage invoked before the field it reads has
// been computed.
type PreconditionError struct {
	Stage   string
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("analysis: %s requires %s to be computed first", e.Stage, e.Missing)
}

// Analysis holds the configuration and the computed state of one run.
type Analysis struct {
	// Name prefixes every persisted artifact.
	Name string
	// ResultsDir receives the persisted artifacts.
	ResultsDir string
	// Samples is the full cohort; stages partition it per their input
	// kind and skip samples with missing files.
	Samples []sample.Sample

	ConsensusOpts consensus.Opts
	CoverageOpts  coverage.Opts
	// Backend runs quantile normalization and covariate regression.
	Backend normalize.Backend
	// Reference provides sequence for GC covariates.  Only needed when
	// gc_content normalization is requested.
	Reference *fasta.Reference

	// Computed state.  nil means not yet computed.
	Sites       *interval.Set
	Support     *consensus.SupportTable
	Coverage    *regionmatrix.Matrix
	RPM         *regionmatrix.Matrix
	QNorm       *regionmatrix.Matrix
	GCCorrected *regionmatrix.Matrix
	Covariates  *normalize.CovariateTable
	Annotated   *annotate.Annotated
}

// New returns an Analysis with the default consensus, coverage and
// backend configuration.
func New(name, resultsDir string, samples []sample.Sample) *Analysis {
	return &Analysis{
		Name:          name,
		ResultsDir:    resultsDir,
		Samples:       samples,
		ConsensusOpts: consensus.DefaultOpts,
		CoverageOpts:  coverage.DefaultOpts,
		Backend:       normalize.GonumBackend{},
	}
}

func (a *Analysis) artifact(suffix string) string {
	return filepath.Join(a.ResultsDir, a.Name+suffix)
}

// PeakSetPath is where BuildSites persists the consensus regions.
func (a *Analysis) PeakSetPath() string { return a.artifact("_peak_set.bed") }

// SupportPath is where ComputeSupport persists the support table.
func (a *Analysis) SupportPath() string { return a.artifact("_peaks.support.csv") }

// RawCoveragePath is where MeasureCoverage persists the count matrix.
func (a *Analysis) RawCoveragePath() string { return a.artifact("_peaks.raw_coverage.csv") }

// AnnotatedPath is where AnnotateAll persists the annotated matrix.
func (a *Analysis) AnnotatedPath() string {
	return a.artifact("_peaks.coverage_qnorm.annotated.csv")
}

// SampleMetadataPath is where WriteSampleMetadata persists the
// per-sample attribute table.
func (a *Analysis) SampleMetadataPath() string {
	return a.artifact("_peaks.sample_metadata.csv")
}

// BuildSites constructs the consensus site set, persists it as BED, and
// rereads the persisted file so that Sites is exactly what a later run
// would load from disk.
func (a *Analysis) BuildSites() ([]sample.Skipped, error) {
	sites, skipped, err := consensus.Build(a.Samples, a.ConsensusOpts)
	if err != nil {
		return skipped, err
	}
	if err := sites.WriteBED(a.PeakSetPath()); err != nil {
		return skipped, err
	}
	reread, err := interval.ReadBED(a.PeakSetPath())
	if err != nil {
		return skipped, err
	}
	a.Sites = reread
	log.Printf("analysis %s: %d consensus sites", a.Name, a.Sites.NumIntervals())
	return skipped, nil
}

// SetSites installs an externally built site set, e.g. a published
// consensus, in place of BuildSites.  With persist it also writes the
// peak set artifact.
func (a *Analysis) SetSites(sites *interval.Set, persist bool) error {
	if sites == nil || sites.NumIntervals() == 0 {
		return errors.New("analysis: empty site set")
	}
	if persist {
		if err := sites.WriteBED(a.PeakSetPath()); err != nil {
			return err
		}
	}
	a.Sites = sites
	return nil
}

// ComputeSupport scores every consensus site by the fraction of samples
// whose peaks overlap it and persists the support table.
func (a *Analysis) ComputeSupport() ([]sample.Skipped, error) {
	if a.Sites == nil {
		return nil, &PreconditionError{Stage: "support", Missing: "consensus sites"}
	}
	table, skipped, err := consensus.ComputeSupport(a.Sites, a.Samples, a.ConsensusOpts)
	if err != nil {
		return skipped, err
	}
	if err := table.WriteCSV(a.SupportPath()); err != nil {
		return skipped, err
	}
	a.Support = table
	return skipped, nil
}

// MeasureCoverage counts reads per sample over the consensus sites,
// persists the raw count matrix, and caches it.
func (a *Analysis) MeasureCoverage(ctx context.Context) ([]sample.Skipped, error) {
	if a.Sites == nil {
		return nil, &PreconditionError{Stage: "coverage", Missing: "consensus sites"}
	}
	m, skipped, err := coverage.Count(ctx, a.Samples, a.Sites, a.CoverageOpts)
	if err != nil {
		return skipped, err
	}
	if err := m.WriteCSV(a.RawCoveragePath()); err != nil {
		return skipped, err
	}
	a.Coverage = m
	return skipped, nil
}

// MeasureCoverageAt counts reads over an explicit site set and optionally
// persists the matrix to outPath.  It does not touch the Analysis state.
func (a *Analysis) MeasureCoverageAt(ctx context.Context, sites *interval.Set, outPath string) (*regionmatrix.Matrix, []sample.Skipped, error) {
	m, skipped, err := coverage.Count(ctx, a.Samples, sites, a.CoverageOpts)
	if err != nil {
		return nil, skipped, err
	}
	if outPath != "" {
		if err := m.WriteCSV(outPath); err != nil {
			return nil, skipped, err
		}
	}
	return m, skipped, nil
}

// MeasureCoverageAtBED is MeasureCoverageAt with the site set read from a
// BED file.
func (a *Analysis) MeasureCoverageAtBED(ctx context.Context, bedPath, outPath string) (*regionmatrix.Matrix, []sample.Skipped, error) {
	sites, err := interval.ReadBED(bedPath)
	if err != nil {
		return nil, nil, err
	}
	return a.MeasureCoverageAt(ctx, sites, outPath)
}

// ComputeCovariates computes the per-region GC and length covariates from
// ref and caches them.
func (a *Analysis) ComputeCovariates(ref *fasta.Reference) error {
	if a.Sites == nil {
		return &PreconditionError{Stage: "covariates", Missing: "consensus sites"}
	}
	cov, err := normalize.Covariates(ref, a.Sites)
	if err != nil {
		return err
	}
	a.Covariates = cov
	return nil
}

// Normalize runs the selected strategy on the raw coverage matrix, caches
// the result under the strategy's field, and returns exactly the matrix
// the strategy produced.  GCContent lazily computes the quantile matrix
// and the covariate table when missing.
func (a *Analysis) Normalize(method normalize.Method) (*regionmatrix.Matrix, error) {
	if a.Coverage == nil {
		return nil, &PreconditionError{Stage: "normalize", Missing: "coverage matrix"}
	}
	switch method {
	case normalize.Total:
		m, err := normalize.Normalize(a.Coverage, method, a.Backend, nil)
		if err != nil {
			return nil, err
		}
		a.RPM = m
		return m, nil
	case normalize.Quantile:
		m, err := normalize.Normalize(a.Coverage, method, a.Backend, nil)
		if err != nil {
			return nil, err
		}
		a.QNorm = m
		return m, nil
	case normalize.GCContent:
		if a.QNorm == nil {
			if _, err := a.Normalize(normalize.Quantile); err != nil {
				return nil, err
			}
		}
		if a.Covariates == nil {
			if a.Reference == nil {
				return nil, &PreconditionError{Stage: "normalize", Missing: "reference sequence for covariates"}
			}
			if err := a.ComputeCovariates(a.Reference); err != nil {
				return nil, err
			}
		}
		m, err := normalize.Normalize(a.QNorm, method, a.Backend, a.Covariates)
		if err != nil {
			return nil, err
		}
		a.GCCorrected = m
		return m, nil
	}
	return nil, errors.Errorf("analysis: unknown normalization method %v", method)
}

// AnnotationInputs bundles the external reference tracks AnnotateAll
// joins against.
type AnnotationInputs struct {
	// TSS features for the nearest-gene join.
	TSS []annotate.Feature
	// ContextTracks is the ordered genomic context category list.
	ContextTracks []annotate.Track
	// StateTracks is the chromatin state segmentation.
	StateTracks []annotate.Track
	// ChromSizes bounds the shuffled background regions.
	ChromSizes map[string]interval.PosType
	// Rand drives background shuffling.  nil seeds a deterministic
	// generator.
	Rand *rand.Rand
}

// annotationMatrix picks the most processed matrix available.
func (a *Analysis) annotationMatrix() *regionmatrix.Matrix {
	for _, m := range []*regionmatrix.Matrix{a.GCCorrected, a.QNorm, a.RPM, a.Coverage} {
		if m != nil {
			return m
		}
	}
	return nil
}

// AnnotateAll joins the nearest-gene, genomic context, chromatin state
// and support tables onto the most processed matrix available
// (GC-corrected, else quantile, else RPM, else raw), appends the derived
// statistics, persists the result, and caches it.
func (a *Analysis) AnnotateAll(in AnnotationInputs) (*annotate.Annotated, error) {
	m := a.annotationMatrix()
	if m == nil {
		return nil, &PreconditionError{Stage: "annotate", Missing: "coverage matrix"}
	}
	if a.Sites == nil {
		return nil, &PreconditionError{Stage: "annotate", Missing: "consensus sites"}
	}
	if a.Support == nil {
		return nil, &PreconditionError{Stage: "annotate", Missing: "support table"}
	}
	rng := in.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	genes, err := annotate.NearestGenes(a.Sites, in.TSS)
	if err != nil {
		return nil, err
	}
	contexts, err := annotate.GenomicContext(a.Sites, in.ContextTracks, in.ChromSizes, rng)
	if err != nil {
		return nil, err
	}
	states, err := annotate.ChromatinState(a.Sites, in.StateTracks, in.ChromSizes, rng)
	if err != nil {
		return nil, err
	}

	regions := a.Sites.Intervals()
	contextLabels := make([]annotate.RegionLabel, len(regions))
	stateLabels := make([]annotate.RegionLabel, len(regions))
	for i, iv := range regions {
		contextLabels[i] = annotate.RegionLabel{Region: iv.RegionString(), Label: contexts.Foreground[i]}
		stateLabels[i] = annotate.RegionLabel{Region: iv.RegionString(), Label: states.Foreground[i]}
	}
	supportValues := make([]annotate.RegionValue, len(regions))
	for i, v := range a.Support.Support() {
		supportValues[i] = annotate.RegionValue{Region: regions[i].RegionString(), Value: v}
	}

	annotated, err := annotate.Annotate(m, genes, contextLabels, stateLabels, supportValues)
	if err != nil {
		return nil, err
	}
	if err := annotated.WriteCSV(a.AnnotatedPath()); err != nil {
		return nil, err
	}
	a.Annotated = annotated
	return annotated, nil
}

// WriteSampleMetadata persists a table of the given sample attributes,
// one row per column of the coverage matrix, aligned with the annotated
// matrix sample columns.  Empty attrs means the union of all attributes
// seen across samples, sorted.
func (a *Analysis) WriteSampleMetadata(attrs []string) (err error) {
	m := a.annotationMatrix()
	if m == nil {
		return &PreconditionError{Stage: "sample metadata", Missing: "coverage matrix"}
	}
	byName := map[string]sample.Sample{}
	for _, s := range a.Samples {
		byName[s.Name] = s
	}
	if len(attrs) == 0 {
		seen := map[string]bool{}
		for _, s := range a.Samples {
			for k := range s.Metadata {
				if !seen[k] {
					seen[k] = true
					attrs = append(attrs, k)
				}
			}
		}
		sort.Strings(attrs)
	}

	ctx := vcontext.Background()
	out, err := file.Create(ctx, a.SampleMetadataPath())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(out.Writer(ctx))
	if err := w.Write(append([]string{"sample", "genome"}, attrs...)); err != nil {
		return err
	}
	record := make([]string, 0, 2+len(attrs))
	for _, name := range m.Cols() {
		s := byName[name]
		record = append(record[:0], name, s.Genome)
		for _, attr := range attrs {
			record = append(record, s.Metadata[attr])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
