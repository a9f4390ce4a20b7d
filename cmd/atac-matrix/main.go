package main

/*
atac-matrix builds a consensus open-chromatin region set from per-sample
ATAC-seq peak calls, scores per-region sample support, counts reads per
region and sample, normalizes the count matrix, and optionally annotates
every region with its nearest gene, genomic context and chromatin state.
*/

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/atacseq/analysis"
	"github.com/grailbio/atacseq/annotate"
	"github.com/grailbio/atacseq/consensus"
	"github.com/grailbio/atacseq/coverage"
	"github.com/grailbio/atacseq/fasta"
	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/normalize"
	"github.com/grailbio/atacseq/sample"
)

var (
	name          = flag.String("name", "atac", "Analysis name; prefixes every output file")
	resultsDir    = flag.String("results-dir", ".", "Directory receiving output files")
	regionType    = flag.String("regions", "summits", "Consensus seed regions: 'summits' (extended point summits) or 'peaks'")
	extension     = flag.Int("extension", 250, "Summit extension in bases on each side; ignored with -regions=peaks")
	blacklistPath = flag.String("blacklist", "", "BED of blacklisted intervals; consensus regions overlapping any are dropped")
	excludeChroms = flag.String("exclude-chroms", "chrM", "Comma-separated contigs removed from the consensus")
	fastaPath     = flag.String("fasta", "", "Reference FASTA; required for -methods=gc_content, also supplies chromosome sizes")
	methods       = flag.String("methods", "total", "Comma-separated normalization methods to run: total, quantile, gc_content")
	backendName   = flag.String("backend", "gonum", "Statistical backend for quantile/gc normalization: 'gonum' or 'rscript'")
	parallelism   = flag.Int("parallelism", 0, "Maximum number of samples counted at once; 0 = runtime.NumCPU()")
	tssPath       = flag.String("tss", "", "BED of transcription start sites (name col 4, strand col 6) for nearest-gene annotation")
	contextPaths  = flag.String("context", "", "Ordered comma-separated label=path BED tracks for genomic context annotation")
	statesPath    = flag.String("states", "", "BED chromatin state segmentation (state label in col 4)")
	seed          = flag.Int64("seed", 1, "Seed for the shuffled annotation background")
)

func usage() {
	fmt.Printf("Usage: %s [OPTIONS] samplesheet.csv\n", os.Args[0])
	fmt.Printf("The sample sheet needs columns name,genome,peaks,summits,bam; extra\n")
	fmt.Printf("columns are carried as sample metadata.\n")
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Exactly one positional argument (the sample sheet) expected; got '%s'", strings.Join(flag.Args(), " "))
	}
	ctx := vcontext.Background()

	samples, err := sample.ReadSheet(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading sample sheet: %v", err)
	}
	if err := os.MkdirAll(*resultsDir, 0755); err != nil {
		log.Fatalf("creating results dir: %v", err)
	}
	a := analysis.New(*name, *resultsDir, samples)
	a.CoverageOpts = coverage.DefaultOpts
	a.CoverageOpts.Parallelism = *parallelism
	a.ConsensusOpts = consensus.Opts{
		RegionType:    consensus.RegionType(*regionType),
		Extension:     interval.PosType(*extension),
		ExcludeChroms: splitNonEmpty(*excludeChroms),
	}
	switch *regionType {
	case "summits", "peaks":
	default:
		log.Fatalf("-regions must be 'summits' or 'peaks', got %q", *regionType)
	}
	if *blacklistPath != "" {
		blacklist, err := interval.ReadBED(*blacklistPath)
		if err != nil {
			log.Fatalf("reading blacklist: %v", err)
		}
		a.ConsensusOpts.Blacklist = blacklist
	}
	if *fastaPath != "" {
		ref, err := fasta.FromPath(*fastaPath)
		if err != nil {
			log.Fatalf("reading reference: %v", err)
		}
		a.Reference = ref
		a.ConsensusOpts.ChromSizes = ref.Sizes()
	}
	switch *backendName {
	case "gonum":
		a.Backend = normalize.GonumBackend{}
	case "rscript":
		a.Backend = &normalize.RscriptBackend{}
	default:
		log.Fatalf("-backend must be 'gonum' or 'rscript', got %q", *backendName)
	}

	if skipped, err := a.BuildSites(); err != nil {
		log.Fatalf("building consensus sites: %v", err)
	} else {
		reportSkipped("consensus", skipped)
	}
	if skipped, err := a.ComputeSupport(); err != nil {
		log.Fatalf("computing support: %v", err)
	} else {
		reportSkipped("support", skipped)
	}
	if skipped, err := a.MeasureCoverage(ctx); err != nil {
		log.Fatalf("measuring coverage: %v", err)
	} else {
		reportSkipped("coverage", skipped)
	}

	for _, methodName := range splitNonEmpty(*methods) {
		method, err := normalize.ParseMethod(methodName)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if _, err := a.Normalize(method); err != nil {
			log.Fatalf("normalizing (%s): %v", method, err)
		}
		log.Printf("normalized coverage with method %s", method)
	}

	if *tssPath != "" || *contextPaths != "" || *statesPath != "" {
		in, err := annotationInputs(a)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if _, err := a.AnnotateAll(in); err != nil {
			log.Fatalf("annotating: %v", err)
		}
		if err := a.WriteSampleMetadata(nil); err != nil {
			log.Fatalf("writing sample metadata: %v", err)
		}
		log.Printf("wrote %s", a.AnnotatedPath())
	}
	log.Debug.Printf("exiting")
}

func annotationInputs(a *analysis.Analysis) (analysis.AnnotationInputs, error) {
	in := analysis.AnnotationInputs{Rand: rand.New(rand.NewSource(*seed))}
	if a.Reference != nil {
		in.ChromSizes = a.Reference.Sizes()
	}
	if *tssPath == "" || *contextPaths == "" || *statesPath == "" {
		return in, fmt.Errorf("annotation needs -tss, -context and -states together")
	}
	tss, err := annotate.ReadFeatureBED(*tssPath)
	if err != nil {
		return in, err
	}
	in.TSS = tss
	for _, entry := range splitNonEmpty(*contextPaths) {
		eq := strings.IndexByte(entry, '=')
		if eq < 1 {
			return in, fmt.Errorf("-context entry %q: want label=path", entry)
		}
		set, err := interval.ReadBED(entry[eq+1:])
		if err != nil {
			return in, err
		}
		in.ContextTracks = append(in.ContextTracks, annotate.Track{Label: entry[:eq], Regions: set})
	}
	states, err := annotate.ReadTrackBED(*statesPath)
	if err != nil {
		return in, err
	}
	in.StateTracks = states
	return in, nil
}

func reportSkipped(stage string, skipped []sample.Skipped) {
	for _, sk := range skipped {
		log.Error.Printf("%s: %v", stage, sk.Reason)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
