package sample

import (
	"encoding/csv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"
)

// ReadSheet reads a sample sheet CSV.  The header must contain name,
// genome, peaks, summits and bam columns in any order; any further column
// becomes a Metadata attribute keyed by its header.
func ReadSheet(path string) (_ []Sample, err error) {
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
	records, err := csv.NewReader(in.Reader(ctx)).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "sample sheet %s", path)
	}
	if len(records) < 2 {
		return nil, errors.Errorf("sample sheet %s: need a header and at least one sample", path)
	}
	header := records[0]
	colIdx := map[string]int{}
	for i, col := range header {
		colIdx[col] = i
	}
	for _, col := range []string{"name", "genome", "peaks", "summits", "bam"} {
		if _, ok := colIdx[col]; !ok {
			return nil, errors.Errorf("sample sheet %s: missing column %q", path, col)
		}
	}
	fixed := map[string]bool{"name": true, "genome": true, "peaks": true, "summits": true, "bam": true}

	samples := make([]Sample, 0, len(records)-1)
	seen := map[string]bool{}
	for lineno, rec := range records[1:] {
		s := Sample{
			Name:         rec[colIdx["name"]],
			Genome:       rec[colIdx["genome"]],
			Peaks:        rec[colIdx["peaks"]],
			Summits:      rec[colIdx["summits"]],
			AlignedReads: rec[colIdx["bam"]],
		}
		if s.Name == "" {
			return nil, errors.Errorf("sample sheet %s: row %d has no name", path, lineno+2)
		}
		if seen[s.Name] {
			return nil, errors.Errorf("sample sheet %s: duplicate sample %q", path, s.Name)
		}
		seen[s.Name] = true
		for i, col := range header {
			if fixed[col] || rec[i] == "" {
				continue
			}
			if s.Metadata == nil {
				s.Metadata = map[string]string{}
			}
			s.Metadata[col] = rec[i]
		}
		samples = append(samples, s)
	}
	return samples, nil
}
