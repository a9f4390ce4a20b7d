// Package fasta reads reference sequences in FASTA format and computes the
// per-region nucleotide covariates (GC fraction, length) used by
// covariate-regression normalization.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
)

// Reference holds a set of named sequences in memory.  Sequence names are
// the characters after '>' up to the first space; anything after a space is
// ignored.
type Reference struct {
	seqs     map[string]string
	seqNames []string
}

// New reads all FASTA data from r into memory.
func New(r io.Reader) (*Reference, error) {
	ref := &Reference{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1024*1024*300)
	var seqName string
	var seq strings.Builder
	flush := func() error {
		if seq.Len() == 0 {
			return nil
		}
		if seqName == "" {
			return errors.New("fasta: sequence data before first header")
		}
		ref.seqs[seqName] = seq.String()
		ref.seqNames = append(ref.seqNames, seqName)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			seqName = strings.SplitN(line[1:], " ", 2)[0]
			continue
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: read")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ref, nil
}

// FromPath reads a FASTA file from path.
func FromPath(path string) (*Reference, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	ref, err := New(in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "fasta: %s", path)
	}
	return ref, nil
}

// Get returns the bases of seqName in [start, end), 0-based half-open.
func (f *Reference) Get(seqName string, start, end interval.PosType) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("fasta: sequence not found: %s", seqName)
	}
	if start < 0 || end <= start || int(end) > len(s) {
		return "", errors.Errorf("fasta: invalid range %d-%d for sequence %s (length %d)",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len returns the length of the named sequence.
func (f *Reference) Len(seqName string) (interval.PosType, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not found: %s", seqName)
	}
	return interval.PosType(len(s)), nil
}

// SeqNames returns all sequence names in order of appearance.
func (f *Reference) SeqNames() []string {
	out := make([]string, len(f.seqNames))
	copy(out, f.seqNames)
	return out
}

// Sizes returns sequence lengths keyed by name, in the shape Slop and
// Shuffle expect.
func (f *Reference) Sizes() map[string]interval.PosType {
	sizes := make(map[string]interval.PosType, len(f.seqs))
	for name, s := range f.seqs {
		sizes[name] = interval.PosType(len(s))
	}
	return sizes
}

// GC returns the GC fraction of the bases covered by iv.  Counting is
// case-insensitive; ambiguous bases (N and friends) are excluded from the
// denominator.  A region of only ambiguous bases has GC 0.
func (f *Reference) GC(iv interval.Interval) (float64, error) {
	seq, err := f.Get(iv.Chrom, iv.Start, iv.End)
	if err != nil {
		return 0, err
	}
	var gc, acgt int
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'G', 'C', 'g', 'c':
			gc++
			acgt++
		case 'A', 'T', 'a', 't':
			acgt++
		}
	}
	if acgt == 0 {
		return 0, nil
	}
	return float64(gc) / float64(acgt), nil
}
