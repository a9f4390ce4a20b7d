package interval

import (
	"bufio"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ReadBED reads the first three columns of a BED-like file into a merged
// Set.  Extra columns (name, score, strand, ...) are ignored.  Input need
// not be sorted; a track/browser or #-comment line is skipped.  Gzipped
// input is handled transparently based on the path suffix.
func ReadBED(path string) (*Set, error) {
	intervals, err := ReadBEDIntervals(path)
	if err != nil {
		return nil, err
	}
	return NewSet(intervals), nil
}

// ReadBEDIntervals is ReadBED without the merge: it returns the raw interval
// list in file order, preserving overlapping and duplicate intervals.  The
// support scorer depends on raw interval-level counts.
func ReadBEDIntervals(path string) ([]Interval, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, errors.Wrapf(err, "interval.ReadBED: %s", path)
		}
		reader = gz
	}
	intervals, err := readBED(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "interval.ReadBED: %s", path)
	}
	return intervals, nil
}

func readBED(reader io.Reader) ([]Interval, error) {
	scanner := bufio.NewScanner(reader)
	var tokens [3][]byte
	var intervals []Interval
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) > 0 && curLine[0] == '#' {
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		chrom := string(tokens[0])
		if chrom == "track" || chrom == "browser" {
			continue
		}
		if nToken != 3 {
			return nil, errors.Errorf("line %d has fewer tokens than expected", lineIdx)
		}
		start, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineIdx)
		}
		end, err := strconv.Atoi(string(tokens[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineIdx)
		}
		if start < 0 || end < start || end >= posTypeMax {
			return nil, errors.Errorf("invalid coordinate pair on line %d", lineIdx)
		}
		intervals = append(intervals, Interval{Chrom: chrom, Start: PosType(start), End: PosType(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return intervals, nil
}

// WriteBED persists the set as a 3-column BED file.  A merged set written
// with WriteBED and reread with ReadBED reproduces an identical set.
func (s *Set) WriteBED(path string) (err error) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := tsv.NewWriter(out.Writer(ctx))
	for _, iv := range s.Intervals() {
		w.WriteString(iv.Chrom)
		w.WriteUint32(uint32(iv.Start))
		w.WriteUint32(uint32(iv.End))
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
