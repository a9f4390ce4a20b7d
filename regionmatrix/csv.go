package regionmatrix

import (
	"encoding/csv"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/grailbio/atacseq/interval"
)

// csv column layout: region,chrom,start,end,<samples...>.  The leading
// columns are parsed back out of the region key on read, so a written
// matrix rereads identically.
const nKeyCols = 4

// WriteCSV persists the matrix.  The write is a whole-file overwrite.
func (m *Matrix) WriteCSV(path string) (err error) {
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
	w := csv.NewWriter(out.Writer(ctx))
	header := append([]string{"region", "chrom", "start", "end"}, m.cols...)
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, nKeyCols+len(m.cols))
	for i, iv := range m.rows {
		record[0] = iv.RegionString()
		record[1] = iv.Chrom
		record[2] = strconv.Itoa(int(iv.Start))
		record[3] = strconv.Itoa(int(iv.End))
		for j, v := range m.data[i] {
			record[nKeyCols+j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads a matrix written by WriteCSV.
func ReadCSV(path string) (*Matrix, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r := csv.NewReader(in.Reader(ctx))
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "regionmatrix: %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("regionmatrix: %s: empty file", path)
	}
	header := records[0]
	if len(header) < nKeyCols || header[0] != "region" {
		return nil, errors.Errorf("regionmatrix: %s: unexpected header", path)
	}
	cols := header[nKeyCols:]
	rows := make([]interval.Interval, 0, len(records)-1)
	for _, rec := range records[1:] {
		iv, err := interval.ParseRegion(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "regionmatrix: %s", path)
		}
		rows = append(rows, iv)
	}
	m, err := New(rows, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "regionmatrix: %s", path)
	}
	for i, rec := range records[1:] {
		if len(rec) != nKeyCols+len(cols) {
			return nil, errors.Errorf("regionmatrix: %s: row %d has %d fields, want %d",
				path, i+1, len(rec), nKeyCols+len(cols))
		}
		for j := 0; j < len(cols); j++ {
			v, err := strconv.ParseFloat(rec[nKeyCols+j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "regionmatrix: %s: row %d", path, i+1)
			}
			m.data[i][j] = v
		}
	}
	return m, nil
}
