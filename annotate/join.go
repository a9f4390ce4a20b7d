package annotate

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/atacseq/regionmatrix"
)

// JoinIntegrityError reports a left-join that would change the row count
// of the annotated matrix, e.g. because an annotation table carries
// duplicate region keys.
type JoinIntegrityError struct {
	Table  string
	Detail string
}

func (e *JoinIntegrityError) Error() string {
	return fmt.Sprintf("annotate: %s join would change row count: %s", e.Table, e.Detail)
}

// RegionLabel keys one string annotation by region coordinate.
type RegionLabel struct {
	Region string
	Label  string
}

// RegionValue keys one numeric annotation by region coordinate.
type RegionValue struct {
	Region string
	Value  float64
}

// Annotated is the coverage (typically GC-corrected) matrix with all
// per-region annotation columns and derived statistics attached.  Slices
// are parallel to the matrix rows.
type Annotated struct {
	Matrix   *regionmatrix.Matrix
	Genes    []string
	Strand   []string
	Distance []float64
	Context  []string
	State    []string
	Support  []float64
	Stats    regionmatrix.Stats
}

// Annotate left-joins the gene, context, state and support tables, in that
// order, onto the matrix rows by region key and appends the derived row
// statistics.  Rows absent from a table keep placeholder values ("." or
// NaN).  Duplicate keys in any table are a JoinIntegrityError since a
// relational left-join would duplicate the affected rows.
func Annotate(m *regionmatrix.Matrix, genes []GeneAnnotation, context, state []RegionLabel, support []RegionValue) (_ *Annotated, err error) {
	n := m.NRows()
	a := &Annotated{
		Matrix:   m,
		Genes:    make([]string, n),
		Strand:   make([]string, n),
		Distance: make([]float64, n),
		Context:  make([]string, n),
		State:    make([]string, n),
		Support:  make([]float64, n),
	}

	geneByRegion := map[string]GeneAnnotation{}
	for _, g := range genes {
		if _, ok := geneByRegion[g.Region]; ok {
			return nil, &JoinIntegrityError{Table: "gene", Detail: "duplicate key " + g.Region}
		}
		geneByRegion[g.Region] = g
	}
	contextByRegion, err := labelMap("genomic_context", context)
	if err != nil {
		return nil, err
	}
	stateByRegion, err := labelMap("chromatin_state", state)
	if err != nil {
		return nil, err
	}
	supportByRegion := map[string]float64{}
	for _, v := range support {
		if _, ok := supportByRegion[v.Region]; ok {
			return nil, &JoinIntegrityError{Table: "support", Detail: "duplicate key " + v.Region}
		}
		supportByRegion[v.Region] = v.Value
	}

	for i := 0; i < n; i++ {
		key := m.RowKey(i)
		if g, ok := geneByRegion[key]; ok {
			a.Genes[i], a.Strand[i], a.Distance[i] = g.Genes, g.Strand, g.Distance
		} else {
			a.Genes[i], a.Strand[i], a.Distance[i] = ".", ".", math.NaN()
		}
		if label, ok := contextByRegion[key]; ok {
			a.Context[i] = label
		} else {
			a.Context[i] = "."
		}
		if label, ok := stateByRegion[key]; ok {
			a.State[i] = label
		} else {
			a.State[i] = "."
		}
		if v, ok := supportByRegion[key]; ok {
			a.Support[i] = v
		} else {
			a.Support[i] = math.NaN()
		}
	}
	a.Stats = m.RowStats()
	return a, nil
}

func labelMap(table string, labels []RegionLabel) (map[string]string, error) {
	out := map[string]string{}
	for _, l := range labels {
		if _, ok := out[l.Region]; ok {
			return nil, &JoinIntegrityError{Table: table, Detail: "duplicate key " + l.Region}
		}
		out[l.Region] = l.Label
	}
	return out, nil
}

// WriteCSV writes the annotated matrix with one region per row: the
// coordinate key columns, the sample columns, the annotation columns in
// join order, and the derived statistics.
func (a *Annotated) WriteCSV(path string) (err error) {
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
	header := append([]string{"region", "chrom", "start", "end"}, a.Matrix.Cols()...)
	header = append(header,
		"gene_name", "strand", "distance", "genomic_context", "chromatin_state", "support",
		"mean", "variance", "std_deviation", "dispersion", "qv2", "amplitude")
	if err := w.Write(header); err != nil {
		return err
	}
	record := make([]string, 0, len(header))
	for i, iv := range a.Matrix.Rows() {
		record = record[:0]
		record = append(record, iv.RegionString(), iv.Chrom,
			strconv.FormatInt(int64(iv.Start), 10), strconv.FormatInt(int64(iv.End), 10))
		for j := 0; j < a.Matrix.NCols(); j++ {
			record = append(record, formatFloat(a.Matrix.At(i, j)))
		}
		record = append(record, a.Genes[i], a.Strand[i], formatFloat(a.Distance[i]),
			a.Context[i], a.State[i], formatFloat(a.Support[i]),
			formatFloat(a.Stats.Mean[i]), formatFloat(a.Stats.Variance[i]),
			formatFloat(a.Stats.StdDeviation[i]), formatFloat(a.Stats.Dispersion[i]),
			formatFloat(a.Stats.QV2[i]), formatFloat(a.Stats.Amplitude[i]))
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
