package normalize

import (
	"encoding/csv"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RscriptBackend shells out to Rscript, using the preprocessCore package
// for quantile normalization and cqn for covariate regression.  Matrices
// cross the process boundary as headerless CSV files in a temporary
// directory.
type RscriptBackend struct {
	// Rscript is the interpreter to invoke.  Empty means "Rscript" from
	// PATH.
	Rscript string
}

func (b *RscriptBackend) command() string {
	if b.Rscript == "" {
		return "Rscript"
	}
	return b.Rscript
}

// Available reports whether the Rscript interpreter can be found.  It does
// not check that the R packages are installed.
func (b *RscriptBackend) Available() bool {
	_, err := exec.LookPath(b.command())
	return err == nil
}

const quantileScript = `args <- commandArgs(trailingOnly = TRUE)
suppressMessages(library(preprocessCore))
x <- as.matrix(read.csv(args[1], header = FALSE))
y <- normalize.quantiles(x)
write.table(y, args[2], sep = ",", row.names = FALSE, col.names = FALSE)
`

const cqnScript = `args <- commandArgs(trailingOnly = TRUE)
suppressMessages(library(cqn))
x <- as.matrix(read.csv(args[1], header = FALSE))
cov <- read.csv(args[2], header = FALSE)
fit <- cqn(x, x = cov[[1]], lengths = cov[[2]], verbose = FALSE)
y <- fit$y + fit$offset
write.table(y, args[3], sep = ",", row.names = FALSE, col.names = FALSE)
`

func (b *RscriptBackend) QuantileNormalize(x *mat.Dense) (*mat.Dense, error) {
	dir, err := ioutil.TempDir("", "rscript-qnorm")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	inPath := filepath.Join(dir, "in.csv")
	outPath := filepath.Join(dir, "out.csv")
	if err := writeDenseCSV(inPath, x); err != nil {
		return nil, err
	}
	if err := b.run(dir, quantileScript, inPath, outPath); err != nil {
		return nil, err
	}
	return readDenseCSV(outPath)
}

func (b *RscriptBackend) CovariateRegress(x *mat.Dense, gc, length []float64) (*mat.Dense, error) {
	r, _ := x.Dims()
	if len(gc) != r || len(length) != r {
		return nil, errors.Errorf("covariate length mismatch: %d rows, %d gc, %d length",
			r, len(gc), len(length))
	}
	dir, err := ioutil.TempDir("", "rscript-cqn")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	inPath := filepath.Join(dir, "in.csv")
	covPath := filepath.Join(dir, "cov.csv")
	outPath := filepath.Join(dir, "out.csv")
	if err := writeDenseCSV(inPath, x); err != nil {
		return nil, err
	}
	covRows := make([][]float64, r)
	for i := 0; i < r; i++ {
		covRows[i] = []float64{gc[i], length[i]}
	}
	if err := writeRowsCSV(covPath, covRows); err != nil {
		return nil, err
	}
	if err := b.run(dir, cqnScript, inPath, covPath, outPath); err != nil {
		return nil, err
	}
	return readDenseCSV(outPath)
}

func (b *RscriptBackend) run(dir, script string, args ...string) error {
	scriptPath := filepath.Join(dir, "script.R")
	if err := ioutil.WriteFile(scriptPath, []byte(script), 0644); err != nil {
		return err
	}
	cmd := exec.Command(b.command(), append([]string{scriptPath}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", b.command(), string(out))
	}
	return nil
}

func writeDenseCSV(path string, x *mat.Dense) error {
	r, c := x.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = x.At(i, j)
		}
		rows[i] = row
	}
	return writeRowsCSV(path, rows)
}

func writeRowsCSV(path string, rows [][]float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	record := make([]string, 0, 8)
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func readDenseCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() // nolint: errcheck
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s: empty matrix", path)
	}
	r, c := len(records), len(records[0])
	out := mat.NewDense(r, c, nil)
	for i, record := range records {
		if len(record) != c {
			return nil, errors.Errorf("%s: ragged row %d", path, i)
		}
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d col %d", path, i, j)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
