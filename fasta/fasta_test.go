package fasta_test

import (
	"strings"
	"testing"

	"github.com/grailbio/atacseq/fasta"
	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastaData = ">chr1 test sequence\nACGTAC\nGTACGT\n>chr2\nGGCCNNNNat\n"

func TestGetLenNames(t *testing.T) {
	ref, err := fasta.New(strings.NewReader(fastaData))
	require.NoError(t, err)

	assert.Equal(t, []string{"chr1", "chr2"}, ref.SeqNames())

	n, err := ref.Len("chr1")
	require.NoError(t, err)
	expect.EQ(t, n, interval.PosType(12))

	got, err := ref.Get("chr1", 4, 8)
	require.NoError(t, err)
	expect.EQ(t, got, "ACGT")

	_, err = ref.Get("chr3", 0, 1)
	assert.Error(t, err)
	_, err = ref.Get("chr1", 8, 8)
	assert.Error(t, err)
	_, err = ref.Get("chr1", 0, 13)
	assert.Error(t, err)

	sizes := ref.Sizes()
	expect.EQ(t, sizes["chr2"], interval.PosType(10))
}

func TestGC(t *testing.T) {
	ref, err := fasta.New(strings.NewReader(fastaData))
	require.NoError(t, err)

	tests := []struct {
		iv   interval.Interval
		want float64
	}{
		{interval.Interval{Chrom: "chr1", Start: 0, End: 12}, 0.5},
		{interval.Interval{Chrom: "chr1", Start: 1, End: 3}, 1.0},
		{interval.Interval{Chrom: "chr2", Start: 0, End: 10}, 4.0 / 6.0}, // Ns excluded
		{interval.Interval{Chrom: "chr2", Start: 4, End: 8}, 0.0},        // all N
		{interval.Interval{Chrom: "chr2", Start: 8, End: 10}, 0.0},       // lowercase at
	}
	for _, tt := range tests {
		got, err := ref.GC(tt.iv)
		require.NoError(t, err)
		expect.EQ(t, got, tt.want, "region %v", tt.iv)
	}
}
