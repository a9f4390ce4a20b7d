package sample_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/atacseq/sample"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "sample")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	present := filepath.Join(tempDir, "a.bam")
	require.NoError(t, ioutil.WriteFile(present, []byte("x"), 0644))

	samples := []sample.Sample{
		{Name: "a", AlignedReads: present},
		{Name: "b", AlignedReads: filepath.Join(tempDir, "nope.bam")},
		{Name: "c"},
	}
	usable, skipped := sample.Partition(samples, sample.AlignedReads)
	require.Len(t, usable, 1)
	expect.EQ(t, usable[0].Name, "a")
	require.Len(t, skipped, 2)
	expect.EQ(t, skipped[0].Sample.Name, "b")
	expect.EQ(t, skipped[1].Sample.Name, "c")

	var missing *sample.MissingInputError
	ok := false
	if m, isMissing := skipped[0].Reason.(*sample.MissingInputError); isMissing {
		missing, ok = m, true
	}
	require.True(t, ok, "reason must be a MissingInputError")
	expect.EQ(t, missing.Kind, "alignments")
	assert.Contains(t, missing.Error(), "nope.bam")

	assert.Equal(t, []string{"a", "b", "c"}, sample.Names(samples))
}

func TestReadSheet(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "sample")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	path := filepath.Join(tempDir, "sheet.csv")
	require.NoError(t, ioutil.WriteFile(path, []byte(
		"name,genome,peaks,summits,bam,condition\n"+
			"a,hg19,a_peaks.bed,a_summits.bed,a.bam,treated\n"+
			"b,hg19,b_peaks.bed,,b.bam,\n"), 0644))

	samples, err := sample.ReadSheet(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	expect.EQ(t, samples[0].Name, "a")
	expect.EQ(t, samples[0].Peaks, "a_peaks.bed")
	expect.EQ(t, samples[0].Summits, "a_summits.bed")
	expect.EQ(t, samples[0].AlignedReads, "a.bam")
	expect.EQ(t, samples[0].Metadata["condition"], "treated")
	expect.EQ(t, samples[1].Summits, "")
	assert.Nil(t, samples[1].Metadata)
}

func TestReadSheetErrors(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "sample")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	write := func(name, contents string) string {
		path := filepath.Join(tempDir, name)
		require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
		return path
	}

	_, err = sample.ReadSheet(write("nocol.csv",
		"name,genome,peaks\na,hg19,a.bed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bam")

	_, err = sample.ReadSheet(write("dup.csv",
		"name,genome,peaks,summits,bam\n"+
			"a,hg19,p,s,b\n"+
			"a,hg19,p,s,b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = sample.ReadSheet(write("empty.csv", "name,genome,peaks,summits,bam\n"))
	require.Error(t, err)
}
