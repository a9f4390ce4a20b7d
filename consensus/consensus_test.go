package consensus_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/atacseq/consensus"
	"github.com/grailbio/atacseq/interval"
	"github.com/grailbio/atacseq/sample"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBED(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

// fourSamples writes four identical 3-region peak files and returns the
// sample list.
func fourSamples(t *testing.T, dir string) []sample.Sample {
	t.Helper()
	peaks := "chr1\t100\t300\nchr1\t280\t400\nchr2\t50\t150\n"
	samples := make([]sample.Sample, 4)
	for i := range samples {
		name := fmt.Sprintf("s%d", i+1)
		samples[i] = sample.Sample{
			Name:  name,
			Peaks: writeBED(t, dir, name+"_peaks.bed", peaks),
		}
	}
	return samples
}

func TestBuildConsensus(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "consensus")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	samples := fourSamples(t, tempDir)
	opts := consensus.DefaultOpts
	opts.RegionType = consensus.Peaks

	sites, skipped, err := consensus.Build(samples, opts)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []interval.Interval{
		{Chrom: "chr1", Start: 100, End: 400},
		{Chrom: "chr2", Start: 50, End: 150},
	}, sites.Intervals())
}

func TestBuildFiltersBlacklistAndContigs(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "consensus")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	peaks := "chr1\t100\t300\nchr1\t1000\t1200\nchrM\t10\t90\n"
	samples := []sample.Sample{{
		Name:  "s1",
		Peaks: writeBED(t, tempDir, "s1_peaks.bed", peaks),
	}}
	opts := consensus.Opts{
		RegionType:    consensus.Peaks,
		Blacklist:     interval.NewSet([]interval.Interval{{Chrom: "chr1", Start: 1100, End: 1150}}),
		ExcludeChroms: []string{"chrM"},
	}
	sites, _, err := consensus.Build(samples, opts)
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{{Chrom: "chr1", Start: 100, End: 300}}, sites.Intervals())

	// Contract: no consensus region overlaps the blacklist or sits on an
	// excluded contig.
	for _, iv := range sites.Intervals() {
		assert.False(t, opts.Blacklist.AnyOverlap(iv.Chrom, iv.Start, iv.End))
		assert.NotEqual(t, "chrM", iv.Chrom)
	}
}

func TestBuildSummitsExtension(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "consensus")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	samples := []sample.Sample{{
		Name:    "s1",
		Summits: writeBED(t, tempDir, "s1_summits.bed", "chr1\t500\t501\n"),
	}}
	opts := consensus.Opts{
		RegionType: consensus.Summits,
		Extension:  250,
		ChromSizes: map[string]interval.PosType{"chr1": 600},
	}
	sites, _, err := consensus.Build(samples, opts)
	require.NoError(t, err)
	assert.Equal(t, []interval.Interval{{Chrom: "chr1", Start: 250, End: 600}}, sites.Intervals())
}

func TestBuildSkipsMissingAndFailsOnZero(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "consensus")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	good := sample.Sample{
		Name:  "good",
		Peaks: writeBED(t, tempDir, "good_peaks.bed", "chr1\t0\t10\n"),
	}
	bad := sample.Sample{Name: "bad", Peaks: filepath.Join(tempDir, "missing.bed")}
	opts := consensus.Opts{RegionType: consensus.Peaks}

	sites, skipped, err := consensus.Build([]sample.Sample{good, bad}, opts)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	expect.EQ(t, skipped[0].Sample.Name, "bad")
	expect.EQ(t, sites.NumIntervals(), 1)

	_, _, err = consensus.Build([]sample.Sample{bad}, opts)
	assert.Error(t, err)
}

func TestSupport(t *testing.T) {
	tempDir, err := ioutil.TempDir("", "support")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir) // nolint: errcheck

	samples := fourSamples(t, tempDir)
	// s4 only covers chr1.
	samples[3].Peaks = writeBED(t, tempDir, "s4_peaks.bed", "chr1\t100\t300\nchr1\t280\t400\n")
	opts := consensus.Opts{RegionType: consensus.Peaks}

	sites, _, err := consensus.Build(samples, opts)
	require.NoError(t, err)
	table, skipped, err := consensus.ComputeSupport(sites, samples, opts)
	require.NoError(t, err)
	assert.Empty(t, skipped)

	// Both sample peaks in chr1 overlap the merged region: raw count 2.
	c, err := table.Count(0, "s1")
	require.NoError(t, err)
	expect.EQ(t, c, 2)

	support := table.Support()
	require.Len(t, support, 2)
	expect.EQ(t, support[0], 1.0) // every sample overlaps chr1:100-400
	expect.EQ(t, support[1], 0.75)
	for _, v := range support {
		assert.True(t, v >= 0 && v <= 1)
	}

	// The mask sums raw indicators over the subset.
	mask, err := table.SupportedMask([]string{"s4"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, mask)
	mask, err = table.SupportedMask([]string{"s1", "s4"})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, mask)

	_, err = table.SupportedMask([]string{"nope"})
	assert.Error(t, err)

	// Round-trip the artifact shape.
	path := filepath.Join(tempDir, "support.csv")
	require.NoError(t, table.WriteCSV(path))
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "region,chrom,start,end,s1,s2,s3,s4,support")
	assert.Contains(t, string(data), "chr1:100-400,chr1,100,400,2,2,2,2,1")
}

func TestSupportRequiresSites(t *testing.T) {
	_, _, err := consensus.ComputeSupport(nil, nil, consensus.DefaultOpts)
	assert.Error(t, err)
}
