package pomps_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func rangesOf(m pomps.BucketMap) [][2]string {
	out := make([][2]string, len(m))
	for i, r := range m {
		out[i] = [2]string{r.Min, r.Max}
	}
	return out
}

// requireCoverage asserts that every key falls in exactly one range and the
// ranges ascend without overlapping.
func requireCoverage(t *testing.T, m pomps.BucketMap, keys []string) {
	t.Helper()
	for i := 1; i < len(m); i++ {
		require.Less(t, m[i-1].Max, m[i].Min, "ranges %d and %d overlap", i-1, i)
	}
	for i, r := range m {
		require.LessOrEqual(t, r.Min, r.Max, "range %d is inverted", i)
		require.Equal(t, r.Min+"_"+r.Max, r.ID)
	}
	for _, k := range keys {
		hits := 0
		for _, r := range m {
			if r.Contains(k) {
				hits++
			}
		}
		require.Equal(t, 1, hits, "key %q", k)

		i, ok := m.Lookup(k)
		require.True(t, ok, "key %q", k)
		require.True(t, m[i].Contains(k))
	}
}

// =============================================================================
// BuildBucketMap
// =============================================================================

func TestBuildBucketMap_EvenWindows(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	m, err := pomps.BuildBucketMap(keys, 3)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "c"}, {"d", "f"}, {"g", "i"}, {"j", "j"}}, rangesOf(m))
	requireCoverage(t, m, keys)
}

func TestBuildBucketMap_ExactMultiple(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	m, err := pomps.BuildBucketMap(keys, 2)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "b"}, {"c", "d"}}, rangesOf(m))
}

func TestBuildBucketMap_HotKeyCollapses(t *testing.T) {
	keys := []string{"a", "h", "h", "h", "h", "h", "h", "z"}
	m, err := pomps.BuildBucketMap(keys, 4)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "h"}, {"z", "z"}}, rangesOf(m))
	requireCoverage(t, m, keys)
}

func TestBuildBucketMap_SingleKeyWindow(t *testing.T) {
	keys := []string{"x", "x", "x", "x", "x", "x", "y"}
	m, err := pomps.BuildBucketMap(keys, 3)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"x", "x"}, {"y", "y"}}, rangesOf(m))
	requireCoverage(t, m, keys)
}

func TestBuildBucketMap_KeySpanningWindowBoundary(t *testing.T) {
	keys := []string{"a", "b", "b", "c", "d", "e"}
	m, err := pomps.BuildBucketMap(keys, 3)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "b"}, {"c", "d"}, {"e", "e"}}, rangesOf(m))
	requireCoverage(t, m, keys)
}

func TestBuildBucketMap_MoreBucketsThanKeys(t *testing.T) {
	m, err := pomps.BuildBucketMap([]string{"a", "b"}, 5)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "a"}, {"b", "b"}}, rangesOf(m))
}

func TestBuildBucketMap_SingleBucket(t *testing.T) {
	m, err := pomps.BuildBucketMap([]string{"a", "b", "c"}, 1)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"a", "c"}}, rangesOf(m))
}

func TestBuildBucketMap_Empty(t *testing.T) {
	m, err := pomps.BuildBucketMap(nil, 3)
	require.NoError(t, err)
	require.Empty(t, m)
	_, ok := m.Lookup("a")
	require.False(t, ok)
}

func TestBuildBucketMap_InvalidBucketCount(t *testing.T) {
	_, err := pomps.BuildBucketMap([]string{"a"}, 0)
	require.ErrorIs(t, err, pomps.ErrInvalidBucketCount)
}

func TestBuildBucketMap_CoverageSkewedKeys(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, buckets := range []int{1, 2, 3, 7, 16, 100} {
		keys := make([]string, 0, 2000)
		for range 2000 {
			// Zipf-like skew: a handful of keys dominate.
			keys = append(keys, fmt.Sprintf("k%03d", int(rng.ExpFloat64()*20)%400))
		}
		slices.Sort(keys)

		m, err := pomps.BuildBucketMap(keys, buckets)
		require.NoError(t, err)
		require.NotEmpty(t, m)
		requireCoverage(t, m, keys)
	}
}

func TestBucketMap_LookupBetweenRanges(t *testing.T) {
	m := pomps.BucketMap{
		{ID: "b_c", Min: "b", Max: "c"},
		{ID: "f_g", Min: "f", Max: "g"},
	}
	for key, want := range map[string]int{"b": 0, "bz": 0, "c": 0, "f": 1, "g": 1} {
		i, ok := m.Lookup(key)
		require.True(t, ok, key)
		require.Equal(t, want, i, key)
	}
	for _, key := range []string{"a", "d", "e", "h"} {
		_, ok := m.Lookup(key)
		require.False(t, ok, key)
	}
}

// =============================================================================
// ScanBucketMap
// =============================================================================

func TestScanBucketMap(t *testing.T) {
	src := writeLines(t, filepath.Join(t.TempDir(), "people.jsonl"), people...)

	m, err := pomps.ScanBucketMap(context.Background(), src, pomps.FieldText("_id"), 2)
	require.NoError(t, err)
	require.Equal(t, [][2]string{{"0", "0"}, {"1", "2"}}, rangesOf(m))
	requireCoverage(t, m, []string{"0", "1", "2"})
}

func TestScanBucketMap_KeyError(t *testing.T) {
	src := writeLines(t, filepath.Join(t.TempDir(), "people.jsonl"), `{"_id":true}`)

	_, err := pomps.ScanBucketMap(context.Background(), src, pomps.FieldText("_id"), 2)
	require.ErrorIs(t, err, pomps.ErrInvalidKeyType)
}

// =============================================================================
// Partitioners
// =============================================================================

func TestRangePartitioner(t *testing.T) {
	p := pomps.NewRangePartitioner(pomps.BucketMap{{ID: "a_b", Min: "a", Max: "b"}, {ID: "c_d", Min: "c", Max: "d"}})
	require.Equal(t, 2, p.Buckets())

	i, err := p.Bucket("c")
	require.NoError(t, err)
	require.Equal(t, 1, i)

	_, err = p.Bucket("z")
	require.ErrorIs(t, err, pomps.ErrBucketMiss)
}

func TestHashPartitioner(t *testing.T) {
	p, err := pomps.NewHashPartitioner(7)
	require.NoError(t, err)
	require.Equal(t, 7, p.Buckets())

	for i := range 100 {
		key := fmt.Sprint(i)
		b, err := p.Bucket(key)
		require.NoError(t, err)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, 7)

		again, _ := p.Bucket(key)
		require.Equal(t, b, again)
	}

	_, err = pomps.NewHashPartitioner(0)
	require.ErrorIs(t, err, pomps.ErrInvalidBucketCount)
}

func TestParsePartitioning(t *testing.T) {
	p, err := pomps.ParsePartitioning("HASH")
	require.NoError(t, err)
	require.Equal(t, pomps.PartitionHash, p)
	require.Equal(t, "hash", p.String())

	p, err = pomps.ParsePartitioning("range")
	require.NoError(t, err)
	require.Equal(t, pomps.PartitionRange, p)

	_, err = pomps.ParsePartitioning("random")
	require.Error(t, err)
}
