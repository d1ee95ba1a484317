package pomps_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func TestScatter_RangeBucketsKeepSourceOrder(t *testing.T) {
	dir := t.TempDir()
	src := writeLines(t, filepath.Join(dir, "people.jsonl"), people...)
	buckets := filepath.Join(dir, "buckets")
	require.NoError(t, os.Mkdir(buckets, 0o755))

	m, err := pomps.ScanBucketMap(context.Background(), src, pomps.FieldText("_id"), 2)
	require.NoError(t, err)

	n, err := pomps.Scatter(context.Background(), src, buckets, pomps.FieldText("_id"), pomps.NewRangePartitioner(m))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	entries, err := os.ReadDir(buckets)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "0.jsonl", entries[0].Name())
	require.Equal(t, "1.jsonl", entries[1].Name())

	require.Equal(t, []string{people[1], people[2], people[4]}, readLines(t, filepath.Join(buckets, "0.jsonl")))
	require.Equal(t, []string{people[0], people[3]}, readLines(t, filepath.Join(buckets, "1.jsonl")))
}

func TestScatter_ZeroPaddedNames(t *testing.T) {
	dir := t.TempDir()
	lines := make([]string, 0, 12)
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		lines = append(lines, `{"k":"`+k+`"}`)
	}
	src := writeLines(t, filepath.Join(dir, "src.jsonl"), lines...)
	buckets := filepath.Join(dir, "buckets")
	require.NoError(t, os.Mkdir(buckets, 0o755))

	m, err := pomps.ScanBucketMap(context.Background(), src, pomps.FieldKey("k"), 12)
	require.NoError(t, err)
	require.Len(t, m, 12)

	_, err = pomps.Scatter(context.Background(), src, buckets, pomps.FieldKey("k"), pomps.NewRangePartitioner(m))
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(buckets, "00.jsonl"))
	require.FileExists(t, filepath.Join(buckets, "11.jsonl"))
	require.Equal(t, []string{`{"k":"l"}`}, readLines(t, filepath.Join(buckets, "11.jsonl")))
}

func TestScatter_BucketMiss(t *testing.T) {
	dir := t.TempDir()
	src := writeLines(t, filepath.Join(dir, "people.jsonl"), people...)

	m := pomps.BucketMap{{ID: "0_1", Min: "0", Max: "1"}}
	_, err := pomps.Scatter(context.Background(), src, dir, pomps.FieldText("_id"), pomps.NewRangePartitioner(m))
	require.ErrorIs(t, err, pomps.ErrBucketMiss)
}

func TestScatter_InvalidKey(t *testing.T) {
	dir := t.TempDir()
	src := writeLines(t, filepath.Join(dir, "src.jsonl"), `{"_id":"a"}`, `{"_id":null}`)

	p, err := pomps.NewHashPartitioner(2)
	require.NoError(t, err)
	n, err := pomps.Scatter(context.Background(), src, dir, pomps.FieldText("_id"), p)
	require.ErrorIs(t, err, pomps.ErrInvalidKeyType)
	require.Equal(t, int64(1), n)
}

func TestScatter_MalformedLine(t *testing.T) {
	dir := t.TempDir()
	src := writeLines(t, filepath.Join(dir, "src.jsonl"), `{"_id":"a"}`, `{"_id":`)

	p, err := pomps.NewHashPartitioner(2)
	require.NoError(t, err)
	_, err = pomps.Scatter(context.Background(), src, dir, pomps.FieldText("_id"), p)
	require.ErrorIs(t, err, pomps.ErrMalformedRecord)
}

func TestScatter_Canceled(t *testing.T) {
	dir := t.TempDir()
	src := writeLines(t, filepath.Join(dir, "people.jsonl"), people...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := pomps.NewHashPartitioner(2)
	require.NoError(t, err)
	_, err = pomps.Scatter(ctx, src, dir, pomps.FieldText("_id"), p)
	require.ErrorIs(t, err, context.Canceled)
}
