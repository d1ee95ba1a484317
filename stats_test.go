package pomps_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func TestStats_NewStats(t *testing.T) {
	stats := pomps.NewStats(100, 90, 30, 10, 80, 75, 2)
	require.Equal(t, int64(100), stats.Loaded())
	require.Equal(t, int64(90), stats.Scattered())
	require.Equal(t, int64(30), stats.Grouped())
	require.Equal(t, int64(10), stats.Filtered())
	require.Equal(t, int64(80), stats.Transformed())
	require.Equal(t, int64(75), stats.Merged())
	require.Equal(t, int64(2), stats.Skipped())
}

func TestStats_MarshalJSON(t *testing.T) {
	stats := pomps.NewStats(100, 90, 30, 10, 80, 75, 2)
	data, err := stats.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"loaded":100,"scattered":90,"grouped":30,"filtered":10,"transformed":80,"merged":75,"skipped":2}`, string(data))
}

func TestStats_UnmarshalJSON(t *testing.T) {
	var stats pomps.Stats
	require.NoError(t, json.Unmarshal([]byte(`{"loaded":3,"grouped":1,"skipped":4}`), &stats))
	require.Equal(t, int64(3), stats.Loaded())
	require.Equal(t, int64(1), stats.Grouped())
	require.Equal(t, int64(4), stats.Skipped())
	require.Zero(t, stats.Merged())
}

func TestStats_UnmarshalJSON_Error(t *testing.T) {
	stats := &pomps.Stats{}
	err := stats.UnmarshalJSON([]byte(`invalid json`))
	require.Error(t, err)
}
