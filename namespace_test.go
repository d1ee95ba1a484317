package pomps_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func TestNamespace(t *testing.T) {
	date := time.Date(2023, 1, 18, 12, 0, 5, 123456789, time.UTC)
	ns := pomps.NewNamespace("data", "example", date)

	require.Equal(t, filepath.Join("data", "example", "20230118-120005-123456"), ns.String())
	require.Equal(t, filepath.Join("data", "example", "20230118-120005-123456", "people", "source_data.jsonl"), ns.Path("people", "source_data.jsonl"))
}

func TestExecutionDate_RoundTrip(t *testing.T) {
	date := time.Date(2023, 1, 18, 12, 0, 0, 7000, time.UTC)
	s := pomps.FormatExecutionDate(date)
	require.Equal(t, "20230118-120000-000007", s)

	got, err := pomps.ParseExecutionDate(s)
	require.NoError(t, err)
	require.True(t, date.Equal(got))
}

func TestParseExecutionDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "20230118", "20230118-120000", "20230118-120000-12", "2023x118-120000-000000", "20230118-120000-abcdef"} {
		_, err := pomps.ParseExecutionDate(s)
		require.Error(t, err, s)
	}
}
