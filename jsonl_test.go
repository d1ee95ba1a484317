package pomps_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func collectLines(t *testing.T, s string) []string {
	t.Helper()
	var out []string
	for line, err := range pomps.Lines(context.Background(), strings.NewReader(s)) {
		require.NoError(t, err)
		out = append(out, string(line))
	}
	return out
}

func TestLines(t *testing.T) {
	require.Equal(t, []string{"a", "", "b"}, collectLines(t, "a\n\nb\n"))
	require.Equal(t, []string{"a", "b"}, collectLines(t, "a\r\nb"))
	require.Equal(t, []string{" a\t"}, collectLines(t, " a\t\n"))
	require.Nil(t, collectLines(t, ""))
}

func TestLines_LongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	require.Equal(t, []string{long, "tail"}, collectLines(t, long+"\n"+"tail"))
}

func TestLines_StopsEarly(t *testing.T) {
	var got []string
	for line, err := range pomps.Lines(context.Background(), strings.NewReader("a\nb\nc\n")) {
		require.NoError(t, err)
		got = append(got, string(line))
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestLines_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for _, err := range pomps.Lines(ctx, strings.NewReader("a\n")) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], context.Canceled)
}
