package pomps_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// people is the five-record source used across grouping tests. Three records
// share _id 0 and are listed in the order they must keep after grouping.
var people = []string{
	`{"_id":2,"name":"joe j","type":"player"}`,
	`{"_id":0,"name":"bob smith","type":"player"}`,
	`{"_id":0,"name":"robert smith","type":"pimp"}`,
	`{"_id":1,"name":"bill b","type":"witness"}`,
	`{"_id":0,"name":"rsmith","type":"witness"}`,
}

// peopleGrouped is people grouped by _id.
const peopleGrouped = `{"group_key":"0","data":[{"_id":0,"name":"bob smith","type":"player"},{"_id":0,"name":"robert smith","type":"pimp"},{"_id":0,"name":"rsmith","type":"witness"}]}
{"group_key":"1","data":[{"_id":1,"name":"bill b","type":"witness"}]}
{"group_key":"2","data":[{"_id":2,"name":"joe j","type":"player"}]}
`

// writeLines writes lines joined by newlines without a trailing newline, the
// way a loader that does not terminate its last line would.
func writeLines(t *testing.T, path string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	s := strings.TrimSuffix(readFile(t, path), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// titleCase upper-cases the first letter of every space-separated word and
// lower-cases the rest.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
