package pomps

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const executionDateLayout = "20060102-150405"

// Namespace is the root directory of one pipeline run. Every artifact of the
// run lives under it at a path derived from a name, so two runs with
// different namespaces never share files.
type Namespace string

// NewNamespace returns <root>/<env>/<execution date>, with the date formatted
// by FormatExecutionDate.
func NewNamespace(root, env string, executionDate time.Time) Namespace {
	return Namespace(filepath.Join(root, env, FormatExecutionDate(executionDate)))
}

// Path returns <namespace>/<name>/<file>.
func (ns Namespace) Path(name, file string) string {
	return filepath.Join(string(ns), name, file)
}

func (ns Namespace) String() string { return string(ns) }

// FormatExecutionDate renders t as YYYYmmdd-HHMMSS-ffffff (microseconds).
func FormatExecutionDate(t time.Time) string {
	return fmt.Sprintf("%s-%06d", t.Format(executionDateLayout), t.Nanosecond()/int(time.Microsecond))
}

// ParseExecutionDate is the inverse of FormatExecutionDate. The result is in UTC.
func ParseExecutionDate(s string) (time.Time, error) {
	i := strings.LastIndexByte(s, '-')
	if i < 0 || len(s)-i-1 != 6 {
		return time.Time{}, fmt.Errorf("pomps: execution date %q: want YYYYmmdd-HHMMSS-ffffff", s)
	}
	t, err := time.Parse(executionDateLayout, s[:i])
	if err != nil {
		return time.Time{}, fmt.Errorf("pomps: execution date %q: %w", s, err)
	}
	us, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("pomps: execution date %q: %w", s, err)
	}
	return t.Add(time.Duration(us) * time.Microsecond), nil
}
