package pomps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/mem"
)

// Defaults for CalculateGroupBuckets.
const (
	DefaultRAMFraction      = 0.25
	DefaultMemoryMultiplier = 2.5
)

// AvailableRAM returns the memory available to new work without swapping,
// in bytes.
func AvailableRAM(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("pomps: read virtual memory: %w", err)
	}
	return vm.Available, nil
}

// CalculateGroupBuckets returns how many buckets keep one bucket of a
// sourceBytes file within fraction of availableRAM once loaded, assuming the
// in-memory form is multiplier times larger than the file. The result is at
// least 1.
func CalculateGroupBuckets(sourceBytes int64, availableRAM uint64, fraction, multiplier float64) int {
	perBucket := float64(availableRAM) * fraction
	if sourceBytes <= 0 || perBucket <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(sourceBytes)*multiplier/perBucket)))
}

// EstimateBuckets sizes the bucket count for grouping the file at path with
// the default fraction and multiplier.
func EstimateBuckets(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	ram, err := AvailableRAM(ctx)
	if err != nil {
		return 0, err
	}
	return CalculateGroupBuckets(info.Size(), ram, DefaultRAMFraction, DefaultMemoryMultiplier), nil
}

// SampleLines returns up to n non-blank lines spread evenly through the file
// at path. Each sample is the first whole line starting at or after offset
// i*size/n, so the first sample is always the first line.
func SampleLines(path string, n int) ([]string, error) {
	if n < 1 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	lines := make([]string, 0, n)
	var lastEnd int64 = -1
	for i := range n {
		pos := size * int64(i) / int64(n)
		if pos != 0 {
			// Start one byte early so a line beginning exactly at pos is kept.
			pos--
		}
		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return nil, err
		}
		br := bufio.NewReader(f)
		if pos != 0 {
			skipped, err := br.ReadString('\n')
			if err != nil {
				break
			}
			pos += int64(len(skipped))
		}
		if pos <= lastEnd {
			continue
		}
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		lastEnd = pos + int64(len(line)) - 1
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}
