package pomps

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// BucketRange is an inclusive key interval assigned to one bucket.
type BucketRange struct {
	ID  string
	Min string
	Max string
}

// Contains reports whether Min <= key <= Max.
func (r BucketRange) Contains(key string) bool {
	return r.Min <= key && key <= r.Max
}

// BucketMap is an ordered, non-overlapping set of bucket ranges.
type BucketMap []BucketRange

// BuildBucketMap partitions sortedKeys, which holds one key per record with
// duplicates retained, into roughly buckets ranges of equal record count.
//
// The keys are scanned in order with a window of len(sortedKeys)/buckets
// entries (at least one). Each full window becomes the range [first, last].
// Occurrences of a closed window's last key are skipped by later windows, so a
// hot key that fills whole windows on its own collapses into a single range
// and no key is ever shared by two ranges. A trailing partial window becomes
// a final range.
//
// The result may hold fewer or more than buckets ranges. An empty key list
// yields an empty map.
func BuildBucketMap(sortedKeys []string, buckets int) (BucketMap, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucketCount, buckets)
	}

	size := max(1, len(sortedKeys)/buckets)
	m := make(BucketMap, 0, buckets+1)

	var (
		start, end string
		count      int
		closed     bool
		lastClosed string
	)
	for _, k := range sortedKeys {
		if closed && k == lastClosed {
			continue
		}
		if count == 0 {
			start = k
		}
		end = k
		count++
		if count == size {
			m = append(m, newBucketRange(start, end))
			lastClosed, closed = end, true
			count = 0
		}
	}
	if count > 0 {
		m = append(m, newBucketRange(start, end))
	}
	return m, nil
}

func newBucketRange(lo, hi string) BucketRange {
	return BucketRange{ID: lo + "_" + hi, Min: lo, Max: hi}
}

// ScanBucketMap reads every record of the JSONL file at path, derives its key
// and builds a BucketMap over the sorted keys. Memory grows with the number
// of records, but only keys are held, never the records themselves.
func ScanBucketMap(ctx context.Context, path string, key KeyFunc, buckets int) (BucketMap, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucketCount, buckets)
	}

	var keys []string
	for line, err := range scanFile(ctx, path) {
		if err != nil {
			return nil, err
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, err
		}
		k, err := key(rec)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return BuildBucketMap(keys, buckets)
}

// Lookup returns the index of the range containing key.
func (m BucketMap) Lookup(key string) (int, bool) {
	i := sort.Search(len(m), func(i int) bool { return m[i].Max >= key })
	if i < len(m) && m[i].Min <= key {
		return i, true
	}
	return 0, false
}
