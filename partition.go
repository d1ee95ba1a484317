package pomps

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Partitioner assigns group keys to buckets numbered 0..Buckets()-1.
type Partitioner interface {
	Buckets() int
	Bucket(key string) (int, error)
}

// Partitioning selects how the Grouper assigns keys to buckets.
type Partitioning int

const (
	// PartitionRange assigns keys by sorted ranges from a BucketMap. Grouped
	// output is globally sorted by key.
	PartitionRange Partitioning = iota

	// PartitionHash assigns keys by hash. It needs no key scan, but grouped
	// output is only sorted within each bucket and cannot feed a merge-join.
	PartitionHash
)

func (p Partitioning) String() string {
	switch p {
	case PartitionRange:
		return "range"
	case PartitionHash:
		return "hash"
	default:
		return fmt.Sprintf("Partitioning(%d)", int(p))
	}
}

// ParsePartitioning parses "range" or "hash".
func ParsePartitioning(s string) (Partitioning, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "range", "":
		return PartitionRange, nil
	case "hash":
		return PartitionHash, nil
	default:
		return 0, fmt.Errorf("pomps: unknown partitioning %q", s)
	}
}

// RangePartitioner routes keys through a BucketMap. A key outside every
// range yields ErrBucketMiss.
type RangePartitioner struct {
	m BucketMap
}

// NewRangePartitioner returns a Partitioner over m.
func NewRangePartitioner(m BucketMap) *RangePartitioner {
	return &RangePartitioner{m: m}
}

func (p *RangePartitioner) Buckets() int { return len(p.m) }

func (p *RangePartitioner) Bucket(key string) (int, error) {
	i, ok := p.m.Lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBucketMiss, key)
	}
	return i, nil
}

// HashPartitioner routes keys by xxhash modulo the bucket count.
type HashPartitioner struct {
	n uint64
}

// NewHashPartitioner returns a Partitioner with the given bucket count.
func NewHashPartitioner(buckets int) (*HashPartitioner, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBucketCount, buckets)
	}
	return &HashPartitioner{n: uint64(buckets)}, nil
}

func (p *HashPartitioner) Buckets() int { return int(p.n) }

func (p *HashPartitioner) Bucket(key string) (int, error) {
	return int(xxhash.Sum64String(key) % p.n), nil
}
