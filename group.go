package pomps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Grouper groups a JSONL source by key into a key-sorted file of
// GroupedBatch lines.
//
// With one bucket the whole source is grouped in memory. With more, the
// source is first scattered into bucket files (a checkpointed directory
// stage) and each bucket is grouped on its own, so memory is bounded by the
// largest bucket times the worker count. Buckets are grouped concurrently
// but written out in ascending bucket order, and the output is byte-identical
// for every bucket count.
type Grouper struct {
	key          KeyFunc
	buckets      int
	workers      int
	partitioning Partitioning
	keepBuckets  bool
	runner       *Runner
}

// NewGrouper returns a Grouper using key, DefaultGroupBuckets buckets, one
// worker and range partitioning.
func NewGrouper(key KeyFunc) *Grouper {
	return &Grouper{
		key:     key,
		buckets: DefaultGroupBuckets,
		workers: DefaultGroupWorkers,
		runner:  NewRunner(),
	}
}

// WithBuckets sets the bucket count. Group fails with ErrInvalidBucketCount
// if n is below 1.
func (g *Grouper) WithBuckets(n int) *Grouper {
	g.buckets = n
	return g
}

// WithWorkers sets how many buckets are grouped concurrently.
// Values less than 1 are ignored.
func (g *Grouper) WithWorkers(n int) *Grouper {
	if n >= 1 {
		g.workers = n
	}
	return g
}

// WithPartitioning selects range (default) or hash partitioning.
func (g *Grouper) WithPartitioning(p Partitioning) *Grouper {
	g.partitioning = p
	return g
}

// WithKeepBuckets keeps the scattered bucket directory after a successful
// group instead of removing it.
func (g *Grouper) WithKeepBuckets(keep bool) *Grouper {
	g.keepBuckets = keep
	return g
}

// WithRunner sets the stage runner, and with it the logger, metrics and
// stats the grouper reports to. A nil runner is ignored.
func (g *Grouper) WithRunner(r *Runner) *Grouper {
	if r != nil {
		g.runner = r
	}
	return g
}

// BucketsDir returns the directory that holds the scattered buckets for a
// grouped output at groupedPath.
func (g *Grouper) BucketsDir(groupedPath string) string {
	base := strings.TrimSuffix(groupedPath, filepath.Ext(groupedPath))
	return fmt.Sprintf("%s.%s-%d.buckets", base, g.partitioning, g.buckets)
}

// Group groups the JSONL file at sourcePath into groupedPath and returns the
// published path. An already published groupedPath is returned as-is.
func (g *Grouper) Group(ctx context.Context, sourcePath, groupedPath string) (string, error) {
	if g.buckets < 1 {
		return "", fmt.Errorf("%s: %w: got %d", StageGroup, ErrInvalidBucketCount, g.buckets)
	}

	bucketsDir := g.BucketsDir(groupedPath)
	path, err := g.runner.Run(ctx, StageGroup, groupedPath, func(ctx context.Context, tmp string) error {
		if g.buckets == 1 {
			return writeFile(tmp, func(w *bufio.Writer) error {
				return g.groupBucket(ctx, sourcePath, w)
			})
		}

		dir, err := g.runner.RunDir(ctx, StageScatter, bucketsDir, func(ctx context.Context, tmpDir string) error {
			return g.scatter(ctx, sourcePath, tmpDir)
		})
		if err != nil {
			return err
		}
		return g.groupBuckets(ctx, dir, tmp)
	})
	if err != nil {
		return "", err
	}

	if !g.keepBuckets {
		if err := os.RemoveAll(bucketsDir); err != nil {
			g.runner.log().WarnContext(ctx, "failed to remove bucket directory", "path", bucketsDir, "error", err)
		}
	}
	return path, nil
}

func (g *Grouper) scatter(ctx context.Context, sourcePath, dir string) error {
	var part Partitioner
	switch g.partitioning {
	case PartitionHash:
		hp, err := NewHashPartitioner(g.buckets)
		if err != nil {
			return err
		}
		part = hp
	default:
		m, err := ScanBucketMap(ctx, sourcePath, g.key, g.buckets)
		if err != nil {
			return err
		}
		if len(m) == 0 {
			return nil
		}
		g.runner.log().DebugContext(ctx, "built bucket map", "ranges", len(m), "buckets", g.buckets)
		part = NewRangePartitioner(m)
	}

	n, err := Scatter(ctx, sourcePath, dir, g.key, part)
	if err != nil {
		return err
	}
	g.runner.stats.incScattered(n)
	g.runner.metrics.recordsWritten(StageScatter, int(n))
	return nil
}

// bucketFiles lists the bucket files of dir in bucket order.
func bucketFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func (g *Grouper) groupBuckets(ctx context.Context, dir, tmp string) error {
	files, err := bucketFiles(dir)
	if err != nil {
		return err
	}

	if g.workers == 1 || len(files) <= 1 {
		return writeFile(tmp, func(w *bufio.Writer) error {
			for _, f := range files {
				if err := g.groupBucket(ctx, f, w); err != nil {
					return fmt.Errorf("bucket %s: %w", filepath.Base(f), err)
				}
			}
			return nil
		})
	}

	partsDir := tmp + ".parts"
	if err := os.RemoveAll(partsDir); err != nil {
		return err
	}
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(partsDir)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)

	parts := make([]string, len(files))
	for i, f := range files {
		parts[i] = filepath.Join(partsDir, filepath.Base(f))
		group.Go(func() error {
			err := writeFile(parts[i], func(w *bufio.Writer) error {
				return g.groupBucket(groupCtx, f, w)
			})
			if err != nil {
				return fmt.Errorf("bucket %s: %w", filepath.Base(f), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	return writeFile(tmp, func(w *bufio.Writer) error {
		for _, part := range parts {
			if err := appendFile(w, part); err != nil {
				return err
			}
		}
		return nil
	})
}

// groupBucket groups one JSONL file in memory and writes its batches to w in
// key order.
func (g *Grouper) groupBucket(ctx context.Context, path string, w *bufio.Writer) error {
	batches, err := groupFile(ctx, path, g.key)
	if err != nil {
		return err
	}

	var buf []byte
	for _, b := range batches {
		buf = b.AppendJSON(buf[:0])
		if err := writeLine(w, buf); err != nil {
			return err
		}
	}
	g.runner.stats.incGrouped(int64(len(batches)))
	g.runner.metrics.recordsWritten(StageGroup, len(batches))
	return nil
}

// groupFile reads every record of path and returns one batch per distinct
// key, sorted by key, with records in file order.
func groupFile(ctx context.Context, path string, key KeyFunc) ([]GroupedBatch, error) {
	index := make(map[string]int)
	var batches []GroupedBatch

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
		i, ok := index[k]
		if !ok {
			i = len(batches)
			index[k] = i
			batches = append(batches, GroupedBatch{Key: k})
		}
		batches[i].Data = append(batches[i].Data, rec)
	}

	slices.SortFunc(batches, func(a, b GroupedBatch) int {
		return strings.Compare(a.Key, b.Key)
	})
	return batches, nil
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// GroupData groups the JSONL file at sourcePath by key into groupedPath using
// the given bucket count. It is shorthand for NewGrouper(key).WithBuckets(buckets).Group.
func GroupData(ctx context.Context, sourcePath, groupedPath string, key KeyFunc, buckets int) (string, error) {
	return NewGrouper(key).WithBuckets(buckets).Group(ctx, sourcePath, groupedPath)
}

// GroupedPath returns where GroupDataNamed writes the grouping of sourcePath
// by the key called name: grouped_by_<name>/grouped_data.jsonl next to the
// source.
func GroupedPath(sourcePath, name string) string {
	return filepath.Join(filepath.Dir(sourcePath), "grouped_by_"+name, "grouped_data.jsonl")
}

// GroupDataNamed is GroupData with the output path derived from the source
// path and a name for the key.
func GroupDataNamed(ctx context.Context, sourcePath, name string, key KeyFunc, buckets int) (string, error) {
	return GroupData(ctx, sourcePath, GroupedPath(sourcePath, name), key, buckets)
}
