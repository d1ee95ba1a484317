package pomps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
)

// groupCursor reads GroupedBatch lines one at a time and enforces that keys
// strictly increase.
type groupCursor struct {
	path string
	next func() ([]byte, error, bool)
	stop func()

	cur  GroupedBatch
	ok   bool
	prev string
	seen bool
}

func openCursor(ctx context.Context, path string) *groupCursor {
	next, stop := iter.Pull2(scanFile(ctx, path))
	return &groupCursor{path: path, next: next, stop: stop}
}

// advance loads the next batch. ok reports false once the file is exhausted.
func (c *groupCursor) advance() error {
	line, err, more := c.next()
	if !more {
		c.ok = false
		c.cur = GroupedBatch{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	b, err := ParseGroupedBatch(line)
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	if c.seen && b.Key <= c.prev {
		return fmt.Errorf("%w: %s has %q after %q", ErrUnsortedInput, c.path, b.Key, c.prev)
	}
	c.prev, c.seen = b.Key, true
	c.cur, c.ok = b, true
	return nil
}

func (c *groupCursor) close() { c.stop() }

// MergeJoin performs a sort-merge join of two grouped, key-sorted JSONL files
// and writes every record returned by c to w, one per line, in call order. It
// returns the number of records written.
//
// c is called exactly once per distinct key across both inputs, with an empty
// slice for the side that lacks the key. A key for which c returns no records
// is absent from the output. Only one group per side is held in memory.
//
// A grouped input whose keys do not strictly increase yields ErrUnsortedInput.
func MergeJoin(ctx context.Context, leftPath, rightPath string, w io.Writer, c Combiner) (int64, error) {
	left := openCursor(ctx, leftPath)
	defer left.close()
	right := openCursor(ctx, rightPath)
	defer right.close()

	if err := left.advance(); err != nil {
		return 0, err
	}
	if err := right.advance(); err != nil {
		return 0, err
	}

	bw := bufio.NewWriterSize(w, writeBufferSize)
	var (
		n   int64
		buf []byte
	)
	emit := func(key string, l, r []Record) error {
		out, err := c.Combine(ctx, key, l, r)
		if err != nil {
			return fmt.Errorf("combine %q: %w", key, err)
		}
		for _, rec := range out {
			buf = rec.AppendJSON(buf[:0])
			if err := writeLine(bw, buf); err != nil {
				return err
			}
		}
		n += int64(len(out))
		return nil
	}

	for left.ok || right.ok {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		switch {
		case left.ok && right.ok && left.cur.Key == right.cur.Key:
			if err := emit(left.cur.Key, left.cur.Data, right.cur.Data); err != nil {
				return n, err
			}
			if err := left.advance(); err != nil {
				return n, err
			}
			if err := right.advance(); err != nil {
				return n, err
			}
		case !right.ok || (left.ok && left.cur.Key < right.cur.Key):
			if err := emit(left.cur.Key, left.cur.Data, nil); err != nil {
				return n, err
			}
			if err := left.advance(); err != nil {
				return n, err
			}
		default:
			if err := emit(right.cur.Key, nil, right.cur.Data); err != nil {
				return n, err
			}
			if err := right.advance(); err != nil {
				return n, err
			}
		}
	}
	return n, bw.Flush()
}

// Merge is the checkpointed form of MergeJoin: it writes the merge of
// leftPath and rightPath to mergedPath unless that file is already published.
func (r *Runner) Merge(ctx context.Context, mergedPath, leftPath, rightPath string, c Combiner) (string, error) {
	return r.Run(ctx, StageMerge, mergedPath, func(ctx context.Context, tmp string) error {
		var n int64
		err := writeFile(tmp, func(w *bufio.Writer) error {
			var err error
			n, err = MergeJoin(ctx, leftPath, rightPath, w, c)
			return err
		})
		if err != nil {
			return err
		}
		r.stats.incMerged(n)
		r.metrics.recordsWritten(StageMerge, int(n))
		return nil
	})
}

// MergeDataSources merges two grouped files into
// <namespace>/<name>/merged_data.jsonl and returns that path.
func MergeDataSources(ctx context.Context, name string, ns Namespace, leftPath, rightPath string, c Combiner) (string, error) {
	return NewRunner().Merge(ctx, ns.Path(name, "merged_data.jsonl"), leftPath, rightPath, c)
}
