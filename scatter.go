package pomps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// bucketFileName is the zero-padded ordinal name of bucket i out of n, so
// lexical directory order equals bucket order.
func bucketFileName(i, n int) string {
	return fmt.Sprintf("%0*d.jsonl", len(strconv.Itoa(n-1)), i)
}

// bucketWriters lazily opens one buffered handle per bucket and keeps it for
// the whole scatter pass.
type bucketWriters struct {
	dir     string
	n       int
	files   []*os.File
	writers []*bufio.Writer
}

func newBucketWriters(dir string, n int) *bucketWriters {
	return &bucketWriters{
		dir:     dir,
		n:       n,
		files:   make([]*os.File, n),
		writers: make([]*bufio.Writer, n),
	}
}

func (bw *bucketWriters) get(i int) (*bufio.Writer, error) {
	if i < 0 || i >= bw.n {
		return nil, fmt.Errorf("%w: bucket %d out of %d", ErrBucketMiss, i, bw.n)
	}
	if w := bw.writers[i]; w != nil {
		return w, nil
	}
	f, err := os.OpenFile(filepath.Join(bw.dir, bucketFileName(i, bw.n)), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	bw.files[i] = f
	bw.writers[i] = bufio.NewWriterSize(f, writeBufferSize)
	return bw.writers[i], nil
}

// flush writes out and syncs every open bucket.
func (bw *bucketWriters) flush() error {
	for i, w := range bw.writers {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if err := bw.files[i].Sync(); err != nil {
			return err
		}
	}
	return nil
}

// close releases every handle. It is safe to call on any exit path.
func (bw *bucketWriters) close() error {
	var errs []error
	for i, f := range bw.files {
		if f == nil {
			continue
		}
		errs = append(errs, f.Close())
		bw.files[i] = nil
		bw.writers[i] = nil
	}
	return errors.Join(errs...)
}

// Scatter appends every line of the JSONL source at sourcePath to the bucket
// file in dir chosen by part for the line's key, and returns the number of
// records written. Records keep their source order within each bucket.
//
// A key the partitioner cannot place aborts the pass with ErrBucketMiss.
// Scatter writes into dir directly; publishing it atomically is the caller's
// job (see Runner.RunDir).
func Scatter(ctx context.Context, sourcePath, dir string, key KeyFunc, part Partitioner) (n int64, err error) {
	if part.Buckets() < 1 {
		return 0, fmt.Errorf("%w: partitioner has %d buckets", ErrInvalidBucketCount, part.Buckets())
	}

	pool := newBucketWriters(dir, part.Buckets())
	defer func() {
		if cerr := pool.close(); err == nil {
			err = cerr
		}
	}()

	for line, err := range scanFile(ctx, sourcePath) {
		if err != nil {
			return n, err
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return n, err
		}
		k, err := key(rec)
		if err != nil {
			return n, err
		}
		i, err := part.Bucket(k)
		if err != nil {
			return n, err
		}
		w, err := pool.get(i)
		if err != nil {
			return n, err
		}
		if err := writeLine(w, line); err != nil {
			return n, err
		}
		n++
	}
	return n, pool.flush()
}
