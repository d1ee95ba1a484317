package pomps

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

const writeBufferSize = 64 * 1024

// GroupedBatch is one line of a grouped file: a group key and every record
// sharing it, in source order.
type GroupedBatch struct {
	Key  string
	Data []Record
}

// AppendJSON appends {"group_key":...,"data":[...]} to dst.
func (b GroupedBatch) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"group_key":`...)
	dst = appendString(dst, b.Key)
	dst = append(dst, `,"data":[`...)
	for i, rec := range b.Data {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = rec.AppendJSON(dst)
	}
	return append(dst, "]}"...)
}

// MarshalJSON implements json.Marshaler.
func (b GroupedBatch) MarshalJSON() ([]byte, error) {
	return b.AppendJSON(nil), nil
}

// Record returns the batch as an object Value.
func (b GroupedBatch) Record() Record {
	return Object(KV("group_key", String(b.Key)), KV("data", Array(b.Data...)))
}

// ParseGroupedBatch decodes one grouped line.
func ParseGroupedBatch(line []byte) (GroupedBatch, error) {
	v, err := ParseRecord(line)
	if err != nil {
		return GroupedBatch{}, err
	}
	key, ok := v.Lookup("group_key").AsString()
	if !ok {
		return GroupedBatch{}, fmt.Errorf("%w: group_key is %s", ErrMalformedRecord, v.Lookup("group_key").Kind())
	}
	data := v.Lookup("data")
	if data.Kind() != KindArray {
		return GroupedBatch{}, fmt.Errorf("%w: data is %s", ErrMalformedRecord, data.Kind())
	}
	return GroupedBatch{Key: key, Data: data.Items()}, nil
}

// Lines yields every line of r without its "\n" or "\r\n" terminator,
// blank lines included. A final line without a terminator is yielded too.
// Lines of any length are supported. The context is checked before each
// line. The yielded slice is only valid until the next iteration.
func Lines(ctx context.Context, r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		br := bufio.NewReaderSize(r, writeBufferSize)
		var long []byte
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			chunk, err := br.ReadSlice('\n')
			if errors.Is(err, bufio.ErrBufferFull) {
				long = append(long, chunk...)
				continue
			}
			line := chunk
			if long != nil {
				line = append(long, chunk...)
				long = nil
			}
			if err != nil && !errors.Is(err, io.EOF) {
				yield(nil, err)
				return
			}

			if err != nil && len(line) == 0 {
				return
			}
			line = bytes.TrimSuffix(line, []byte("\n"))
			line = bytes.TrimSuffix(line, []byte("\r"))
			if !yield(line, nil) || err != nil {
				return
			}
		}
	}
}

// scanLines yields the non-blank lines of r with surrounding whitespace
// trimmed.
func scanLines(ctx context.Context, r io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for line, err := range Lines(ctx, r) {
			if err != nil {
				yield(nil, err)
				return
			}
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				if !yield(trimmed, nil) {
					return
				}
			}
		}
	}
}

// scanFile is scanLines over the file at path. The file is closed when
// iteration ends.
func scanFile(ctx context.Context, path string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		f, err := os.Open(path)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		for line, err := range scanLines(ctx, f) {
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

// writeFile creates (or truncates) path and hands a buffered writer to fn.
// The buffer is flushed and the file synced before it is closed.
func writeFile(path string, fn func(w *bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriterSize(f, writeBufferSize)
	if err := fn(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// writeLine writes b followed by a newline.
func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
