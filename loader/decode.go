package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/eliwjones/pomps"
)

const writeBufferSize = 64 * 1024

// Decoder converts a raw stream into newline-delimited JSON records written
// to w. It returns the number of records written.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader, w *bufio.Writer) (int64, error)
}

// DecoderFunc adapts a plain function to the [Decoder] interface.
type DecoderFunc func(ctx context.Context, r io.Reader, w *bufio.Writer) (int64, error)

func (f DecoderFunc) Decode(ctx context.Context, r io.Reader, w *bufio.Writer) (int64, error) {
	return f(ctx, r, w)
}

// JSONL passes newline-delimited JSON through, rejecting lines that are not a
// single JSON value and dropping blank lines.
func JSONL() Decoder {
	return DecoderFunc(func(ctx context.Context, r io.Reader, w *bufio.Writer) (int64, error) {
		var n int64
		for line, err := range pomps.Lines(ctx, r) {
			if err != nil {
				return n, err
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if _, err := pomps.ParseRecord(line); err != nil {
				return n, fmt.Errorf("line %d: %w", n+1, err)
			}
			if err := writeLine(w, line); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	})
}

// TSVOption configures the TSV decoder.
type TSVOption func(*tsvDecoder)

// Fields keeps only the named columns. No names keeps every column.
func Fields(names ...string) TSVOption {
	return func(d *tsvDecoder) {
		if len(names) == 0 {
			d.fields = nil
			return
		}
		d.fields = make(map[string]bool, len(names))
		for _, n := range names {
			d.fields[n] = true
		}
	}
}

// NullValue sets the cell text treated as a missing value. Missing values are
// left out of the record. The default is `\N`.
func NullValue(s string) TSVOption {
	return func(d *tsvDecoder) { d.null = s }
}

type tsvDecoder struct {
	fields map[string]bool
	null   string
}

// TSV decodes tab-separated values with a header row into one JSON object
// per row, with every value a string. Cells are split on tabs only; quotes
// have no meaning.
func TSV(opts ...TSVOption) Decoder {
	d := &tsvDecoder{null: `\N`}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *tsvDecoder) Decode(ctx context.Context, r io.Reader, w *bufio.Writer) (int64, error) {
	var (
		header []string
		n      int64
		buf    []byte
		row    int
	)
	for line, err := range pomps.Lines(ctx, r) {
		if err != nil {
			return n, err
		}
		row++
		text := string(line)
		if header == nil {
			header = strings.Split(text, "\t")
			continue
		}
		if text == "" {
			continue
		}

		cells := strings.Split(text, "\t")
		if len(cells) != len(header) {
			return n, fmt.Errorf("row %d: %d cells, header has %d", row, len(cells), len(header))
		}

		fields := make([]pomps.Field, 0, len(cells))
		for i, cell := range cells {
			if cell == d.null || (d.fields != nil && !d.fields[header[i]]) {
				continue
			}
			fields = append(fields, pomps.KV(header[i], pomps.String(cell)))
		}

		buf = pomps.Object(fields...).AppendJSON(buf[:0])
		if err := writeLine(w, buf); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}
