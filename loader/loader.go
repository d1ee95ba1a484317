// Package loader provides pomps.Loader implementations that materialize raw
// data from HTTP, S3-compatible object storage or local files as JSONL.
//
// Every loader streams: the source is decompressed (gzip or zstd) and decoded
// on the fly, never held in memory. Loaders do not retry. A failed load leaves
// an unpublished temporary file and the next pipeline run tries again.
package loader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/eliwjones/pomps"
)

// Option configures a loader.
type Option func(*source)

// WithCompression forces the source compression instead of detecting it.
func WithCompression(c Compression) Option {
	return func(s *source) { s.compression = c }
}

// WithHTTPClient sets the client used by HTTP loaders.
func WithHTTPClient(c *http.Client) Option {
	return func(s *source) { s.client = c }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *source) { s.logger = l }
}

// source is a named raw stream plus how to decode it.
type source struct {
	name        string
	open        func(ctx context.Context) (io.ReadCloser, string, error)
	dec         Decoder
	compression Compression
	client      *http.Client
	logger      *slog.Logger
}

func newSource(name string, dec Decoder, opts []Option) *source {
	s := &source{name: name, dec: dec, client: http.DefaultClient, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.dec == nil {
		s.dec = JSONL()
	}
	return s
}

// Load implements pomps.Loader.
func (s *source) Load(ctx context.Context, path string) (err error) {
	body, encoding, err := s.open(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	defer body.Close()

	c := s.compression
	if c == Auto {
		c = detectCompression(s.name, encoding)
	}
	r, err := decompress(body, c)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	defer r.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriterSize(f, writeBufferSize)
	n, err := s.dec.Decode(ctx, r, w)
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.name, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "source loaded", "source", s.name, "compression", c, "records", n)
	return nil
}

// HTTP returns a Loader that downloads url with a GET request. A non-2xx
// response fails the load.
func HTTP(url string, dec Decoder, opts ...Option) pomps.Loader {
	s := newSource(url, dec, opts)
	s.open = func(ctx context.Context) (io.ReadCloser, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		// Let the server's Content-Encoding reach the decompressor untouched.
		req.Header.Set("Accept-Encoding", "identity")
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, resp.Header.Get("Content-Encoding"), nil
	}
	return s
}

// File returns a Loader that reads the local file at name.
func File(name string, dec Decoder, opts ...Option) pomps.Loader {
	s := newSource(name, dec, opts)
	s.open = func(context.Context) (io.ReadCloser, string, error) {
		f, err := os.Open(name)
		return f, "", err
	}
	return s
}

// Object returns a Loader that reads bucket/key from S3-compatible storage.
func Object(client *minio.Client, bucket, key string, dec Decoder, opts ...Option) pomps.Loader {
	s := newSource(bucket+"/"+key, dec, opts)
	s.open = func(ctx context.Context) (io.ReadCloser, string, error) {
		info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return nil, "", err
		}
		obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, "", err
		}
		return obj, info.Metadata.Get("Content-Encoding"), nil
	}
	return s
}

// NewMinioClient connects to an S3-compatible endpoint with static credentials.
func NewMinioClient(endpoint, accessKey, secretKey string, secure bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
}
