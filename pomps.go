package pomps

import (
	"context"
	"errors"
)

// Stage identifies a checkpointed step of a run.
type Stage string

const (
	StageLoad      Stage = "load"
	StageScatter   Stage = "scatter"
	StageGroup     Stage = "group"
	StageTransform Stage = "transform"
	StageMerge     Stage = "merge"
)

var (
	// ErrInvalidKeyType is returned when a group key cannot be derived as a string.
	ErrInvalidKeyType = errors.New("pomps: group key is not a string")

	// ErrBucketMiss is returned when a key matches no bucket range during scatter.
	// It means the bucket map and the data disagree and is never recoverable.
	ErrBucketMiss = errors.New("pomps: key matches no bucket range")

	// ErrInvalidBucketCount is returned for a bucket count below 1.
	ErrInvalidBucketCount = errors.New("pomps: bucket count must be at least 1")

	// ErrUnsortedInput is returned by the merge-joiner when a grouped input is not key-sorted.
	ErrUnsortedInput = errors.New("pomps: grouped input is not sorted by group_key")

	// ErrMalformedRecord is returned for a line that is not a single JSON value.
	ErrMalformedRecord = errors.New("pomps: malformed record")

	// ErrTransformShape is returned when a run's grouping configuration does not
	// match the transform interface the job implements.
	ErrTransformShape = errors.New("pomps: transform does not match grouping configuration")
)

// KeyFunc derives the group key of a record. It must be a pure, deterministic
// function of the record's content.
type KeyFunc func(rec Record) (string, error)

// Loader materializes raw source data as newline-delimited JSON at path. It
// must fully write the file before returning, or fail.
type Loader interface {
	Load(ctx context.Context, path string) error
}

// LoaderFunc adapts a plain function to the [Loader] interface.
type LoaderFunc func(ctx context.Context, path string) error

func (f LoaderFunc) Load(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Transformer converts one raw source record into one output record.
//
// This is the call site for runs without a group key: every line of the
// loaded source is passed in as-is.
//
// Example:
//
//	func (j *PeopleJob) Transform(ctx context.Context, rec pomps.Record) (pomps.Record, error) {
//	    name, _ := rec.Get("name")
//	    return pomps.Object(
//	        pomps.KV("id", rec.Lookup("_id")),
//	        pomps.KV("name", name),
//	    ), nil
//	}
type Transformer interface {
	Transform(ctx context.Context, rec Record) (Record, error)
}

// GroupTransformer converts one group of source records into one output
// record.
//
// This is the call site for runs configured with a group key: the loaded
// source is grouped first and every GroupedBatch, in key order, is passed in.
// A job that groups must implement GroupTransformer; a job that does not must
// implement Transformer. A job may implement both and be run either way.
type GroupTransformer interface {
	TransformGroup(ctx context.Context, batch GroupedBatch) (Record, error)
}

// GroupKeyer supplies the group key for a job's source records. When
// implemented (or when WithGroupKey is used) the source is grouped before
// transformation.
type GroupKeyer interface {
	GroupKey(rec Record) (string, error)
}

// Combiner merges the groups that share a key across two grouped inputs.
// Either side may be empty, never both. Returning no records drops the key
// from the merged output.
type Combiner interface {
	Combine(ctx context.Context, key string, left, right []Record) ([]Record, error)
}

// CombinerFunc adapts a plain function to the [Combiner] interface.
type CombinerFunc func(ctx context.Context, key string, left, right []Record) ([]Record, error)

func (f CombinerFunc) Combine(ctx context.Context, key string, left, right []Record) ([]Record, error) {
	return f(ctx, key, left, right)
}
