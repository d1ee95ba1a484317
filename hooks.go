package pomps

import "context"

// Filter excludes source records before transformation. Filtered records are
// counted in Stats.Filtered and never reach the transformer.
//
// In a grouped run the filter sees the individual records of each batch. A
// batch left with no records is dropped.
//
// Example:
//
//	func (j *MyJob) Include(rec pomps.Record) bool {
//	    deleted, _ := rec.Lookup("deleted").AsBool()
//	    return !deleted
//	}
type Filter interface {
	// Include returns true if the record should be processed.
	Include(rec Record) bool
}

// Starter is called before the pipeline's first stage. The context it
// returns is used for every stage and passed to Stopper.Stop.
//
// Example:
//
//	func (j *MyJob) Start(ctx context.Context) context.Context {
//	    j.startedAt = time.Now()
//	    return ctx
//	}
//
// Start is called exactly once per Run, even when every stage is already
// published and nothing executes.
type Starter interface {
	Start(ctx context.Context) context.Context
}

// Stopper is called after the pipeline finishes, whether it succeeded or
// not. err is the same error Run returns.
//
// Example:
//
//	func (j *MyJob) Stop(ctx context.Context, stats *pomps.Stats, err error) {
//	    if err != nil {
//	        slog.ErrorContext(ctx, "pipeline failed", "error", err, "stats", stats)
//	        return
//	    }
//	    slog.InfoContext(ctx, "pipeline complete", "stats", stats)
//	}
type Stopper interface {
	Stop(ctx context.Context, stats *Stats, err error)
}
