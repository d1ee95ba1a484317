package pomps

import "context"

// ReportInterval controls how often progress is reported, measured in
// records transformed. This interface can be implemented independently of
// ProgressReporter when you want to set the interval via the job struct
// rather than the builder.
//
// The value can be overridden at runtime via WithReportInterval, which takes
// precedence over this interface. If neither is set, DefaultReportInterval
// (10,000 records) is used.
//
// Example:
//
//	func (j *MyJob) ReportInterval() int { return 5000 }
type ReportInterval interface {
	// ReportInterval returns how often to call OnProgress (in records transformed).
	ReportInterval() int
}

// ProgressReporter receives periodic progress updates while the transform
// stage runs. OnProgress is called each time the transformed count crosses a
// ReportInterval boundary. The load, scatter and group stages do not report
// progress; their counters are already final by the time transformation
// starts.
//
// Example:
//
//	func (j *MyJob) ReportInterval() int { return 10000 }
//
//	func (j *MyJob) OnProgress(ctx context.Context, stats *pomps.Stats) {
//	    slog.InfoContext(ctx, "progress",
//	        "loaded", stats.Loaded(),
//	        "transformed", stats.Transformed(),
//	    )
//	}
type ProgressReporter interface {
	ReportInterval

	// OnProgress is called periodically during execution.
	OnProgress(ctx context.Context, stats *Stats)
}
