package pomps

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
)

// Artifact file names under <namespace>/<name>/.
const (
	SourceFile      = "source_data.jsonl"
	GroupedFile     = "grouped_source_data.jsonl"
	TransformedFile = "transformed_source_data.jsonl"
)

// Pipeline loads a named data source into a namespace and transforms it,
// optionally grouping it by key first. Every stage is checkpointed by its
// output path, so running a pipeline again after it published its
// transformed file does nothing, and a run that failed part way resumes at
// the first unpublished stage.
type Pipeline struct {
	name   string
	ns     Namespace
	loader Loader

	// Configuration overrides (nil means use interface value or default)
	groupKey       KeyFunc
	groupBuckets   *int
	groupWorkers   *int
	reportInterval *int
	partitioning   *Partitioning
	logger         *slog.Logger
	metrics        *Metrics

	// Transformation call sites (detected at construction)
	transformer      Transformer
	groupTransformer GroupTransformer

	// Optional capabilities (detected from job interfaces)
	groupKeyer          GroupKeyer
	filter              Filter
	progress            ProgressReporter
	starter             Starter
	stopper             Stopper
	groupBucketsIface   GroupBuckets
	groupWorkersIface   GroupWorkers
	reportIntervalIface ReportInterval
	partitionIface      PartitionPolicy
}

// New creates a Pipeline for the data source called name in namespace ns.
// The job loads the raw data and must also implement at least one of:
//   - Transformer: called with each raw record when the run does not group
//   - GroupTransformer: called with each GroupedBatch when the run groups
//
// A run groups when WithGroupKey is used or the job implements GroupKeyer.
// Other optional interfaces are auto-detected. Panics if the job implements
// neither transform interface.
func New(name string, ns Namespace, job Loader) *Pipeline {
	p := &Pipeline{
		name:   name,
		ns:     ns,
		loader: job,
	}

	t, isTransformer := job.(Transformer)
	g, isGroupTransformer := job.(GroupTransformer)
	if !isTransformer && !isGroupTransformer {
		panic("pomps: job must implement Transformer or GroupTransformer")
	}
	p.transformer = t
	p.groupTransformer = g

	if k, ok := job.(GroupKeyer); ok {
		p.groupKeyer = k
	}
	if f, ok := job.(Filter); ok {
		p.filter = f
	}
	if r, ok := job.(ProgressReporter); ok {
		p.progress = r
	}
	if s, ok := job.(Starter); ok {
		p.starter = s
	}
	if s, ok := job.(Stopper); ok {
		p.stopper = s
	}
	if b, ok := job.(GroupBuckets); ok {
		p.groupBucketsIface = b
	}
	if w, ok := job.(GroupWorkers); ok {
		p.groupWorkersIface = w
	}
	if r, ok := job.(ReportInterval); ok {
		p.reportIntervalIface = r
	}
	if pp, ok := job.(PartitionPolicy); ok {
		p.partitionIface = pp
	}

	return p
}

// WithGroupKey groups the loaded source by key before transformation.
// Priority: this method > GroupKeyer interface. A nil key is ignored.
func (p *Pipeline) WithGroupKey(key KeyFunc) *Pipeline {
	if key != nil {
		p.groupKey = key
	}
	return p
}

// WithGroupBuckets overrides the scatter bucket count.
// Priority: this method > GroupBuckets interface > DefaultGroupBuckets.
// Values less than 1 are ignored.
func (p *Pipeline) WithGroupBuckets(n int) *Pipeline {
	if n >= 1 {
		p.groupBuckets = &n
	}
	return p
}

// WithGroupWorkers overrides the number of concurrent grouping workers.
// Priority: this method > GroupWorkers interface > DefaultGroupWorkers.
// Values less than 1 are ignored.
func (p *Pipeline) WithGroupWorkers(n int) *Pipeline {
	if n >= 1 {
		p.groupWorkers = &n
	}
	return p
}

// WithReportInterval overrides how often to report progress (in records).
// Priority: this method > ProgressReporter interface > DefaultReportInterval.
// Values less than 1 are ignored.
func (p *Pipeline) WithReportInterval(n int) *Pipeline {
	if n >= 1 {
		p.reportInterval = &n
	}
	return p
}

// WithPartitioning overrides the scatter partitioning.
// Priority: this method > PartitionPolicy interface > PartitionRange.
func (p *Pipeline) WithPartitioning(pt Partitioning) *Pipeline {
	p.partitioning = &pt
	return p
}

// WithLogger sets the logger for stage events. Defaults to slog.Default.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// WithMetrics records stage metrics to m.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Path returns the path of one of the pipeline's artifacts.
func (p *Pipeline) Path(file string) string {
	return p.ns.Path(p.name, file)
}

// Run executes the pipeline and returns the path of the transformed file.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	stats := &Stats{}

	if p.starter != nil {
		ctx = p.starter.Start(ctx)
	}

	path, err := p.run(ctx, stats)

	if p.stopper != nil {
		p.stopper.Stop(ctx, stats, err)
	}
	return path, err
}

func (p *Pipeline) run(ctx context.Context, stats *Stats) (string, error) {
	key, grouped := p.resolveGroupKey()
	if grouped && p.groupTransformer == nil {
		return "", fmt.Errorf("%w: run groups by key but job does not implement GroupTransformer", ErrTransformShape)
	}
	if !grouped && p.transformer == nil {
		return "", fmt.Errorf("%w: run does not group but job does not implement Transformer", ErrTransformShape)
	}

	runner := NewRunner().WithLogger(p.logger).WithMetrics(p.metrics).WithStats(stats)

	return runner.Run(ctx, StageTransform, p.Path(TransformedFile), func(ctx context.Context, tmp string) error {
		src, err := runner.Run(ctx, StageLoad, p.Path(SourceFile), p.loader.Load)
		if err != nil {
			return err
		}

		if grouped {
			src, err = NewGrouper(key).
				WithBuckets(p.resolveGroupBuckets()).
				WithWorkers(p.resolveGroupWorkers()).
				WithPartitioning(p.resolvePartitioning()).
				WithRunner(runner).
				Group(ctx, src, p.Path(GroupedFile))
			if err != nil {
				return err
			}
		}

		return writeFile(tmp, func(w *bufio.Writer) error {
			if grouped {
				return p.transformGroups(ctx, src, w, stats)
			}
			return p.transformRecords(ctx, src, w, stats)
		})
	})
}

func (p *Pipeline) transformRecords(ctx context.Context, src string, w *bufio.Writer, stats *Stats) error {
	var buf []byte
	for line, err := range scanFile(ctx, src) {
		if err != nil {
			return err
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return err
		}
		stats.incLoaded(1)

		if p.filter != nil && !p.filter.Include(rec) {
			stats.incFiltered(1)
			continue
		}

		out, err := p.transformer.Transform(ctx, rec)
		if err != nil {
			return err
		}
		buf = out.AppendJSON(buf[:0])
		if err := writeLine(w, buf); err != nil {
			return err
		}
		p.transformed(ctx, stats)
	}
	return nil
}

func (p *Pipeline) transformGroups(ctx context.Context, src string, w *bufio.Writer, stats *Stats) error {
	var buf []byte
	for line, err := range scanFile(ctx, src) {
		if err != nil {
			return err
		}
		batch, err := ParseGroupedBatch(line)
		if err != nil {
			return err
		}
		stats.incLoaded(int64(len(batch.Data)))

		if p.filter != nil {
			batch = p.filterBatch(batch, stats)
			if len(batch.Data) == 0 {
				continue
			}
		}

		out, err := p.groupTransformer.TransformGroup(ctx, batch)
		if err != nil {
			return err
		}
		buf = out.AppendJSON(buf[:0])
		if err := writeLine(w, buf); err != nil {
			return err
		}
		p.transformed(ctx, stats)
	}
	return nil
}

func (p *Pipeline) filterBatch(batch GroupedBatch, stats *Stats) GroupedBatch {
	kept := make([]Record, 0, len(batch.Data))
	for _, rec := range batch.Data {
		if p.filter.Include(rec) {
			kept = append(kept, rec)
			continue
		}
		stats.incFiltered(1)
	}
	batch.Data = kept
	return batch
}

// transformed counts one output record and reports progress when the count
// crosses a report interval boundary.
func (p *Pipeline) transformed(ctx context.Context, stats *Stats) {
	n := stats.incTransformed(1)
	p.metrics.recordsWritten(StageTransform, 1)
	if p.progress != nil && n%int64(p.resolveReportInterval()) == 0 {
		p.progress.OnProgress(ctx, stats)
	}
}
