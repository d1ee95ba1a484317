package pomps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// StageFunc does the work of one stage. It must write its whole output to
// tmpPath, which is a file for Runner.Run and a directory for Runner.RunDir.
type StageFunc func(ctx context.Context, tmpPath string) error

// Runner executes checkpointed stages.
//
// A stage's output lives at a deterministic path. When that path already
// exists the stage is skipped and the path is returned unchanged; this is the
// only resumability mechanism, so expensive stages are never recomputed once
// published. Otherwise the stage writes to a temporary sibling, and the
// temporary is renamed onto the final path only when the work succeeds.
//
// A failed stage publishes nothing. Its temporary is left on disk but is
// discarded at the start of the next attempt, never appended to.
//
// Stages may nest: a stage's work can call Run for its own inputs, each
// checkpointed by its own path.
type Runner struct {
	logger  *slog.Logger
	metrics *Metrics
	stats   *Stats
}

// NewRunner returns a Runner that logs to slog.Default and records no metrics.
func NewRunner() *Runner {
	return &Runner{stats: &Stats{}}
}

// WithLogger sets the logger. A nil logger is ignored.
func (r *Runner) WithLogger(l *slog.Logger) *Runner {
	if l != nil {
		r.logger = l
	}
	return r
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func (r *Runner) WithMetrics(m *Metrics) *Runner {
	r.metrics = m
	return r
}

// WithStats shares s with the runner so several components count into one
// Stats. A nil value is ignored.
func (r *Runner) WithStats(s *Stats) *Runner {
	if s != nil {
		r.stats = s
	}
	return r
}

// Stats returns the counters updated by stages run through r.
func (r *Runner) Stats() *Stats { return r.stats }

func (r *Runner) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Run executes a file-producing stage and returns the published path.
func (r *Runner) Run(ctx context.Context, stage Stage, path string, work StageFunc) (string, error) {
	done, err := fileExists(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	if done {
		r.skip(ctx, stage, path)
		return path, nil
	}

	tmp := tempPath(path)
	prepare := func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return r.execute(ctx, stage, path, tmp, prepare, work, publishFile)
}

// RunDir executes a directory-producing stage. The whole directory is built
// under a temporary name and published with a single rename.
func (r *Runner) RunDir(ctx context.Context, stage Stage, dir string, work StageFunc) (string, error) {
	done, err := dirExists(dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", stage, err)
	}
	if done {
		r.skip(ctx, stage, dir)
		return dir, nil
	}

	tmp := tempDir(dir)
	prepare := func() error {
		if err := os.RemoveAll(tmp); err != nil {
			return err
		}
		return os.MkdirAll(tmp, 0o755)
	}
	return r.execute(ctx, stage, dir, tmp, prepare, work, publishDir)
}

func (r *Runner) execute(
	ctx context.Context,
	stage Stage,
	path, tmp string,
	prepare func() error,
	work StageFunc,
	publish func(tmp, path string) error,
) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	fail := func(err error) (string, error) {
		r.metrics.stageRun(stage, outcomeFailed, time.Since(start))
		r.log().ErrorContext(ctx, "stage failed", "stage", stage, "path", path, "error", err)
		return "", fmt.Errorf("%s: %w", stage, err)
	}

	if err := prepare(); err != nil {
		return fail(err)
	}

	r.log().InfoContext(ctx, "stage started", "stage", stage, "path", path)

	if err := work(ctx, tmp); err != nil {
		return fail(err)
	}
	if err := publish(tmp, path); err != nil {
		return fail(fmt.Errorf("publish: %w", err))
	}

	elapsed := time.Since(start)
	r.metrics.stageRun(stage, outcomeExecuted, elapsed)
	r.log().InfoContext(ctx, "stage published", "stage", stage, "path", path, "elapsed", elapsed)
	return path, nil
}

func (r *Runner) skip(ctx context.Context, stage Stage, path string) {
	r.stats.incSkipped(1)
	r.metrics.stageRun(stage, outcomeSkipped, 0)
	r.log().InfoContext(ctx, "stage already published, skipping", "stage", stage, "path", path)
}
