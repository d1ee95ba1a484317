// Command pomps loads, groups and joins JSONL data sets on local disk.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/eliwjones/pomps"
	"github.com/eliwjones/pomps/loader"
)

type app struct {
	logLevel    string
	metricsAddr string

	logger  *slog.Logger
	metrics *pomps.Metrics
	server  *http.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "pomps",
		Short: "Checkpointed out-of-core grouping and joining of JSONL files",
		Long: `pomps loads data sources into a namespaced directory tree, groups
JSONL files by key in bounded memory and merge-joins grouped files.

Every output is published atomically, so rerunning a command after it
succeeded does nothing and rerunning after a failure resumes at the first
unfinished stage.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(a.loadCmd(), a.groupCmd(), a.joinCmd(), a.estimateCmd())
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString(), "command", cmd.Name())
	slog.SetDefault(a.logger)

	if a.metricsAddr == "" {
		return nil
	}
	a.metrics = pomps.NewMetrics(prometheus.DefaultRegisterer)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.server = &http.Server{Addr: a.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "addr", a.metricsAddr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", a.metricsAddr)
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

func (a *app) runner() *pomps.Runner {
	return pomps.NewRunner().WithLogger(a.logger).WithMetrics(a.metrics)
}

// groupFlags are shared by every command that groups.
type groupFlags struct {
	buckets      int
	workers      int
	partitioning string
}

func (f *groupFlags) register(cmd *cobra.Command, bucketsHelp string) {
	cmd.Flags().IntVar(&f.buckets, "buckets", pomps.DefaultGroupBuckets, bucketsHelp)
	cmd.Flags().IntVar(&f.workers, "workers", pomps.DefaultGroupWorkers, "Buckets grouped concurrently")
	cmd.Flags().StringVar(&f.partitioning, "partitioning", pomps.PartitionRange.String(), "Bucket partitioning: range|hash")
}

func (f *groupFlags) resolve(ctx context.Context, source string) (int, pomps.Partitioning, error) {
	part, err := pomps.ParsePartitioning(f.partitioning)
	if err != nil {
		return 0, 0, err
	}
	if f.buckets > 0 {
		return f.buckets, part, nil
	}
	n, err := pomps.EstimateBuckets(ctx, source)
	if err != nil {
		return 0, 0, fmt.Errorf("estimate buckets: %w", err)
	}
	return n, part, nil
}

// =============================================================================
// load
// =============================================================================

// passthrough writes source records, or grouped batches, unchanged.
type passthrough struct {
	pomps.Loader
}

func (passthrough) Transform(_ context.Context, rec pomps.Record) (pomps.Record, error) {
	return rec, nil
}

func (passthrough) TransformGroup(_ context.Context, batch pomps.GroupedBatch) (pomps.Record, error) {
	return batch.Record(), nil
}

func (a *app) loadCmd() *cobra.Command {
	var (
		root, env, date string
		format, key     string
		fields          []string
		s3Endpoint      string
		s3Insecure      bool
		group           groupFlags
	)

	cmd := &cobra.Command{
		Use:   "load NAME SOURCE",
		Short: "Load a data source into <root>/<env>/<date>/NAME",
		Long: `Load fetches SOURCE and writes it as JSONL to
<root>/<env>/<date>/NAME/source_data.jsonl, then copies each record (or each
group, with --key) to transformed_source_data.jsonl.

SOURCE is a local path, an http(s) URL or s3://bucket/key. Gzip and zstd
are detected from the name or the Content-Encoding header.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, source := args[0], args[1]

			executionDate := time.Now().UTC()
			if date != "" {
				t, err := pomps.ParseExecutionDate(date)
				if err != nil {
					return err
				}
				executionDate = t
			}

			var dec loader.Decoder
			switch strings.ToLower(format) {
			case "jsonl", "":
				dec = loader.JSONL()
			case "tsv":
				dec = loader.TSV(loader.Fields(fields...))
			default:
				return fmt.Errorf("unknown --format %q", format)
			}

			src, err := openSource(source, dec, s3Endpoint, !s3Insecure, loader.WithLogger(a.logger))
			if err != nil {
				return err
			}

			p := pomps.New(name, pomps.NewNamespace(root, env, executionDate), passthrough{src}).
				WithLogger(a.logger).
				WithMetrics(a.metrics)
			if key != "" {
				part, err := pomps.ParsePartitioning(group.partitioning)
				if err != nil {
					return err
				}
				p = p.WithGroupKey(pomps.FieldText(key)).
					WithGroupBuckets(group.buckets).
					WithGroupWorkers(group.workers).
					WithPartitioning(part)
			}

			path, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", "data", "Root data directory")
	cmd.Flags().StringVar(&env, "env", "dev", "Environment name")
	cmd.Flags().StringVar(&date, "date", "", "Execution date as YYYYmmdd-HHMMSS-ffffff (default now)")
	cmd.Flags().StringVar(&format, "format", "jsonl", "Source format: jsonl|tsv")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "TSV columns to keep (default all)")
	cmd.Flags().StringVar(&key, "key", "", "Group the source by this field before writing")
	cmd.Flags().StringVar(&s3Endpoint, "s3-endpoint", "s3.amazonaws.com", "Object store endpoint for s3:// sources")
	cmd.Flags().BoolVar(&s3Insecure, "s3-insecure", false, "Use plain HTTP for the object store")
	group.register(cmd, "Number of scatter buckets when grouping")
	return cmd
}

func openSource(source string, dec loader.Decoder, endpoint string, secure bool, opts ...loader.Option) (pomps.Loader, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return loader.HTTP(source, dec, opts...), nil
	case strings.HasPrefix(source, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(source, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid object source %q, want s3://bucket/key", source)
		}
		client, err := loader.NewMinioClient(endpoint, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), secure)
		if err != nil {
			return nil, err
		}
		return loader.Object(client, bucket, key, dec, opts...), nil
	default:
		return loader.File(source, dec, opts...), nil
	}
}

// =============================================================================
// group
// =============================================================================

func (a *app) groupCmd() *cobra.Command {
	var (
		key, name, out string
		keepBuckets    bool
		group          groupFlags
	)

	cmd := &cobra.Command{
		Use:   "group SOURCE",
		Short: "Group a JSONL file by a field into key-sorted batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			buckets, part, err := group.resolve(cmd.Context(), source)
			if err != nil {
				return err
			}
			if out == "" {
				if name == "" {
					name = key
				}
				out = pomps.GroupedPath(source, name)
			}

			path, err := pomps.NewGrouper(pomps.FieldText(key)).
				WithBuckets(buckets).
				WithWorkers(group.workers).
				WithPartitioning(part).
				WithKeepBuckets(keepBuckets).
				WithRunner(a.runner()).
				Group(cmd.Context(), source, out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Field to group by (string or number)")
	cmd.Flags().StringVar(&name, "name", "", "Name of the grouping in the output path (default --key)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Grouped output path (default next to SOURCE)")
	cmd.Flags().BoolVar(&keepBuckets, "keep-buckets", false, "Keep scattered bucket files after grouping")
	_ = cmd.MarkFlagRequired("key")
	group.register(cmd, "Number of scatter buckets (0 estimates from available RAM)")
	return cmd
}

// =============================================================================
// join
// =============================================================================

func (a *app) joinCmd() *cobra.Command {
	var how, out string

	cmd := &cobra.Command{
		Use:   "join LEFT RIGHT",
		Short: "Merge-join two grouped files into {group_key, left, right} records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jt, err := pomps.ParseJoinType(how)
			if err != nil {
				return err
			}

			r := a.runner()
			path, err := r.Merge(cmd.Context(), out, args[0], args[1], pomps.Join(jt, pomps.PairRecords))
			if err != nil {
				return err
			}
			a.logger.Info("join complete", "path", path, "how", jt, "stats", r.Stats())
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&how, "how", pomps.OuterJoin.String(), "Join type: inner|left|right|outer")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Merged output path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// =============================================================================
// estimate
// =============================================================================

func (a *app) estimateCmd() *cobra.Command {
	var samples int

	cmd := &cobra.Command{
		Use:   "estimate SOURCE",
		Short: "Suggest a bucket count for grouping SOURCE in available memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			buckets, err := pomps.EstimateBuckets(cmd.Context(), source)
			if err != nil {
				return err
			}

			lines, err := pomps.SampleLines(source, samples)
			if err != nil {
				return err
			}
			var total int
			for _, l := range lines {
				total += len(l)
			}
			avg := 0
			if len(lines) > 0 {
				avg = total / len(lines)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "buckets\t%d\nsampled_lines\t%d\navg_line_bytes\t%d\n", buckets, len(lines), avg)
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 100, "Lines to sample for the average line size")
	return cmd
}
