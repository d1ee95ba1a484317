// Package pomps groups and joins newline-delimited JSON files that do not fit
// in memory.
//
// Work is split into checkpointed stages. Every stage writes one artifact at
// a deterministic path, first under a temporary name and then published with
// an atomic rename. A stage whose artifact already exists is skipped, so an
// interrupted run resumes where it failed simply by being run again.
//
// # Quick Start
//
// A job loads raw data and transforms it one record at a time:
//
//	type PeopleJob struct{ url string }
//
//	func (j *PeopleJob) Load(ctx context.Context, path string) error {
//	    return loader.HTTP(j.url, loader.TSV()).Load(ctx, path)
//	}
//
//	func (j *PeopleJob) Transform(ctx context.Context, rec pomps.Record) (pomps.Record, error) {
//	    return pomps.Object(
//	        pomps.KV("id", rec.Lookup("nconst")),
//	        pomps.KV("name", rec.Lookup("primaryName")),
//	    ), nil
//	}
//
//	ns := pomps.NewNamespace("./data", "prod", executionDate)
//	path, err := pomps.New("people", ns, &PeopleJob{url: url}).Run(ctx)
//
// # Grouping
//
// Configure a group key with WithGroupKey (or implement GroupKeyer) and the
// loaded source is grouped before transformation. The job then implements
// GroupTransformer and receives one GroupedBatch per key, in key order:
//
//	func (j *CreditsJob) GroupKey(rec pomps.Record) (string, error) {
//	    return pomps.FieldKey("tconst")(rec)
//	}
//
//	func (j *CreditsJob) TransformGroup(ctx context.Context, b pomps.GroupedBatch) (pomps.Record, error) {
//	    return pomps.Object(
//	        pomps.KV("tconst", pomps.String(b.Key)),
//	        pomps.KV("credits", pomps.Array(b.Data...)),
//	    ), nil
//	}
//
// Grouping works on disk. The source is scanned once to build a BucketMap of
// key ranges holding roughly equal numbers of records, scattered into one
// file per range, and each bucket is then grouped in memory. Because ranges
// are disjoint and ascending, concatenating the grouped buckets yields one
// file sorted by key. GroupData and Grouper expose this outside a pipeline.
//
// # Joining
//
// MergeJoin walks two grouped files in key order and calls a Combiner once
// per distinct key with the records from each side, either possibly empty.
// Returning no records drops the key, which is how inner and one-sided joins
// are written; Join does that for the common cases:
//
//	merged, err := pomps.MergeDataSources(ctx, "credits_with_people", ns,
//	    creditsByPerson, people, pomps.Join(pomps.LeftJoin, pomps.CombinerFunc(attach)))
//
// # File Format
//
// Every artifact is UTF-8 JSONL with one value per line and a trailing
// newline. Records are written as compact JSON: no spaces after ':' or ',',
// no HTML escaping, object fields in their original order and numbers as
// their original literal text. Files written by tools that emit spaced JSON
// (such as Python's json.dumps defaults) hold the same data but are not
// byte-identical. pomps reads either form, so such grouped files can still
// be merged, but comparing or checksumming artifacts across the two needs a
// JSON-aware diff.
//
// # Configuration
//
// Pipeline settings follow one rule: a WithXxx builder call wins over the
// matching job interface, which wins over the default.
//
//	| Setting        | Builder              | Interface        | Default |
//	|----------------|----------------------|------------------|---------|
//	| Group key      | WithGroupKey         | GroupKeyer       | none    |
//	| Buckets        | WithGroupBuckets     | GroupBuckets     | 10      |
//	| Group workers  | WithGroupWorkers     | GroupWorkers     | 1       |
//	| Partitioning   | WithPartitioning     | PartitionPolicy  | range   |
//	| Report every   | WithReportInterval   | ReportInterval   | 10000   |
//
// EstimateBuckets derives a bucket count from a file's size and the RAM
// currently available.
//
// # Observability
//
// Stages log through log/slog (WithLogger), count into Stats, and optionally
// export Prometheus metrics (NewMetrics, WithMetrics). Jobs can hook Starter,
// Stopper, Filter and ProgressReporter.
package pomps
