package pomps

// Default configuration values.
const (
	DefaultGroupBuckets   = 10
	DefaultGroupWorkers   = 1
	DefaultReportInterval = 10000
)

// GroupBuckets controls how many buckets the source is scattered into before
// grouping. Implement this interface to set the count from the job struct
// rather than the pipeline builder.
//
// The value can be overridden at runtime via WithGroupBuckets, which takes
// precedence. If neither is set, DefaultGroupBuckets (10) is used.
//
// Each bucket is grouped in memory, so the count bounds peak memory to about
// the source size divided by the bucket count. One bucket skips the scatter
// stage entirely. EstimateBuckets derives a count from available RAM.
//
// Example:
//
//	func (j *MyJob) GroupBuckets() int { return 64 }
type GroupBuckets interface {
	// GroupBuckets returns the number of buckets to scatter into.
	GroupBuckets() int
}

// GroupWorkers controls how many buckets are grouped concurrently.
//
// The value can be overridden at runtime via WithGroupWorkers, which takes
// precedence. If neither is set, DefaultGroupWorkers (1) is used.
//
// Peak memory grows with the worker count since every worker holds one
// bucket. The grouped output is the same for any worker count.
//
// Example:
//
//	func (j *MyJob) GroupWorkers() int { return runtime.NumCPU() }
type GroupWorkers interface {
	// GroupWorkers returns the number of concurrent grouping workers.
	GroupWorkers() int
}

// PartitionPolicy selects range or hash partitioning for the scatter stage.
//
// The value can be overridden at runtime via WithPartitioning, which takes
// precedence. If neither is set, PartitionRange is used. Hash partitioning
// skips the key scan but its output is only sorted within each bucket.
type PartitionPolicy interface {
	Partitioning() Partitioning
}

// resolveGroupBuckets returns the effective bucket count.
// Priority: WithGroupBuckets > GroupBuckets interface > DefaultGroupBuckets.
func (p *Pipeline) resolveGroupBuckets() int {
	if p.groupBuckets != nil {
		return *p.groupBuckets
	}
	if p.groupBucketsIface != nil {
		return p.groupBucketsIface.GroupBuckets()
	}
	return DefaultGroupBuckets
}

// resolveGroupWorkers returns the effective grouping worker count.
// Priority: WithGroupWorkers > GroupWorkers interface > DefaultGroupWorkers.
func (p *Pipeline) resolveGroupWorkers() int {
	if p.groupWorkers != nil {
		return *p.groupWorkers
	}
	if p.groupWorkersIface != nil {
		return p.groupWorkersIface.GroupWorkers()
	}
	return DefaultGroupWorkers
}

// resolveReportInterval returns the effective report interval.
// Priority: WithReportInterval > ReportInterval interface > DefaultReportInterval.
func (p *Pipeline) resolveReportInterval() int {
	if p.reportInterval != nil {
		return *p.reportInterval
	}
	if p.reportIntervalIface != nil {
		if n := p.reportIntervalIface.ReportInterval(); n >= 1 {
			return n
		}
	}
	return DefaultReportInterval
}

// resolvePartitioning returns the effective partitioning.
// Priority: WithPartitioning > PartitionPolicy interface > PartitionRange.
func (p *Pipeline) resolvePartitioning() Partitioning {
	if p.partitioning != nil {
		return *p.partitioning
	}
	if p.partitionIface != nil {
		return p.partitionIface.Partitioning()
	}
	return PartitionRange
}

// resolveGroupKey returns the key function and whether the run groups.
// Priority: WithGroupKey > GroupKeyer interface > no grouping.
func (p *Pipeline) resolveGroupKey() (KeyFunc, bool) {
	if p.groupKey != nil {
		return p.groupKey, true
	}
	if p.groupKeyer != nil {
		return p.groupKeyer.GroupKey, true
	}
	return nil, false
}
