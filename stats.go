package pomps

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// Stats provides run statistics with thread-safe access.
// Counter fields use atomic operations for safe concurrent access from grouping workers.
type Stats struct {
	loaded      atomic.Int64
	scattered   atomic.Int64
	grouped     atomic.Int64
	filtered    atomic.Int64
	transformed atomic.Int64
	merged      atomic.Int64
	skipped     atomic.Int64
}

// NewStats creates a Stats with initial counter values.
func NewStats(loaded, scattered, grouped, filtered, transformed, merged, skipped int64) *Stats {
	s := &Stats{}
	s.loaded.Store(loaded)
	s.scattered.Store(scattered)
	s.grouped.Store(grouped)
	s.filtered.Store(filtered)
	s.transformed.Store(transformed)
	s.merged.Store(merged)
	s.skipped.Store(skipped)
	return s
}

// Loaded returns the number of source records read by the transform stage.
func (s *Stats) Loaded() int64 { return s.loaded.Load() }

// Scattered returns the number of records written to bucket files.
func (s *Stats) Scattered() int64 { return s.scattered.Load() }

// Grouped returns the number of GroupedBatch lines written.
func (s *Stats) Grouped() int64 { return s.grouped.Load() }

// Filtered returns the number of records dropped by a Filter before transformation.
func (s *Stats) Filtered() int64 { return s.filtered.Load() }

// Transformed returns the number of records produced by the transform stage.
func (s *Stats) Transformed() int64 { return s.transformed.Load() }

// Merged returns the number of records written by the merge-joiner.
func (s *Stats) Merged() int64 { return s.merged.Load() }

// Skipped returns the number of stages short-circuited by a published artifact.
func (s *Stats) Skipped() int64 { return s.skipped.Load() }

// LogValue implements slog.LogValuer for structured logging.
func (s *Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("loaded", s.Loaded()),
		slog.Int64("scattered", s.Scattered()),
		slog.Int64("grouped", s.Grouped()),
		slog.Int64("filtered", s.Filtered()),
		slog.Int64("transformed", s.Transformed()),
		slog.Int64("merged", s.Merged()),
		slog.Int64("skipped", s.Skipped()),
	)
}

type statsJSON struct {
	Loaded      int64 `json:"loaded"`
	Scattered   int64 `json:"scattered"`
	Grouped     int64 `json:"grouped"`
	Filtered    int64 `json:"filtered"`
	Transformed int64 `json:"transformed"`
	Merged      int64 `json:"merged"`
	Skipped     int64 `json:"skipped"`
}

// MarshalJSON implements json.Marshaler for Stats serialization.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Loaded:      s.loaded.Load(),
		Scattered:   s.scattered.Load(),
		Grouped:     s.grouped.Load(),
		Filtered:    s.filtered.Load(),
		Transformed: s.transformed.Load(),
		Merged:      s.merged.Load(),
		Skipped:     s.skipped.Load(),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Stats deserialization.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var v statsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.loaded.Store(v.Loaded)
	s.scattered.Store(v.Scattered)
	s.grouped.Store(v.Grouped)
	s.filtered.Store(v.Filtered)
	s.transformed.Store(v.Transformed)
	s.merged.Store(v.Merged)
	s.skipped.Store(v.Skipped)
	return nil
}

// Internal increment methods return the new value, which progress reporting
// relies on to detect interval crossings without a race.
func (s *Stats) incLoaded(n int64) int64      { return s.loaded.Add(n) }
func (s *Stats) incScattered(n int64) int64   { return s.scattered.Add(n) }
func (s *Stats) incGrouped(n int64) int64     { return s.grouped.Add(n) }
func (s *Stats) incFiltered(n int64) int64    { return s.filtered.Add(n) }
func (s *Stats) incTransformed(n int64) int64 { return s.transformed.Add(n) }
func (s *Stats) incMerged(n int64) int64      { return s.merged.Add(n) }
func (s *Stats) incSkipped(n int64) int64     { return s.skipped.Add(n) }
