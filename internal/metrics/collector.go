// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpEmbedding   = "embedding"
	OpLLMGenerate = "llm_generate"
	OpStoreSearch = "store_search"
	OpStoreAdd    = "store_add"
	OpIngest      = "ingest"
)

// Counter names for the collector.
const (
	CounterChunksIngested = "chunks_ingested"
	CounterFilesLoaded    = "files_loaded"
	CounterFilesFailed    = "files_failed"
	CounterQueries        = "queries"
	CounterQueryErrors    = "query_errors"
)

type operationMetrics struct {
	count     int64
	errors    int64
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
}

// OperationSnapshot provides computed stats for one operation.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full service statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
	Counters      map[string]int64             `json:"counters"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are safe for concurrent use; a nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*operationMetrics
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*operationMetrics),
		counters:  make(map[string]int64),
	}
}

// caller must hold the write lock
func (c *Collector) getOrCreate(op string) *operationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &operationMetrics{minTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records one completed operation. A non-nil err counts as a failure.
func (c *Collector) RecordTiming(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.count++
	m.totalTime += duration
	if err != nil {
		m.errors++
	}
	m.minTime = min(m.minTime, duration)
	m.maxTime = max(m.maxTime, duration)
}

// Start returns a function that records the elapsed time for op when called.
//
//	done := c.Start(metrics.OpStoreSearch)
//	docs, err := h.SimilaritySearch(ctx, q, k)
//	done(err)
func (c *Collector) Start(op string) func(error) {
	start := time.Now()
	return func(err error) {
		c.RecordTiming(op, time.Since(start), err)
	}
}

// Add increments a named counter.
func (c *Collector) Add(counter string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[counter] += n
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
		Counters:      make(map[string]int64, len(c.counters)),
	}
	for name, m := range c.ops {
		if m.count == 0 {
			continue
		}
		snap.Operations[name] = OperationSnapshot{
			Count:       m.count,
			Errors:      m.errors,
			TotalTimeMs: m.totalTime.Milliseconds(),
			AvgTimeMs:   float64(m.totalTime.Milliseconds()) / float64(m.count),
			MinTimeMs:   m.minTime.Milliseconds(),
			MaxTimeMs:   m.maxTime.Milliseconds(),
		}
	}
	for name, v := range c.counters {
		snap.Counters[name] = v
	}
	return snap
}
