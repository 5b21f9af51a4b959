package review

import (
	"sync"
	"time"
)

const bucketCount = 10

// Metrics accumulates the per-request counters the admin review-metrics
// inspect endpoint reports: elapsed time per tier, chosen tier,
// confidence bucket, duplicate/dedup hit, degraded flag.
type Metrics struct {
	mu                sync.Mutex
	tierCounts        map[string]int64
	confidenceBuckets [bucketCount]int64
	duplicateCount    int64
	degradedCount     int64
	rejectedCount     int64
	elapsedTotal      map[string]time.Duration
	elapsedCount      map[string]int64
}

// NewMetrics creates an empty Metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{
		tierCounts:   make(map[string]int64),
		elapsedTotal: make(map[string]time.Duration),
		elapsedCount: make(map[string]int64),
	}
}

// RecordTier increments the completed-request count for the chosen tier.
func (m *Metrics) RecordTier(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tierCounts[tier]++
}

// RecordConfidence buckets a confidence score into one of 10 buckets:
// [0.0,0.1), [0.1,0.2), ..., [0.9,1.0].
func (m *Metrics) RecordConfidence(confidence float64) {
	idx := int(confidence * bucketCount)
	if idx < 0 {
		idx = 0
	}
	if idx >= bucketCount {
		idx = bucketCount - 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidenceBuckets[idx]++
}

// RecordElapsed accumulates elapsed time for the given tier's reviewer call.
func (m *Metrics) RecordElapsed(tier string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsedTotal[tier] += d
	m.elapsedCount[tier]++
}

// RecordDuplicate increments the dedup-hit counter.
func (m *Metrics) RecordDuplicate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duplicateCount++
}

// RecordDegraded increments the degraded-result counter.
func (m *Metrics) RecordDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degradedCount++
}

// RecordRejected increments the permanently-rejected counter.
func (m *Metrics) RecordRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectedCount++
}

// Snapshot is a read-only copy of the accumulated metrics, for the admin
// inspect surface.
type Snapshot struct {
	TierCounts        map[string]int64   `json:"tier_counts"`
	ConfidenceBuckets [bucketCount]int64 `json:"confidence_buckets"`
	DuplicateCount    int64              `json:"duplicate_count"`
	DegradedCount     int64              `json:"degraded_count"`
	RejectedCount     int64              `json:"rejected_count"`
	AvgElapsedMs      map[string]float64 `json:"avg_elapsed_ms"`
}

// Snapshot returns a copy of the current metrics state.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tierCounts := make(map[string]int64, len(m.tierCounts))
	for k, v := range m.tierCounts {
		tierCounts[k] = v
	}

	avg := make(map[string]float64, len(m.elapsedTotal))
	for tier, total := range m.elapsedTotal {
		count := m.elapsedCount[tier]
		if count == 0 {
			continue
		}
		avg[tier] = float64(total.Milliseconds()) / float64(count)
	}

	return Snapshot{
		TierCounts:        tierCounts,
		ConfidenceBuckets: m.confidenceBuckets,
		DuplicateCount:    m.duplicateCount,
		DegradedCount:     m.degradedCount,
		RejectedCount:     m.rejectedCount,
		AvgElapsedMs:      avg,
	}
}
