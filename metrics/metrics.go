// Package metrics exposes Prometheus collectors for the OCFL engine. A nil
// *Metrics is valid and records nothing, so instrumentation call sites don't
// need guards.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ocfl"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	commits          *prometheus.CounterVec
	commitDuration   prometheus.Histogram
	fixityFailures   prometheus.Counter
	dedupHits        prometheus.Counter
	lockTimeouts     prometheus.Counter
	bytesTransferred prometheus.Counter
}

// New returns Metrics registered with reg. If reg is nil, the collectors are
// created unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Object version commits by outcome.",
		}, []string{"outcome"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing object versions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		fixityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixity_failures_total",
			Help:      "Digest mismatches detected by fixity-checked reads and writes.",
		}),
		dedupHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedup_hits_total",
			Help:      "Staged files whose content already existed in the manifest.",
		}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_timeouts_total",
			Help:      "Object lock acquisitions that timed out.",
		}),
		bytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_bytes_total",
			Help:      "Content bytes transferred into object version directories.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.commits,
			m.commitDuration,
			m.fixityFailures,
			m.dedupHits,
			m.lockTimeouts,
			m.bytesTransferred,
		)
	}
	return m
}

// Commit records a commit attempt and its duration.
func (m *Metrics) Commit(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
	m.commitDuration.Observe(d.Seconds())
}

// FixityFailure records a digest mismatch.
func (m *Metrics) FixityFailure() {
	if m == nil {
		return
	}
	m.fixityFailures.Inc()
}

// DedupHit records a staged file deduplicated against existing content.
func (m *Metrics) DedupHit() {
	if m == nil {
		return
	}
	m.dedupHits.Inc()
}

// LockTimeout records a lock acquisition timeout.
func (m *Metrics) LockTimeout() {
	if m == nil {
		return
	}
	m.lockTimeouts.Inc()
}

// BytesTransferred records content bytes written to a version directory.
func (m *Metrics) BytesTransferred(n int64) {
	if m == nil {
		return
	}
	m.bytesTransferred.Add(float64(n))
}
