// Package telemetry implements the engine's Telemetry leaf (C10): per-pattern
// match counts, recovery-strategy statistics, a bounded error audit log, and
// an in-process Subscribe(sink) fan-out for the external health monitor.
//
// Unlike the teacher's own metrics package, a Telemetry value owns its own
// prometheus.Registry rather than registering into the process-wide default
// one — the design notes rule out global singletons anywhere but the Cache
// Coordinator, and a package-level registry would make two Telemetry values
// in the same process (e.g. two tests) panic on duplicate registration.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/standardbeagle/codesage/internal/types"
)

// Record is the opaque payload handed to every subscribed sink. Which of the
// optional fields are populated depends on Stage.
type Record struct {
	Stage      string // "match", "recovery", "error"
	LanguageID string
	PatternID  string
	Strategy   string
	Success    bool
	Duration   time.Duration
	Err        error
	Count      int64
	Timestamp  time.Time
}

// Sink receives every Record emitted after it subscribes. Sinks run
// synchronously on the calling goroutine; a slow sink slows telemetry
// recording for every caller, so hosts wanting buffering do it inside their
// own sink.
type Sink func(Record)

// StrategySnapshot is the shape internal/engine's own StrategySnapshot is
// converted to before ingestion, kept as telemetry's own type so this
// package never imports internal/engine (it is a leaf consumed by every
// other component, not a consumer of them).
type StrategySnapshot struct {
	Attempts        int64
	Successes       int64
	SuccessRate     float64
	AvgRecoveryTime time.Duration
}

// AuditEntry is one error observed during a parse, retained for the audit
// log regardless of whether the error was surfaced or recovered locally.
type AuditEntry struct {
	Stage      string
	LanguageID string
	PatternID  string
	Err        error
	Timestamp  time.Time
}

const auditLogCapacity = 500

// Telemetry aggregates metrics for one process-lifetime scope. It is safe
// for concurrent use.
type Telemetry struct {
	registry *prometheus.Registry

	matchCounter     *prometheus.CounterVec
	recoveryAttempts *prometheus.CounterVec
	recoveryDuration *prometheus.HistogramVec
	errorCounter     *prometheus.CounterVec

	mu          sync.Mutex
	matchCounts map[string]int64
	strategies  map[string]StrategySnapshot
	audit       []AuditEntry

	sinkMu sync.RWMutex
	sinks  []Sink
}

// New constructs a Telemetry with its own prometheus registry.
func New() *Telemetry {
	t := &Telemetry{
		registry:    prometheus.NewRegistry(),
		matchCounts: make(map[string]int64),
		strategies:  make(map[string]StrategySnapshot),
	}

	t.matchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codesage_pattern_matches_total",
		Help: "Total matches produced per pattern id.",
	}, []string{"pattern_id"})

	t.recoveryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codesage_recovery_attempts_total",
		Help: "Recovery attempts per strategy, labeled by outcome.",
	}, []string{"strategy", "outcome"})

	t.recoveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codesage_recovery_duration_seconds",
		Help:    "Recovery strategy duration for successful recoveries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})

	t.errorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codesage_errors_total",
		Help: "Errors observed per stage.",
	}, []string{"stage"})

	t.registry.MustRegister(t.matchCounter, t.recoveryAttempts, t.recoveryDuration, t.errorCounter)
	return t
}

// Registry exposes the underlying prometheus registry for a host's /metrics
// endpoint.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }

// Subscribe adds sink to the fan-out list. It is never removed; callers
// wanting unsubscription compose their own gating inside the sink.
func (t *Telemetry) Subscribe(sink Sink) {
	if sink == nil {
		return
	}
	t.sinkMu.Lock()
	t.sinks = append(t.sinks, sink)
	t.sinkMu.Unlock()
}

func (t *Telemetry) notify(rec Record) {
	t.sinkMu.RLock()
	sinks := t.sinks
	t.sinkMu.RUnlock()
	for _, s := range sinks {
		s(rec)
	}
}

// RecordMatches tallies n matches for patternID.
func (t *Telemetry) RecordMatches(languageID, patternID string, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	t.matchCounts[patternID] += int64(n)
	t.mu.Unlock()

	t.matchCounter.WithLabelValues(patternID).Add(float64(n))
	t.notify(Record{Stage: "match", LanguageID: languageID, PatternID: patternID, Count: int64(n), Timestamp: time.Now()})
}

// RecordRecovery ingests one strategy's latest snapshot, replacing whatever
// was recorded for that strategy before — the snapshot is already
// cumulative, so ingestion is idempotent under repeated calls with the same
// data.
func (t *Telemetry) RecordRecovery(strategy string, snapshot StrategySnapshot) {
	t.mu.Lock()
	prev := t.strategies[strategy]
	t.strategies[strategy] = snapshot
	t.mu.Unlock()

	// Only the growth since the previous snapshot reaches the prometheus
	// series; Add also creates each series even when the growth is zero.
	newSuccesses := snapshot.Successes - prev.Successes
	newFailures := (snapshot.Attempts - snapshot.Successes) - (prev.Attempts - prev.Successes)
	t.recoveryAttempts.WithLabelValues(strategy, "success").Add(float64(max(newSuccesses, 0)))
	t.recoveryAttempts.WithLabelValues(strategy, "failure").Add(float64(max(newFailures, 0)))
	if newSuccesses > 0 && snapshot.AvgRecoveryTime > 0 {
		t.recoveryDuration.WithLabelValues(strategy).Observe(snapshot.AvgRecoveryTime.Seconds())
	}
	t.notify(Record{Stage: "recovery", Strategy: strategy, Success: snapshot.Successes > 0, Duration: snapshot.AvgRecoveryTime, Timestamp: time.Now()})
}

// RecordError appends err to the audit log and increments the per-stage
// error counter, evicting the oldest entry once the log reaches capacity.
func (t *Telemetry) RecordError(stage, languageID, patternID string, err error) {
	if err == nil {
		return
	}
	entry := AuditEntry{Stage: stage, LanguageID: languageID, PatternID: patternID, Err: err, Timestamp: time.Now()}

	t.mu.Lock()
	t.audit = append(t.audit, entry)
	if len(t.audit) > auditLogCapacity {
		t.audit = t.audit[len(t.audit)-auditLogCapacity:]
	}
	t.mu.Unlock()

	t.errorCounter.WithLabelValues(stage).Inc()
	t.notify(Record{Stage: "error", LanguageID: languageID, PatternID: patternID, Err: err, Timestamp: entry.Timestamp})
}

// AuditLog returns a copy of the retained error entries, oldest first.
func (t *Telemetry) AuditLog() []AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]AuditEntry, len(t.audit))
	copy(out, t.audit)
	return out
}

// Snapshot builds the types.PatternMetrics payload threaded through a
// ParserResult.
func (t *Telemetry) Snapshot() types.PatternMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int64, len(t.matchCounts))
	for k, v := range t.matchCounts {
		counts[k] = v
	}

	byName := make(map[string]types.StrategyMetrics, len(t.strategies))
	var recoveryAttempts int64
	for name, s := range t.strategies {
		byName[name] = types.StrategyMetrics{
			Attempts:        s.Attempts,
			Successes:       s.Successes,
			SuccessRate:     s.SuccessRate,
			AvgRecoveryTime: s.AvgRecoveryTime.Seconds(),
		}
		recoveryAttempts += s.Attempts
	}

	return types.PatternMetrics{
		MatchCounts:      counts,
		StrategyByName:   byName,
		RecoveryAttempts: recoveryAttempts,
	}
}

// ComplexPatternScore combines a pattern's static node count with the
// average recovery time recorded under patternID into an opaque complexity
// score; callers compare scores rather than depend on how they are
// computed. RecordRecovery keys recovery times by strategy name, so a
// pattern id that is not also a recorded strategy name scores on node
// count alone.
func (t *Telemetry) ComplexPatternScore(patternID string, nodeCount int) float64 {
	t.mu.Lock()
	avg := t.strategies[patternID].AvgRecoveryTime
	t.mu.Unlock()

	score := 0.0
	if nodeCount > 12 {
		score++
	}
	if avg > 10*time.Millisecond {
		score++
	}
	return score
}
