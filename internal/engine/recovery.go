package engine

import (
	"bytes"
	"regexp"
	"sync"
	"time"

	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/types"
)

// StrategyMetrics tracks attempts/successes/average-recovery-time per
// recovery strategy, mirroring the shape of the RecoveryStrategy metrics
// this module's recovery ladder is grounded on, translated from the
// originals' running-average update into a snapshot computed on read.
type StrategyMetrics struct {
	mu   sync.Mutex
	byID map[string]*strategyCounters
}

type strategyCounters struct {
	attempts  int64
	successes int64
	totalTime time.Duration
}

// StrategySnapshot is one strategy's metrics at the moment Snapshot is
// called.
type StrategySnapshot struct {
	Attempts        int64
	Successes       int64
	SuccessRate     float64
	AvgRecoveryTime time.Duration
}

func NewStrategyMetrics() *StrategyMetrics {
	return &StrategyMetrics{byID: make(map[string]*strategyCounters)}
}

func (m *StrategyMetrics) record(strategy string, success bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[strategy]
	if !ok {
		c = &strategyCounters{}
		m.byID[strategy] = c
	}
	c.attempts++
	if success {
		c.successes++
		c.totalTime += elapsed
	}
}

// Snapshot returns a point-in-time copy of every strategy's metrics.
func (m *StrategyMetrics) Snapshot() map[string]StrategySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]StrategySnapshot, len(m.byID))
	for id, c := range m.byID {
		s := StrategySnapshot{Attempts: c.attempts, Successes: c.successes}
		if c.attempts > 0 {
			s.SuccessRate = float64(c.successes) / float64(c.attempts)
		}
		if c.successes > 0 {
			s.AvgRecoveryTime = c.totalTime / time.Duration(c.successes)
		}
		out[id] = s
	}
	return out
}

const (
	strategyFallbackPatterns = "fallback_patterns"
	strategyRegexFallback    = "regex_fallback"
	strategyPartialMatch     = "partial_match"
)

// recover walks the three recovery strategies in order, stopping at the
// first that produces a non-empty result. The returned bool reports
// whether recovery (as opposed to the primary evaluation) produced the
// matches, which controls which cache tier memoizes them.
func (e *Engine) recover(tree *types.ParseTree, source []byte, languageID string, pattern *types.Pattern, req *cache.Request) ([]types.PatternMatch, bool) {
	timeout := defaultStrategyTimeout
	if pattern.RecoveryConfig != nil && pattern.RecoveryConfig.StrategyTimeoutMS > 0 {
		timeout = time.Duration(pattern.RecoveryConfig.StrategyTimeoutMS) * time.Millisecond
	}

	if len(pattern.FallbackIDs) > 0 {
		matches := e.runWithTimeout(strategyFallbackPatterns, timeout, func() []types.PatternMatch {
			return e.fallbackPatterns(tree, source, languageID, pattern, req)
		})
		if len(matches) > 0 {
			return matches, true
		}
	}

	if pattern.RecoveryRegex != "" {
		matches := e.runWithTimeout(strategyRegexFallback, timeout, func() []types.PatternMatch {
			ms, err := matchesFromRegex(pattern.RecoveryRegex, source, pattern.ID, 0.4, "regex-recovery")
			if err != nil {
				return nil
			}
			return ms
		})
		if len(matches) > 0 {
			return matches, true
		}
	}

	if pattern.Kind == types.KindASTQuery && pattern.Compiled != nil {
		matches := e.runWithTimeout(strategyPartialMatch, timeout, func() []types.PatternMatch {
			return e.partialMatch(tree, source, pattern)
		})
		if len(matches) > 0 {
			return matches, true
		}
	}

	return nil, false
}

// runWithTimeout runs fn on its own goroutine and records an attempt
// against strategy's metrics, counting the run as failed if it exceeds
// budget. fn itself is never canceled — only the caller stops waiting — so
// a stray goroutine may still finish after the engine has moved on; this
// mirrors how the asynchronous original treated a recovery step as "timed
// out" without actually interrupting it.
func (e *Engine) runWithTimeout(strategy string, budget time.Duration, fn func() []types.PatternMatch) []types.PatternMatch {
	start := time.Now()
	resultCh := make(chan []types.PatternMatch, 1)
	go func() { resultCh <- fn() }()

	select {
	case matches := <-resultCh:
		success := len(matches) > 0
		e.metrics.record(strategy, success, time.Since(start))
		return matches
	case <-time.After(budget):
		e.metrics.record(strategy, false, time.Since(start))
		return nil
	}
}

// fallbackPatterns tries each id in pattern.FallbackIDs, in order, through
// the engine's own Process, returning the first non-empty result.
func (e *Engine) fallbackPatterns(tree *types.ParseTree, source []byte, languageID string, pattern *types.Pattern, req *cache.Request) []types.PatternMatch {
	for _, id := range pattern.FallbackIDs {
		fb := e.patterns.Get(languageID, id)
		if fb == nil || !fb.Usable {
			continue
		}
		matches, err := e.Process(tree, source, languageID, fb, req)
		if err == nil && len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// matchesFromRegex applies pattern line-by-line to source, synthesizing
// one PatternMatch per line that matches. Capture group 1, if present,
// becomes the "name" capture; the whole match becomes "match".
func matchesFromRegex(pattern string, source []byte, patternID string, confidence float64, nodeKind string) ([]types.PatternMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	li := newByteLineIndex(source)
	var matches []types.PatternMatch
	for i := 0; i < li.count(); i++ {
		line := li.line(i)
		loc := re.FindSubmatchIndex(line)
		if loc == nil {
			continue
		}
		base := li.start(i)
		whole := types.Span{StartByte: base + uint32(loc[0]), EndByte: base + uint32(loc[1])}
		captureMap := map[string][]types.Span{"match": {whole}}
		if len(loc) >= 4 && loc[2] >= 0 {
			captureMap["name"] = []types.Span{{StartByte: base + uint32(loc[2]), EndByte: base + uint32(loc[3])}}
		}
		matches = append(matches, types.PatternMatch{
			PatternID:   patternID,
			Captures:    captureMap,
			PrimarySpan: whole,
			Metadata:    types.MatchMetadata{NodeKind: nodeKind, Confidence: confidence},
			Recovered:   nodeKind != "regex",
		})
	}
	return matches, nil
}

// partialMatch runs pattern's compiled query over a sliding window of
// source lines, starting at 5 lines and doubling up to min(20, line
// count), stepping by half the window size, unioning results across
// window sizes and adjusting capture byte offsets by each window's
// starting byte offset.
func (e *Engine) partialMatch(tree *types.ParseTree, source []byte, pattern *types.Pattern) []types.PatternMatch {
	lines := bytes.Split(source, []byte("\n"))
	if len(lines) == 0 {
		return nil
	}

	windowSize := 5
	maxWindow := len(lines)
	if maxWindow > 20 {
		maxWindow = 20
	}

	synthetic := &types.ParseTree{LanguageID: tree.LanguageID}

	var all []types.PatternMatch
	for windowSize <= maxWindow {
		step := windowSize / 2
		if step < 1 {
			step = 1
		}
		for i := 0; i+windowSize <= len(lines); i += step {
			window := bytes.Join(lines[i:i+windowSize], []byte("\n"))
			windowStartByte := windowStartByte(lines, i)

			captures, err := e.runner.RunQuery(synthetic, pattern.Compiled, window)
			if err != nil || len(captures) == 0 {
				continue
			}
			ms := matchesFromCaptures(nil, pattern.ID, captures, windowStartByte)
			for j := range ms {
				ms[j].Metadata = types.MatchMetadata{NodeKind: "partial-match", Confidence: 0.5}
				ms[j].Recovered = true
			}
			all = append(all, ms...)
		}
		windowSize *= 2
	}
	return all
}

// windowStartByte replicates the original's
// `sum(len(line)+1 for line in lines[:i])` offset formula: every line
// before i contributed its own length plus the '\n' that bytes.Split
// consumed.
func windowStartByte(lines [][]byte, i int) uint32 {
	var total uint32
	for j := 0; j < i; j++ {
		total += uint32(len(lines[j])) + 1
	}
	return total
}

// byteLineIndex is a minimal line scanner for the regex-fallback strategy,
// independent of internal/custombackend's lineIndex to avoid an import
// across sibling leaf packages for a handful of lines of logic.
type byteLineIndex struct {
	lines  [][]byte
	starts []uint32
}

func newByteLineIndex(source []byte) *byteLineIndex {
	raw := bytes.Split(source, []byte("\n"))
	starts := make([]uint32, len(raw))
	var offset uint32
	for i, l := range raw {
		starts[i] = offset
		offset += uint32(len(l)) + 1
	}
	return &byteLineIndex{lines: raw, starts: starts}
}

func (li *byteLineIndex) count() int        { return len(li.lines) }
func (li *byteLineIndex) line(i int) []byte { return li.lines[i] }
func (li *byteLineIndex) start(i int) uint32 { return li.starts[i] }
