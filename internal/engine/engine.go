// Package engine implements the Pattern Engine (C7): it evaluates compiled
// patterns against a parsed tree, orders and deduplicates the resulting
// matches, and — when a pattern that syntactically should have matched
// produced nothing — walks the recovery ladder defined in recovery.go.
package engine

import (
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codesage/internal/astbackend"
	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/types"
)

// Runner evaluates a compiled AST-query pattern against a tree. It is
// satisfied by the AST Backend; the engine depends on this narrow
// interface, not the concrete backend, for the same reason the Pattern
// Registry depends on patterns.Compiler rather than astbackend.Backend.
type Runner interface {
	RunQuery(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error)
}

// PatternSource supplies the patterns a language has registered. It is
// satisfied by *patterns.Registry.
type PatternSource interface {
	PatternsFor(languageID string) map[types.PatternCategory][]*types.Pattern
	Get(languageID, patternID string) *types.Pattern
}

// defaultStrategyTimeout is the per-strategy recovery budget from §4.7;
// patterns may override it via Pattern.RecoveryConfig.
const defaultStrategyTimeout = 50 * time.Millisecond

// maxWorkers bounds ProcessAll's fan-out across independent patterns.
func maxWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

// Engine orchestrates pattern evaluation over a single parsed tree.
// It is safe for concurrent use: its mutable state is the caches it is
// handed and its mutex-guarded StrategyMetrics.
type Engine struct {
	runner     Runner
	patterns   PatternSource
	persistent *cache.Named // terminal, non-recovered results; nil disables memoization
	metrics    *StrategyMetrics
}

// New constructs an Engine. persistent may be nil, in which case terminal
// results are simply never memoized.
func New(runner Runner, patterns PatternSource, persistent *cache.Named) *Engine {
	return &Engine{
		runner:     runner,
		patterns:   patterns,
		persistent: persistent,
		metrics:    NewStrategyMetrics(),
	}
}

// Metrics exposes the engine's recovery-strategy counters for telemetry.
func (e *Engine) Metrics() *StrategyMetrics { return e.metrics }

// recoverableCategory is the engine heuristic from §4.7: recovery only
// makes sense for patterns whose category claims syntactic or structural
// coverage of the unit.
func recoverableCategory(cat types.PatternCategory) bool {
	return cat == types.CategorySyntax || cat == types.CategoryStructure
}

// Process evaluates one pattern against tree, returning its matches sorted
// and deduplicated. req is the call-scoped cache used to memoize recovered
// results; it may be nil.
func (e *Engine) Process(tree *types.ParseTree, source []byte, languageID string, pattern *types.Pattern, req *cache.Request) ([]types.PatternMatch, error) {
	if pattern == nil || !pattern.Usable {
		return nil, nil
	}

	contentHash := cache.ContentHash(source)
	key := cache.PatternKey(languageID, pattern.ID, contentHash)

	if e.persistent != nil {
		if v, ok := e.persistent.Get(key); ok {
			if cached, ok := v.(matchList); ok {
				return []types.PatternMatch(cached), nil
			}
		}
	}
	if req != nil {
		if v, ok := req.Get(key); ok {
			if cached, ok := v.([]types.PatternMatch); ok {
				return cached, nil
			}
		}
	}

	matches, err := e.evaluatePrimary(tree, source, pattern)
	if err != nil {
		return nil, err
	}

	recovered := false
	if len(matches) == 0 && recoverableCategory(pattern.Category) && len(source) > 0 {
		matches, recovered = e.recover(tree, source, languageID, pattern, req)
	}

	matches = dedupeAndOrder(matches)

	if recovered {
		if req != nil {
			req.Set(key, matches)
		}
	} else if e.persistent != nil {
		e.persistent.Set(key, matchList(matches), 0, nil)
	}

	return matches, nil
}

// ProcessAll evaluates every usable pattern for languageID whose category
// is in categories (all categories when categories is empty), fanning out
// across a bounded worker pool since patterns are independent of each
// other.
func (e *Engine) ProcessAll(tree *types.ParseTree, source []byte, languageID string, categories []types.PatternCategory, req *cache.Request) ([]types.PatternMatch, error) {
	byCat := e.patterns.PatternsFor(languageID)

	var selected []*types.Pattern
	if len(categories) == 0 {
		for _, list := range byCat {
			selected = append(selected, list...)
		}
	} else {
		want := make(map[types.PatternCategory]bool, len(categories))
		for _, c := range categories {
			want[c] = true
		}
		for cat, list := range byCat {
			if want[cat] {
				selected = append(selected, list...)
			}
		}
	}

	results := make([][]types.PatternMatch, len(selected))

	var g errgroup.Group
	g.SetLimit(maxWorkers())
	for i, p := range selected {
		i, p := i, p
		g.Go(func() error {
			m, err := e.Process(tree, source, languageID, p, req)
			if err != nil {
				// A single pattern's failure never aborts the others —
				// ProcessAll is best-effort over an independent set.
				return nil
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()

	var all []types.PatternMatch
	for _, m := range results {
		all = append(all, m...)
	}
	return dedupeAndOrder(all), nil
}

// matchList adapts []types.PatternMatch to types.Sized for the persistent
// cache, which accounts memory by value rather than by reference.
type matchList []types.PatternMatch

func (m matchList) SizeBytes() int64 {
	const perMatchOverhead = 128
	var total int64
	for _, match := range m {
		total += perMatchOverhead
		for _, spans := range match.Captures {
			total += int64(len(spans)) * 32
		}
	}
	return total
}

// evaluatePrimary runs pattern's own query/regex against the whole tree,
// without invoking any recovery strategy.
func (e *Engine) evaluatePrimary(tree *types.ParseTree, source []byte, pattern *types.Pattern) ([]types.PatternMatch, error) {
	switch pattern.Kind {
	case types.KindASTQuery:
		return e.runASTQuery(tree, source, pattern)
	case types.KindRegex:
		return matchesFromRegex(pattern.RecoveryRegex, source, pattern.ID, 1.0, "regex")
	default:
		return nil, nil
	}
}

// runASTQuery runs pattern's compiled query and groups the flat capture
// list the AST Backend returns back into one PatternMatch per query match.
func (e *Engine) runASTQuery(tree *types.ParseTree, source []byte, pattern *types.Pattern) ([]types.PatternMatch, error) {
	captures, err := e.runner.RunQuery(tree, pattern.Compiled, source)
	if err != nil {
		return nil, err
	}
	return matchesFromCaptures(tree, pattern.ID, captures, 0), nil
}

// groupByMatchIndex buckets a flat capture list back into per-match groups,
// preserving the first-seen order of each match index.
func groupByMatchIndex(captures []astbackend.Capture) [][]astbackend.Capture {
	byMatch := make(map[int][]astbackend.Capture)
	var order []int
	for _, c := range captures {
		if _, seen := byMatch[c.MatchIndex]; !seen {
			order = append(order, c.MatchIndex)
		}
		byMatch[c.MatchIndex] = append(byMatch[c.MatchIndex], c)
	}
	groups := make([][]astbackend.Capture, len(order))
	for i, idx := range order {
		groups[i] = byMatch[idx]
	}
	return groups
}

// matchesFromCaptures converts a flat capture list into PatternMatch
// records, one per query match, offsetting every span by byteOffset (used
// by the partial-match recovery strategy to translate window-local byte
// positions back into source-absolute ones). tree is consulted for
// has_error confidence only when byteOffset is 0, since a windowed
// sub-parse has no node in the original tree to look up.
func matchesFromCaptures(tree *types.ParseTree, patternID string, captures []astbackend.Capture, byteOffset uint32) []types.PatternMatch {
	groups := groupByMatchIndex(captures)
	matches := make([]types.PatternMatch, 0, len(groups))
	for _, group := range groups {
		captureMap := make(map[string][]types.Span)
		primary := offsetSpan(group[0].Span, byteOffset)
		for _, c := range group {
			span := offsetSpan(c.Span, byteOffset)
			captureMap[c.Name] = append(captureMap[c.Name], span)
			if span.StartByte < primary.StartByte {
				primary.StartByte = span.StartByte
				primary.StartPoint = span.StartPoint
			}
			if span.EndByte > primary.EndByte {
				primary.EndByte = span.EndByte
				primary.EndPoint = span.EndPoint
			}
		}

		confidence := 1.0
		nodeKind := ""
		if byteOffset == 0 {
			if node := findNodeAtSpan(tree, primary); node != nil {
				nodeKind = node.Kind
				if node.HasError {
					confidence = 0.5
				}
			}
		}

		matches = append(matches, types.PatternMatch{
			PatternID:   patternID,
			Captures:    captureMap,
			PrimarySpan: primary,
			Metadata:    types.MatchMetadata{NodeKind: nodeKind, Confidence: confidence},
		})
	}
	return matches
}

func offsetSpan(s types.Span, byteOffset uint32) types.Span {
	if byteOffset == 0 {
		return s
	}
	s.StartByte += byteOffset
	s.EndByte += byteOffset
	return s
}

func findNodeAtSpan(tree *types.ParseTree, span types.Span) *types.Node {
	if tree == nil || tree.Root == nil {
		return nil
	}
	var found *types.Node
	tree.Root.Walk(func(n *types.Node) bool {
		if n.Span.StartByte == span.StartByte && n.Span.EndByte == span.EndByte {
			found = n
			return false
		}
		return true
	})
	return found
}

// dedupeAndOrder applies §4.7's ordering ((start_byte, -span_length,
// pattern_id)) and dedup (identical (pattern_id, primary_span) collapse,
// merging captures) rules.
func dedupeAndOrder(matches []types.PatternMatch) []types.PatternMatch {
	if len(matches) == 0 {
		return matches
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.PrimarySpan.StartByte != b.PrimarySpan.StartByte {
			return a.PrimarySpan.StartByte < b.PrimarySpan.StartByte
		}
		if a.PrimarySpan.Len() != b.PrimarySpan.Len() {
			return a.PrimarySpan.Len() > b.PrimarySpan.Len()
		}
		return a.PatternID < b.PatternID
	})

	type identity struct {
		patternID  string
		start, end uint32
	}
	seen := make(map[identity]int, len(matches))
	out := make([]types.PatternMatch, 0, len(matches))
	for _, m := range matches {
		id, span := m.Key()
		key := identity{id, span.StartByte, span.EndByte}
		if idx, ok := seen[key]; ok {
			out[idx] = out[idx].MergeCaptures(m)
			continue
		}
		seen[key] = len(out)
		out = append(out, m)
	}
	return out
}
