package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codesage/internal/astbackend"
	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/types"
)

func sp(start, end uint32) types.Span { return types.Span{StartByte: start, EndByte: end} }

type fakeQuery struct{ lang string }

func (f fakeQuery) LanguageID() string { return f.lang }

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	fn    func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error)
}

func (f *fakeRunner) RunQuery(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(tree, compiled, source)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePatternSource struct {
	byLang map[string]map[types.PatternCategory][]*types.Pattern
	byID   map[string]*types.Pattern
}

func newFakePatternSource() *fakePatternSource {
	return &fakePatternSource{byLang: make(map[string]map[types.PatternCategory][]*types.Pattern), byID: make(map[string]*types.Pattern)}
}

func (f *fakePatternSource) add(lang string, p *types.Pattern) {
	if f.byLang[lang] == nil {
		f.byLang[lang] = make(map[types.PatternCategory][]*types.Pattern)
	}
	f.byLang[lang][p.Category] = append(f.byLang[lang][p.Category], p)
	f.byID[p.ID] = p
}

func (f *fakePatternSource) PatternsFor(lang string) map[types.PatternCategory][]*types.Pattern {
	return f.byLang[lang]
}

func (f *fakePatternSource) Get(lang, id string) *types.Pattern { return f.byID[id] }

func twoMatchCaptures() []astbackend.Capture {
	return []astbackend.Capture{
		{Name: "name", Span: sp(4, 7), MatchIndex: 0},
		{Name: "def", Span: sp(0, 10), MatchIndex: 0},
		{Name: "name", Span: sp(20, 23), MatchIndex: 1},
		{Name: "def", Span: sp(16, 26), MatchIndex: 1},
	}
}

func TestProcess_GroupsCapturesIntoOneMatchPerQueryMatch(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		return twoMatchCaptures(), nil
	}}
	ps := newFakePatternSource()
	e := New(runner, ps, nil)

	pattern := &types.Pattern{ID: "go.function_declaration", LanguageID: "go", Category: types.CategoryStructure, Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true}
	source := []byte("func Foo() {}\nfunc Bar() {}\n")
	tree := &types.ParseTree{LanguageID: "go", Backend: types.ParserKindAST, Root: &types.Node{Kind: "source_file", Span: sp(0, uint32(len(source)))}}

	matches, err := e.Process(tree, source, "go", pattern, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, sp(0, 10), matches[0].PrimarySpan)
	require.Equal(t, sp(16, 26), matches[1].PrimarySpan)
	require.Equal(t, []types.Span{sp(4, 7)}, matches[0].Captures["name"])
}

func TestProcess_MemoizesTerminalResultInPersistentCache(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		return []astbackend.Capture{{Name: "def", Span: sp(0, 5), MatchIndex: 0}}, nil
	}}
	ps := newFakePatternSource()
	persistent := cache.NewNamed("pattern", 1<<20, 0, false)
	e := New(runner, ps, persistent)

	pattern := &types.Pattern{ID: "go.function_declaration", LanguageID: "go", Category: types.CategoryStructure, Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true}
	source := []byte("func X() {}\n")
	tree := &types.ParseTree{LanguageID: "go", Root: &types.Node{Kind: "source_file", Span: sp(0, uint32(len(source)))}}

	_, err := e.Process(tree, source, "go", pattern, nil)
	require.NoError(t, err)
	_, err = e.Process(tree, source, "go", pattern, nil)
	require.NoError(t, err)

	require.Equal(t, 1, runner.callCount())
}

func TestProcess_RegexRecoveryOnMalformedSource(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		return nil, nil // simulates the AST query finding nothing on malformed input
	}}
	ps := newFakePatternSource()
	e := New(runner, ps, nil)

	pattern := &types.Pattern{
		ID: "python.function_definition", LanguageID: "python", Category: types.CategoryStructure,
		Kind: types.KindASTQuery, Compiled: fakeQuery{"python"}, Usable: true,
		RecoveryRegex: `^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`,
	}
	source := []byte("def broken(:\n    pass\n")
	tree := &types.ParseTree{LanguageID: "python", Root: &types.Node{Kind: "module", Span: sp(0, uint32(len(source))), HasError: true}}

	req := cache.NewRequest()
	matches, err := e.Process(tree, source, "python", pattern, req)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, matches[0].Recovered)
	require.Equal(t, "regex-recovery", matches[0].Metadata.NodeKind)
	require.InDelta(t, 0.4, matches[0].Metadata.Confidence, 0.0001)
	require.Equal(t, "broken", string(source[matches[0].Captures["name"][0].StartByte:matches[0].Captures["name"][0].EndByte]))
}

func TestProcess_RecoveredResultNotMemoizedInPersistentCache(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		return nil, nil
	}}
	ps := newFakePatternSource()
	persistent := cache.NewNamed("pattern", 1<<20, 0, false)
	e := New(runner, ps, persistent)

	pattern := &types.Pattern{
		ID: "python.function_definition", LanguageID: "python", Category: types.CategoryStructure,
		Kind: types.KindASTQuery, Compiled: fakeQuery{"python"}, Usable: true,
		RecoveryRegex: `^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`,
	}
	source := []byte("def broken(:\n    pass\n")
	tree := &types.ParseTree{LanguageID: "python", Root: &types.Node{Kind: "module", Span: sp(0, uint32(len(source)))}}

	_, err := e.Process(tree, source, "python", pattern, cache.NewRequest())
	require.NoError(t, err)

	key := cache.PatternKey("python", pattern.ID, cache.ContentHash(source))
	_, ok := persistent.Get(key)
	require.False(t, ok)
}

func TestProcess_FallbackPatternsStrategyTriesEachIDInOrder(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		return nil, nil
	}}
	ps := newFakePatternSource()
	fallback := &types.Pattern{
		ID: "go.loose_func", LanguageID: "go", Category: types.CategoryStructure,
		Kind: types.KindRegex, Usable: true, RecoveryRegex: `^func\s+([A-Za-z_][A-Za-z0-9_]*)`,
	}
	ps.add("go", fallback)

	e := New(runner, ps, nil)
	primary := &types.Pattern{
		ID: "go.function_declaration", LanguageID: "go", Category: types.CategoryStructure,
		Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true,
		FallbackIDs: []string{"go.loose_func"},
	}
	source := []byte("func Weird(( {}\n")
	tree := &types.ParseTree{LanguageID: "go", Root: &types.Node{Kind: "source_file", Span: sp(0, uint32(len(source)))}}

	matches, err := e.Process(tree, source, "go", primary, cache.NewRequest())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "go.loose_func", matches[0].PatternID)
}

func TestPartialMatch_AdjustsCaptureOffsetsByWindowStart(t *testing.T) {
	// Ten lines; only windows containing line 5 ("func Hit() {}") match.
	lines := []string{"a", "b", "c", "d", "e", "func Hit() {}", "g", "h", "i", "j"}
	source := []byte(joinWithNewline(lines))

	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, window []byte) ([]astbackend.Capture, error) {
		if !contains(window, []byte("Hit")) {
			return nil, nil
		}
		idx := indexOf(window, []byte("Hit"))
		return []astbackend.Capture{
			{Name: "name", Span: sp(uint32(idx), uint32(idx+3)), MatchIndex: 0},
			{Name: "def", Span: sp(0, uint32(len(window))), MatchIndex: 0},
		}, nil
	}}
	ps := newFakePatternSource()
	e := New(runner, ps, nil)

	pattern := &types.Pattern{
		ID: "go.function_declaration", LanguageID: "go", Category: types.CategoryStructure,
		Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true,
	}
	tree := &types.ParseTree{LanguageID: "go", Root: &types.Node{Kind: "source_file", Span: sp(0, uint32(len(source)))}}

	matches := e.partialMatch(tree, source, pattern)
	require.NotEmpty(t, matches)

	found := false
	for _, m := range matches {
		start, end := m.Captures["name"][0].StartByte, m.Captures["name"][0].EndByte
		// The offset is correct exactly when re-indexing the *original*
		// source at the adjusted byte range reproduces the captured text.
		if string(source[start:end]) == "Hit" {
			found = true
			require.Equal(t, "partial-match", m.Metadata.NodeKind)
			require.InDelta(t, 0.5, m.Metadata.Confidence, 0.0001)
			require.True(t, m.Recovered)
		}
	}
	require.True(t, found)
}

func TestDedupeAndOrder_MergesIdenticalPrimarySpanAndSortsDeterministically(t *testing.T) {
	a := types.PatternMatch{PatternID: "p1", PrimarySpan: sp(10, 20), Captures: map[string][]types.Span{"x": {sp(11, 12)}}}
	b := types.PatternMatch{PatternID: "p1", PrimarySpan: sp(10, 20), Captures: map[string][]types.Span{"y": {sp(13, 14)}}}
	c := types.PatternMatch{PatternID: "p0", PrimarySpan: sp(0, 5)}

	out := dedupeAndOrder([]types.PatternMatch{a, b, c})
	require.Len(t, out, 2)
	require.Equal(t, "p0", out[0].PatternID)
	require.Equal(t, "p1", out[1].PatternID)
	require.Len(t, out[1].Captures, 2)
}

func TestStrategyMetrics_RecordsAttemptsAndSuccessRate(t *testing.T) {
	m := NewStrategyMetrics()
	m.record("regex_fallback", true, 0)
	m.record("regex_fallback", false, 0)
	snap := m.Snapshot()["regex_fallback"]
	require.Equal(t, int64(2), snap.Attempts)
	require.Equal(t, int64(1), snap.Successes)
	require.InDelta(t, 0.5, snap.SuccessRate, 0.0001)
}

func TestProcessAll_AggregatesAcrossPatternsAndCategories(t *testing.T) {
	runner := &fakeRunner{fn: func(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]astbackend.Capture, error) {
		q := compiled.(fakeQuery)
		if q.lang == "go" {
			return []astbackend.Capture{{Name: "def", Span: sp(0, 4), MatchIndex: 0}}, nil
		}
		return nil, nil
	}}
	ps := newFakePatternSource()
	ps.add("go", &types.Pattern{ID: "a", LanguageID: "go", Category: types.CategoryStructure, Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true})
	ps.add("go", &types.Pattern{ID: "b", LanguageID: "go", Category: types.CategoryNaming, Kind: types.KindASTQuery, Compiled: fakeQuery{"go"}, Usable: true})

	e := New(runner, ps, nil)
	source := []byte("func Foo() {}\n")
	tree := &types.ParseTree{LanguageID: "go", Root: &types.Node{Kind: "source_file", Span: sp(0, uint32(len(source)))}}

	all, err := e.ProcessAll(tree, source, "go", nil, cache.NewRequest())
	require.NoError(t, err)
	require.Len(t, all, 2)

	structureOnly, err := e.ProcessAll(tree, source, "go", []types.PatternCategory{types.CategoryStructure}, cache.NewRequest())
	require.NoError(t, err)
	require.Len(t, structureOnly, 1)
	require.Equal(t, "a", structureOnly[0].PatternID)
}

func joinWithNewline(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func contains(haystack, needle []byte) bool { return indexOf(haystack, needle) >= 0 }

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}
