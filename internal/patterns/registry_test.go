package patterns

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codesage/internal/types"
)

type fakeQuery struct{ lang string }

func (q fakeQuery) LanguageID() string { return q.lang }

type fakeCompiler struct {
	mu        sync.Mutex
	calls     map[string]int
	failFor   map[string]bool
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{calls: make(map[string]int), failFor: make(map[string]bool)}
}

func (f *fakeCompiler) Compile(languageID, source string) (types.CompiledQuery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := languageID + "\x00" + source
	f.calls[key]++
	if f.failFor[languageID] {
		return nil, fmt.Errorf("grammar unavailable for %s", languageID)
	}
	return fakeQuery{lang: languageID}, nil
}

func (f *fakeCompiler) callCount(languageID, source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[languageID+"\x00"+source]
}

func TestRegistry_LazyLoading(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)

	// No compilation happens until something asks for the language.
	require.Equal(t, 0, compiler.callCount("python", pythonDefinitions[0].query))

	patterns := r.PatternsFor("python")
	require.NotEmpty(t, patterns[types.CategorySyntax])
}

func TestRegistry_LanguageAliasNormalization(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)

	byAlias := r.PatternsFor("js")
	byCanonical := r.PatternsFor("javascript")
	require.Equal(t, len(byCanonical[types.CategorySyntax]), len(byAlias[types.CategorySyntax]))
}

func TestRegistry_SingleflightDedupUnderConcurrency(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)

	var wg sync.WaitGroup
	var started atomic.Int64
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Add(1)
			r.PatternsFor("go")
		}()
	}
	wg.Wait()

	require.EqualValues(t, 32, started.Load())
	// Every go.* pattern with a query must have compiled exactly once
	// despite 32 concurrent first-touches.
	for _, def := range goDefinitions {
		if def.query == "" {
			continue
		}
		require.Equal(t, 1, compiler.callCount("go", def.query), "pattern %s compiled more than once", def.id)
	}
}

func TestRegistry_CompilationFailureDemotesToRegex(t *testing.T) {
	compiler := newFakeCompiler()
	compiler.failFor["rust"] = true
	r := New(compiler)

	p := r.Get("rust", "rust.function_item")
	require.NotNil(t, p)
	require.Equal(t, types.KindRegex, p.Kind)
	require.True(t, p.Usable)
	require.Nil(t, p.Compiled)

	// rust.result_type has no recovery regex, so it must be marked
	// unusable rather than demoted.
	p2 := r.Get("rust", "rust.result_type")
	require.NotNil(t, p2)
	require.False(t, p2.Usable)
}

func TestRegistry_ClearLanguageReusesWarmCache(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)

	r.PatternsFor("python")
	before := compiler.callCount("python", pythonDefinitions[0].query)
	require.Equal(t, 1, before)

	r.ClearLanguage("python")
	r.PatternsFor("python")
	// The warm cache still holds the compiled query, so a second
	// compile() call is not required.
	require.Equal(t, 1, compiler.callCount("python", pythonDefinitions[0].query))
}

func TestRegistry_ClearDropsWarmCacheToo(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)

	r.PatternsFor("python")
	r.Clear()
	r.PatternsFor("python")
	require.Equal(t, 2, compiler.callCount("python", pythonDefinitions[0].query))
}

// stubRunner simulates the Pattern Engine's query evaluation by searching
// for a fixed substring in the input and reporting its byte span under the
// pattern's expected capture name.
type stubRunner struct {
	find string
}

func (s stubRunner) Run(languageID string, source []byte, p *types.Pattern) (map[string][]types.Span, error) {
	idx := strings.Index(string(source), s.find)
	if idx < 0 {
		return map[string][]types.Span{}, nil
	}
	span := types.Span{StartByte: uint32(idx), EndByte: uint32(idx + len(s.find))}
	name := p.TestCases[0].ExpectedCapture
	return map[string][]types.Span{name: {span}}, nil
}

func TestValidate_TestCasePassesOnExactMatch(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)
	p := r.Get("python", "python.function_definition")
	require.NotNil(t, p)

	result := Validate(p, stubRunner{find: "foo"})
	require.True(t, result.OK, "errors: %v", result.Errors)
}

func TestValidate_TestCaseFailsOnDissimilarCapture(t *testing.T) {
	compiler := newFakeCompiler()
	r := New(compiler)
	p := r.Get("python", "python.function_definition")
	require.NotNil(t, p)

	result := Validate(p, stubRunner{find: "pass"})
	require.False(t, result.OK)
	require.NotEmpty(t, result.Errors)
}

func TestValidate_UnusablePatternFails(t *testing.T) {
	compiler := newFakeCompiler()
	compiler.failFor["rust"] = true
	r := New(compiler)
	p := r.Get("rust", "rust.result_type")
	require.NotNil(t, p)

	result := Validate(p, nil)
	require.False(t, result.OK)
}
