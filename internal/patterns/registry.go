// Package patterns implements the Pattern Registry (C3): lazy
// language→category→pattern_id loading, AST-query compilation with
// regex-fallback demotion on failure, and validation via syntactic checks
// plus embedded test-case evaluation.
package patterns

import (
	"sync"

	"golang.org/x/sync/singleflight"

	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/types"
)

// Compiler compiles an AST-query pattern's source against a language's
// grammar. It is satisfied by the AST Backend; the registry depends on this
// narrow interface rather than importing the backend directly, keeping the
// dependency DAG from C4 down to C3, never the reverse.
type Compiler interface {
	Compile(languageID, source string) (types.CompiledQuery, error)
}

// languageAliases is the closed normalization table from §4.3.
var languageAliases = map[string]string{
	"js":  "javascript",
	"yml": "yaml",
	"c++": "cpp",
	"ts":  "typescript",
}

// NormalizeLanguage lower-cases and aliases a language id through the
// closed table.
func NormalizeLanguage(id string) string {
	id = toLower(id)
	if alias, ok := languageAliases[id]; ok {
		return alias
	}
	return id
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Registry holds compiled patterns organized as
// language_id → category → pattern_id → Pattern, compiling entries lazily
// on first request and caching them until an explicit clear.
type Registry struct {
	compiler Compiler

	mu       sync.RWMutex
	loaded   map[string]bool // languageID -> compiled
	byLang   map[string]map[types.PatternCategory]map[string]*types.Pattern

	group singleflight.Group
	warm  *warmCache

	// source supplies the raw, uncompiled pattern definitions per
	// language; swappable in tests, defaulting to the embedded seed set.
	source func(languageID string) []definition
}

// New constructs a registry backed by compiler for AST-query patterns.
func New(compiler Compiler) *Registry {
	return &Registry{
		compiler: compiler,
		loaded:   make(map[string]bool),
		byLang:   make(map[string]map[types.PatternCategory]map[string]*types.Pattern),
		source:   seedDefinitions,
		warm:     newWarmCache(),
	}
}

// ensureLoaded compiles every definition for languageID exactly once,
// regardless of how many goroutines request it concurrently.
func (r *Registry) ensureLoaded(languageID string) []*engerrors.PatternError {
	languageID = NormalizeLanguage(languageID)

	r.mu.RLock()
	already := r.loaded[languageID]
	r.mu.RUnlock()
	if already {
		return nil
	}

	v, _, _ := r.group.Do(languageID, func() (any, error) {
		r.mu.Lock()
		if r.loaded[languageID] {
			r.mu.Unlock()
			return []*engerrors.PatternError(nil), nil
		}
		r.mu.Unlock()

		defs := r.source(languageID)
		byCat := make(map[types.PatternCategory]map[string]*types.Pattern)
		var compileErrs []*engerrors.PatternError

		for _, def := range defs {
			p, err := r.compileOne(languageID, def)
			if err != nil {
				compileErrs = append(compileErrs, err)
			}
			if byCat[p.Category] == nil {
				byCat[p.Category] = make(map[string]*types.Pattern)
			}
			byCat[p.Category][p.ID] = p
		}

		r.mu.Lock()
		r.byLang[languageID] = byCat
		r.loaded[languageID] = true
		r.mu.Unlock()

		return compileErrs, nil
	})

	if errs, ok := v.([]*engerrors.PatternError); ok {
		return errs
	}
	return nil
}

// compileOne compiles a single definition into a Pattern, applying the
// demotion contract from §4.3: a compilation failure demotes an AST-query
// pattern to Regex if a recovery regex is present, otherwise the pattern is
// marked unusable.
func (r *Registry) compileOne(languageID string, def definition) (*types.Pattern, *engerrors.PatternError) {
	p := &types.Pattern{
		ID:            def.id,
		LanguageID:    languageID,
		Category:      def.category,
		Kind:          types.KindASTQuery,
		Source:        def.query,
		Extract:       def.extract,
		TestCases:     def.testCases,
		FallbackIDs:   def.fallbackIDs,
		RecoveryRegex: def.recoveryRegex,
		Usable:        true,
	}

	if def.query == "" {
		p.Kind = types.KindRegex
		p.Usable = p.RecoveryRegex != "" || len(p.FallbackIDs) > 0
		return p, nil
	}

	if cached, ok := r.warm.get(languageID, p.ID); ok {
		p.Compiled = cached
		return p, nil
	}

	compiled, err := r.compiler.Compile(languageID, def.query)
	if err != nil {
		pe := engerrors.NewPatternError(engerrors.PatternCompilationFailed, p.ID, languageID, err)
		if p.RecoveryRegex != "" {
			p.Kind = types.KindRegex
			p.Usable = true
		} else {
			p.Usable = false
		}
		return p, pe
	}
	p.Compiled = compiled
	r.warm.put(languageID, p.ID, compiled)
	return p, nil
}

// PatternsFor returns every usable pattern for languageID, grouped by
// category, compiling them on first request.
func (r *Registry) PatternsFor(languageID string) map[types.PatternCategory][]*types.Pattern {
	r.ensureLoaded(languageID)
	languageID = NormalizeLanguage(languageID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[types.PatternCategory][]*types.Pattern)
	for cat, byID := range r.byLang[languageID] {
		for _, p := range byID {
			if p.Usable {
				out[cat] = append(out[cat], p)
			}
		}
	}
	return out
}

// Get returns one pattern by id, usable or not, compiling the language on
// first request; it returns nil if the language has no such pattern.
func (r *Registry) Get(languageID, patternID string) *types.Pattern {
	r.ensureLoaded(languageID)
	languageID = NormalizeLanguage(languageID)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, byID := range r.byLang[languageID] {
		if p, ok := byID[patternID]; ok {
			return p
		}
	}
	return nil
}

// Clear drops every compiled pattern across every language, including the
// warm compiled-query cache.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]bool)
	r.byLang = make(map[string]map[types.PatternCategory]map[string]*types.Pattern)
	r.warm.clear()
}

// ClearLanguage drops compiled patterns for one language only. Entries in
// the warm cache survive so a subsequent PatternsFor(languageID) can skip
// recompilation if the seed definitions haven't changed.
func (r *Registry) ClearLanguage(languageID string) {
	languageID = NormalizeLanguage(languageID)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loaded, languageID)
	delete(r.byLang, languageID)
}
