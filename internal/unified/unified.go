// Package unified implements the Unified Parser facade (C9): the single
// parse(path, bytes, options) entry point that wires the classifier, the
// two backends, the pattern registry and engine, the block extractor, the
// feature extractor, and telemetry into one call, collapsing the teacher's
// many ParseFile* entry points into one.
package unified

import (
	"context"
	"sort"
	"time"

	"github.com/standardbeagle/codesage/internal/astbackend"
	"github.com/standardbeagle/codesage/internal/blocks"
	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/classifier"
	"github.com/standardbeagle/codesage/internal/custombackend"
	"github.com/standardbeagle/codesage/internal/engine"
	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/features"
	"github.com/standardbeagle/codesage/internal/patterns"
	"github.com/standardbeagle/codesage/internal/telemetry"
	"github.com/standardbeagle/codesage/internal/types"
)

// classifyPrefixBytes bounds how much of a source's head the classifier's
// content sniff reads.
const classifyPrefixBytes = 512

// defaultPatternTimeout is used when Options.PatternTimeoutMS is unset.
const defaultPatternTimeout = 5 * time.Second

// Parser wires every component into the facade. It holds no per-call state;
// all mutable state lives in the caches and registry it is constructed
// with, so one Parser may serve many concurrent Parse calls.
type Parser struct {
	ast       *astbackend.Backend
	custom    *custombackend.Backend
	patterns  *patterns.Registry
	engine    *engine.Engine
	astCache  *cache.Named // persistent, keyed by ASTKey(language_id, content_hash); nil disables
	telemetry *telemetry.Telemetry
}

// New constructs a Parser. astCache and telemetry may be nil, in which case
// ast caching and metrics emission are simply skipped.
func New(ast *astbackend.Backend, custom *custombackend.Backend, reg *patterns.Registry, eng *engine.Engine, astCache *cache.Named, tel *telemetry.Telemetry) *Parser {
	return &Parser{ast: ast, custom: custom, patterns: reg, engine: eng, astCache: astCache, telemetry: tel}
}

// Parse runs the full C1-C8+C10 pipeline over source and returns a
// ParserResult. It never panics and never propagates an error to the
// caller: every failure is converted into Errors on the returned value.
func (p *Parser) Parse(ctx context.Context, path string, source []byte, opts types.Options) types.ParserResult {
	classification, err := classifier.Classify(path, prefixOf(source, classifyPrefixBytes))
	if err != nil {
		cerr := engerrors.NewClassificationError(path, err)
		if p.telemetry != nil {
			p.telemetry.RecordError("classify", classification.LanguageID, "", cerr)
		}
		return types.ParserResult{Success: false, Classification: classification, Errors: []error{cerr}}
	}

	if classification.ParserKind == types.ParserKindNone || classification.FileKind == types.FileKindBinary {
		return types.ParserResult{Success: true, Classification: classification}
	}

	if cerr := p.cancelled(ctx, "classify"); cerr != nil {
		return types.ParserResult{Success: false, Classification: classification, Errors: []error{cerr}}
	}

	tree, languageID, backendErr := p.resolveAndParse(classification, source)
	if backendErr != nil {
		if p.telemetry != nil {
			p.telemetry.RecordError("backend", classification.LanguageID, "", backendErr)
		}
		return types.ParserResult{Success: false, Classification: classification, Errors: []error{backendErr}}
	}

	if cerr := p.cancelled(ctx, "parse"); cerr != nil {
		return types.ParserResult{Success: false, Classification: classification, Errors: []error{cerr}}
	}

	timeout := defaultPatternTimeout
	if opts.PatternTimeoutMS > 0 {
		timeout = time.Duration(opts.PatternTimeoutMS) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var req *cache.Request
	if opts.RequestCacheEnabled {
		req = cache.NewRequest()
	}

	matches, _ := p.engine.ProcessAll(tree, source, languageID, categorySlice(opts.Categories), req)

	if cerr := p.cancelled(runCtx, "patterns"); cerr != nil {
		return types.ParserResult{Success: false, Classification: classification, Errors: []error{cerr}}
	}

	p.recordTelemetry(languageID, matches)

	var blockList []types.ExtractedBlock
	if opts.ExtractBlocks {
		blockList = p.extractBlocks(languageID, source, tree, matches)
	}

	var featureSet types.FeatureSet
	if opts.ExtractFeatures {
		featureSet = features.Build(languageID, matches, p.patterns, tree, source)
	}

	result := types.ParserResult{
		Success:        true,
		Classification: classification,
		Matches:        matches,
		Features:       featureSet,
		Blocks:         blockList,
	}
	if opts.IncludeAST {
		result.Tree = tree
	}
	if p.telemetry != nil {
		result.Telemetry = p.telemetry.Snapshot()
	}
	return result
}

// resolveAndParse walks classification.LanguageID then classification.Fallbacks
// in order, preferring the custom backend over the AST backend for each
// candidate, returning the first language that both has a usable backend
// and parses successfully.
func (p *Parser) resolveAndParse(classification types.Classification, source []byte) (*types.ParseTree, string, error) {
	candidates := append([]string{classification.LanguageID}, classification.Fallbacks...)

	var lastErr error
	for _, lang := range candidates {
		switch {
		case custombackend.Supports(lang):
			tree, err := p.custom.Parse(lang, source)
			if err == nil {
				return tree, lang, nil
			}
			lastErr = err
		case astbackend.Supports(lang):
			tree, err := p.parseASTCached(lang, source)
			if err == nil {
				return tree, lang, nil
			}
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = engerrors.NewBackendError(engerrors.BackendUnavailable, classification.LanguageID, nil)
	}
	return nil, "", lastErr
}

// parseASTCached consults the persistent ast cache by content hash before
// falling back to a live parse, storing the result back on a cache miss.
func (p *Parser) parseASTCached(languageID string, source []byte) (*types.ParseTree, error) {
	if p.astCache == nil {
		return p.ast.Parse(languageID, source)
	}

	key := cache.ASTKey(languageID, cache.ContentHash(source))
	if v, ok := p.astCache.Get(key); ok {
		if tree, ok := v.(*types.ParseTree); ok {
			return tree, nil
		}
	}

	tree, err := p.ast.Parse(languageID, source)
	if err != nil {
		return nil, err
	}
	p.astCache.Set(key, tree, 0, nil)
	return tree, nil
}

// extractBlocks materializes one block per match whose pattern claims
// syntactic or structural coverage, mirroring the Pattern Engine's own
// recoverableCategory heuristic for "the configurable subset" §4.9 leaves
// unspecified.
func (p *Parser) extractBlocks(languageID string, source []byte, tree *types.ParseTree, matches []types.PatternMatch) []types.ExtractedBlock {
	var out []types.ExtractedBlock
	for _, m := range matches {
		pattern := p.patterns.Get(languageID, m.PatternID)
		if pattern == nil {
			continue
		}
		if pattern.Category != types.CategorySyntax && pattern.Category != types.CategoryStructure {
			continue
		}
		if block := blocks.ResolveMatch(languageID, source, tree, m); block != nil {
			out = append(out, *block)
		}
	}
	return out
}

func (p *Parser) recordTelemetry(languageID string, matches []types.PatternMatch) {
	if p.telemetry == nil {
		return
	}
	counts := make(map[string]int)
	for _, m := range matches {
		counts[m.PatternID]++
	}
	for id, n := range counts {
		p.telemetry.RecordMatches(languageID, id, n)
	}
	for name, snap := range p.engine.Metrics().Snapshot() {
		p.telemetry.RecordRecovery(name, telemetry.StrategySnapshot{
			Attempts:        snap.Attempts,
			Successes:       snap.Successes,
			SuccessRate:     snap.SuccessRate,
			AvgRecoveryTime: snap.AvgRecoveryTime,
		})
	}
}

func (p *Parser) cancelled(ctx context.Context, stage string) error {
	if ctx.Err() == nil {
		return nil
	}
	return engerrors.NewCancelledError(stage)
}

func prefixOf(source []byte, n int) []byte {
	if n > len(source) {
		n = len(source)
	}
	return source[:n]
}

// categorySlice flattens the set-shaped Options.Categories into a slice for
// the Pattern Engine, which treats an empty slice as "every category".
func categorySlice(cats map[types.PatternCategory]struct{}) []types.PatternCategory {
	if len(cats) == 0 {
		return nil
	}
	out := make([]types.PatternCategory, 0, len(cats))
	for c := range cats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
