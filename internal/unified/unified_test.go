package unified

import (
	"context"
	"testing"

	"github.com/standardbeagle/codesage/internal/astbackend"
	"github.com/standardbeagle/codesage/internal/cache"
	"github.com/standardbeagle/codesage/internal/custombackend"
	"github.com/standardbeagle/codesage/internal/engine"
	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/patterns"
	"github.com/standardbeagle/codesage/internal/telemetry"
	"github.com/standardbeagle/codesage/internal/types"
)

func newParser() *Parser {
	ast := astbackend.New()
	reg := patterns.New(ast)
	eng := engine.New(ast, reg, nil)
	return New(ast, custombackend.New(), reg, eng, nil, telemetry.New())
}

func TestParse_BinaryDetectionReturnsEmptySuccessfulResult(t *testing.T) {
	p := newParser()
	source := []byte("\x89PNG\r\n\x1a\nrest-of-file")

	result := p.Parse(context.Background(), "img.png", source, types.Options{})

	if !result.Success {
		t.Fatalf("expected success=true, got errors=%v", result.Errors)
	}
	if result.Classification.FileKind != types.FileKindBinary {
		t.Fatalf("expected FileKindBinary, got %v", result.Classification.FileKind)
	}
	if result.Classification.ParserKind != types.ParserKindNone {
		t.Fatalf("expected ParserKindNone, got %v", result.Classification.ParserKind)
	}
	if len(result.Matches) != 0 || len(result.Blocks) != 0 {
		t.Fatalf("expected no matches or blocks, got matches=%d blocks=%d", len(result.Matches), len(result.Blocks))
	}
}

func TestParse_UnavailableBackendSurfacesBackendError(t *testing.T) {
	p := newParser()
	// "Dockerfile" classifies to a language id with neither a custom nor
	// an AST backend registered, and no fallback list.
	result := p.Parse(context.Background(), "Dockerfile", []byte("FROM scratch\n"), types.Options{})

	if result.Success {
		t.Fatalf("expected success=false for an unavailable backend")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}
	if engerrors.KindOf(result.Errors[0]) != engerrors.KindBackend {
		t.Fatalf("expected a BackendError, got %T", result.Errors[0])
	}
}

func TestParse_NeverPanicsOnNilSource(t *testing.T) {
	p := newParser()
	result := p.Parse(context.Background(), "whatever.go", nil, types.Options{})
	if result.Success {
		t.Fatalf("expected success=false for an unreadable prefix")
	}
	if engerrors.KindOf(result.Errors[0]) != engerrors.KindClassification {
		t.Fatalf("expected a ClassificationError, got %T", result.Errors[0])
	}
}

func TestParse_CancelledContextSurfacesCancelledError(t *testing.T) {
	p := newParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Parse(ctx, "main.go", []byte("package main\n"), types.Options{})
	if result.Success {
		t.Fatalf("expected success=false for a pre-cancelled context")
	}
	if engerrors.KindOf(result.Errors[0]) != engerrors.KindCancelled {
		t.Fatalf("expected a CancelledError, got %T", result.Errors[0])
	}
}

func TestParse_CustomBackendJSONProducesSuccessfulResult(t *testing.T) {
	p := newParser()
	source := []byte(`{"a": 1}`)

	result := p.Parse(context.Background(), "config.json", source, types.Options{
		ExtractFeatures:     true,
		ExtractBlocks:       true,
		RequestCacheEnabled: true,
	})

	if !result.Success {
		t.Fatalf("expected success=true, got errors=%v", result.Errors)
	}
	if result.Classification.LanguageID != "json" {
		t.Fatalf("expected language json, got %q", result.Classification.LanguageID)
	}
	if result.Tree != nil {
		t.Fatalf("expected Tree to be nil when IncludeAST is false")
	}
}

func TestParse_IncludeASTAttachesTree(t *testing.T) {
	p := newParser()
	result := p.Parse(context.Background(), "config.json", []byte(`{}`), types.Options{IncludeAST: true})
	if result.Tree == nil {
		t.Fatalf("expected a populated tree when IncludeAST is true")
	}
}

func TestParse_ASTCacheIsConsultedOnSecondParse(t *testing.T) {
	ast := astbackend.New()
	reg := patterns.New(ast)
	eng := engine.New(ast, reg, nil)
	astCache := cache.NewNamed("ast", 1<<20, 0, false)
	p := New(ast, custombackend.New(), reg, eng, astCache, nil)

	source := []byte("package main\n")
	first := p.Parse(context.Background(), "a.go", source, types.Options{IncludeAST: true})
	second := p.Parse(context.Background(), "a.go", source, types.Options{IncludeAST: true})

	if !first.Success || !second.Success {
		t.Fatalf("expected both parses to succeed")
	}
	key := cache.ASTKey("go", cache.ContentHash(source))
	if !astCache.Has(key) {
		t.Fatalf("expected the ast cache to hold the parsed tree")
	}
}

func TestParse_PythonFunctionYieldsOneSyntaxFeatureAndVerbatimBlock(t *testing.T) {
	p := newParser()
	source := []byte("def foo(a, b):\n    return a + b\n")

	result := p.Parse(context.Background(), "foo.py", source, types.Options{
		ExtractFeatures: true,
		ExtractBlocks:   true,
	})

	if !result.Success {
		t.Fatalf("expected success=true, got errors=%v", result.Errors)
	}
	syntax := result.Features[types.FeatureSyntax]
	if len(syntax) != 1 {
		t.Fatalf("expected exactly one Syntax feature, got %d: %+v", len(syntax), syntax)
	}
	if syntax[0].Name != "foo" {
		t.Fatalf("expected feature name %q, got %q", "foo", syntax[0].Name)
	}
	if len(result.Blocks) != 1 {
		t.Fatalf("expected exactly one block, got %d", len(result.Blocks))
	}
	if result.Blocks[0].Content != string(source) {
		t.Fatalf("expected the block to hold the input verbatim, got %q", result.Blocks[0].Content)
	}
}

func TestParse_MalformedPythonFunctionRecoversViaRegex(t *testing.T) {
	p := newParser()
	source := []byte("def foo(:\n    pass")

	result := p.Parse(context.Background(), "broken.py", source, types.Options{ExtractFeatures: true})

	if !result.Success {
		t.Fatalf("expected success=true, got errors=%v", result.Errors)
	}
	var recovered *types.PatternMatch
	for i := range result.Matches {
		if result.Matches[i].PatternID == "python.function_definition" {
			recovered = &result.Matches[i]
			break
		}
	}
	if recovered == nil {
		t.Fatalf("expected a recovered python.function_definition match, got %+v", result.Matches)
	}
	if !recovered.Recovered {
		t.Fatalf("expected the match to be flagged as recovered")
	}
	if recovered.Metadata.NodeKind != "regex-recovery" {
		t.Fatalf("expected node_kind regex-recovery, got %q", recovered.Metadata.NodeKind)
	}
	if recovered.Metadata.Confidence != 0.4 {
		t.Fatalf("expected confidence 0.4, got %v", recovered.Metadata.Confidence)
	}
	names := recovered.Captures["name"]
	if len(names) != 1 || string(source[names[0].StartByte:names[0].EndByte]) != "foo" {
		t.Fatalf("expected a name capture of %q, got %v", "foo", names)
	}
}

func TestCategorySlice_EmptyMeansAllCategories(t *testing.T) {
	if got := categorySlice(nil); got != nil {
		t.Fatalf("expected nil for an empty category set, got %v", got)
	}
}

func TestCategorySlice_NonEmptyIsSortedDeterministically(t *testing.T) {
	cats := map[types.PatternCategory]struct{}{
		types.CategoryStructure: {},
		types.CategorySyntax:    {},
	}
	got := categorySlice(cats)
	if len(got) != 2 || got[0] != types.CategoryStructure || got[1] != types.CategorySyntax {
		t.Fatalf("unexpected category slice: %v", got)
	}
}
