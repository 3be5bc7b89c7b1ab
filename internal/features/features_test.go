package features

import (
	"testing"

	"github.com/standardbeagle/codesage/internal/types"
)

func sp(start, end uint32) types.Span {
	return types.Span{StartByte: start, EndByte: end}
}

type fakeLookup struct {
	byID map[string]*types.Pattern
}

func (f *fakeLookup) Get(languageID, patternID string) *types.Pattern {
	return f.byID[patternID]
}

func newLookup(patterns ...*types.Pattern) *fakeLookup {
	l := &fakeLookup{byID: make(map[string]*types.Pattern)}
	for _, p := range patterns {
		l.byID[p.ID] = p
	}
	return l
}

func TestBuild_PythonFunctionExtraction(t *testing.T) {
	source := []byte("def foo(a, b):\n    return a + b\n")
	whole := sp(0, uint32(len(source)))

	pattern := &types.Pattern{
		ID:         "python_function",
		LanguageID: "python",
		Category:   types.CategorySyntax,
		Kind:       types.KindASTQuery,
		Usable:     true,
	}
	match := types.PatternMatch{
		PatternID:   pattern.ID,
		Captures:    map[string][]types.Span{"function.name": {sp(4, 7)}},
		PrimarySpan: whole,
		Metadata:    types.MatchMetadata{NodeKind: "function_definition", Confidence: 1.0},
	}

	fs := Build("python", []types.PatternMatch{match}, newLookup(pattern), nil, source)

	syntax := fs[types.FeatureSyntax]
	if len(syntax) != 1 {
		t.Fatalf("expected exactly one Syntax feature, got %d", len(syntax))
	}
	if syntax[0].Name != "foo" {
		t.Fatalf("expected name %q, got %q", "foo", syntax[0].Name)
	}
	if syntax[0].Span != whole {
		t.Fatalf("expected span %+v, got %+v", whole, syntax[0].Span)
	}
}

func TestBuild_UnknownPatternSkipped(t *testing.T) {
	match := types.PatternMatch{PatternID: "ghost", PrimarySpan: sp(0, 5)}
	fs := Build("go", []types.PatternMatch{match}, newLookup(), nil, nil)
	if fs.Count() != 0 {
		t.Fatalf("expected no features for an unresolved pattern, got %d", fs.Count())
	}
}

func TestBuild_CustomExtractSpecChoosesName(t *testing.T) {
	source := []byte("class Widget {}")
	pattern := &types.Pattern{
		ID:       "go_struct",
		Category: types.CategoryStructure,
		Kind:     types.KindASTQuery,
		Usable:   true,
		Extract: func(captures map[string][]types.Span, tree *types.ParseTree, src []byte) map[string]any {
			spans := captures["name"]
			if len(spans) == 0 {
				return nil
			}
			return map[string]any{"name": string(src[spans[0].StartByte:spans[0].EndByte])}
		},
	}
	match := types.PatternMatch{
		PatternID:   pattern.ID,
		Captures:    map[string][]types.Span{"name": {sp(6, 12)}},
		PrimarySpan: sp(0, 16),
	}

	fs := Build("go", []types.PatternMatch{match}, newLookup(pattern), nil, source)
	structure := fs[types.FeatureStructure]
	if len(structure) != 1 || structure[0].Name != "Widget" {
		t.Fatalf("expected one Structure feature named Widget, got %+v", structure)
	}
}

func TestBuild_RecoveredMatchTaggedInAttrs(t *testing.T) {
	source := []byte("def foo(:\n    pass")
	pattern := &types.Pattern{ID: "python_function", Category: types.CategorySyntax, Kind: types.KindRegex, Usable: true}
	match := types.PatternMatch{
		PatternID:   pattern.ID,
		Captures:    map[string][]types.Span{"name": {sp(4, 7)}},
		PrimarySpan: sp(0, 9),
		Metadata:    types.MatchMetadata{NodeKind: "regex-recovery", Confidence: 0.4},
		Recovered:   true,
	}

	fs := Build("python", []types.PatternMatch{match}, newLookup(pattern), nil, source)
	items := fs[types.FeatureSyntax]
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	if recovered, _ := items[0].Attrs["recovered"].(bool); !recovered {
		t.Fatalf("expected recovered attr to be true, got %+v", items[0].Attrs)
	}
	if conf, _ := items[0].Attrs["confidence"].(float64); conf != 0.4 {
		t.Fatalf("expected confidence 0.4, got %+v", items[0].Attrs["confidence"])
	}
}

func TestClassifyCasing(t *testing.T) {
	cases := map[string]casingStyle{
		"foo_bar":     stylingSnake,
		"foo":         stylingSnake,
		"FOO_BAR":     stylingScreaming,
		"FOO":         stylingScreaming,
		"fooBar":      stylingCamel,
		"FooBar":      stylingPascal,
		"kebab-case":  stylingKebab,
		"foo_Bar":     stylingUnknown,
		"":            stylingUnknown,
	}
	for name, want := range cases {
		if got := classifyCasing(name); got != want {
			t.Errorf("classifyCasing(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestBuild_AddsDerivedCasingStatistics(t *testing.T) {
	source := []byte("x")
	fnPattern := &types.Pattern{ID: "fn", Category: types.CategorySyntax, Kind: types.KindASTQuery, Usable: true}
	varPattern := &types.Pattern{ID: "var", Category: types.CategorySyntax, Kind: types.KindASTQuery, Usable: true}

	matches := []types.PatternMatch{
		{PatternID: "fn", Captures: map[string][]types.Span{"name": {sp(0, 1)}}, PrimarySpan: sp(0, 1)},
		{PatternID: "var", Captures: map[string][]types.Span{"name": {sp(0, 1)}}, PrimarySpan: sp(0, 1)},
	}

	fs := Build("go", matches, newLookup(fnPattern, varPattern), nil, source)

	naming := fs[types.FeatureNaming]
	if len(naming) != 1 || naming[0].Name != "identifier_casing" {
		t.Fatalf("expected one derived identifier_casing item, got %+v", naming)
	}
}

func TestBuild_NoItemsProducesNoDerivedNaming(t *testing.T) {
	fs := Build("go", nil, newLookup(), nil, nil)
	if len(fs[types.FeatureNaming]) != 0 {
		t.Fatalf("expected no Naming items for an empty match list, got %+v", fs[types.FeatureNaming])
	}
}
