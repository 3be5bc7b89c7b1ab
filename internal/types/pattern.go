package types

import "fmt"

// PatternCategory is the closed set of what a pattern expresses.
type PatternCategory string

const (
	CategorySyntax        PatternCategory = "syntax"
	CategoryStructure     PatternCategory = "structure"
	CategoryDocumentation PatternCategory = "documentation"
	CategorySemantics     PatternCategory = "semantics"
	CategoryCodePattern   PatternCategory = "code_pattern"
	CategoryNaming        PatternCategory = "naming"
	CategoryErrorHandling PatternCategory = "error_handling"
	CategoryArchitecture  PatternCategory = "architecture"
)

// PatternKind says how a pattern's Source is interpreted.
type PatternKind string

const (
	KindASTQuery PatternKind = "ast_query"
	KindRegex    PatternKind = "regex"
	KindLiteral  PatternKind = "literal"
)

// ExtractSpec turns a raw capture set into PatternMatch metadata. It is
// supplied per-pattern and must choose exactly one FeatureCategory per
// captured item it emits, even for patterns whose declared Category could
// plausibly span several.
type ExtractSpec func(captures map[string][]Span, tree *ParseTree, source []byte) map[string]any

// TestCase is an embedded sample used by Pattern Registry validation to
// check that a pattern actually matches what it claims to.
type TestCase struct {
	Input           string
	ExpectedCapture string // capture name expected to be non-empty
	ExpectedText    string // expected textual content of that capture
}

// CompiledQuery is an opaque handle to a compiled AST query, produced by the
// AST Backend and consumed only by it; the Pattern Registry stores it
// without inspecting its internals.
type CompiledQuery interface {
	// LanguageID reports which grammar this query is bound to, so the
	// registry's invariant (kind=AST_Query => compiled is bound to
	// language_id's grammar) can be asserted cheaply.
	LanguageID() string
}

// Pattern is a single named rule the Pattern Engine can evaluate against a
// parsed tree. Invariant: Kind == KindASTQuery implies Compiled is non-nil
// and bound to LanguageID's grammar; any other Kind must carry either a
// non-empty RecoveryRegex or a non-empty FallbackIDs list.
type Pattern struct {
	ID         string
	LanguageID string
	Category   PatternCategory
	Kind       PatternKind
	Source     string
	Compiled   CompiledQuery
	Extract    ExtractSpec
	TestCases  []TestCase

	// FallbackIDs are tried, in order, by the fallback-patterns recovery
	// strategy when this pattern produces zero matches.
	FallbackIDs []string
	// RecoveryRegex, if set, is compiled and applied line-by-line by the
	// regex-fallback recovery strategy.
	RecoveryRegex string
	// RecoveryConfig carries strategy-specific tuning, e.g. per-strategy
	// timeout overrides; nil means "use engine defaults".
	RecoveryConfig *RecoveryConfig

	// Usable is false once compilation has failed with no recovery
	// regex available; the registry excludes such patterns from runs
	// until the next clear().
	Usable bool
}

// RecoveryConfig tunes the per-strategy timeout budget for one pattern.
type RecoveryConfig struct {
	StrategyTimeoutMS int
}

// Validate reports the structural invariant from §3 of the spec: an
// AST-query pattern must carry a compiled query bound to its own language,
// and any other pattern must carry a regex or a fallback chain.
func (p *Pattern) Validate() error {
	if p.Kind == KindASTQuery {
		if p.Compiled == nil {
			return fmt.Errorf("ast_query pattern %q has no compiled query", p.ID)
		}
		if p.Compiled.LanguageID() != p.LanguageID {
			return fmt.Errorf("ast_query pattern %q compiled for %q, not %q", p.ID, p.Compiled.LanguageID(), p.LanguageID)
		}
		return nil
	}
	if p.RecoveryRegex == "" && len(p.FallbackIDs) == 0 {
		return fmt.Errorf("non-ast pattern %q has neither a recovery regex nor fallback ids", p.ID)
	}
	return nil
}

// PatternValidation is the result of Pattern Registry's validate() check.
type PatternValidation struct {
	OK       bool
	Errors   []string
	Warnings []string
}
