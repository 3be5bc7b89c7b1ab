// Package features implements the Feature Extractor (C8): it turns the
// Pattern Engine's matches into a FeatureSet, bucketing each match under its
// pattern's own category, then adds a handful of derived items computed
// purely from the names and spans already extracted.
package features

import (
	"sort"
	"strings"
	"unicode"

	"github.com/standardbeagle/codesage/internal/types"
)

// PatternLookup resolves a pattern by id, the same narrow shape the Pattern
// Engine depends on, so this package never imports internal/patterns
// concretely.
type PatternLookup interface {
	Get(languageID, patternID string) *types.Pattern
}

// Build categorizes matches into a FeatureSet. A match whose pattern cannot
// be resolved (already cleared from the registry, say) is skipped rather
// than guessed into a category, since the pattern's Category field is the
// only authority for where a match belongs.
func Build(languageID string, matches []types.PatternMatch, lookup PatternLookup, tree *types.ParseTree, source []byte) types.FeatureSet {
	fs := types.FeatureSet{}
	for _, m := range matches {
		pattern := lookup.Get(languageID, m.PatternID)
		if pattern == nil {
			continue
		}
		item := buildItem(pattern, m, tree, source)
		fs.Add(types.FeatureCategory(pattern.Category), item)
	}
	addCasingStatistics(fs)
	return fs
}

// buildItem runs pattern's own extract_spec when present, falling back to
// the ".name"-capture convention the AST queries themselves use, then tags
// the item with provenance the engine attached to the match.
func buildItem(pattern *types.Pattern, match types.PatternMatch, tree *types.ParseTree, source []byte) types.FeatureItem {
	var attrs map[string]any
	if pattern.Extract != nil {
		attrs = pattern.Extract(match.Captures, tree, source)
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}

	name, _ := attrs["name"].(string)
	if name == "" {
		name = nameFromCaptures(match.Captures, source)
	}

	if match.Recovered {
		attrs["recovered"] = true
	}
	if match.Metadata.NodeKind != "" {
		if _, ok := attrs["node_kind"]; !ok {
			attrs["node_kind"] = match.Metadata.NodeKind
		}
	}
	if match.Metadata.Confidence != 0 && match.Metadata.Confidence != 1 {
		attrs["confidence"] = match.Metadata.Confidence
	}

	return types.FeatureItem{Name: name, Span: match.PrimarySpan, Attrs: attrs}
}

// nameFromCaptures applies the capture-name convention carried over from
// the AST queries: a capture literally named "name", or else the first
// capture (by key, for determinism) whose name ends in ".name".
func nameFromCaptures(captures map[string][]types.Span, source []byte) string {
	if spans, ok := captures["name"]; ok && len(spans) > 0 {
		return sliceText(source, spans[0])
	}

	keys := make([]string, 0, len(captures))
	for k := range captures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, ".name") {
			spans := captures[k]
			if len(spans) > 0 {
				return sliceText(source, spans[0])
			}
		}
	}
	return ""
}

func sliceText(source []byte, span types.Span) string {
	if span.StartByte > span.EndByte || int(span.EndByte) > len(source) {
		return ""
	}
	return string(source[span.StartByte:span.EndByte])
}

// casingStyle is the closed set identifier_casing statistics are bucketed
// into.
type casingStyle string

const (
	stylingSnake     casingStyle = "snake_case"
	stylingScreaming casingStyle = "screaming_snake_case"
	stylingCamel     casingStyle = "camel_case"
	stylingPascal    casingStyle = "pascal_case"
	stylingKebab     casingStyle = "kebab_case"
	stylingUnknown   casingStyle = "unknown"
)

// classifyCasing buckets name by casing convention. Priority: a hyphen
// always means kebab-case; an identifier with any letters but no lowercase
// ones is treated as a constant-style name (SCREAMING or single all-caps
// word) before pascal/camel are considered, so "FOO" is not mistaken for a
// one-word PascalCase identifier.
func classifyCasing(name string) casingStyle {
	if name == "" {
		return stylingUnknown
	}

	var hasUpper, hasLower, hasUnderscore, hasHyphen bool
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case r == '_':
			hasUnderscore = true
		case r == '-':
			hasHyphen = true
		case unicode.IsDigit(r):
			// digits carry no casing signal
		default:
			return stylingUnknown
		}
	}

	switch {
	case hasHyphen:
		return stylingKebab
	case hasUpper && !hasLower:
		return stylingScreaming
	case !hasUpper:
		return stylingSnake
	case hasUnderscore:
		return stylingUnknown
	case unicode.IsUpper([]rune(name)[0]):
		return stylingPascal
	default:
		return stylingCamel
	}
}

// addCasingStatistics computes identifier_casing counts over every named
// item already extracted into any category other than Naming itself, and
// files the tally as one derived Naming item. It never touches the tree or
// source: the names and spans were already materialized by Build.
func addCasingStatistics(fs types.FeatureSet) {
	counts := make(map[casingStyle]int)
	var sampleSpan types.Span
	seen := false

	for cat, items := range fs {
		if cat == types.FeatureNaming {
			continue
		}
		for _, item := range items {
			if item.Name == "" {
				continue
			}
			counts[classifyCasing(item.Name)]++
			if !seen {
				sampleSpan = item.Span
				seen = true
			}
		}
	}
	if !seen {
		return
	}

	attrs := make(map[string]any, len(counts))
	for style, n := range counts {
		attrs[string(style)] = n
	}
	fs.Add(types.FeatureNaming, types.FeatureItem{
		Name:  "identifier_casing",
		Span:  sampleSpan,
		Attrs: attrs,
	})
}
