// Package blocks resolves a parse-tree node, or a pattern match's primary
// span, to the nearest syntactically coherent source region — the same
// "what construct am I standing inside" question the indexing engine's
// parent-stack walk answered for symbol indexing, generalized here to a
// language-keyed table of block-capable node kinds instead of a hard-coded
// switch over JS/TS constructs.
package blocks

import (
	"github.com/standardbeagle/codesage/internal/types"
)

// kindSet is a small membership table; block-capable sets rarely exceed a
// dozen entries so a map beats sorting a slice.
type kindSet map[string]bool

func newKindSet(kinds ...string) kindSet {
	s := make(kindSet, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

var pythonBlockKinds = newKindSet(
	"function_definition",
	"class_definition",
	"if_statement",
	"for_statement",
	"try_statement",
	"with_statement",
)

// braceBlockKinds covers the brace-delimited languages: C, C++, Java, C#,
// PHP, Rust, Go, JavaScript/TypeScript all share this shape closely enough
// that one table serves them.
var braceBlockKinds = newKindSet(
	"compound_statement",
	"function_definition",
	"function_declaration",
	"class_specifier",
	"class_declaration",
	"method_definition",
	"if_statement",
	"for_statement",
	"while_statement",
)

var genericBlockKinds = newKindSet(
	"block",
	"body",
	"statement_block",
)

var pythonLanguages = newKindSet("python")

// braceLanguages lists every language this module's AST backend registers
// whose grammar follows the brace-delimited shape.
var braceLanguages = newKindSet(
	"go", "c", "cpp", "java", "csharp", "php", "rust", "javascript", "typescript",
)

func blockKindsFor(languageID string) kindSet {
	if pythonLanguages[languageID] {
		return pythonBlockKinds
	}
	if braceLanguages[languageID] {
		return braceBlockKinds
	}
	return genericBlockKinds
}

// bodyKindNames, together with the "_body" suffix check in isBodyKind,
// identify the child callers asking for "just the body" should prefer over
// the whole construct, per the header+body split the spec calls out for
// function-like block kinds.
var bodyKindNames = newKindSet("block", "compound_statement")

func isBodyKind(kind string) bool {
	if bodyKindNames[kind] {
		return true
	}
	return len(kind) > len("_body") && kind[len(kind)-len("_body"):] == "_body"
}

// PreferBody selects the child of a resolved block-capable node whose kind
// looks like a body/compound-statement, falling back to the node itself
// when no such child exists (e.g. a Python one-liner with no nested block).
func PreferBody(n *types.Node) *types.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if isBodyKind(c.Kind) {
			return c
		}
	}
	return n
}

// ResolveNode walks up from node, returning the node itself if its kind is
// already block-capable for languageID, else the nearest block-capable
// ancestor. It returns nil if the root is reached with no match and the
// tree came from the AST backend, or a line-range heuristic block if the
// tree came from the custom backend.
func ResolveNode(languageID string, source []byte, tree *types.ParseTree, node *types.Node) *types.ExtractedBlock {
	if node == nil {
		return nil
	}
	kinds := blockKindsFor(languageID)
	for n := node; n != nil; n = n.Parent {
		if kinds[n.Kind] {
			return toBlock(source, n, n == node)
		}
	}

	if tree != nil && tree.Backend == types.ParserKindCustom {
		return heuristicBlock(source, node)
	}
	return nil
}

// ResolveMatch locates the node at match.PrimarySpan within tree and
// resolves it the same way ResolveNode does. It returns nil if no node in
// the tree has that exact span.
func ResolveMatch(languageID string, source []byte, tree *types.ParseTree, match types.PatternMatch) *types.ExtractedBlock {
	if tree == nil || tree.Root == nil {
		return nil
	}
	var found *types.Node
	tree.Root.Walk(func(n *types.Node) bool {
		if found != nil {
			return false
		}
		if n.Span.StartByte == match.PrimarySpan.StartByte && n.Span.EndByte == match.PrimarySpan.EndByte {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return ResolveNode(languageID, source, tree, found)
}

func toBlock(source []byte, resolved *types.Node, isSelf bool) *types.ExtractedBlock {
	start, end := resolved.Span.StartByte, resolved.Span.EndByte
	if end > uint32(len(source)) {
		end = uint32(len(source))
	}
	b := &types.ExtractedBlock{
		Content:    string(source[start:end]),
		StartPoint: resolved.Span.StartPoint,
		EndPoint:   resolved.Span.EndPoint,
		NodeKind:   resolved.Kind,
	}
	if !isSelf {
		b.ParentKind = resolved.Kind
	}
	return b
}

func heuristicBlock(source []byte, node *types.Node) *types.ExtractedBlock {
	start, end := node.Span.StartByte, node.Span.EndByte
	if end > uint32(len(source)) {
		end = uint32(len(source))
	}
	if start > end {
		start = end
	}
	return &types.ExtractedBlock{
		Content:    string(source[start:end]),
		StartPoint: node.Span.StartPoint,
		EndPoint:   node.Span.EndPoint,
		NodeKind:   "heuristic",
	}
}
