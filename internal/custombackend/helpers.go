// Package custombackend implements the Custom Backend (C5): small,
// hand-written scanners for the non-programming-language formats this
// module recognizes — config and documentation formats that tree-sitter
// either doesn't cover or that don't warrant a full grammar. Every parser
// here produces the same shared types.Node tree shape the AST Backend does,
// so C6-C8 never need to know which backend produced a given tree.
package custombackend

import "github.com/standardbeagle/codesage/internal/types"

// lineIndex maps line numbers to their starting byte offset so per-line
// scanners can build byte-accurate spans without re-scanning from zero.
type lineIndex struct {
	lines  [][]byte
	starts []uint32
}

func newLineIndex(source []byte) *lineIndex {
	idx := &lineIndex{}
	start := 0
	for i := 0; i <= len(source); i++ {
		if i == len(source) || source[i] == '\n' {
			idx.lines = append(idx.lines, source[start:i])
			idx.starts = append(idx.starts, uint32(start))
			start = i + 1
		}
	}
	return idx
}

func (li *lineIndex) lineCount() int { return len(li.lines) }

// span builds a Span for the half-open byte range [startByte, endByte),
// deriving row/column endpoints by locating which line each offset falls
// in. Scanners call this with offsets they've already computed relative
// to the start of the file.
func (li *lineIndex) span(startByte, endByte uint32) types.Span {
	return types.Span{
		StartByte:  startByte,
		EndByte:    endByte,
		StartPoint: li.point(startByte),
		EndPoint:   li.point(endByte),
	}
}

func (li *lineIndex) point(byteOffset uint32) types.Point {
	// Binary search would be overkill: callers build spans roughly in
	// scan order, and file line counts here are small (config/doc files).
	row := 0
	for row+1 < len(li.starts) && li.starts[row+1] <= byteOffset {
		row++
	}
	col := byteOffset - li.starts[row]
	return types.Point{Row: uint32(row), Column: col}
}

// lineSpan returns the span of line i (0-based), excluding its trailing
// newline.
func (li *lineIndex) lineSpan(i int) types.Span {
	start := li.starts[i]
	end := start + uint32(len(li.lines[i]))
	return li.span(start, end)
}

func leafNode(kind string, span types.Span, content []byte, parent *types.Node) *types.Node {
	n := &types.Node{
		Kind:   kind,
		Span:   span,
		Parent: parent,
		Leaf:   append([]byte(nil), content...),
	}
	return n
}

func interiorNode(kind string, span types.Span, parent *types.Node, children ...*types.Node) *types.Node {
	n := &types.Node{
		Kind:     kind,
		Span:     span,
		Parent:   parent,
		Children: children,
	}
	for _, c := range children {
		c.Parent = n
	}
	return n
}

// documentSpan returns the span covering the entire source, used for the
// synthetic root node every custom parser emits.
func documentSpan(source []byte, li *lineIndex) types.Span {
	if len(source) == 0 {
		return types.Span{}
	}
	return li.span(0, uint32(len(source)))
}

func newTree(languageID string, root *types.Node) *types.ParseTree {
	return &types.ParseTree{Root: root, LanguageID: languageID, Backend: types.ParserKindCustom}
}
