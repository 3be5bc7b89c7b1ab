package types

// Point is a (row, column) position into a SourceUnit's bytes, both
// zero-based, matching tree-sitter's convention so AST and custom backends
// agree on coordinates.
type Point struct {
	Row    uint32
	Column uint32
}

// Span is a half-open byte range plus its matching row/column endpoints.
type Span struct {
	StartByte uint32
	EndByte   uint32
	StartPoint Point
	EndPoint   Point
}

// Len reports the span's byte length.
func (s Span) Len() uint32 {
	if s.EndByte < s.StartByte {
		return 0
	}
	return s.EndByte - s.StartByte
}

// Node is one node of a ParseTree. Both the AST backend and every Custom
// Backend implementation produce trees built from this same shape, so C6-C8
// never need to know which backend produced a given tree.
type Node struct {
	Kind      string
	Span      Span
	HasError  bool
	IsMissing bool
	Children  []*Node
	Parent    *Node

	// Leaf holds the exact byte slice for leaf nodes only; interior nodes
	// leave this nil and rely on Span to index back into the SourceUnit.
	Leaf []byte
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Walk visits n and every descendant in pre-order, matching the traversal
// order the Pattern Engine uses to order captures.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// ParseTree is a rooted labelled tree produced by either backend. The tree
// owns its nodes; every Span in it indexes into the SourceUnit bytes that
// must outlive the tree.
type ParseTree struct {
	Root       *Node
	LanguageID string
	// Backend names which backend produced the tree, e.g. "ast" or
	// "custom". Used by the Block Extractor to decide whether a
	// heuristic line-range fallback is permitted.
	Backend ParserKind
}

// SizeBytes approximates the tree's memory footprint for cache accounting:
// a fixed per-node overhead plus the bytes of any leaf text it retains.
func (t *ParseTree) SizeBytes() int64 {
	if t == nil || t.Root == nil {
		return 0
	}
	const perNodeOverhead = 96
	var total int64
	t.Root.Walk(func(n *Node) bool {
		total += perNodeOverhead + int64(len(n.Leaf))
		return true
	})
	return total
}

// HasErrors reports whether any node in the tree is marked has_error.
func (t *ParseTree) HasErrors() bool {
	if t == nil || t.Root == nil {
		return false
	}
	found := false
	t.Root.Walk(func(n *Node) bool {
		if n.HasError {
			found = true
			return false
		}
		return true
	})
	return found
}
