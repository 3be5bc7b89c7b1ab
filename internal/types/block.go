package types

// ExtractedBlock is a syntactically coherent source region resolved by the
// Block Extractor. Content is always the exact source byte slice of the
// resolved node's span — it is never reconstructed from tree text.
type ExtractedBlock struct {
	Content    string
	StartPoint Point
	EndPoint   Point
	// NodeKind is the resolved node's kind, or the literal string
	// "heuristic" when the extractor fell back to a line-range guess on
	// a custom-backend tree.
	NodeKind string
	// ParentKind is the immediate block-capable ancestor's kind, if the
	// resolved node was reached by walking ancestors rather than being
	// block-capable itself.
	ParentKind string
}
