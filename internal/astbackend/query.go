package astbackend

import (
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/types"
)

// compiledQuery adapts a *tree_sitter.Query to types.CompiledQuery so the
// Pattern Registry can hold it without depending on this package's types.
type compiledQuery struct {
	languageID string
	query      *tree_sitter.Query
	names      []string
}

func (c *compiledQuery) LanguageID() string { return c.languageID }

// Compile satisfies patterns.Compiler: it compiles source as a tree-sitter
// query against languageID's grammar.
func (b *Backend) Compile(languageID, source string) (types.CompiledQuery, error) {
	lang, err := b.language(languageID)
	if err != nil {
		return nil, err
	}

	query, qerr := tree_sitter.NewQuery(lang, source)
	if qerr != nil {
		return nil, engerrors.NewPatternError(engerrors.PatternCompilationFailed, "", languageID, qerr)
	}
	if query == nil {
		// go-tree-sitter's Go binding can return a typed-nil error on some
		// malformed queries; treat a nil query as a compilation failure
		// even when err itself came back nil.
		return nil, engerrors.NewPatternError(engerrors.PatternCompilationFailed, "", languageID, nil)
	}

	return &compiledQuery{languageID: languageID, query: query, names: query.CaptureNames()}, nil
}

// Capture is one named capture produced by running a compiled query
// against a tree.
type Capture struct {
	Name string
	Span types.Span
	// MatchIndex groups captures that came from the same query match, so
	// callers can reconstruct per-match records after the global sort
	// below reorders captures across matches.
	MatchIndex int
}

// RunQuery evaluates a compiled AST-query pattern against tree, returning
// captures ordered by (start_byte, span_length, registration_order) to
// match the Pattern Engine's deterministic ordering contract.
func (b *Backend) RunQuery(tree *types.ParseTree, compiled types.CompiledQuery, source []byte) ([]Capture, error) {
	cq, ok := compiled.(*compiledQuery)
	if !ok || cq == nil {
		return nil, engerrors.NewBackendError(engerrors.BackendUnavailable, tree.LanguageID, nil)
	}

	root := b.rebuildRoot(tree, source)
	if root == nil {
		return nil, nil
	}
	defer root.Close()

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()

	matches := qc.Matches(cq.query, root.RootNode(), source)

	type ordered struct {
		capture      Capture
		registration int
	}
	var out []ordered

	matchIndex := 0
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			start := c.Node.StartPosition()
			end := c.Node.EndPosition()
			out = append(out, ordered{
				capture: Capture{
					Name: cq.names[c.Index],
					Span: types.Span{
						StartByte:  uint32(c.Node.StartByte()),
						EndByte:    uint32(c.Node.EndByte()),
						StartPoint: types.Point{Row: uint32(start.Row), Column: uint32(start.Column)},
						EndPoint:   types.Point{Row: uint32(end.Row), Column: uint32(end.Column)},
					},
					MatchIndex: matchIndex,
				},
				registration: int(c.Index),
			})
		}
		matchIndex++
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.capture.Span.StartByte != b.capture.Span.StartByte {
			return a.capture.Span.StartByte < b.capture.Span.StartByte
		}
		if a.capture.Span.Len() != b.capture.Span.Len() {
			return a.capture.Span.Len() > b.capture.Span.Len()
		}
		return a.registration < b.registration
	})

	captures := make([]Capture, len(out))
	for i, o := range out {
		captures[i] = o.capture
	}
	return captures, nil
}

// rebuildRoot re-parses source to get back a live *tree_sitter.Tree to run
// queries against. ParseTree, once converted, no longer holds the CGO tree
// (it is closed immediately after conversion so cached trees never pin C
// memory); running a query therefore costs a second parse. This trades
// query latency for making the persistent ast-cache entirely safe to hold
// across goroutines and across cache evictions.
func (b *Backend) rebuildRoot(tree *types.ParseTree, source []byte) *tree_sitter.Tree {
	lang, err := b.language(tree.LanguageID)
	if err != nil {
		return nil
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil
	}
	buf := make([]byte, len(source))
	copy(buf, source)
	return parser.Parse(buf, nil)
}
