// Package astbackend implements the AST Backend (C4): deterministic
// tree-sitter parsing across the grammar roster this module ships, with
// lazy per-language grammar setup mirroring the indexing engine's own
// language-registration idiom.
package astbackend

import (
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/logging"
	"github.com/standardbeagle/codesage/internal/types"
)

// languageLoaders is the closed roster of grammars this module ships.
// Each loader returns the raw tree-sitter language pointer; registration
// happens lazily, the first time a language is requested.
var languageLoaders = map[string]func() *tree_sitter.Language{
	"go":         func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_go.Language()) },
	"python":     func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_python.Language()) },
	"javascript": func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_javascript.Language()) },
	"typescript": func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()) },
	"rust":       func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_rust.Language()) },
	"c":          func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_c.Language()) },
	"cpp":        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_cpp.Language()) },
	"java":       func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_java.Language()) },
	"csharp":     func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_csharp.Language()) },
	"php":        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_php.LanguagePHP()) },
	"ruby":       func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_ruby.Language()) },
	"zig":        func() *tree_sitter.Language { return tree_sitter.NewLanguage(tree_sitter_zig.Language()) },
}

// Backend owns one tree-sitter *Language per supported language id,
// registered lazily and kept for the process lifetime; *Parser and
// *Query instances are created per call since go-tree-sitter's Parser is
// not safe for concurrent Parse calls.
type Backend struct {
	mu        sync.RWMutex
	languages map[string]*tree_sitter.Language
}

// New returns a Backend with no languages registered yet.
func New() *Backend {
	return &Backend{languages: make(map[string]*tree_sitter.Language)}
}

// Supports reports whether languageID has a registered grammar loader,
// without triggering registration.
func Supports(languageID string) bool {
	_, ok := languageLoaders[languageID]
	return ok
}

func (b *Backend) language(languageID string) (*tree_sitter.Language, error) {
	b.mu.RLock()
	lang, ok := b.languages[languageID]
	b.mu.RUnlock()
	if ok {
		return lang, nil
	}

	loader, known := languageLoaders[languageID]
	if !known {
		return nil, engerrors.NewBackendError(engerrors.BackendUnavailable, languageID, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if lang, ok := b.languages[languageID]; ok {
		return lang, nil
	}
	lang = loader()
	if lang == nil {
		return nil, engerrors.NewBackendError(engerrors.BackendGrammarVersionMismatch, languageID, nil)
	}
	b.languages[languageID] = lang
	logging.Log("astbackend", "registered grammar for %s", languageID)
	return lang, nil
}

// Parse produces a deterministic ParseTree for source under languageID.
// Malformed input is never an error here: tree-sitter always returns a
// tree, and syntax problems surface as HasError/IsMissing node flags
// rather than as a returned error.
func (b *Backend) Parse(languageID string, source []byte) (*types.ParseTree, error) {
	lang, err := b.language(languageID)
	if err != nil {
		return nil, err
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, engerrors.NewBackendError(engerrors.BackendGrammarVersionMismatch, languageID, err)
	}

	// tree-sitter's C library mutates the buffer it's handed via CGO; parse
	// a defensive copy so the caller's slice (which may be cached
	// elsewhere) is never touched.
	buf := make([]byte, len(source))
	copy(buf, source)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return nil, engerrors.NewBackendError(engerrors.BackendUnavailable, languageID, nil)
	}
	defer tree.Close()

	root := convertNode(tree.RootNode(), buf, nil)
	return &types.ParseTree{
		Root:       root,
		LanguageID: languageID,
		Backend:    types.ParserKindAST,
	}, nil
}

func convertNode(n *tree_sitter.Node, source []byte, parent *types.Node) *types.Node {
	if n == nil {
		return nil
	}
	start := n.StartPosition()
	end := n.EndPosition()

	out := &types.Node{
		Kind: n.Kind(),
		Span: types.Span{
			StartByte:  uint32(n.StartByte()),
			EndByte:    uint32(n.EndByte()),
			StartPoint: types.Point{Row: uint32(start.Row), Column: uint32(start.Column)},
			EndPoint:   types.Point{Row: uint32(end.Row), Column: uint32(end.Column)},
		},
		HasError:  n.HasError(),
		IsMissing: n.IsMissing(),
		Parent:    parent,
	}

	childCount := int(n.ChildCount())
	if childCount == 0 {
		out.Leaf = append([]byte(nil), source[out.Span.StartByte:out.Span.EndByte]...)
		return out
	}

	out.Children = make([]*types.Node, 0, childCount)
	for i := 0; i < childCount; i++ {
		child := n.Child(uint(i))
		if child == nil {
			continue
		}
		out.Children = append(out.Children, convertNode(child, source, out))
	}
	return out
}
