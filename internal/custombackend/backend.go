package custombackend

import (
	engerrors "github.com/standardbeagle/codesage/internal/errors"
	"github.com/standardbeagle/codesage/internal/types"
)

type parseFunc func(source []byte) *types.ParseTree

// parsers is the closed roster of non-programming-language formats this
// backend recognizes, keyed by the same language id the Classifier (C1)
// assigns.
var parsers = map[string]parseFunc{
	"markdown":     parseMarkdown,
	"rst":          parseRST,
	"asciidoc":     parseAsciidoc,
	"ini":          parseINI,
	"toml":         parseTOML,
	"yaml":         parseYAML,
	"xml":          parseXML,
	"json":         parseJSON,
	"editorconfig": parseEditorconfig,
	"env":          parseEnv,
	"graphql":      parseGraphQL,
	"plaintext":    parsePlaintext,
}

// Backend is stateless: every format's scanner is a pure function of its
// input bytes, so there is nothing to lazily register the way the AST
// Backend registers grammars.
type Backend struct{}

func New() *Backend { return &Backend{} }

// Supports reports whether languageID names a format this backend parses.
func Supports(languageID string) bool {
	_, ok := parsers[languageID]
	return ok
}

// Parse dispatches to the scanner for languageID. Every scanner is
// total: malformed input surfaces as has_error flags deep in the tree,
// never as a returned error, matching the AST Backend's contract.
func (b *Backend) Parse(languageID string, source []byte) (*types.ParseTree, error) {
	fn, ok := parsers[languageID]
	if !ok {
		return nil, engerrors.NewBackendError(engerrors.BackendUnavailable, languageID, nil)
	}
	return fn(source), nil
}
