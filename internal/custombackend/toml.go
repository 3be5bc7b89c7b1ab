package custombackend

import (
	"strings"

	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseTOML reuses the ini-family line scanner for "[table]" headers and
// "key = value" properties — TOML's surface syntax is a superset of INI's
// for the subset this module's block/feature extraction cares about — but
// first runs the real decoder to decide has_error, since a line scanner
// alone can't distinguish a well-formed value from a malformed one (e.g.
// an unterminated multi-line string).
func parseTOML(source []byte) *types.ParseTree {
	var probe map[string]any
	decodeErr := gotoml.Unmarshal(source, &probe)

	tree := parseINIFamily("toml", source, "#", true)
	if decodeErr != nil {
		tree.Root.HasError = true
	}
	retagTOMLSections(tree.Root)
	return tree
}

// retagTOMLSections renames the shared ini-family "section" node kind to
// "table", matching TOML's own vocabulary, without duplicating the
// scanning logic in keyvalue.go.
func retagTOMLSections(n *types.Node) {
	if n.Kind == "section" {
		n.Kind = "table"
		if strings.HasPrefix(string(n.Leaf), "[") {
			n.Kind = "array_table"
		}
	}
	for _, c := range n.Children {
		retagTOMLSections(c)
	}
}
