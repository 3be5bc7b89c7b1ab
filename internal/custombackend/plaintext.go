package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// parsePlaintext is the universal fallback: one "line" leaf per non-blank
// line under a "document" root. It never fails and never sets has_error —
// plaintext has no syntax to get wrong.
func parsePlaintext(source []byte) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	for i := 0; i < li.lineCount(); i++ {
		if strings.TrimSpace(string(li.lines[i])) == "" {
			continue
		}
		root.Children = append(root.Children, leafNode("line", li.lineSpan(i), li.lines[i], root))
	}

	return newTree("plaintext", root)
}
