package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseRST recognizes section titles (a text line followed by a line of a
// single repeated punctuation character at least as long as the title)
// and ".. directive::" blocks; everything else falls through as text.
func parseRST(source []byte) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	isUnderline := func(s string) bool {
		s = strings.TrimSpace(s)
		if len(s) < 2 {
			return false
		}
		c := s[0]
		if !strings.ContainsRune("=-~^\"'`#*+.:_", rune(c)) {
			return false
		}
		for i := 1; i < len(s); i++ {
			if s[i] != c {
				return false
			}
		}
		return true
	}

	for i := 0; i < li.lineCount(); i++ {
		line := strings.TrimSpace(string(li.lines[i]))
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".. ") && strings.Contains(line, "::") {
			span := li.lineSpan(i)
			directive := leafNode("directive", span, li.lines[i], root)
			root.Children = append(root.Children, directive)
			continue
		}

		if i+1 < li.lineCount() && isUnderline(string(li.lines[i+1])) &&
			len(strings.TrimSpace(string(li.lines[i+1]))) >= len(line) {
			span := li.span(li.lineSpan(i).StartByte, li.lineSpan(i+1).EndByte)
			title := interiorNode("section_title", span, root)
			title.Leaf = []byte(line)
			root.Children = append(root.Children, title)
			i++
			continue
		}

		root.Children = append(root.Children, leafNode("text", li.lineSpan(i), li.lines[i], root))
	}

	return newTree("rst", root)
}
