package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseAsciidoc recognizes "=" heading markers, "[block-title]" attribute
// lines, and delimited blocks fenced by four or more repeated characters
// ("----", "....", "====").
func parseAsciidoc(source []byte) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	isDelimiter := func(s string) (byte, bool) {
		s = strings.TrimSpace(s)
		if len(s) < 4 {
			return 0, false
		}
		c := s[0]
		if !strings.ContainsRune("-.=*_+", rune(c)) {
			return 0, false
		}
		for i := 1; i < len(s); i++ {
			if s[i] != c {
				return 0, false
			}
		}
		return c, true
	}

	i := 0
	for i < li.lineCount() {
		trimmed := strings.TrimSpace(string(li.lines[i]))
		_, delimiterLine := isDelimiter(trimmed)

		switch {
		case trimmed == "":
			// skip

		case strings.HasPrefix(trimmed, "=") && !delimiterLine:
			level := 0
			for level < len(trimmed) && trimmed[level] == '=' {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			heading := interiorNode("heading", li.lineSpan(i), root)
			heading.Leaf = []byte(text)
			root.Children = append(root.Children, heading)

		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			attr := leafNode("block_attribute", li.lineSpan(i), []byte(strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")), root)
			root.Children = append(root.Children, attr)

		default:
			if delim, ok := isDelimiter(trimmed); ok {
				start := i
				i++
				for i < li.lineCount() {
					if d2, ok2 := isDelimiter(strings.TrimSpace(string(li.lines[i]))); ok2 && d2 == delim {
						break
					}
					i++
				}
				end := i
				if end >= li.lineCount() {
					end = li.lineCount() - 1
				}
				span := li.span(li.lineSpan(start).StartByte, li.lineSpan(end).EndByte)
				block := leafNode("delimited_block", span, source[span.StartByte:span.EndByte], root)
				root.Children = append(root.Children, block)
			} else {
				root.Children = append(root.Children, leafNode("text", li.lineSpan(i), li.lines[i], root))
			}
		}
		i++
	}

	return newTree("asciidoc", root)
}
