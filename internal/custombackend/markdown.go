package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseMarkdown recognizes ATX headings ("# Title"), fenced code blocks
// ("```lang" ... "```"), and "- "/"* "/"+ " list items, and falls every
// other line through as a paragraph, matching the structural breadth of the original markdown
// parser's node vocabulary without its AI/caching scaffolding.
func parseMarkdown(source []byte) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	var paraStart = -1
	flushParagraph := func(endLine int) {
		if paraStart < 0 {
			return
		}
		span := li.span(li.lineSpan(paraStart).StartByte, li.lineSpan(endLine).EndByte)
		root.Children = append(root.Children, leafNode("paragraph", span, source[span.StartByte:span.EndByte], root))
		paraStart = -1
	}

	i := 0
	for i < li.lineCount() {
		line := li.lines[i]
		trimmed := strings.TrimSpace(string(line))

		switch {
		case trimmed == "":
			flushParagraph(i - 1)

		case strings.HasPrefix(trimmed, "#"):
			flushParagraph(i - 1)
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			text := strings.TrimSpace(trimmed[level:])
			heading := interiorNode("heading", li.lineSpan(i), root)
			heading.Leaf = []byte(text)
			root.Children = append(root.Children, heading)

		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			flushParagraph(i - 1)
			fence := trimmed[:3]
			lang := strings.TrimSpace(trimmed[3:])
			start := i
			i++
			for i < li.lineCount() && !strings.HasPrefix(strings.TrimSpace(string(li.lines[i])), fence) {
				i++
			}
			end := i
			if end >= li.lineCount() {
				end = li.lineCount() - 1
			}
			span := li.span(li.lineSpan(start).StartByte, li.lineSpan(end).EndByte)
			block := leafNode("code_block", span, source[span.StartByte:span.EndByte], root)
			block.HasError = end >= li.lineCount()-1 && !strings.HasPrefix(strings.TrimSpace(string(li.lines[end])), fence)
			if lang != "" {
				block.Children = []*types.Node{leafNode("info_string", li.lineSpan(start), []byte(lang), block)}
			}
			root.Children = append(root.Children, block)

		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "+ "):
			flushParagraph(i - 1)
			item := leafNode("list_item", li.lineSpan(i), []byte(strings.TrimSpace(trimmed[2:])), root)
			root.Children = append(root.Children, item)

		default:
			if paraStart < 0 {
				paraStart = i
			}
		}
		i++
	}
	flushParagraph(li.lineCount() - 1)

	return newTree("markdown", root)
}
