package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseINIFamily backs ini, editorconfig, and env: line-oriented
// "[section]" headers, "key = value" or "key: value" properties, and "#"
// or ";" comments. languageID only sets the returned tree's LanguageID;
// every format shares the same node vocabulary
// (document/section/property/comment), grounded on the original
// implementation's per-format node vocabulary.
func parseINIFamily(languageID string, source []byte, commentChars string, sectionsAllowed bool) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	var currentSection *types.Node
	var sectionProps []*types.Node
	flushSection := func() {
		if currentSection != nil {
			currentSection.Children = sectionProps
			for _, p := range sectionProps {
				p.Parent = currentSection
			}
			root.Children = append(root.Children, currentSection)
		}
		currentSection = nil
		sectionProps = nil
	}

	for i := 0; i < li.lineCount(); i++ {
		line := li.lines[i]
		trimmed := strings.TrimSpace(string(line))
		lineSpan := li.lineSpan(i)

		if trimmed == "" {
			continue
		}
		if len(commentChars) > 0 && strings.ContainsRune(commentChars, rune(trimmed[0])) {
			root.Children = append(root.Children, leafNode("comment", lineSpan, line, root))
			continue
		}
		if sectionsAllowed && strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			flushSection()
			name := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			currentSection = interiorNode("section", lineSpan, root)
			currentSection.Leaf = []byte(name)
			continue
		}

		sep := strings.IndexAny(trimmed, "=:")
		if sep < 0 {
			target := &root.Children
			if currentSection != nil {
				target = &sectionProps
			}
			*target = append(*target, leafNode("text", lineSpan, line, root))
			continue
		}

		prop := interiorNode("property", lineSpan, root)
		keyText := strings.TrimSpace(trimmed[:sep])
		valueText := strings.TrimSpace(trimmed[sep+1:])
		keyOffset := uint32(strings.Index(string(line), keyText))
		valOffset := uint32(strings.LastIndex(string(line), valueText))
		prop.Children = []*types.Node{
			leafNode("key", li.span(lineSpan.StartByte+keyOffset, lineSpan.StartByte+keyOffset+uint32(len(keyText))), []byte(keyText), prop),
			leafNode("value", li.span(lineSpan.StartByte+valOffset, lineSpan.StartByte+valOffset+uint32(len(valueText))), []byte(valueText), prop),
		}

		if currentSection != nil {
			sectionProps = append(sectionProps, prop)
		} else {
			root.Children = append(root.Children, prop)
		}
	}
	flushSection()

	return newTree(languageID, root)
}

func parseINI(source []byte) *types.ParseTree {
	return parseINIFamily("ini", source, ";#", true)
}

func parseEditorconfig(source []byte) *types.ParseTree {
	return parseINIFamily("editorconfig", source, "#;", true)
}

func parseEnv(source []byte) *types.ParseTree {
	return parseINIFamily("env", source, "#", false)
}
