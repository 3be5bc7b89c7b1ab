package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

var graphqlDefKeywords = []string{"type", "interface", "enum", "input", "scalar", "union", "schema", "extend type"}

// parseGraphQL is a "lite" GraphQL SDL recognizer: top-level
// "type/interface/enum/input/union/schema Name {" blocks with their field
// lines as children, plus top-level scalar lines; any other line
// (including a directive definition) becomes a "text" node. It has no
// notion of nested selection sets — fine for the schema-definition files
// this module actually targets.
func parseGraphQL(source []byte) *types.ParseTree {
	li := newLineIndex(source)
	root := interiorNode("document", documentSpan(source, li), nil)

	defKeyword := func(trimmed string) (string, bool) {
		for _, kw := range graphqlDefKeywords {
			if strings.HasPrefix(trimmed, kw+" ") || trimmed == kw {
				return kw, true
			}
		}
		return "", false
	}

	i := 0
	for i < li.lineCount() {
		trimmed := strings.TrimSpace(string(li.lines[i]))
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			i++
			continue
		}

		if kw, ok := defKeyword(trimmed); ok {
			name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(trimmed, kw)), "{"))
			def := interiorNode(kw+"_definition", li.lineSpan(i), root)
			def.Leaf = []byte(name)

			if strings.Contains(trimmed, "{") {
				i++
				for i < li.lineCount() && !strings.Contains(string(li.lines[i]), "}") {
					fieldLine := strings.TrimSpace(string(li.lines[i]))
					if fieldLine != "" {
						def.Children = append(def.Children, leafNode("field", li.lineSpan(i), []byte(fieldLine), def))
					}
					i++
				}
			}
			root.Children = append(root.Children, def)
			i++
			continue
		}

		root.Children = append(root.Children, leafNode("text", li.lineSpan(i), li.lines[i], root))
		i++
	}

	return newTree("graphql", root)
}
