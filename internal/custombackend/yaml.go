package custombackend

import (
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/codesage/internal/types"
)

// parseYAML decodes source into a yaml.v3 yaml.Node tree — unlike
// go-toml/v2's simple-value decoder, yaml.v3 already tracks per-node
// Line/Column, so this backend converts that tree directly instead of
// re-scanning lines by hand.
func parseYAML(source []byte) *types.ParseTree {
	li := newLineIndex(source)

	var doc yaml.Node
	err := yaml.Unmarshal(source, &doc)
	if err != nil || doc.Kind == 0 {
		root := leafNode("document", documentSpan(source, li), source, nil)
		root.HasError = true
		return newTree("yaml", root)
	}

	root := convertYAMLNode(&doc, li, nil)
	return newTree("yaml", root)
}

func yamlKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

func convertYAMLNode(n *yaml.Node, li *lineIndex, parent *types.Node) *types.Node {
	startByte := uint32(0)
	if n.Line >= 1 && n.Line-1 < li.lineCount() {
		startByte = li.starts[n.Line-1] + uint32(max(0, n.Column-1))
	}

	kind := yamlKindName(n.Kind)
	out := &types.Node{Kind: kind, Parent: parent}

	if len(n.Content) == 0 {
		endByte := startByte + uint32(len(n.Value))
		out.Span = li.span(startByte, endByte)
		out.Leaf = []byte(n.Value)
		return out
	}

	children := make([]*types.Node, 0, len(n.Content))
	var maxEnd uint32 = startByte
	for _, c := range n.Content {
		cn := convertYAMLNode(c, li, out)
		children = append(children, cn)
		if cn.Span.EndByte > maxEnd {
			maxEnd = cn.Span.EndByte
		}
	}
	out.Children = children
	out.Span = li.span(startByte, maxEnd)
	return out
}
