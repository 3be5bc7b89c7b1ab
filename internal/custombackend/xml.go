package custombackend

import (
	"strings"

	"github.com/standardbeagle/codesage/internal/types"
)

// xmlParser is a small tag-matching scanner, not a validating XML
// parser: it recognizes elements, attributes, comments, the "<?xml ...?>"
// prolog, and text content, and marks a node has_error on an unmatched
// closing tag rather than failing the parse outright.
type xmlParser struct {
	src []byte
	pos int
	li  *lineIndex
}

func parseXML(source []byte) *types.ParseTree {
	p := &xmlParser{src: source, li: newLineIndex(source)}
	root := interiorNode("document", documentSpan(source, p.li), nil)
	p.parseChildren(root, "")
	root.Span = p.li.span(0, uint32(len(source)))
	return newTree("xml", root)
}

func (p *xmlParser) parseChildren(parent *types.Node, closingTag string) {
	for p.pos < len(p.src) {
		if closingTag != "" && p.matchesClosing(closingTag) {
			return
		}
		if p.src[p.pos] != '<' {
			p.parseText(parent)
			continue
		}
		switch {
		case strings.HasPrefix(string(p.src[p.pos:min(p.pos+4, len(p.src))]), "<!--"):
			p.parseComment(parent)
		case strings.HasPrefix(string(p.src[p.pos:min(p.pos+2, len(p.src))]), "<?"):
			p.parseProlog(parent)
		case p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			// Unexpected closing tag with no matching opener at this
			// level; leave it unconsumed and stop so the caller's own
			// closing-tag check (if any) can still consume it.
			return
		default:
			p.parseElement(parent)
		}
	}
}

func (p *xmlParser) matchesClosing(tag string) bool {
	rest := string(p.src[p.pos:])
	return strings.HasPrefix(rest, "</"+tag)
}

func (p *xmlParser) parseText(parent *types.Node) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != '<' {
		p.pos++
	}
	text := p.src[start:p.pos]
	if len(strings.TrimSpace(string(text))) == 0 {
		return
	}
	parent.Children = append(parent.Children, leafNode("text", p.li.span(uint32(start), uint32(p.pos)), text, parent))
}

func (p *xmlParser) parseComment(parent *types.Node) {
	start := p.pos
	end := strings.Index(string(p.src[p.pos:]), "-->")
	if end < 0 {
		p.pos = len(p.src)
	} else {
		p.pos += end + 3
	}
	n := leafNode("comment", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], parent)
	n.HasError = end < 0
	parent.Children = append(parent.Children, n)
}

func (p *xmlParser) parseProlog(parent *types.Node) {
	start := p.pos
	end := strings.Index(string(p.src[p.pos:]), "?>")
	if end < 0 {
		p.pos = len(p.src)
	} else {
		p.pos += end + 2
	}
	n := leafNode("prolog", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], parent)
	n.HasError = end < 0
	parent.Children = append(parent.Children, n)
}

func (p *xmlParser) parseElement(parent *types.Node) {
	start := p.pos
	tagEnd := strings.IndexByte(string(p.src[p.pos:]), '>')
	if tagEnd < 0 {
		n := leafNode("error", p.li.span(uint32(start), uint32(len(p.src))), p.src[start:], parent)
		n.HasError = true
		parent.Children = append(parent.Children, n)
		p.pos = len(p.src)
		return
	}
	tagEnd += p.pos
	tagContent := string(p.src[p.pos+1 : tagEnd])
	selfClosing := strings.HasSuffix(strings.TrimSpace(tagContent), "/")
	name := strings.Fields(strings.TrimSuffix(strings.TrimSpace(tagContent), "/"))
	tagName := ""
	if len(name) > 0 {
		tagName = name[0]
	}

	elem := interiorNode("element", types.Span{}, parent)
	elem.Leaf = []byte(tagName)
	p.pos = tagEnd + 1

	if !selfClosing {
		p.parseChildren(elem, tagName)
		closeStart := p.pos
		closeIdx := strings.IndexByte(string(p.src[p.pos:]), '>')
		if closeIdx < 0 || !p.matchesClosing(tagName) {
			elem.HasError = true
		} else {
			p.pos = closeStart + closeIdx + 1
		}
	}

	elem.Span = p.li.span(uint32(start), uint32(p.pos))
	parent.Children = append(parent.Children, elem)
}
