package custombackend

import (
	"github.com/standardbeagle/codesage/internal/types"
)

// jsonParser is a small recursive-descent scanner that builds a typed
// node tree (object/array/pair/string/number/bool/null) with byte-accurate
// spans. encoding/json can decode values but throws away position
// information, which the Block Extractor and Pattern Engine both need —
// hence the hand-rolled scanner rather than the standard library decoder.
type jsonParser struct {
	src []byte
	pos int
	li  *lineIndex
	err bool
}

func parseJSON(source []byte) *types.ParseTree {
	p := &jsonParser{src: source, li: newLineIndex(source)}
	p.skipSpace()
	var root *types.Node
	if p.pos >= len(p.src) {
		root = leafNode("document", types.Span{}, nil, nil)
		root.HasError = true
	} else {
		root = p.parseValue()
		p.skipSpace()
		if p.pos < len(p.src) {
			root.HasError = true
		}
	}
	if root == nil {
		root = leafNode("document", p.li.span(0, uint32(len(source))), source, nil)
		root.HasError = true
	}
	return newTree("json", root)
}

func (p *jsonParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue() *types.Node {
	p.skipSpace()
	if p.pos >= len(p.src) {
		p.err = true
		return nil
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '"':
		return p.parseString()
	case c == 't' || c == 'f':
		return p.parseLiteral("bool")
	case c == 'n':
		return p.parseLiteral("null")
	default:
		return p.parseNumber()
	}
}

func (p *jsonParser) parseLiteral(kind string) *types.Node {
	start := p.pos
	for p.pos < len(p.src) && isLetter(p.src[p.pos]) {
		p.pos++
	}
	return leafNode(kind, p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], nil)
}

func isLetter(b byte) bool { return b >= 'a' && b <= 'z' }

func (p *jsonParser) parseNumber() *types.Node {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		p.err = true
		p.pos++
		return leafNode("error", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], nil)
	}
	return leafNode("number", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], nil)
}

func (p *jsonParser) parseString() *types.Node {
	start := p.pos
	p.pos++ // opening quote
	for p.pos < len(p.src) {
		if p.src[p.pos] == '\\' {
			p.pos += 2
			continue
		}
		if p.src[p.pos] == '"' {
			p.pos++
			return leafNode("string", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], nil)
		}
		p.pos++
	}
	p.err = true
	n := leafNode("string", p.li.span(uint32(start), uint32(p.pos)), p.src[start:p.pos], nil)
	n.HasError = true
	return n
}

func (p *jsonParser) parseArray() *types.Node {
	start := p.pos
	p.pos++ // '['
	node := interiorNode("array", types.Span{}, nil)
	p.skipSpace()
	for p.pos < len(p.src) && p.src[p.pos] != ']' {
		el := p.parseValue()
		if el == nil {
			node.HasError = true
			break
		}
		el.Parent = node
		node.Children = append(node.Children, el)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
	} else {
		node.HasError = true
	}
	node.Span = p.li.span(uint32(start), uint32(p.pos))
	return node
}

func (p *jsonParser) parseObject() *types.Node {
	start := p.pos
	p.pos++ // '{'
	node := interiorNode("object", types.Span{}, nil)
	p.skipSpace()
	for p.pos < len(p.src) && p.src[p.pos] != '}' {
		pairStart := p.pos
		if p.src[p.pos] != '"' {
			node.HasError = true
			break
		}
		key := p.parseString()
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			node.HasError = true
			break
		}
		p.pos++
		val := p.parseValue()
		if val == nil {
			node.HasError = true
			break
		}
		pair := interiorNode("pair", p.li.span(uint32(pairStart), val.Span.EndByte), node, key, val)
		node.Children = append(node.Children, pair)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			p.skipSpace()
		}
	}
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
	} else {
		node.HasError = true
	}
	node.Span = p.li.span(uint32(start), uint32(p.pos))
	return node
}
