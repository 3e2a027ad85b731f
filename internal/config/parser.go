package config

import (
	"fmt"
	"strconv"
)

// Parse parses a configuration-object tree from src and returns its root
// node. The grammar: a root is a sequence of dict/list/pair/scalar forms;
// `{ k:v, k:v }` is a dict, `[ v, v ]` is a list, `( a b )` is a pair of
// two values. Identifiers match [A-Za-z_][A-Za-z0-9_.]*.
func Parse(src string) (*Node, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root := &Node{Kind: KindRoot}
	for p.tok.kind != tEOF {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, v)
	}
	return root, nil
}

// ParseMain parses src and returns the `main` dict required by spec §6's
// network configuration format.
func ParseMain(src string) (*Node, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	for _, child := range root.Children {
		if child.Kind == KindDict {
			continue
		}
	}
	// The root itself, in this grammar, typically *is* a single dict whose
	// entries include "main". Support both: a bare dict at top level, or a
	// dict literally named main via `main: { ... }` pair syntax.
	if len(root.Children) == 1 && root.Children[0].Kind == KindDict {
		if m, ok := root.Children[0].Get("main"); ok {
			return m, nil
		}
		return root.Children[0], nil
	}
	return nil, fmt.Errorf("config: syntax error: expected a single root dict containing 'main'")
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) parseValue() (*Node, error) {
	switch p.tok.kind {
	case tLBrace:
		return p.parseDict()
	case tLBrack:
		return p.parseList()
	case tLParen:
		return p.parsePair()
	case tString:
		n := &Node{Kind: KindString, Str: p.tok.text, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tBool:
		n := &Node{Kind: KindBool, Bool: p.tok.text == "true", Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tInt:
		v, err := strconv.ParseInt(p.tok.text, 10, 64)
		if err != nil {
			return nil, p.syntaxErr("invalid integer %q", p.tok.text)
		}
		n := &Node{Kind: KindInt, Int: v, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tUint:
		text := p.tok.text
		if len(text) > 0 && (text[len(text)-1] == 'u' || text[len(text)-1] == 'U') {
			text = text[:len(text)-1]
		}
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, p.syntaxErr("invalid unsigned integer %q", p.tok.text)
		}
		n := &Node{Kind: KindUint, Uint: v, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tHex:
		v, err := strconv.ParseUint(p.tok.text[2:], 16, 64)
		if err != nil {
			return nil, p.syntaxErr("invalid hex literal %q", p.tok.text)
		}
		n := &Node{Kind: KindUint, Uint: v, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tFloat:
		text := p.tok.text
		if len(text) > 0 && (text[len(text)-1] == 'f' || text[len(text)-1] == 'F') {
			text = text[:len(text)-1]
		}
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, p.syntaxErr("invalid float %q", p.tok.text)
		}
		n := &Node{Kind: KindFloat, Float: float32(v), Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tDouble:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, p.syntaxErr("invalid double %q", p.tok.text)
		}
		n := &Node{Kind: KindDouble, Double: v, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	case tIdent:
		n := &Node{Kind: KindIdent, Str: p.tok.text, Line: p.tok.line, Col: p.tok.col}
		return n, p.advance()
	default:
		return nil, p.syntaxErr("unexpected token")
	}
}

func (p *parser) parseDict() (*Node, error) {
	line, col := p.tok.line, p.tok.col
	if err := p.advance(); err != nil { // consume {
		return nil, err
	}
	d := &Node{Kind: KindDict, Line: line, Col: col}
	for p.tok.kind != tRBrace {
		if p.tok.kind != tIdent && p.tok.kind != tString {
			return nil, p.syntaxErr("expected dict key")
		}
		key := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tColon {
			return nil, p.syntaxErr("expected ':' after dict key %q", key)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := d.Set(key, v); err != nil {
			return nil, err
		}
		if p.tok.kind == tComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return d, p.advance() // consume }
}

func (p *parser) parseList() (*Node, error) {
	line, col := p.tok.line, p.tok.col
	if err := p.advance(); err != nil { // consume [
		return nil, err
	}
	l := &Node{Kind: KindList, Line: line, Col: col}
	for p.tok.kind != tRBrack {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := l.Append(v); err != nil {
			return nil, err
		}
		if p.tok.kind == tComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	return l, p.advance() // consume ]
}

func (p *parser) parsePair() (*Node, error) {
	line, col := p.tok.line, p.tok.col
	if err := p.advance(); err != nil { // consume (
		return nil, err
	}
	a, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	b, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tRParen {
		return nil, p.syntaxErr("expected ')' to close pair")
	}
	return &Node{Kind: KindPair, Children: []*Node{a, b}, Line: line, Col: col}, p.advance()
}

func (p *parser) syntaxErr(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("config: syntax error at line %d column %d: %s", p.tok.line, p.tok.col, msg)
}
