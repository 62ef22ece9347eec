package condition

import (
	"fmt"

	"github.com/pjtatlow/terminus/internal/errs"
)

// Parse parses a single condition or structure expression (a label, a
// `table.column` field reference, or a `name(args...)` function call) and
// returns its AST. It does not compile the expression into a predicate;
// see Compile for that.
func Parse(expr string) (*Node, error) {
	p := &parser{lex: newLexer(expr), source: expr}
	if err := p.advance(); err != nil {
		return nil, errs.NewConfigError("invalid condition '%s': %v", expr, err)
	}
	node, err := p.parseExpr()
	if err != nil {
		return nil, errs.NewConfigError("invalid condition '%s': %v", expr, err)
	}
	if p.tok.kind != tokEOF {
		return nil, errs.NewConfigError("invalid condition '%s': unexpected trailing input", expr)
	}
	return node, nil
}

type parser struct {
	lex    *lexer
	tok    token
	source string
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseExpr() (*Node, error) {
	switch p.tok.kind {
	case tokString:
		n := &Node{Kind: KindString, Text: p.tok.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case tokRegex:
		n := &Node{Kind: KindRegex, Text: p.tok.text, Flags: p.tok.flags}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return n, nil
	case tokIdent:
		return p.parseIdentLed()
	default:
		return nil, fmt.Errorf("expected an expression")
	}
}

// parseIdentLed handles the three identifier-led forms: a bare label, a
// `table.column` field, or a `name(args)` function call.
func (p *parser) parseIdentLed() (*Node, error) {
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}

	switch p.tok.kind {
	case tokDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent {
			return nil, fmt.Errorf("expected column name after '%s.'", name)
		}
		column := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: KindField, Table: name, Column: column}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []*Node
		if p.tok.kind != tokRParen {
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.tok.kind == tokComma {
					if err := p.advance(); err != nil {
						return nil, err
					}
					continue
				}
				break
			}
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("expected ')' to close call to '%s'", name)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: KindFunction, Func: name, Args: args}, nil

	default:
		return &Node{Kind: KindLabel, Label: name}, nil
	}
}
