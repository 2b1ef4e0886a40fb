package preproc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/gcpp/pkg/token"
)

// Conditional expressions evaluate over int64 with C truthiness: the
// grammar covers integer and character constants, defined(NAME), !, &&, ||,
// the six comparisons and parentheses. Identifiers that survive macro
// expansion evaluate to 0.

type expr interface {
	eval() int64
}

type constant int64

func (c constant) eval() int64 { return int64(c) }

type notExpr struct{ x expr }

func (e notExpr) eval() int64 {
	if e.x.eval() == 0 {
		return 1
	}
	return 0
}

type andExpr struct{ l, r expr }

func (e andExpr) eval() int64 {
	if e.l.eval() != 0 && e.r.eval() != 0 {
		return 1
	}
	return 0
}

type orExpr struct{ l, r expr }

func (e orExpr) eval() int64 {
	if e.l.eval() != 0 || e.r.eval() != 0 {
		return 1
	}
	return 0
}

type cmpExpr struct {
	op   string
	l, r expr
}

func (e cmpExpr) eval() int64 {
	l, r := e.l.eval(), e.r.eval()
	var ok bool
	switch e.op {
	case "==":
		ok = l == r
	case "!=":
		ok = l != r
	case "<":
		ok = l < r
	case ">":
		ok = l > r
	case "<=":
		ok = l <= r
	case ">=":
		ok = l >= r
	}
	if ok {
		return 1
	}
	return 0
}

// evalCond decides a #if/#elif controlling expression: defined operators are
// resolved against the macro table first, the remaining tokens are macro
// expanded, and the result is parsed and evaluated.
func (p *Processor) evalCond(toks []token.Token, pos token.Pos) (bool, error) {
	protected, err := p.protectDefined(toks)
	if err != nil {
		return false, err
	}
	expanded := p.expandList(protected, nil)

	// Two-character operators are fused before whitespace is dropped, so
	// only source-adjacent pairs merge: "< =" stays two tokens and fails
	// to parse, as it should.
	var sig []token.Token
	for _, t := range mergeOps(expanded) {
		if !t.IsSpace() && !t.IsNewline() {
			sig = append(sig, t)
		}
	}
	if len(sig) == 0 {
		return false, fmt.Errorf("expected an expression")
	}

	ps := &exprParser{toks: sig}
	e, err := ps.parseOr()
	if err != nil {
		return false, err
	}
	if ps.pos != len(ps.toks) {
		return false, fmt.Errorf("unexpected %q in expression", ps.toks[ps.pos].Text)
	}
	return e.eval() != 0, nil
}

// protectDefined replaces defined NAME and defined(NAME) with 1 or 0 before
// macro expansion so the operand is tested, not expanded.
func (p *Processor) protectDefined(toks []token.Token) ([]token.Token, error) {
	var out []token.Token
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !t.Is("defined") || !t.IsIdent {
			out = append(out, t)
			continue
		}
		j := i + 1
		for j < len(toks) && toks[j].IsSpace() {
			j++
		}
		paren := j < len(toks) && toks[j].Is("(")
		if paren {
			j++
			for j < len(toks) && toks[j].IsSpace() {
				j++
			}
		}
		if j >= len(toks) || !toks[j].IsIdent {
			return nil, fmt.Errorf("operator defined requires an identifier")
		}
		name := toks[j].Text
		if paren {
			j++
			for j < len(toks) && toks[j].IsSpace() {
				j++
			}
			if j >= len(toks) || !toks[j].Is(")") {
				return nil, fmt.Errorf("missing ')' after defined(%s", name)
			}
		}
		val := "0"
		if _, ok := p.table.Lookup(name); ok {
			val = "1"
		}
		out = append(out, token.New(val, t.Pos))
		i = j
	}
	return out, nil
}

// mergeOps fuses the adjacent single-character tokens the lexer produces for
// the two-character operators.
func mergeOps(toks []token.Token) []token.Token {
	var out []token.Token
	for i := 0; i < len(toks); i++ {
		if i+1 < len(toks) {
			pair := toks[i].Text + toks[i+1].Text
			switch pair {
			case "&&", "||", "==", "!=", "<=", ">=":
				out = append(out, token.New(pair, toks[i].Pos))
				i++
				continue
			}
		}
		out = append(out, toks[i])
	}
	return out
}

type exprParser struct {
	toks []token.Token
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos].Text
}

func (p *exprParser) parseOr() (expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" {
		p.pos++
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = orExpr{l, r}
	}
	return l, nil
}

func (p *exprParser) parseAnd() (expr, error) {
	l, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" {
		p.pos++
		r, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		l = andExpr{l, r}
	}
	return l, nil
}

func (p *exprParser) parseCmp() (expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch op := p.peek(); op {
	case "==", "!=", "<", ">", "<=", ">=":
		p.pos++
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return cmpExpr{op, l, r}, nil
	}
	return l, nil
}

func (p *exprParser) parseUnary() (expr, error) {
	switch p.peek() {
	case "":
		return nil, fmt.Errorf("unexpected end of expression")
	case "!":
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{x}, nil
	case "(":
		p.pos++
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing ')' in expression")
		}
		p.pos++
		return x, nil
	}

	t := p.toks[p.pos]
	p.pos++
	if t.IsIdent {
		// An identifier left standing after expansion is undefined.
		return constant(0), nil
	}
	if n, ok := parseIntLiteral(t.Text); ok {
		return constant(n), nil
	}
	if r, ok := parseCharLiteral(t.Text); ok {
		return constant(r), nil
	}
	return nil, fmt.Errorf("unexpected %q in expression", t.Text)
}

// parseIntLiteral accepts decimal, octal and hex constants with optional
// U/L suffixes.
func parseIntLiteral(s string) (int64, bool) {
	s = strings.TrimRight(s, "uUlL")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseCharLiteral evaluates a simple character constant to its code point.
func parseCharLiteral(s string) (int64, bool) {
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, false
	}
	body := s[1 : len(s)-1]
	if v, _, _, err := strconv.UnquoteChar(body, '\''); err == nil {
		return int64(v), true
	}
	return 0, false
}
