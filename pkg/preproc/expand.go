package preproc

import (
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// trimEnds strips leading and trailing whitespace tokens.
func trimEnds(toks []token.Token) []token.Token {
	for len(toks) > 0 && (toks[0].IsSpace() || toks[0].IsNewline()) {
		toks = toks[1:]
	}
	for len(toks) > 0 && (toks[len(toks)-1].IsSpace() || toks[len(toks)-1].IsNewline()) {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// retag clones toks with every position set to pos, so tokens produced by an
// expansion point diagnostics at the invocation site.
func retag(toks []token.Token, pos token.Pos) []token.Token {
	out := make([]token.Token, len(toks))
	for i, t := range toks {
		t.Pos = pos
		out[i] = t
	}
	return out
}

func cloneHideset(hs map[string]bool) map[string]bool {
	out := make(map[string]bool, len(hs)+1)
	for k := range hs {
		out[k] = true
	}
	return out
}

// expandList rescans toks, expanding every macro invocation not suppressed
// by the hideset, until no invocation remains.
func (p *Processor) expandList(toks []token.Token, hideset map[string]bool) []token.Token {
	var out []token.Token
	for i := 0; i < len(toks); {
		rep, n, ok := p.expandAt(toks, i, hideset)
		if !ok {
			out = append(out, toks[i])
			i++
			continue
		}
		out = append(out, rep...)
		i += n
	}
	return out
}

// expandAt attempts one macro expansion at toks[i]. It reports the fully
// rescanned replacement and the number of input tokens consumed, or ok=false
// when toks[i] does not start an expandable invocation. A name in the
// hideset is painted blue and never re-expands, which is what terminates
// self-referential macros. A function-like macro name without a following
// '(' is an ordinary identifier.
func (p *Processor) expandAt(toks []token.Token, i int, hideset map[string]bool) ([]token.Token, int, bool) {
	t := toks[i]
	if !t.IsIdent || hideset[t.Text] {
		return nil, 0, false
	}
	m, ok := p.table.Lookup(t.Text)
	if !ok {
		return nil, 0, false
	}

	if !m.FuncLike {
		inner := cloneHideset(hideset)
		inner[m.Name] = true
		return p.expandList(retag(m.Body, t.Pos), inner), 1, true
	}

	j := i + 1
	for j < len(toks) && (toks[j].IsSpace() || toks[j].IsNewline()) {
		j++
	}
	if j >= len(toks) || !toks[j].Is("(") {
		return nil, 0, false
	}
	args, end, ok := collectArgs(toks, j)
	if !ok {
		util.Errorf(p.sink, t.Pos, "unterminated argument list invoking macro %q", m.Name)
		return nil, 0, false
	}
	body, ok := p.substitute(m, args, t.Pos, hideset)
	if !ok {
		return nil, 0, false
	}
	inner := cloneHideset(hideset)
	inner[m.Name] = true
	return p.expandList(body, inner), end - i, true
}

// collectArgs parses a parenthesized argument list starting at the '(' at
// toks[j]. Arguments are split on commas at nesting depth one; nested
// parentheses keep their commas. end is the index one past the closing ')'.
func collectArgs(toks []token.Token, j int) (args [][]token.Token, end int, ok bool) {
	depth := 0
	var cur []token.Token
	for k := j; k < len(toks); k++ {
		t := toks[k]
		switch {
		case t.Is("("):
			depth++
			if depth > 1 {
				cur = append(cur, t)
			}
		case t.Is(")"):
			depth--
			if depth == 0 {
				args = append(args, trimEnds(cur))
				return args, k + 1, true
			}
			cur = append(cur, t)
		case t.Is(",") && depth == 1:
			args = append(args, trimEnds(cur))
			cur = nil
		default:
			cur = append(cur, t)
		}
	}
	return nil, 0, false
}

// substitute builds the replacement list for one invocation of m: each
// argument is macro-expanded on its own, then parameter names in the body
// are replaced by the expanded arguments. For a variadic macro the surplus
// arguments, commas restored, stand in for __VA_ARGS__.
func (p *Processor) substitute(m *Macro, args [][]token.Token, at token.Pos, hideset map[string]bool) ([]token.Token, bool) {
	// M() is a zero-argument call even though the grammar parses one
	// empty argument.
	if len(args) == 1 && len(args[0]) == 0 && len(m.Params) == 0 && !m.Variadic {
		args = nil
	}
	if m.Variadic {
		if len(args) < len(m.Params) {
			util.Errorf(p.sink, at, "macro %q expects at least %d argument(s), got %d",
				m.Name, len(m.Params), len(args))
			return nil, false
		}
	} else if len(args) != len(m.Params) {
		util.Errorf(p.sink, at, "macro %q expects %d argument(s), got %d",
			m.Name, len(m.Params), len(args))
		return nil, false
	}

	expanded := make(map[string][]token.Token, len(m.Params)+1)
	for i, name := range m.Params {
		expanded[name] = p.expandList(args[i], hideset)
	}
	if m.Variadic {
		var rest []token.Token
		for i, arg := range args[len(m.Params):] {
			if i > 0 {
				rest = append(rest, token.New(",", at))
			}
			rest = append(rest, arg...)
		}
		expanded[VariadicParam] = p.expandList(rest, hideset)
	}

	var out []token.Token
	for _, t := range m.Body {
		if t.IsIdent {
			if rep, ok := expanded[t.Text]; ok {
				out = append(out, retag(rep, at)...)
				continue
			}
		}
		t.Pos = at
		out = append(out, t)
	}
	return out, true
}
