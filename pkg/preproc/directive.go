package preproc

import (
	"strconv"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// frame is one level of the conditional-inclusion stack.
type frame struct {
	kind         string // "if", "ifdef" or "ifndef"
	taken        bool   // current branch is included
	anyTaken     bool   // some earlier branch of this group was included
	parentActive bool   // the group sits in an included region
	seenElse     bool
	pos          token.Pos
}

// Processor runs translation phase 4 over a token stream: directives are
// executed and removed, macro invocations in included regions are expanded,
// and tokens in excluded regions are dropped. One Processor handles one
// file; #include spawns a child sharing the macro table, the conditional
// stack never crosses file boundaries.
type Processor struct {
	cfg    *config.Config
	sink   util.Sink // tagged with this processor's file
	base   util.Sink // untagged, handed to children
	table  *Table
	frames []frame
	file   string
	depth  int             // include nesting level
	once   map[string]bool // files that declared #pragma once

	// included stages the output of a processed #include until Run splices
	// it into the stream in place of the directive line.
	included []token.Token
}

// NewProcessor prepares phase 4 for one main input. file labels diagnostics
// and anchors quoted-include resolution.
func NewProcessor(file string, table *Table, cfg *config.Config, sink util.Sink) *Processor {
	return &Processor{
		cfg:   cfg,
		sink:  &util.FileSink{Inner: sink, File: file},
		base:  sink,
		table: table,
		file:  file,
		once:  make(map[string]bool),
	}
}

func (p *Processor) child(file string) *Processor {
	return &Processor{
		cfg:   p.cfg,
		sink:  &util.FileSink{Inner: p.base, File: file},
		base:  p.base,
		table: p.table,
		file:  file,
		depth: p.depth + 1,
		once:  p.once,
	}
}

// active reports whether tokens at the current point belong to the output.
func (p *Processor) active() bool {
	if len(p.frames) == 0 {
		return true
	}
	top := p.frames[len(p.frames)-1]
	return top.parentActive && top.taken
}

// Run executes phase 4 and returns the surviving, macro-expanded tokens.
// A directive line is a '#' as the first non-space token of a logical line;
// the whole line, trailing newline and leading spaces included, is removed
// from the output. Conditionals left open at end of input are an error.
func (p *Processor) Run(toks []token.Token) []token.Token {
	var out []token.Token
	atLineStart := true

	for i := 0; i < len(toks); {
		if atLineStart {
			j := i
			for j < len(toks) && toks[j].IsSpace() {
				j++
			}
			if j < len(toks) && toks[j].Is("#") {
				k := j + 1
				for k < len(toks) && !toks[k].IsNewline() {
					k++
				}
				if p.directive(toks[j+1:k], toks[j].Pos) {
					if len(p.included) > 0 {
						out = append(out, p.included...)
						p.included = nil
					}
					if k < len(toks) {
						k++ // the directive's newline goes with it
					}
					i = k
					continue
				}
				// Unrecognized directive: the line stays in the output.
				// Only reachable in an included region.
				out = append(out, toks[i:j+1]...)
				i = j + 1
				atLineStart = false
				continue
			}
		}

		t := toks[i]
		if t.IsNewline() {
			atLineStart = true
		} else if !t.IsSpace() {
			atLineStart = false
		}

		if !p.active() {
			i++
			continue
		}
		if t.IsIdent {
			if rep, n, ok := p.expandAt(toks, i, nil); ok {
				out = append(out, rep...)
				i += n
				continue
			}
		}
		out = append(out, t)
		i++
	}

	for _, f := range p.frames {
		util.Errorf(p.sink, f.pos, "unterminated #%s", f.kind)
	}
	return out
}

// directive executes one directive line (tokens between '#' and newline,
// exclusive). It reports false only for unrecognized directives in included
// regions, which are left in the output untouched.
func (p *Processor) directive(line []token.Token, hashPos token.Pos) bool {
	line = trimEnds(line)
	if len(line) == 0 {
		return true // null directive
	}
	name := line[0]
	args := trimEnds(line[1:])
	active := p.active()

	switch name.Text {
	case "if":
		p.pushIf("if", name.Pos, func() bool { return p.evalLine(args, name.Pos) })
	case "ifdef":
		p.pushIf("ifdef", name.Pos, func() bool { return p.testDefined(args, name.Pos, false) })
	case "ifndef":
		p.pushIf("ifndef", name.Pos, func() bool { return !p.testDefined(args, name.Pos, true) })
	case "elif":
		p.handleElif(args, name.Pos)
	case "else":
		p.handleElse(args, name.Pos)
	case "endif":
		p.handleEndif(args, name.Pos)

	case "define":
		if active {
			p.handleDefine(args, name.Pos)
		}
	case "undef":
		if active {
			p.handleUndef(args, name.Pos)
		}
	case "include":
		if active {
			p.handleInclude(args, name.Pos)
		}
	case "error":
		if active {
			util.Errorf(p.sink, name.Pos, "#error %s", token.Text(args))
		}
	case "warning":
		if active {
			util.Warnf(p.sink, name.Pos, "#warning %s", token.Text(args))
		}
	case "line":
		if active {
			p.handleLine(args, name.Pos)
		}
	case "pragma":
		if active {
			p.handlePragma(args)
		}

	default:
		if !active {
			return true // excluded region, line dropped without a look
		}
		if p.cfg.IsWarningEnabled(config.WarnUnknownDirective) {
			util.Warnf(p.sink, name.Pos, "unknown directive #%s", name.Text)
		}
		return false
	}
	return true
}

// pushIf opens a conditional group. cond is only evaluated when the group
// sits in an included region; inside an excluded one the whole group is
// excluded without looking at its expressions.
func (p *Processor) pushIf(kind string, pos token.Pos, cond func() bool) {
	parent := p.active()
	f := frame{kind: kind, parentActive: parent, pos: pos}
	if parent {
		f.taken = cond()
		f.anyTaken = f.taken
	} else {
		f.anyTaken = true // suppress every branch, #else included
	}
	p.frames = append(p.frames, f)
}

func (p *Processor) evalLine(args []token.Token, pos token.Pos) bool {
	v, err := p.evalCond(args, pos)
	if err != nil {
		util.Errorf(p.sink, pos, "invalid #if expression: %v", err)
		return false
	}
	return v
}

// testDefined checks the single-identifier operand of #ifdef/#ifndef.
// missing reports the value a malformed operand should yield after the
// caller's negation, so both forms fail closed (branch not taken).
func (p *Processor) testDefined(args []token.Token, pos token.Pos, missing bool) bool {
	if len(args) != 1 || !args[0].IsIdent {
		util.Errorf(p.sink, pos, "expected a single macro name")
		return missing
	}
	_, ok := p.table.Lookup(args[0].Text)
	return ok
}

func (p *Processor) handleElif(args []token.Token, pos token.Pos) {
	if len(p.frames) == 0 {
		util.Errorf(p.sink, pos, "#elif without matching #if")
		return
	}
	top := &p.frames[len(p.frames)-1]
	if top.seenElse {
		util.Errorf(p.sink, pos, "#elif after #else")
		top.taken = false
		return
	}
	top.taken = top.parentActive && !top.anyTaken && p.evalLineIf(top, args, pos)
	top.anyTaken = top.anyTaken || top.taken
}

// evalLineIf skips evaluation when the branch cannot be taken anyway, so
// expressions in dead #elif arms never produce diagnostics.
func (p *Processor) evalLineIf(top *frame, args []token.Token, pos token.Pos) bool {
	if !top.parentActive || top.anyTaken {
		return false
	}
	return p.evalLine(args, pos)
}

func (p *Processor) handleElse(args []token.Token, pos token.Pos) {
	if len(p.frames) == 0 {
		util.Errorf(p.sink, pos, "#else without matching #if")
		return
	}
	top := &p.frames[len(p.frames)-1]
	if top.seenElse {
		util.Errorf(p.sink, pos, "#else after #else")
		top.taken = false
		return
	}
	if len(args) > 0 && p.cfg.IsWarningEnabled(config.WarnDirective) {
		util.Warnf(p.sink, pos, "extra tokens after #else")
	}
	top.seenElse = true
	top.taken = top.parentActive && !top.anyTaken
	top.anyTaken = true
}

func (p *Processor) handleEndif(args []token.Token, pos token.Pos) {
	if len(p.frames) == 0 {
		util.Errorf(p.sink, pos, "#endif without matching #if")
		return
	}
	if len(args) > 0 && p.cfg.IsWarningEnabled(config.WarnDirective) {
		util.Warnf(p.sink, pos, "extra tokens after #endif")
	}
	p.frames = p.frames[:len(p.frames)-1]
}

// handleDefine parses the directive line after "#define". A macro is
// function-like only when '(' immediately follows the name; with whitespace
// between, the parenthesis starts the replacement list instead.
func (p *Processor) handleDefine(line []token.Token, pos token.Pos) {
	if len(line) == 0 || !line[0].IsIdent {
		util.Errorf(p.sink, pos, "expected a macro name after #define")
		return
	}
	m := &Macro{Name: line[0].Text, Pos: pos}
	rest := line[1:]

	if len(rest) > 0 && rest[0].Is("(") {
		m.FuncLike = true
		var ok bool
		rest, ok = p.parseParams(m, rest, pos)
		if !ok {
			return
		}
	}
	if len(rest) > 0 && !rest[0].IsSpace() && p.cfg.IsWarningEnabled(config.WarnDirective) {
		util.Warnf(p.sink, pos, "missing whitespace before the replacement list of %q", m.Name)
	}
	m.Body = trimEnds(rest)

	if prev, redef := p.table.Define(m); redef && p.cfg.IsWarningEnabled(config.WarnRedefinition) {
		util.Warnf(p.sink, pos, "macro %q redefined", m.Name)
		if prev.Pos.IsCommandLine() {
			util.Notef(p.sink, prev.Pos, "previous definition on the command line")
		} else {
			util.Notef(p.sink, prev.Pos, "previous definition of %q", m.Name)
		}
	}
}

// parseParams consumes the parameter list including both parentheses and
// returns the remaining replacement-list tokens. "..." arrives from the
// tokenizer as three '.' tokens.
func (p *Processor) parseParams(m *Macro, toks []token.Token, pos token.Pos) ([]token.Token, bool) {
	m.Params = []string{}
	i := 1 // past '('
	wantName := false
	for i < len(toks) {
		t := toks[i]
		switch {
		case t.IsSpace():
			i++
		case t.Is(")"):
			if wantName {
				util.Errorf(p.sink, pos, "expected a parameter name before ')'")
				return nil, false
			}
			return toks[i+1:], true
		case t.Is(","):
			if wantName || len(m.Params) == 0 || m.Variadic {
				util.Errorf(p.sink, pos, "unexpected ',' in macro parameter list")
				return nil, false
			}
			wantName = true
			i++
		case t.Is("."):
			if i+2 < len(toks) && toks[i+1].Is(".") && toks[i+2].Is(".") && !m.Variadic {
				m.Variadic = true
				wantName = false
				i += 3
				continue
			}
			util.Errorf(p.sink, pos, "unexpected '.' in macro parameter list")
			return nil, false
		case t.IsIdent:
			if m.Variadic {
				util.Errorf(p.sink, pos, "parameter after '...' in macro parameter list")
				return nil, false
			}
			if !wantName && len(m.Params) > 0 {
				util.Errorf(p.sink, pos, "expected ',' before %q", t.Text)
				return nil, false
			}
			m.Params = append(m.Params, t.Text)
			wantName = false
			i++
		default:
			util.Errorf(p.sink, pos, "unexpected %q in macro parameter list", t.Text)
			return nil, false
		}
	}
	util.Errorf(p.sink, pos, "missing ')' in macro parameter list")
	return nil, false
}

func (p *Processor) handleUndef(args []token.Token, pos token.Pos) {
	if len(args) != 1 || !args[0].IsIdent {
		util.Errorf(p.sink, pos, "expected a single macro name after #undef")
		return
	}
	if !p.table.Undef(args[0].Text) && p.cfg.IsWarningEnabled(config.WarnUndefUndefined) {
		util.Warnf(p.sink, pos, "#undef of undefined macro %q", args[0].Text)
	}
}

// handleLine validates #line and otherwise ignores it; token positions are
// assigned during phases 1-3 and are not remapped afterwards.
func (p *Processor) handleLine(args []token.Token, pos token.Pos) {
	if len(args) == 0 {
		util.Errorf(p.sink, pos, "expected a line number after #line")
		return
	}
	if _, err := strconv.Atoi(args[0].Text); err != nil {
		util.Errorf(p.sink, pos, "invalid line number %q after #line", args[0].Text)
	}
}

func (p *Processor) handlePragma(args []token.Token) {
	if len(args) == 1 && args[0].Is("once") {
		p.once[p.file] = true
	}
	// Other pragmas are implementation-defined and pass without effect.
}
