package lexer

import (
	"unicode"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// scanState is the lexical state shared by the phase 1-3 character machines:
// whether the scan is inside a string or char literal, a line or block
// comment, and whether the previous character armed a one-shot escape.
type scanState struct {
	inString       bool
	inChar         bool
	inLineComment  bool
	inBlockComment bool
	escape         bool
}

func (st *scanState) inLiteral() bool { return st.inString || st.inChar }

// literalStep advances the string/char-literal sub-state for ch. Must only
// be called while inLiteral() holds.
func (st *scanState) literalStep(ch rune) {
	quote := '"'
	if st.inChar {
		quote = '\''
	}
	switch {
	case !st.escape && ch == quote:
		st.inString = false
		st.inChar = false
	case !st.escape && ch == '\\':
		st.escape = true
	default:
		st.escape = false
	}
}

var trigraphSubs = map[rune]rune{
	'=': '#', '/': '\\', '\'': '^',
	'(': '[', ')': ']', '!': '|',
	'<': '{', '>': '}', '-': '~',
}

// normalize is translation phase 1: trigraph sequences are replaced by their
// single-character equivalents when enabled, and whitespace runs outside
// literals are collapsed (non-newline runs to one space, newline runs to one
// newline). Comment interiors pass through untouched; they are only tracked
// so their whitespace survives for the comment stripper. Constant lookahead:
// at most three characters are buffered.
func normalize(in <-chan Char, out chan<- Char, cfg *config.Config, sink util.Sink) {
	defer close(out)

	var st scanState
	star := false
	var buf []Char

	flush := func(keep int) {
		for len(buf) > keep {
			out <- buf[0]
			buf = buf[1:]
		}
	}
	last := func() rune {
		if len(buf) == 0 {
			return 0
		}
		return buf[len(buf)-1].R
	}

	for c := range in {
		ch := c.R
		switch {
		case st.inLiteral():
			st.literalStep(ch)

		case st.inLineComment:
			// A backslash-newline inside a line comment keeps the comment
			// open across the splice; mirror that with the escape flag.
			switch {
			case !st.escape && ch == '\n':
				st.inLineComment = false
			case !st.escape && ch == '\\':
				st.escape = true
			default:
				st.escape = false
			}

		case st.inBlockComment:
			// A '*' seen after entry is required, so "/*/" does not close.
			if ch == '/' && star {
				st.inBlockComment = false
			}
			star = ch == '*'

		case ch == '"':
			st.inString = true
			st.escape = false
		case ch == '\'':
			st.inChar = true
			st.escape = false

		case ch == '/':
			if last() == '/' {
				st.inLineComment = true
			}
		case ch == '*':
			if last() == '/' {
				st.inBlockComment = true
				star = false
			}

		case ch == '\n':
			if last() == '\n' {
				continue // newline run collapses to one newline
			}
		case unicode.IsSpace(ch):
			if last() == ' ' {
				continue // whitespace run collapses to one space
			}
			c.R = ' '
			ch = ' '
		}

		buf = append(buf, c)

		// Trigraphs are expanded everywhere, literals included. The
		// replacement keeps the position of the first '?'. An expanded
		// backslash arms the escape flag exactly as a literal one would.
		if cfg.Trigraphs && len(buf) >= 3 {
			n := len(buf)
			if buf[n-3].R == '?' && buf[n-2].R == '?' {
				if sub, ok := trigraphSubs[ch]; ok {
					first := buf[n-3]
					first.R = sub
					buf = append(buf[:n-3], first)
					if sub == '\\' {
						st.escape = true
					}
					if cfg.IsWarningEnabled(config.WarnTrigraphs) {
						util.Warnf(sink, token.Pos{Line: first.Line, Column: first.Col},
							"trigraph ??%c converted to %c", ch, sub)
					}
					continue
				}
			}
		}

		flush(3)
	}
	flush(0)
}
