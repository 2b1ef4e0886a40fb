package lexer

import (
	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// stripComments is the first half of translation phase 3: // and /* */
// comments outside string/char literals are removed, and the whitespace left
// behind is re-collapsed so the tokenizer sees at most one space between
// tokens and no space before a newline. The newline that terminates a line
// comment survives; the characters of a block comment, its delimiters
// included, do not. An unterminated block comment is implicitly closed at
// end of input and flagged.
func stripComments(in <-chan Char, out chan<- Char, cfg *config.Config, sink util.Sink) {
	defer close(out)

	var st scanState
	star := false
	var openPos token.Pos
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
	emit := func(c Char) {
		buf = append(buf, c)
		flush(3)
	}

	for c := range in {
		ch := c.R
		switch {
		case st.inLiteral():
			st.literalStep(ch)
			emit(c)
			continue

		case st.inLineComment:
			switch {
			case !st.escape && ch == '\n':
				st.inLineComment = false
				// the newline ends the comment and survives; fall through
				// to the whitespace handling below
			case !st.escape && ch == '\\':
				st.escape = true
				continue
			default:
				st.escape = false
				continue
			}

		case st.inBlockComment:
			if ch == '/' && star {
				st.inBlockComment = false
			}
			star = ch == '*'
			continue

		case ch == '"':
			st.inString = true
			st.escape = false
			emit(c)
			continue
		case ch == '\'':
			st.inChar = true
			st.escape = false
			emit(c)
			continue

		case ch == '/':
			if last() == '/' {
				st.inLineComment = true
				st.escape = false
				prev := buf[len(buf)-1]
				buf = buf[:len(buf)-1]
				c = Char{R: ' ', Line: prev.Line, Col: prev.Col}
				ch = ' '
			}
		case ch == '*':
			if last() == '/' {
				st.inBlockComment = true
				star = false
				prev := buf[len(buf)-1]
				openPos = token.Pos{Line: prev.Line, Column: prev.Col}
				buf = buf[:len(buf)-1]
				c = Char{R: ' ', Line: prev.Line, Col: prev.Col}
				ch = ' '
			}
		}

		// Re-collapse whitespace around removed comments.
		switch ch {
		case '\n':
			if len(buf) == 0 || last() == '\n' {
				continue
			}
			if last() == ' ' {
				buf = buf[:len(buf)-1]
			}
		case ' ':
			if len(buf) == 0 || last() == ' ' || last() == '\n' {
				continue
			}
		}

		emit(c)
	}
	flush(0)

	if st.inBlockComment && cfg.IsWarningEnabled(config.WarnUnterminated) {
		util.Warnf(sink, openPos, "unterminated block comment")
	}
}
