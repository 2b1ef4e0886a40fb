package lexer

import (
	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// punct is the fixed set of characters that terminate an identifier-like run
// and form one-character tokens on their own, quotes excepted.
var punct = map[rune]bool{
	'+': true, '-': true, '*': true, '/': true, '%': true,
	'=': true, '<': true, '>': true, '!': true, '&': true,
	'|': true, '^': true, '~': true, '.': true, ':': true,
	';': true, ',': true, '[': true, ']': true, '(': true,
	')': true, '{': true, '}': true, '?': true, '#': true,
	'\n': true, '\'': true, '"': true, ' ': true, '\\': true,
}

// tokenize is the second half of translation phase 3: the normalized,
// spliced, comment-free character stream is grouped into preprocessing
// tokens. Maximal runs of non-punctuator characters form identifier/number
// tokens; string and char literals accumulate into a single token including
// both quotes; every other punctuator, the space marker and the newline
// marker are one-character tokens.
func tokenize(in <-chan Char, cfg *config.Config, sink util.Sink) []token.Token {
	var toks []token.Token
	var cur []rune
	var curPos token.Pos

	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, token.New(string(cur), curPos))
			cur = nil
		}
	}

	inLiteral := false
	var quote rune
	escape := false

	for c := range in {
		ch := c.R
		if inLiteral {
			cur = append(cur, ch)
			switch {
			case !escape && ch == quote:
				inLiteral = false
				toks = append(toks, token.New(string(cur), curPos))
				cur = nil
			case !escape && ch == '\\':
				escape = true
			default:
				escape = false
			}
			continue
		}
		if punct[ch] {
			flush()
			pos := token.Pos{Line: c.Line, Column: c.Col}
			if ch == '"' || ch == '\'' {
				inLiteral = true
				quote = ch
				escape = false
				curPos = pos
				cur = append(cur, ch)
				continue
			}
			toks = append(toks, token.New(string(ch), pos))
			continue
		}
		if len(cur) == 0 {
			curPos = token.Pos{Line: c.Line, Column: c.Col}
		}
		cur = append(cur, ch)
	}

	if inLiteral {
		// End of input stands in for the missing terminator.
		kind := "string"
		if quote == '\'' {
			kind = "char"
		}
		if cfg.IsWarningEnabled(config.WarnUnterminated) {
			util.Warnf(sink, curPos, "unterminated %s literal", kind)
		}
	}
	flush()
	return toks
}
