// Package token defines the preprocessing token produced by translation
// phase 3 and consumed by the directive engine in phase 4.
package token

// Pos is a source position. Lines start at 1; a column resets to 1 on the
// character following a newline.
type Pos struct {
	Line   int
	Column int
}

// CommandLine is the sentinel position carried by macros seeded from -D
// definitions, distinguishable from any in-file position.
var CommandLine = Pos{Line: -1, Column: -1}

// IsCommandLine reports whether p is the -D seeding sentinel.
func (p Pos) IsCommandLine() bool { return p.Line < 0 }

// Token is a single preprocessing token: an identifier/number-like run, a
// one-character punctuator, a quoted string/char literal, a single space, or
// a newline marker. Tokens compare by text only; the engine never edits Text
// in place, it only removes or replaces tokens wholesale.
type Token struct {
	Text    string
	Pos     Pos
	IsIdent bool
}

// New builds a token at pos, classifying identifier compatibility from the
// full text.
func New(text string, pos Pos) Token {
	return Token{Text: text, Pos: pos, IsIdent: IsIdentText(text)}
}

// Is reports whether the token's text equals s. Single-character tokens are
// routinely compared against literal characters this way ("#", ",", "\n").
func (t Token) Is(s string) bool { return t.Text == s }

// IsSpace reports whether the token is a collapsed whitespace marker.
func (t Token) IsSpace() bool { return t.Text == " " }

// IsNewline reports whether the token delimits a logical line.
func (t Token) IsNewline() bool { return t.Text == "\n" }

// IsIdentText reports whether text matches [A-Za-z_][A-Za-z0-9_]*.
func IsIdentText(text string) bool {
	if len(text) == 0 {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Text reassembles the flat source text of a token sequence.
func Text(toks []Token) string {
	n := 0
	for _, t := range toks {
		n += len(t.Text)
	}
	buf := make([]byte, 0, n)
	for _, t := range toks {
		buf = append(buf, t.Text...)
	}
	return string(buf)
}
