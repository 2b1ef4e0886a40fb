package lexer

import (
	"unicode/utf8"
)

// Char is one decoded source character tagged with the position it occupied
// in the physical source. Produced once per input character and consumed by
// exactly the next pipeline stage.
type Char struct {
	R    rune
	Line int
	Col  int
}

// decode maps the raw input to the source character set: \r and \f become
// \n, bytes that do not form valid UTF-8 are dropped and counted. Positions
// advance over dropped bytes too, so surviving characters keep truthful
// columns. The line number increments after the \n is consumed, i.e. the \n
// itself is reported at the line it terminates.
func decode(src string, out chan<- Char, drops *int) {
	defer close(out)
	line, col := 1, 1
	prevCR := false
	for i, w := 0, 0; i < len(src); i += w {
		var r rune
		r, w = utf8.DecodeRuneInString(src[i:])
		if r == utf8.RuneError && w <= 1 {
			*drops++
			col++
			prevCR = false
			continue
		}
		if r == '\n' && prevCR {
			// \r\n is one line break; the \r already produced it
			prevCR = false
			continue
		}
		prevCR = r == '\r'
		if r == '\r' || r == '\f' {
			r = '\n'
		}
		out <- Char{R: r, Line: line, Col: col}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
}
