package lexer

// splice is translation phase 2: a backslash immediately followed by a
// newline is deleted, joining physical source lines into logical lines. A
// backslash followed by anything else passes through untouched, which keeps
// escape sequences and lone backslashes intact for the later stages.
func splice(in <-chan Char, out chan<- Char) {
	defer close(out)

	var held *Char
	for c := range in {
		if held != nil {
			h := *held
			held = nil
			if c.R == '\n' {
				continue // backslash-newline pair deleted
			}
			out <- h
		}
		if c.R == '\\' {
			cc := c
			held = &cc
			continue
		}
		out <- c
	}
	if held != nil {
		out <- *held
	}
}
