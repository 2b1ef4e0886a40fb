// Package preproc implements translation phase 4: directive execution,
// conditional inclusion and macro expansion over the token stream the lexer
// produces. It consumes lexer results and a macro Table, which may be
// pre-seeded from the command line, and yields the token stream a compiler
// front end would parse.
package preproc

import (
	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/lexer"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// Output is the result of a full phase 1-4 run over one translation unit.
type Output struct {
	Tokens []token.Token
	Source []rune // decoded main input, kept for caret diagnostics
}

// Text renders the output tokens back into source text.
func (o *Output) Text() string { return token.Text(o.Tokens) }

// PreprocessFile runs the whole pipeline over the file at path. The returned
// error covers only unreadable input; everything recoverable lands in sink.
func PreprocessFile(path string, table *Table, cfg *config.Config, sink util.Sink) (*Output, error) {
	res, err := lexer.ScanFile(path, cfg, sink)
	if err != nil {
		return nil, err
	}
	p := NewProcessor(path, table, cfg, sink)
	return &Output{Tokens: p.Run(res.Tokens), Source: res.Source}, nil
}

// PreprocessString runs the whole pipeline over an in-memory source. name
// labels diagnostics and anchors quoted includes.
func PreprocessString(src, name string, table *Table, cfg *config.Config, sink util.Sink) *Output {
	res := lexer.ScanString(src, name, cfg, sink)
	p := NewProcessor(name, table, cfg, sink)
	return &Output{Tokens: p.Run(res.Tokens), Source: res.Source}
}
