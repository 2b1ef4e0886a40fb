package preproc

import (
	"github.com/cespare/xxhash/v2"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/lexer"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// VariadicParam is the identifier the trailing arguments of a variadic macro
// expand under.
const VariadicParam = "__VA_ARGS__"

// Macro is one #define entry. Params is nil for object-like macros; a
// function-like macro with no parameters has a non-nil empty slice.
type Macro struct {
	Name     string
	Params   []string
	Body     []token.Token
	Pos      token.Pos // of the defining directive; CommandLine for -D
	FuncLike bool
	Variadic bool
}

// Fingerprint hashes the macro's shape and replacement list. Two definitions
// with the same fingerprint are interchangeable, so redefining one with the
// other is not worth a diagnostic.
func (m *Macro) Fingerprint() uint64 {
	h := xxhash.New()
	h.WriteString(m.Name)
	if m.FuncLike {
		h.Write([]byte{'('})
		for _, p := range m.Params {
			h.WriteString(p)
			h.Write([]byte{','})
		}
		if m.Variadic {
			h.WriteString("...")
		}
		h.Write([]byte{')'})
	}
	for _, t := range m.Body {
		h.Write([]byte{0})
		h.WriteString(t.Text)
	}
	return h.Sum64()
}

// Table maps macro names to their current definitions. #undef removes the
// entry outright, so Lookup after #undef behaves as if the name was never
// defined.
type Table struct {
	macros map[string]*Macro
}

func NewTable() *Table {
	return &Table{macros: make(map[string]*Macro)}
}

func (t *Table) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

// Define installs m, returning the previous definition when m replaces one
// that is not identical to it.
func (t *Table) Define(m *Macro) (prev *Macro, redefined bool) {
	if old, ok := t.macros[m.Name]; ok && old.Fingerprint() != m.Fingerprint() {
		prev, redefined = old, true
	}
	t.macros[m.Name] = m
	return prev, redefined
}

// Undef removes name, reporting whether it was defined.
func (t *Table) Undef(name string) bool {
	_, ok := t.macros[name]
	delete(t.macros, name)
	return ok
}

func (t *Table) Len() int { return len(t.macros) }

// SeedTable builds a table from command-line definitions. Each entry of
// defines is NAME or NAME=VALUE; NAME alone defines to 1 the way cc -D does.
// undefs are applied after all defines. The definitions run through the
// regular phase 1-3 pipeline so VALUE may be any token sequence.
func SeedTable(defines, undefs []string, cfg *config.Config, sink util.Sink) *Table {
	table := NewTable()
	for _, def := range defines {
		name, value := def, "1"
		for i, r := range def {
			if r == '=' {
				name, value = def[:i], def[i+1:]
				break
			}
		}
		if !token.IsIdentText(name) {
			util.Errorf(sink, token.CommandLine, "invalid macro name %q in -D%s", name, def)
			continue
		}
		res := lexer.ScanString(name+" "+value, "<command-line>", cfg, sink)
		p := &Processor{cfg: cfg, sink: sink, table: table, file: "<command-line>"}
		p.handleDefine(trimEnds(res.Tokens), token.CommandLine)
	}
	for _, name := range undefs {
		table.Undef(name)
	}
	return table
}
