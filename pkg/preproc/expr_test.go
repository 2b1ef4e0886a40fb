package preproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/lexer"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

func evalWith(t *testing.T, defines []string, expr string) (bool, error) {
	t.Helper()
	cfg := config.NewConfig()
	diags := &util.Collector{}
	table := SeedTable(defines, nil, cfg, diags)
	p := NewProcessor("test.c", table, cfg, diags)
	res := lexer.ScanString(expr, "test.c", cfg, diags)
	return p.evalCond(res.Tokens, token.Pos{Line: 1, Column: 1})
}

func TestEvalCond(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"1", true},
		{"0", false},
		{"42", true},
		{"!0", true},
		{"!!1", true},
		{"1 && 1", true},
		{"2 && 0", false},
		{"0 || 0", false},
		{"0 || 3", true},
		{"(1 || 0) && 1", true},
		{"!(1 && 0)", true},
		{"5 > 3", true},
		{"1 == 2", false},
		{"3 >= 3", true},
		{"2 <= 1", false},
		{"1 != 2", true},
		{"0x10 == 16", true},
		{"010 == 8", true},
		{"1uL", true},
		{"'A' == 65", true},
		{"UNDEFINED", false},
		{"UNDEFINED || 1", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalWith(t, nil, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalCondDefined(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"defined(FOO)", true},
		{"defined FOO", true},
		{"defined(BAR)", false},
		{"!defined(BAR)", true},
		{"defined(FOO) && FOO == 3", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalWith(t, []string{"FOO=3"}, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The operand of defined is tested, not expanded, even when it is itself a
// macro name.
func TestDefinedOperandNotExpanded(t *testing.T) {
	got, err := evalWith(t, []string{"FOO=BAR"}, "defined(FOO)")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = evalWith(t, []string{"FOO=BAR"}, "FOO")
	require.NoError(t, err)
	assert.False(t, got, "FOO expands to the undefined BAR, which is 0")
}

func TestEvalCondMacroExpansion(t *testing.T) {
	got, err := evalWith(t, []string{"N=5"}, "N > 3")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalCondErrors(t *testing.T) {
	exprs := []string{
		"",
		"&&",
		"1 &&",
		"(1",
		"defined",
		"defined(1)",
		"defined(X",
		"1 2",
		"+",
		"1 < = 2",
		"1 = = 2",
		"1 & & 1",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := evalWith(t, nil, expr)
			assert.Error(t, err)
		})
	}
}

func TestMergeOps(t *testing.T) {
	toks := []token.Token{
		token.New("&", token.Pos{}),
		token.New("&", token.Pos{}),
		token.New("!", token.Pos{}),
		token.New("=", token.Pos{}),
		token.New("!", token.Pos{}),
		token.New("<", token.Pos{}),
	}
	var got []string
	for _, tok := range mergeOps(toks) {
		got = append(got, tok.Text)
	}
	assert.Equal(t, []string{"&&", "!=", "!", "<"}, got)
}

func TestParseIntLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"123", 123, true},
		{"0x1F", 31, true},
		{"010", 8, true},
		{"42u", 42, true},
		{"42UL", 42, true},
		{"7ll", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{"1.5", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseIntLiteral(tt.in)
		assert.Equal(t, tt.ok, ok, "parseIntLiteral(%q) ok", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "parseIntLiteral(%q)", tt.in)
		}
	}
}

func TestMacroFingerprint(t *testing.T) {
	a := &Macro{Name: "X", Body: []token.Token{token.New("1", token.Pos{})}}
	b := &Macro{Name: "X", Body: []token.Token{token.New("1", token.Pos{Line: 9, Column: 9})}}
	c := &Macro{Name: "X", Body: []token.Token{token.New("2", token.Pos{})}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "positions do not affect identity")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	obj := &Macro{Name: "F"}
	fn := &Macro{Name: "F", FuncLike: true, Params: []string{}}
	assert.NotEqual(t, obj.Fingerprint(), fn.Fingerprint(), "object-like and function-like differ")
}
