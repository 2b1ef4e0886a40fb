package preproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/util"
)

func run(t *testing.T, src string, cfg *config.Config) (string, *util.Collector) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	diags := &util.Collector{}
	out := PreprocessString(src, "test.c", NewTable(), cfg, diags)
	return out.Text(), diags
}

func TestObjectMacro(t *testing.T) {
	got, diags := run(t, "#define X 42\nX+X\n", nil)
	assert.Equal(t, "42+42\n", got)
	assert.Zero(t, diags.ErrorCount())
}

func TestDirectiveLinesLeaveNoTrace(t *testing.T) {
	got, _ := run(t, "#define X 1\n", nil)
	assert.Equal(t, "", got)

	got, _ = run(t, "  #define X 1\nX\n", nil)
	assert.Equal(t, "1\n", got, "indented directives are still directives")
}

func TestNullDirective(t *testing.T) {
	got, diags := run(t, "#\na\n", nil)
	assert.Equal(t, "a\n", got)
	assert.Zero(t, diags.ErrorCount())
}

func TestHashMidLineIsOrdinary(t *testing.T) {
	got, diags := run(t, "a # define X\n", nil)
	assert.Equal(t, "a # define X\n", got)
	assert.Zero(t, diags.ErrorCount())
}

func TestFunctionMacro(t *testing.T) {
	got, diags := run(t, "#define MAX(a,b) ((a)>(b)?(a):(b))\nMAX(1, 2)\n", nil)
	assert.Equal(t, "((1)>(2)?(1):(2))\n", got)
	assert.Zero(t, diags.ErrorCount())
}

func TestFunctionMacroNestedParens(t *testing.T) {
	got, _ := run(t, "#define ID(x) x\nID(f(a,b))\n", nil)
	assert.Equal(t, "f(a,b)\n", got)
}

func TestFunctionMacroWithoutParens(t *testing.T) {
	got, diags := run(t, "#define F(a) a\nF\n", nil)
	assert.Equal(t, "F\n", got)
	assert.Zero(t, diags.ErrorCount())
}

func TestFunctionMacroArityMismatch(t *testing.T) {
	got, diags := run(t, "#define F(a,b) a\nF(1)\n", nil)
	assert.Equal(t, "F(1)\n", got, "mismatched invocation stays unexpanded")
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestSelfReferenceStops(t *testing.T) {
	got, diags := run(t, "#define X X\nX\n", nil)
	assert.Equal(t, "X\n", got)
	assert.Zero(t, diags.ErrorCount())

	got, _ = run(t, "#define A B\n#define B A\nA B\n", nil)
	assert.Equal(t, "A B\n", got, "mutual recursion paints both names")
}

func TestNestedExpansion(t *testing.T) {
	got, _ := run(t, "#define ONE 1\n#define TWO (ONE+ONE)\nTWO\n", nil)
	assert.Equal(t, "(1+1)\n", got)
}

func TestVariadicMacro(t *testing.T) {
	got, diags := run(t, "#define V(fmt,...) f(fmt, __VA_ARGS__)\nV(a, b, c)\n", nil)
	assert.Equal(t, "f(a, b,c)\n", got)
	assert.Zero(t, diags.ErrorCount())

	_, diags = run(t, "#define V(fmt,...) f(fmt)\nV()\n", nil)
	assert.Zero(t, diags.ErrorCount(), "zero variadic arguments are allowed")
}

func TestUndef(t *testing.T) {
	got, _ := run(t, "#define X 1\n#undef X\nX\n", nil)
	assert.Equal(t, "X\n", got)
}

func TestUndefUndefinedWarns(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUndefUndefined, true)
	_, diags := run(t, "#undef NEVER\n", cfg)
	assert.Equal(t, 1, diags.WarningCount())
}

func TestRedefinition(t *testing.T) {
	_, diags := run(t, "#define X 1\n#define X 2\n", nil)
	assert.Equal(t, 1, diags.WarningCount())

	_, diags = run(t, "#define X 1\n#define X 1\n", nil)
	assert.Zero(t, diags.WarningCount(), "identical redefinition is benign")
}

func TestDefineMissingSpaceWarns(t *testing.T) {
	got, diags := run(t, "#define X+1\nX\n", nil)
	assert.Equal(t, "+1\n", got, "the definition is still installed")
	assert.Equal(t, 1, diags.WarningCount())

	got, diags = run(t, "#define F(a)a\nF(2)\n", nil)
	assert.Equal(t, "2\n", got)
	assert.Equal(t, 1, diags.WarningCount())

	_, diags = run(t, "#define X +1\n#define F(a) a\n", nil)
	assert.Zero(t, diags.WarningCount())
}

func TestConditionals(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"ifdef taken", "#define FOO\n#ifdef FOO\nyes\n#endif\n", "yes\n"},
		{"ifdef skipped", "#ifdef NOPE\nhidden\n#endif\n", ""},
		{"ifndef", "#ifndef NOPE\nyes\n#endif\n", "yes\n"},
		{"if else", "#if 0\na\n#else\nb\n#endif\n", "b\n"},
		{"elif chain", "#if 0\na\n#elif 1\nb\n#else\nc\n#endif\n", "b\n"},
		{"elif after taken", "#if 1\na\n#elif 1\nb\n#endif\n", "a\n"},
		{"nested in dead region", "#if 0\n#if 1\nx\n#endif\ny\n#endif\n", ""},
		{"else of nested dead", "#if 0\n#if 0\nx\n#else\ny\n#endif\n#endif\n", ""},
		{"macro condition", "#define N 5\n#if N > 3\nok\n#endif\n", "ok\n"},
		{"defined operator", "#define X\n#if defined(X) && !defined(Y)\nok\n#endif\n", "ok\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := run(t, tt.src, nil)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, diags.ErrorCount())
		})
	}
}

// A space-separated "< =" is not the <= operator and must be diagnosed,
// not quietly fused.
func TestConditionalSplitOperator(t *testing.T) {
	got, diags := run(t, "#if 1 < = 2\nx\n#endif\n", nil)
	assert.Equal(t, "", got, "a malformed condition takes neither branch")
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestDirectivesInDeadRegionIgnored(t *testing.T) {
	got, diags := run(t, "#if 0\n#define X 1\n#bogus\n#error nope\n#endif\nX\n", nil)
	assert.Equal(t, "X\n", got)
	assert.Zero(t, diags.ErrorCount())
	assert.Zero(t, diags.WarningCount())
}

func TestBareEndif(t *testing.T) {
	got, diags := run(t, "#endif\na\n", nil)
	assert.Equal(t, "a\n", got)
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestUnterminatedConditional(t *testing.T) {
	got, diags := run(t, "#if 1\nx\n", nil)
	assert.Equal(t, "x\n", got)
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestElifAfterElse(t *testing.T) {
	_, diags := run(t, "#if 0\n#else\n#elif 1\n#endif\n", nil)
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestErrorAndWarningDirectives(t *testing.T) {
	_, diags := run(t, "#error bad news\n", nil)
	require.Equal(t, 1, diags.ErrorCount())
	assert.Equal(t, "#error bad news", diags.Diags()[0].Msg)

	_, diags = run(t, "#warning heads up\n", nil)
	assert.Equal(t, 1, diags.WarningCount())
}

func TestUnknownDirective(t *testing.T) {
	got, diags := run(t, "#bogus thing\na\n", nil)
	assert.Equal(t, "#bogus thing\na\n", got, "unknown directive lines pass through")
	assert.Equal(t, 1, diags.WarningCount())
}

func TestSeedTable(t *testing.T) {
	cfg := config.NewConfig()
	diags := &util.Collector{}
	table := SeedTable([]string{"FOO=2", "BAR", "GONE=1"}, []string{"GONE"}, cfg, diags)

	m, ok := table.Lookup("FOO")
	require.True(t, ok)
	assert.Equal(t, "2", m.Body[0].Text)
	assert.True(t, m.Pos.IsCommandLine())

	m, ok = table.Lookup("BAR")
	require.True(t, ok)
	assert.Equal(t, "1", m.Body[0].Text, "-DNAME defaults to 1")

	_, ok = table.Lookup("GONE")
	assert.False(t, ok)

	out := PreprocessString("FOO BAR\n", "test.c", table, cfg, diags)
	assert.Equal(t, "2 1\n", out.Text())
	assert.Zero(t, diags.ErrorCount())
}

func TestSeedTableBadName(t *testing.T) {
	diags := &util.Collector{}
	SeedTable([]string{"1BAD=2"}, nil, config.NewConfig(), diags)
	assert.Equal(t, 1, diags.ErrorCount())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIncludeQuoted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "h.h", "#define FROM_H 1\nint x;\n")
	main := writeFile(t, dir, "main.c", "#include \"h.h\"\nFROM_H\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	diags := &util.Collector{}
	out, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.Equal(t, "int x;\n1\n", out.Text())
	assert.Zero(t, diags.ErrorCount())
}

func TestIncludeAngleUsesSearchPath(t *testing.T) {
	incDir := t.TempDir()
	writeFile(t, incDir, "sys.h", "#define SYS 7\n")
	srcDir := t.TempDir()
	main := writeFile(t, srcDir, "main.c", "#include <sys.h>\nSYS\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	cfg.SearchPaths = []string{incDir}
	diags := &util.Collector{}
	out, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out.Text())
	assert.Zero(t, diags.ErrorCount())
}

func TestIncludeNotFound(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.c", "#include \"nope.h\"\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	diags := &util.Collector{}
	_, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.Equal(t, 1, diags.ErrorCount())
}

func TestIncludeNotFollowed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "h.h", "#define FROM_H 1\n")
	main := writeFile(t, dir, "main.c", "#include \"h.h\"\nFROM_H\n")

	cfg := config.NewConfig() // FollowIncludes off
	diags := &util.Collector{}
	out, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.Equal(t, "FROM_H\n", out.Text())
	assert.Zero(t, diags.ErrorCount())
}

func TestPragmaOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "h.h", "#pragma once\nA\n")
	main := writeFile(t, dir, "main.c", "#include \"h.h\"\n#include \"h.h\"\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	diags := &util.Collector{}
	out, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.Equal(t, "A\n", out.Text())
}

func TestIncludeDepthLimit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "loop.h", "#include \"loop.h\"\n")
	main := writeFile(t, dir, "main.c", "#include \"loop.h\"\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	cfg.MaxIncludeDepth = 10
	diags := &util.Collector{}
	_, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	assert.NotZero(t, diags.ErrorCount())
}

func TestIncludeDiagnosticsCarryFile(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "h.h", "#error from header\n")
	main := writeFile(t, dir, "main.c", "#include \"h.h\"\n")

	cfg := config.NewConfig()
	cfg.FollowIncludes = true
	diags := &util.Collector{}
	_, err := PreprocessFile(main, NewTable(), cfg, diags)
	require.NoError(t, err)
	require.Equal(t, 1, diags.ErrorCount())
	assert.Equal(t, header, diags.Diags()[0].File)
}
