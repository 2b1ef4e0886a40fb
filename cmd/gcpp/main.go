package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xplshn/gcpp/pkg/cli"
	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/preproc"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

func main() {
	app := cli.NewApp("gcpp")
	app.Synopsis = "[options] <input.c>"
	app.Description = "A standalone C preprocessor: translation phases 1 through 4, from raw bytes to a macro-expanded token stream."
	app.Repository = "<https://github.com/xplshn/gcpp>"

	var (
		outFile      string
		includePaths []string
		defines      []string
		undefs       []string
		warnFlags    []string
		trigraphs    bool
		noIncludes   bool
		dumpTokens   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> instead of stdout.", "file")
	fs.List(&includePaths, "include", "I", "Add a directory (glob patterns allowed) to the include search path.", "path")
	fs.Bool(&trigraphs, "trigraphs", "", false, "Enable trigraph expansion.")
	fs.Bool(&noIncludes, "no-includes", "", false, "Validate #include directives without processing their targets.")
	fs.Bool(&dumpTokens, "tokens", "", false, "Print one token per line instead of reassembled source text.")
	fs.Prefix(&defines, "D", "Define <macro>, optionally as <macro>=<value> (default value 1).", "macro[=value]")
	fs.Prefix(&undefs, "U", "Undefine <macro> after all -D options are applied.", "macro")
	fs.Prefix(&warnFlags, "W", "Enable warning <name>, or disable it as no-<name>. 'all' fans out.", "name")

	cfg := config.NewConfig()
	app.Sections = append(app.Sections, warningSection(cfg))

	app.Action = func(inputs []string) error {
		if len(inputs) == 0 {
			util.Fatal("no input file specified")
		}
		if len(inputs) > 1 {
			util.Fatal("expected a single input file, got %d", len(inputs))
		}
		input := inputs[0]

		cfg.Trigraphs = trigraphs
		cfg.FollowIncludes = !noIncludes
		cfg.SearchPaths = includePaths
		for _, name := range warnFlags {
			cfg.ApplyWarningFlag(name)
		}

		diags := &util.Collector{}
		table := preproc.SeedTable(defines, undefs, cfg, diags)
		out, err := preproc.PreprocessFile(input, table, cfg, diags)
		if err != nil {
			util.Fatal("%v", err)
		}

		util.NewReporter(input, out.Source).PrintAll(diags)

		if errs := diags.ErrorCount(); errs > 0 {
			fmt.Fprintf(os.Stderr, "%d error(s) generated\n", errs)
			return fmt.Errorf("preprocessing failed")
		}
		return emit(outFile, out, dumpTokens)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func emit(outFile string, out *preproc.Output, dumpTokens bool) error {
	var sb strings.Builder
	if dumpTokens {
		for _, t := range out.Tokens {
			kind := "punct"
			switch {
			case t.IsIdent:
				kind = "ident"
			case t.IsSpace():
				kind = "space"
			case t.IsNewline():
				kind = "newline"
			}
			fmt.Fprintf(&sb, "%d:%d\t%s\t%q\n", t.Pos.Line, t.Pos.Column, kind, t.Text)
		}
	} else {
		sb.WriteString(token.Text(out.Tokens))
	}

	if outFile == "" {
		fmt.Print(sb.String())
		return nil
	}
	if err := os.WriteFile(outFile, []byte(sb.String()), 0o644); err != nil {
		util.Fatal("cannot write %s: %v", outFile, err)
	}
	return nil
}

func warningSection(cfg *config.Config) cli.Section {
	sec := cli.Section{Title: "Warnings (-W<name>, -Wno-<name>)"}
	for _, info := range cfg.Warnings {
		state := "off"
		if info.Enabled {
			state = "on"
		}
		sec.Entries = append(sec.Entries, [2]string{info.Name, fmt.Sprintf("%s (default %s)", info.Description, state)})
	}
	sort.Slice(sec.Entries, func(i, j int) bool { return sec.Entries[i][0] < sec.Entries[j][0] })
	return sec
}
