package preproc

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/xplshn/gcpp/pkg/lexer"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

// handleInclude resolves and, when include following is enabled, processes
// one #include. The included file runs through the full phase 1-4 pipeline
// with a child processor sharing the macro table, and its surviving tokens
// replace the directive line. With include following disabled the directive
// is validated and dropped.
func (p *Processor) handleInclude(args []token.Token, pos token.Pos) {
	target, quoted, ok := p.parseIncludeTarget(args, pos)
	if !ok {
		return
	}
	if !p.cfg.FollowIncludes {
		return
	}
	if p.depth >= p.cfg.MaxIncludeDepth {
		util.Errorf(p.sink, pos, "#include nested too deeply (limit %d)", p.cfg.MaxIncludeDepth)
		return
	}

	path, found := p.resolveInclude(target, quoted)
	if !found {
		util.Errorf(p.sink, pos, "%s: file not found", target)
		return
	}
	if p.once[path] {
		return
	}

	res, err := lexer.ScanFile(path, p.cfg, p.base)
	if err != nil {
		if errors.Is(err, lexer.ErrNotFound) {
			util.Errorf(p.sink, pos, "%s: file not found", target)
		} else {
			util.Errorf(p.sink, pos, "%s: %v", target, err)
		}
		return
	}
	p.included = append(p.included, p.child(path).Run(res.Tokens)...)
}

// parseIncludeTarget extracts the path from "name" or <name> forms. The
// angle form arrives from the tokenizer as '<', arbitrary tokens, '>'.
func (p *Processor) parseIncludeTarget(args []token.Token, pos token.Pos) (target string, quoted, ok bool) {
	if len(args) == 1 && len(args[0].Text) >= 2 && args[0].Text[0] == '"' {
		text := args[0].Text
		if text[len(text)-1] != '"' {
			util.Errorf(p.sink, pos, "malformed #include target")
			return "", false, false
		}
		return text[1 : len(text)-1], true, true
	}
	if len(args) >= 2 && args[0].Is("<") && args[len(args)-1].Is(">") {
		return token.Text(args[1 : len(args)-1]), false, true
	}
	util.Errorf(p.sink, pos, `expected "name" or <name> after #include`)
	return "", false, false
}

// resolveInclude maps an include target to a readable path: quoted includes
// try the including file's directory first, then both forms walk the -I
// search paths in order.
func (p *Processor) resolveInclude(target string, quoted bool) (string, bool) {
	try := func(dir string) (string, bool) {
		path := filepath.Join(dir, filepath.FromSlash(target))
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return path, true
		}
		return "", false
	}
	if quoted {
		if path, ok := try(filepath.Dir(p.file)); ok {
			return path, ok
		}
	}
	for _, dir := range p.cfg.ResolveSearchPaths() {
		if path, ok := try(dir); ok {
			return path, ok
		}
	}
	return "", false
}
