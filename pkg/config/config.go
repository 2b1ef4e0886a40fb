// Package config holds the per-run settings of the preprocessor: pipeline
// options, include search paths and warning toggles.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type Warning int

const (
	WarnTrigraphs Warning = iota
	WarnRedefinition
	WarnUndefUndefined
	WarnUnknownDirective
	WarnUnterminated
	WarnDecode
	WarnDirective
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning

	// Pipeline options.
	Trigraphs       bool     // expand ??x trigraph sequences (phase 1)
	FollowIncludes  bool     // recursively process #include targets
	SearchPaths     []string // -I paths, may contain glob patterns
	MaxIncludeDepth int
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:        make(map[Warning]Info),
		WarningMap:      make(map[string]Warning),
		MaxIncludeDepth: 200,
	}

	warnings := map[Warning]Info{
		WarnTrigraphs:        {"trigraphs", true, "Warn when a trigraph sequence is expanded."},
		WarnRedefinition:     {"redefinition", true, "Warn when a macro is redefined with a different body."},
		WarnUndefUndefined:   {"undef-undefined", false, "Warn when #undef names a macro that is not defined."},
		WarnUnknownDirective: {"unknown-directive", true, "Warn on directives the preprocessor does not recognize."},
		WarnUnterminated:     {"unterminated", true, "Warn on unterminated literals or block comments at end of input."},
		WarnDecode:           {"decode", true, "Warn when input bytes could not be decoded and were dropped."},
		WarnDirective:        {"directive", true, "Warn on malformed but recoverable directive syntax."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyWarningFlag interprets a -W<name> / -Wno-<name> toggle. "all" fans out
// to every known warning. Unknown names are ignored, matching cc behavior.
func (c *Config) ApplyWarningFlag(name string) {
	enable := true
	if strings.HasPrefix(name, "no-") {
		enable = false
		name = strings.TrimPrefix(name, "no-")
	}
	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return
	}
	if w, ok := c.WarningMap[name]; ok {
		c.SetWarning(w, enable)
	}
}

// ResolveSearchPaths expands glob patterns in the configured -I paths into
// concrete existing directories, preserving order and dropping duplicates.
func (c *Config) ResolveSearchPaths() []string {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if dir == "" || seen[dir] {
			return
		}
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, p := range c.SearchPaths {
		base, pattern := doublestar.SplitPattern(filepath.ToSlash(p))
		if pattern == "" || !strings.ContainsAny(pattern, "*?[{") {
			add(filepath.FromSlash(p))
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(base), pattern)
		if err != nil {
			add(filepath.FromSlash(p))
			continue
		}
		for _, m := range matches {
			add(filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)))
		}
	}
	return dirs
}
