// Package lexer implements translation phases 1 through 3 as a pipeline of
// character-stream stages connected by bounded channels: decoding, trigraph
// and whitespace normalization, line splicing, comment stripping and
// tokenization. Each channel has exactly one producer and one consumer; a
// closed channel is the end-of-stream signal, so every stage terminates
// after its predecessor does and ordering is preserved end to end.
package lexer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/xplshn/gcpp/pkg/config"
	"github.com/xplshn/gcpp/pkg/token"
	"github.com/xplshn/gcpp/pkg/util"
)

var (
	// ErrNotFound marks a source path that does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrIO marks any other file-system failure while reading a source.
	ErrIO = errors.New("read error")
)

// queueCap bounds every inter-stage channel; a full queue suspends the
// producer, an empty one suspends the consumer.
const queueCap = 5

// Result is the output of phases 1-3 for one source.
type Result struct {
	Tokens     []token.Token
	Source     []rune // decoded content, kept for caret diagnostics
	DecodeErrs int    // characters dropped as undecodable
}

// ScanFile reads path and runs it through phases 1-3.
func ScanFile(path string, cfg *config.Config, sink util.Sink) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrIO, path, err)
	}
	return scan(string(data), path, cfg, sink), nil
}

// ScanString runs an in-memory source through phases 1-3. String input
// cannot fail; undecodable characters are dropped and counted. name labels
// diagnostics ("<command-line>" for -D definitions).
func ScanString(src, name string, cfg *config.Config, sink util.Sink) *Result {
	return scan(src, name, cfg, sink)
}

func scan(src, name string, cfg *config.Config, sink util.Sink) *Result {
	fsink := &util.FileSink{Inner: sink, File: name}

	decoded := make(chan Char, queueCap)
	normalized := make(chan Char, queueCap)
	spliced := make(chan Char, queueCap)
	clean := make(chan Char, queueCap)

	res := &Result{Source: []rune(src)}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); decode(src, decoded, &res.DecodeErrs) }()
	go func() { defer wg.Done(); normalize(decoded, normalized, cfg, fsink) }()
	go func() { defer wg.Done(); splice(normalized, spliced) }()
	go func() { defer wg.Done(); stripComments(spliced, clean, cfg, fsink) }()

	res.Tokens = tokenize(clean, cfg, fsink)
	wg.Wait()

	if res.DecodeErrs > 0 && cfg.IsWarningEnabled(config.WarnDecode) {
		util.Warnf(fsink, token.Pos{Line: 1, Column: 1},
			"%d undecodable character(s) dropped from input", res.DecodeErrs)
	}
	return res
}
