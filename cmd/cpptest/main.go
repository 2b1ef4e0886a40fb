// cpptest compares gcpp output against a reference preprocessor (or against
// golden files recorded earlier) over a directory of .c inputs. Each input
// may carry a sidecar .flags file with extra arguments for both commands.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Golden is what a recorded reference run looks like on disk. SourceHash
// detects stale goldens after the input file changes.
type Golden struct {
	SourceHash string    `json:"source_hash"`
	Args       []string  `json:"args,omitempty"`
	Result     Execution `json:"result"`
}

type FileResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	refCmd     = flag.String("ref", "cpp", "Reference preprocessor command.")
	refArgs    = flag.String("ref-args", "-P", "Arguments for the reference command (space-separated).")
	targetCmd  = flag.String("target", "./gcpp", "Target preprocessor to test.")
	targetArgs = flag.String("target-args", "", "Arguments for the target command (space-separated).")
	testFiles  = flag.String("test-files", "tests/**/*.c", "Glob pattern(s) for input files (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	record     = flag.Bool("record", false, "Record reference output as golden files instead of testing.")
	useGolden  = flag.Bool("golden", false, "Compare against golden files, never invoking the reference.")
	goldenDir  = flag.String("dir", "", "Directory for golden JSON files (defaults to each input's directory).")
	outputJSON = flag.String("output", ".cpptest_results.json", "Output file for the JSON report.")
	timeout    = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	files, err := expandPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s bad test-files pattern: %v", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	if *record {
		recordGoldens(files)
		return
	}
	runSuite(files)
}

func goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if *goldenDir != "" {
		return filepath.Join(*goldenDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// extraArgs reads the sidecar <input>.flags file, one argument per field.
func extraArgs(sourceFile string) []string {
	data, err := os.ReadFile(strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ".flags")
	if err != nil {
		return nil
	}
	return strings.Fields(string(data))
}

func recordGoldens(files []string) {
	for _, file := range files {
		hash, err := hashFile(file)
		if err != nil {
			log.Fatalf("%s[ERROR]%s cannot hash %s: %v", cRed, cNone, file, err)
		}
		res := runPreprocessor(*refCmd, strings.Fields(*refArgs), file)
		g := Golden{SourceHash: hash, Args: extraArgs(file), Result: res}
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			log.Fatalf("%s[ERROR]%s marshal failed: %v", cRed, cNone, err)
		}
		path := goldenPath(file)
		if *goldenDir != "" {
			if err := os.MkdirAll(*goldenDir, 0o755); err != nil {
				log.Fatalf("%s[ERROR]%s cannot create %s: %v", cRed, cNone, *goldenDir, err)
			}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("%s[ERROR]%s cannot write %s: %v", cRed, cNone, path, err)
		}
		log.Printf("%s[RECORDED]%s %s -> %s", cGreen, cNone, file, path)
	}
}

func runSuite(files []string) {
	refFound := true
	if !*useGolden {
		if _, err := exec.LookPath(*refCmd); err != nil {
			refFound = false
			log.Printf("%s[WARN]%s reference %q not found, falling back to golden files.", cYellow, cNone, *refCmd)
		}
	}

	skip := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skip[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(file, refFound)
			}
		}()
	}
	for _, file := range files {
		if skip[file] {
			resultsChan <- &FileResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	var results []*FileResult
	for r := range resultsChan {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	printSummary(results)
	writeReport(results)
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			os.Exit(1)
		}
	}
}

func testFile(file string, refFound bool) *FileResult {
	var ref Execution
	switch {
	case !*useGolden && refFound:
		ref = runPreprocessor(*refCmd, strings.Fields(*refArgs), file)
	default:
		g, err := loadGolden(file)
		if err != nil {
			return &FileResult{File: file, Status: "SKIP", Message: err.Error()}
		}
		ref = g.Result
	}

	target := runPreprocessor(*targetCmd, strings.Fields(*targetArgs), file)

	if ref.TimedOut || target.TimedOut {
		return &FileResult{File: file, Status: "ERROR", Message: "command timed out"}
	}
	refFailed := ref.ExitCode != 0
	targetFailed := target.ExitCode != 0
	switch {
	case refFailed && targetFailed:
		return &FileResult{File: file, Status: "PASS", Message: "Both preprocessors rejected the input"}
	case refFailed != targetFailed:
		return &FileResult{
			File:    file,
			Status:  "FAIL",
			Message: fmt.Sprintf("exit code mismatch: ref %d, target %d", ref.ExitCode, target.ExitCode),
			Diff:    "Target STDERR:\n" + target.Stderr + "\nReference STDERR:\n" + ref.Stderr,
		}
	}

	if d := cmp.Diff(canonical(ref.Stdout), canonical(target.Stdout)); d != "" {
		return &FileResult{File: file, Status: "FAIL", Message: "output mismatch", Diff: d}
	}
	return &FileResult{File: file, Status: "PASS", Message: "Output matches"}
}

func loadGolden(file string) (*Golden, error) {
	data, err := os.ReadFile(goldenPath(file))
	if err != nil {
		return nil, fmt.Errorf("no golden file for %s", file)
	}
	var g Golden
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unreadable golden file for %s: %v", file, err)
	}
	hash, err := hashFile(file)
	if err != nil {
		return nil, err
	}
	if g.SourceHash != hash {
		return nil, fmt.Errorf("golden file for %s is stale, re-run with -record", file)
	}
	return &g, nil
}

func runPreprocessor(command string, baseArgs []string, sourceFile string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := append(append([]string{}, baseArgs...), extraArgs(sourceFile)...)
	args = append(args, sourceFile)

	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	res := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
	case err != nil:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -2
			res.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return res
}

// canonical reduces preprocessor output to its token spelling: runs of
// blanks collapse, blank lines disappear, trailing space goes. Reference
// implementations differ in exactly this kind of whitespace.
func canonical(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func printSummary(results []*FileResult) {
	var passed, failed, skipped, errored int
	for _, r := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, r.File, cNone)
		switch r.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, r.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, r.Message)
			fmt.Println(formatDiff(r.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, r.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, r.Message)
		}
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			sb.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			sb.WriteString(cGreen)
		}
		sb.WriteString("    " + line + cNone + "\n")
	}
	return sb.String()
}

func writeReport(results []*FileResult) {
	m := make(map[string]*FileResult, len(results))
	for _, r := range results {
		m[r.File] = r
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s marshal failed: %v", cRed, cNone, err)
		return
	}
	if err := os.WriteFile(*outputJSON, data, 0o644); err != nil {
		log.Printf("%s[ERROR]%s cannot write %s: %v", cRed, cNone, *outputJSON, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", *outputJSON)
}

func expandPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
				files = append(files, m)
				seen[m] = true
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
