package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// GrepArgs is the jsonschema-tagged argument shape for grep.
type GrepArgs struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Regular expression to search for"`
	Path    string `json:"path,omitempty" jsonschema:"description=File or directory to search, relative to the working directory"`
	MaxResults int `json:"max_results,omitempty" jsonschema:"description=Maximum number of matching lines to return, default 200"`
}

// GrepTool recursively searches text files for a regular expression.
// Registered under both "grep" and the "grep_search" alias.
type GrepTool struct{}

func NewGrepTool() *GrepTool { return &GrepTool{} }

func (t *GrepTool) Name() string        { return "grep" }
func (t *GrepTool) Description() string { return "Searches files for lines matching a regular expression." }
func (t *GrepTool) Schema() map[string]any { return schemaFor(GrepArgs{}) }

func (t *GrepTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args GrepArgs
	if err := unmarshalArgs(arguments, &args); err != nil {
		return Result{}, err
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return Result{Output: fmt.Sprintf("invalid pattern: %v", err), IsError: true}, nil
	}

	root := args.Path
	if root == "" {
		root = "."
	}
	resolved, err := ResolvePath(tc.WorkingDirectory, root)
	if err != nil {
		return Result{}, err
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 200
	}

	var b strings.Builder
	count := 0
	walkErr := filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil || count >= maxResults {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		grepFile(path, re, &count, maxResults, &b)
		return nil
	})
	if walkErr != nil && walkErr != ctx.Err() {
		return Result{Output: fmt.Sprintf("walking %s: %v", root, walkErr), IsError: true}, nil
	}

	return Result{Output: b.String(), Metadata: map[string]any{"match_count": count}}, nil
}

func grepFile(path string, re *regexp.Regexp, count *int, maxResults int, b *strings.Builder) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if *count >= maxResults {
			return
		}
		line := scanner.Text()
		if re.MatchString(line) {
			fmt.Fprintf(b, "%s:%d:%s\n", path, lineNum, line)
			*count++
		}
	}
}
