package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileArgs is the jsonschema-tagged argument shape for read_file.
type ReadFileArgs struct {
	Path      string `json:"path" jsonschema:"required,description=Path to the file, relative to the working directory"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-indexed first line to include"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=1-indexed last line to include"`
}

type ReadFileTool struct{}

func NewReadFileTool() *ReadFileTool { return &ReadFileTool{} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Reads a file, optionally a line range, inside the enforced working directory." }
func (t *ReadFileTool) Schema() map[string]any { return schemaFor(ReadFileArgs{}) }

func (t *ReadFileTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args ReadFileArgs
	if err := unmarshalArgs(arguments, &args); err != nil {
		return Result{}, err
	}
	resolved, err := ResolvePath(tc.WorkingDirectory, args.Path)
	if err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Result{Output: fmt.Sprintf("reading %s: %v", args.Path, err), IsError: true}, nil
	}

	lines := strings.Split(string(data), "\n")
	start, end := 1, len(lines)
	if args.StartLine > 0 {
		start = args.StartLine
	}
	if args.EndLine > 0 {
		end = args.EndLine
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return Result{Output: "", Metadata: map[string]any{"total_lines": len(lines)}}, nil
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	return Result{
		Output:   b.String(),
		Metadata: map[string]any{"total_lines": len(lines), "start_line": start, "end_line": end},
	}, nil
}

// ListFilesArgs is the jsonschema-tagged argument shape for list_files.
type ListFilesArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list, relative to the working directory; default is the root"`
}

type ListFilesTool struct{}

func NewListFilesTool() *ListFilesTool { return &ListFilesTool{} }

func (t *ListFilesTool) Name() string        { return "list_files" }
func (t *ListFilesTool) Description() string { return "Lists files and directories inside the enforced working directory." }
func (t *ListFilesTool) Schema() map[string]any { return schemaFor(ListFilesArgs{}) }

func (t *ListFilesTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args ListFilesArgs
	if err := unmarshalArgs(arguments, &args); err != nil {
		return Result{}, err
	}
	dir := args.Path
	if dir == "" {
		dir = "."
	}
	resolved, err := ResolvePath(tc.WorkingDirectory, dir)
	if err != nil {
		return Result{}, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return Result{Output: fmt.Sprintf("listing %s: %v", dir, err), IsError: true}, nil
	}

	var b strings.Builder
	for _, e := range entries {
		suffix := ""
		if e.IsDir() {
			suffix = string(filepath.Separator)
		}
		fmt.Fprintf(&b, "%s%s\n", e.Name(), suffix)
	}
	return Result{Output: b.String(), Metadata: map[string]any{"count": len(entries)}}, nil
}
