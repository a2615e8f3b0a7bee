package tools

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/worldcore/core"
)

// ShellArgs is the jsonschema-tagged argument shape for shell_cmd.
type ShellArgs struct {
	Command       string   `json:"command" jsonschema:"required,description=The executable to run (no shell metacharacters)"`
	Parameters    []string `json:"parameters,omitempty" jsonschema:"description=Arguments passed to the executable"`
	Directory     string   `json:"directory,omitempty" jsonschema:"description=Working directory override; must equal the enforced working directory when both are set"`
	OutputFormat  string   `json:"output_format,omitempty" jsonschema:"description=text or json, default text"`
	ArtifactPaths []string `json:"artifact_paths,omitempty" jsonschema:"description=Paths to hash and report after execution"`
	Timeout       int      `json:"timeout,omitempty" jsonschema:"description=Timeout in milliseconds, default 30000"`
}

type execRecord struct {
	Command    string
	Parameters []string
	ExitCode   *int
	StartedAt  time.Time
	Duration   time.Duration
	StdoutHead string
}

// shellHistoryLimit bounds the execution history ring to the last
// N=1024 invocations, most recent first.
const shellHistoryLimit = 1024

// stdoutHeadLimit bounds how much of stdout is retained per history
// entry so the ring can't grow unbounded in memory.
const stdoutHeadLimit = 200

// ShellTool executes a single program (argv-form, never through a
// shell) within the world's working directory, keeping a bounded
// ring buffer of recent invocations for observability.
type ShellTool struct {
	defaultTimeout time.Duration

	mu      sync.Mutex
	history []execRecord
	maxHist int
}

func NewShellTool() *ShellTool {
	return &ShellTool{defaultTimeout: 30 * time.Second, maxHist: shellHistoryLimit}
}

func (t *ShellTool) Name() string        { return "shell_cmd" }
func (t *ShellTool) Description() string { return "Runs a single command with arguments inside the enforced working directory." }

func (t *ShellTool) Schema() map[string]any {
	return schemaFor(ShellArgs{})
}

var shellWrapperNames = map[string]bool{"sh": true, "bash": true, "zsh": true, "dash": true, "ksh": true}

// isShellWrapperInvocation reports whether command/parameters attempt
// to smuggle an arbitrary script through a shell's -c flag, which
// would bypass argv-form execution entirely.
func isShellWrapperInvocation(command string, parameters []string) bool {
	if !shellWrapperNames[filepath.Base(command)] {
		return false
	}
	for _, p := range parameters {
		if p == "-c" {
			return true
		}
	}
	return false
}

// looksLikePath reports whether s resembles a filesystem path worth
// containment-checking, rather than a bare word argument like "hello".
func looksLikePath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") || strings.Contains(s, "/")
}

// pathCandidate extracts the path portion of a parameter, handling
// positional arguments as well as `--flag=/path` and `-I/path` forms.
func pathCandidate(arg string) (string, bool) {
	if strings.HasPrefix(arg, "--") {
		if idx := strings.IndexByte(arg, '='); idx >= 0 {
			val := arg[idx+1:]
			if looksLikePath(val) {
				return val, true
			}
		}
		return "", false
	}
	if strings.HasPrefix(arg, "-") && len(arg) > 2 {
		val := arg[2:]
		if looksLikePath(val) {
			return val, true
		}
		return "", false
	}
	if looksLikePath(arg) {
		return arg, true
	}
	return "", false
}

func (t *ShellTool) Call(ctx context.Context, tc Context, arguments string) (Result, error) {
	var args ShellArgs
	if err := unmarshalArgs(arguments, &args); err != nil {
		return Result{}, err
	}
	if err := RejectInlineScript(args.Command); err != nil {
		return Result{}, err
	}
	if isShellWrapperInvocation(args.Command, args.Parameters) {
		return Result{}, core.Permissionf("inline script execution not permitted")
	}

	effectiveDir, mismatch, err := resolveEffectiveDirectory(tc.WorkingDirectory, args.Directory)
	if err != nil {
		return Result{}, err
	}
	if mismatch != "" {
		return Result{Output: fmt.Sprintf("Working directory mismatch: %s", mismatch), IsError: true}, nil
	}

	for _, p := range args.Parameters {
		candidate, ok := pathCandidate(p)
		if !ok {
			continue
		}
		if _, err := ResolvePath(tc.WorkingDirectory, candidate); err != nil {
			return Result{Output: fmt.Sprintf("Working directory mismatch: %s", candidate), IsError: true}, nil
		}
	}

	timeout := t.defaultTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(args.Command, args.Parameters...)
	cmd.Dir = effectiveDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Start()
	var waitErr error
	timedOut := false
	if runErr == nil {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case waitErr = <-done:
		case <-runCtx.Done():
			timedOut = true
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
			<-done
		}
	} else {
		waitErr = runErr
	}
	duration := time.Since(start)

	var exitCode *int
	isError := false
	if timedOut {
		isError = true
	} else if waitErr != nil {
		isError = true
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			exitCode = &code
		} else {
			code := -1
			exitCode = &code
		}
	} else {
		code := 0
		exitCode = &code
	}

	stdoutStr := stdout.String()
	stderrStr := stderr.String()

	t.record(execRecord{
		Command:    args.Command,
		Parameters: args.Parameters,
		ExitCode:   exitCode,
		StartedAt:  start,
		Duration:   duration,
		StdoutHead: head(stdoutStr, stdoutHeadLimit),
	})

	artifacts := collectArtifacts(tc.WorkingDirectory, args.ArtifactPaths)

	if args.OutputFormat == "json" {
		out, _ := json.Marshal(shellJSONResult{
			ExitCode:   exitCode,
			Stdout:     stdoutStr,
			Stderr:     stderrStr,
			TimedOut:   timedOut,
			DurationMS: duration.Milliseconds(),
			Artifacts:  artifacts,
		})
		return Result{Output: string(out), IsError: isError, Metadata: map[string]any{"exit_code": exitCode, "timed_out": timedOut}}, nil
	}

	return Result{
		Output:  formatShellText(args.Command, stdoutStr, stderrStr, exitCode, timedOut),
		IsError: isError,
		Metadata: map[string]any{
			"exit_code":     exitCode,
			"duration_ms":   duration.Milliseconds(),
			"timed_out":     timedOut,
			"output_sha256": sha256Hex(stdoutStr),
		},
	}, nil
}

// resolveEffectiveDirectory applies directory precedence: an explicit
// override must match workingDir when both are set (a mismatch is
// reported via the returned mismatch path, not err); when omitted,
// workingDir is used; when neither is set, the process's own home
// directory is the last resort.
func resolveEffectiveDirectory(workingDir, override string) (dir string, mismatch string, err error) {
	if override != "" {
		if workingDir != "" {
			root, err := filepath.Abs(workingDir)
			if err != nil {
				return "", "", core.Validationf("resolving working directory %q: %v", workingDir, err)
			}
			overrideAbs, err := filepath.Abs(override)
			if err != nil {
				return "", "", core.Validationf("resolving directory override %q: %v", override, err)
			}
			if filepath.Clean(root) != filepath.Clean(overrideAbs) {
				return "", override, nil
			}
		}
		return override, "", nil
	}
	if workingDir != "" {
		return workingDir, "", nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home, "", nil
	}
	return "", "", nil
}

type artifactInfo struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

type shellJSONResult struct {
	ExitCode   *int           `json:"exit_code"`
	Stdout     string         `json:"stdout"`
	Stderr     string         `json:"stderr"`
	TimedOut   bool           `json:"timed_out"`
	DurationMS int64          `json:"duration_ms"`
	Artifacts  []artifactInfo `json:"artifacts"`
}

// collectArtifacts hashes each configured artifact path that exists
// after execution, silently skipping any that don't exist.
func collectArtifacts(workingDir string, paths []string) []artifactInfo {
	artifacts := make([]artifactInfo, 0, len(paths))
	for _, p := range paths {
		resolved, err := ResolvePath(workingDir, p)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			continue
		}
		sum := sha256.Sum256(data)
		artifacts = append(artifacts, artifactInfo{Path: p, SHA256: hex.EncodeToString(sum[:]), Bytes: int64(len(data))})
	}
	return artifacts
}

func formatShellText(command, stdout, stderr string, exitCode *int, timedOut bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Command:** %s\n\n", command)
	if strings.TrimSpace(stdout) != "" {
		fmt.Fprintf(&b, "```\n%s\n```\n", strings.TrimSpace(stdout))
	}
	if strings.TrimSpace(stderr) != "" {
		fmt.Fprintf(&b, "\n--- stderr ---\n```\n%s\n```\n", strings.TrimSpace(stderr))
	}
	if timedOut {
		b.WriteString("\nTimed out\n")
		return b.String()
	}
	code := -1
	if exitCode != nil {
		code = *exitCode
	}
	fmt.Fprintf(&b, "\nExit code %d\n", code)
	return b.String()
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (t *ShellTool) record(r execRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, r)
	if len(t.history) > t.maxHist {
		t.history = t.history[len(t.history)-t.maxHist:]
	}
}

// History returns a snapshot of recent executions, most recent first.
func (t *ShellTool) History() []execRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]execRecord, len(t.history))
	for i, r := range t.history {
		out[len(t.history)-1-i] = r
	}
	return out
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// schemaFor reflects a jsonschema-tagged argument struct into the
// plain map[string]any shape the LLM call layer's ToolSpec.Parameters
// expects.
func schemaFor(v any) map[string]any {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(v)
	data, err := schema.MarshalJSON()
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func unmarshalArgs(raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return core.Validationf("parsing tool arguments: %v", err)
	}
	return nil
}
