package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/worldcore/core"
)

// ResolvePath expands a leading "~" and resolves path relative to
// workingDir, then verifies the result is contained within
// workingDir — by component prefix, not string prefix, so
// "/data/work-2" is never accepted as contained within "/data/work".
// An empty workingDir disables containment (no tool restriction
// configured for this world).
func ResolvePath(workingDir, path string) (string, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return "", core.Validationf("expanding path %q: %v", path, err)
	}

	var resolved string
	if filepath.IsAbs(expanded) {
		resolved = filepath.Clean(expanded)
	} else {
		resolved = filepath.Clean(filepath.Join(workingDir, expanded))
	}

	if workingDir == "" {
		return resolved, nil
	}

	root, err := filepath.Abs(workingDir)
	if err != nil {
		return "", core.Validationf("resolving working directory %q: %v", workingDir, err)
	}
	root = filepath.Clean(root)

	if !withinRoot(root, resolved) {
		return "", core.Permissionf("path %q escapes the working directory %q", path, workingDir)
	}
	return resolved, nil
}

// withinRoot reports whether target is root itself or a descendant of
// it, comparing path components rather than raw strings.
func withinRoot(root, target string) bool {
	if root == target {
		return true
	}
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// RejectInlineScript reports an error when cmd looks like it tries to
// smuggle a second command via shell metacharacters (;, &&, ||, |, `,
// $(...)) rather than invoking a single named program with arguments.
// shell_cmd runs argv-form, never through a shell, so these characters
// would otherwise pass through as literal (and useless, or
// misleading) argument text — better to reject up front.
func RejectInlineScript(cmd string) error {
	const metacharacters = ";&|`$"
	if strings.ContainsAny(cmd, metacharacters) {
		return core.Validationf("shell_cmd does not accept shell metacharacters in %q; pass one command with its arguments", cmd)
	}
	if strings.Contains(cmd, "$(") || strings.Contains(cmd, "<(") {
		return core.Validationf("shell_cmd does not accept command substitution in %q", cmd)
	}
	return nil
}
