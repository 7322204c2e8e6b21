package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// ProjectPath converts a command line path, absolute or relative to the
// working directory, into a slash separated path relative to root. The
// project root itself is "".
func ProjectPath(root, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the project %s", p, root)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ExecutableDir returns the directory holding the running binary. Under
// "go run" that is a temporary build directory, so the working directory
// is returned instead.
func ExecutableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	if isDevelopmentMode(exePath) {
		return os.Getwd()
	}
	return filepath.Dir(exePath), nil
}

// isDevelopmentMode checks if the executable path indicates we're running via "go run"
func isDevelopmentMode(exePath string) bool {
	tempDir := filepath.Clean(os.TempDir())
	exePath = filepath.Clean(exePath)

	if strings.HasPrefix(exePath, tempDir) {
		return true
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		goBuildCache := filepath.Clean(filepath.Join(homeDir, ".cache", "go-build"))
		if strings.HasPrefix(exePath, goBuildCache) {
			return true
		}
	}
	return strings.Contains(exePath, "go-build")
}
