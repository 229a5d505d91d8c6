package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirName is the per-project state directory
const DirName = ".taskpilot"

// GetHome returns the taskpilot home directory
// Priority order:
//  1. TASKPILOT_HOME environment variable (if set, used as-is and not created)
//  2. .taskpilot under the current working directory (created if missing)
func GetHome() (string, error) {
	if home := os.Getenv("TASKPILOT_HOME"); home != "" {
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, DirName)
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create taskpilot home directory: %w", err)
	}
	return home, nil
}

// ResolvePaths rewrites relative state paths that start with .taskpilot so
// they live under home instead. Absolute paths and other relative paths are
// left alone.
func (c *Config) ResolvePaths(home string) {
	for _, p := range []*string{&c.LogDir, &c.Memory.Dir, &c.Memory.DBPath} {
		*p = rebase(*p, home)
	}
}

func rebase(path, home string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(DirName, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.Join(home, rel)
}
