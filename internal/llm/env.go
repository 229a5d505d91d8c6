package llm

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

var (
	cleanTmpDir  string
	cleanTmpOnce sync.Once
)

// CleanTmpDir returns the dedicated temp directory for Claude CLI processes,
// creating it on first use. Editor socket files in a shared TMPDIR crash the
// CLI when --settings is passed.
func CleanTmpDir() string {
	cleanTmpOnce.Do(func() {
		cleanTmpDir = filepath.Join(os.TempDir(), "taskpilot-claude")
		os.MkdirAll(cleanTmpDir, 0755)
	})
	return cleanTmpDir
}

// SetCleanEnv copies the current environment into cmd with TMPDIR pointed
// at CleanTmpDir.
func SetCleanEnv(cmd *exec.Cmd) {
	env := os.Environ()
	tmp := "TMPDIR=" + CleanTmpDir()

	found := false
	for i, kv := range env {
		if strings.HasPrefix(kv, "TMPDIR=") {
			env[i] = tmp
			found = true
			break
		}
	}
	if !found {
		env = append(env, tmp)
	}
	cmd.Env = env
}
