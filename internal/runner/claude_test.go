package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/harrison/taskpilot/internal/models"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "claude.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("Failed to create test script: %v", err)
	}
	return path
}

func TestBuildArgs(t *testing.T) {
	r := NewClaudeRunner()
	r.Model = "opus"
	args := r.BuildArgs("do the thing")

	want := []string{
		"-p", "do the thing",
		"--dangerously-skip-permissions",
		"--model", "opus",
		"--settings", `{"disableAllHooks": true}`,
		"--output-format", "json",
	}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Errorf("BuildArgs() = %q, want %q", args, want)
	}
}

func TestBuildPrompt(t *testing.T) {
	task := models.NewTask("Write README", "cover install steps")

	got := BuildPrompt(task, "<action><name>read</name></action>")
	for _, want := range []string{"<memory>", "<task>\nWrite README\n\ncover install steps\n</task>", `"files_modified"`} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "<memory>") > strings.Index(got, "<task>") {
		t.Error("memory should precede the task")
	}

	if strings.Contains(BuildPrompt(task, "  "), "<memory>") {
		t.Error("blank memory should be omitted")
	}
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		wantStatus models.ActionStatus
		wantError  string
	}{
		{
			name:       "success in envelope",
			output:     `{"type":"result","result":"{\"status\":\"success\",\"summary\":\"wrote file\",\"files_modified\":[\"a.go\"]}"}`,
			wantStatus: models.ActionSuccess,
		},
		{
			name:       "failed with errors",
			output:     `{"type":"result","result":"{\"status\":\"failed\",\"errors\":[\"tests red\",\"lint\"]}"}`,
			wantStatus: models.ActionFailure,
			wantError:  "tests red; lint",
		},
		{
			name:       "failed without errors uses summary",
			output:     `{"type":"result","result":"{\"status\":\"failed\",\"summary\":\"gave up\"}"}`,
			wantStatus: models.ActionFailure,
			wantError:  "gave up",
		},
		{
			name:       "prose wrapped json",
			output:     `{"type":"result","result":"Done! {\"status\":\"success\",\"summary\":\"ok\"} Bye."}`,
			wantStatus: models.ActionSuccess,
		},
		{
			name:       "missing status",
			output:     `{"type":"result","result":"{\"summary\":\"hmm\"}"}`,
			wantStatus: models.ActionRunning,
		},
		{
			name:       "plain prose",
			output:     "I edited some files.",
			wantStatus: models.ActionRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interpret([]byte(tt.output))
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (result %+v)", got.Status, tt.wantStatus, got)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestRun_Script(t *testing.T) {
	script := writeScript(t, `echo '{"type":"result","result":"{\"status\":\"success\",\"summary\":\"all done\"}"}'`)

	r := NewClaudeRunner()
	r.ClaudePath = script
	r.Timeout = 5 * time.Second

	got, err := r.Run(context.Background(), models.NewTask("t", ""), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got.Status != models.ActionSuccess || got.Content != "all done" {
		t.Errorf("Run() = %+v", got)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	script := writeScript(t, "echo 'permission denied' >&2\nexit 2\n")

	r := NewClaudeRunner()
	r.ClaudePath = script

	got, err := r.Run(context.Background(), models.NewTask("t", ""), "")
	if err != nil {
		t.Fatalf("non-zero exit should be a result, got error %v", err)
	}
	if got.Status != models.ActionFailure {
		t.Errorf("Status = %q, want failure", got.Status)
	}
	if !strings.Contains(got.Error, "code 2") || !strings.Contains(got.Error, "permission denied") {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestRun_MissingBinary(t *testing.T) {
	r := NewClaudeRunner()
	r.ClaudePath = filepath.Join(t.TempDir(), "no-such-claude")

	if _, err := r.Run(context.Background(), models.NewTask("t", ""), ""); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")

	r := NewClaudeRunner()
	r.ClaudePath = script

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := r.Run(ctx, models.NewTask("t", ""), ""); err == nil {
		t.Error("expected context error")
	}
}

func TestRun_TimeoutIsFailure(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")

	r := NewClaudeRunner()
	r.ClaudePath = script
	r.Timeout = 100 * time.Millisecond

	got, err := r.Run(context.Background(), models.NewTask("t", ""), "")
	if err != nil {
		t.Fatalf("runner timeout should be a result, got error %v", err)
	}
	if got.Status != models.ActionFailure {
		t.Errorf("Status = %q, want failure", got.Status)
	}
	if got.Error != "timed out after 100ms" {
		t.Errorf("Error = %q", got.Error)
	}
}
