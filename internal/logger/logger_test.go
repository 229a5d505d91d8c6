package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrison/taskpilot/internal/models"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"trace", []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}, nil},
		{"info", []string{"INFO", "WARN", "ERROR"}, []string{"TRACE", "DEBUG"}},
		{"error", []string{"ERROR"}, []string{"TRACE", "DEBUG", "INFO", "WARN"}},
		{"bogus", []string{"INFO"}, []string{"DEBUG"}},
		{"  WARN ", []string{"WARN"}, []string{"INFO"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(&buf, tt.level)
			l.LogTrace("m")
			l.LogDebug("m")
			l.LogInfo("m")
			l.LogWarn("m")
			l.LogError("m")

			out := buf.String()
			for _, lvl := range tt.visible {
				if !strings.Contains(out, "["+lvl+"] m") {
					t.Errorf("expected %s line in %q", lvl, out)
				}
			}
			for _, lvl := range tt.hidden {
				if strings.Contains(out, "["+lvl+"]") {
					t.Errorf("unexpected %s line in %q", lvl, out)
				}
			}
		})
	}
}

func TestConsoleLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, "info").LogInfo("planning started")

	line := buf.String()
	// [HH:MM:SS] [INFO] planning started\n
	if len(line) < 11 || line[0] != '[' || line[9] != ']' {
		t.Fatalf("missing timestamp prefix: %q", line)
	}
	if !strings.HasSuffix(line, "[INFO] planning started\n") {
		t.Errorf("unexpected line %q", line)
	}
}

func TestConsoleLogger_NilWriter(t *testing.T) {
	l := NewConsoleLogger(nil, "trace")
	l.LogError("dropped")
	l.LogVerdict("t", models.Verdict{Status: models.VerdictSuccess}, time.Second)
}

func TestConsoleLogger_LogVerdict(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf, "info")
	l.LogVerdict("Write tests", models.Verdict{Status: models.VerdictPartial}, 2300*time.Millisecond)

	if !strings.Contains(buf.String(), "Write tests: partial (2.3s)") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	NewConsoleLogger(&buf, "warn").LogVerdict("x", models.Verdict{Status: models.VerdictSuccess}, 0)
	if buf.Len() != 0 {
		t.Errorf("verdict should be filtered at warn level, got %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{450 * time.Millisecond, "450ms"},
		{2300 * time.Millisecond, "2.3s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) LogTrace(m string) { r.lines = append(r.lines, "trace:"+m) }
func (r *recordingLogger) LogDebug(m string) { r.lines = append(r.lines, "debug:"+m) }
func (r *recordingLogger) LogInfo(m string)  { r.lines = append(r.lines, "info:"+m) }
func (r *recordingLogger) LogWarn(m string)  { r.lines = append(r.lines, "warn:"+m) }
func (r *recordingLogger) LogError(m string) { r.lines = append(r.lines, "error:"+m) }

func TestMulti(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := Multi(a, nil, b)
	m.LogWarn("w")
	m.LogInfo("i")

	for _, r := range []*recordingLogger{a, b} {
		if strings.Join(r.lines, ",") != "warn:w,info:i" {
			t.Errorf("lines = %v", r.lines)
		}
	}

	if _, ok := Multi(nil, nil).(nopLogger); !ok {
		t.Error("Multi of nils should be Nop")
	}
	if Multi(a) != Logger(a) {
		t.Error("Multi of one logger should return it unchanged")
	}
	if _, ok := OrNop(nil).(nopLogger); !ok {
		t.Error("OrNop(nil) should be Nop")
	}
}

func readJSONLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("log line is not JSON: %q", sc.Text())
		}
		out = append(out, m)
	}
	return out
}

func TestRegistry_OpenWritesPerPairFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, "info")

	a, err := r.Open("conv-1", "planner")
	if err != nil {
		t.Fatal(err)
	}
	again, err := r.Open("conv-1", "planner")
	if err != nil {
		t.Fatal(err)
	}
	if a != again {
		t.Error("same pair should return the same logger")
	}
	b, err := r.Open("conv-1", "memory")
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	a.LogInfo("plan ready")
	a.LogDebug("filtered")
	b.LogWarn("read degraded")

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := readJSONLines(t, filepath.Join(dir, "conv-1", "planner.log"))
	if len(lines) != 1 {
		t.Fatalf("planner.log has %d lines, want 1", len(lines))
	}
	if lines[0]["msg"] != "plan ready" || lines[0]["conversation"] != "conv-1" || lines[0]["module"] != "planner" {
		t.Errorf("unexpected entry %v", lines[0])
	}

	lines = readJSONLines(t, filepath.Join(dir, "conv-1", "memory.log"))
	if len(lines) != 1 || lines[0]["level"] != "warn" {
		t.Errorf("memory.log = %v", lines)
	}
}

func TestRegistry_TraceLevel(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, "trace")
	l, err := r.Open("c", "m")
	if err != nil {
		t.Fatal(err)
	}
	l.LogTrace("deep")
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readJSONLines(t, filepath.Join(dir, "c", "m.log"))
	if len(lines) != 1 || lines[0]["trace"] != true {
		t.Errorf("trace entry = %v", lines)
	}
}

func TestRegistry_Closed(t *testing.T) {
	r := NewRegistry(t.TempDir(), "info")
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := r.Open("c", "m"); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Open after Close = %v, want ErrRegistryClosed", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"":              "default",
		"..":            "default",
		"abc-123_x.y":   "abc-123_x.y",
		"../etc/passwd": ".._etc_passwd",
		"a b/c":         "a_b_c",
	}
	for in, want := range tests {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
