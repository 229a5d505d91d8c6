package models

import (
	"errors"
	"testing"
)

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{name: "valid pending", task: NewTask("Write tests", "")},
		{name: "missing title", task: Task{Status: TaskPending}, wantErr: true},
		{name: "unknown status", task: Task{Title: "x", Status: "in_progress"}, wantErr: true},
		{
			name:    "invalid child",
			task:    Task{Title: "parent", Status: TaskPending, Children: []Task{{Status: TaskPending}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTask_MarkDoneLeavesChildren(t *testing.T) {
	task := NewTask("parent", "")
	task.Children = []Task{NewTask("child", "")}

	task.MarkDone("ok")

	if !task.IsDone() {
		t.Error("expected parent to be done")
	}
	if task.Result != "ok" {
		t.Errorf("expected result %q, got %q", "ok", task.Result)
	}
	if task.Children[0].IsDone() {
		t.Error("child status must not be derived from parent")
	}
}

func TestCount(t *testing.T) {
	tasks := []Task{
		{Title: "a", Status: TaskPending, Children: []Task{
			{Title: "a.1", Status: TaskPending},
			{Title: "a.2", Status: TaskPending, Children: []Task{{Title: "a.2.1", Status: TaskPending}}},
		}},
		{Title: "b", Status: TaskPending},
	}

	if got := Count(tasks); got != 5 {
		t.Errorf("Count() = %d, want 5", got)
	}
}

func TestNormalizeVerdictStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   VerdictStatus
		wantOK bool
	}{
		{"success", VerdictSuccess, true},
		{" SUCCESS ", VerdictSuccess, true},
		{"failed", VerdictFailure, true},
		{"Partial", VerdictPartial, true},
		{"maybe", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeVerdictStatus(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeVerdictStatus(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestVerdict_Degraded(t *testing.T) {
	v := Verdict{Status: VerdictPartial, ParseError: errors.New("bad xml")}
	if !v.Degraded() {
		t.Error("expected degraded verdict")
	}
	if !v.Passed() {
		t.Error("partial verdict should count as passed")
	}
	if (Verdict{Status: VerdictFailure}).Passed() {
		t.Error("failure verdict should not pass")
	}
}

func TestParseIntentKind(t *testing.T) {
	if k, ok := ParseIntentKind(" Chat "); !ok || k != IntentChat {
		t.Errorf("expected chat, got %q %v", k, ok)
	}
	if k, ok := ParseIntentKind("AGENT"); !ok || k != IntentAgent {
		t.Errorf("expected agent, got %q %v", k, ok)
	}
	if _, ok := ParseIntentKind("reply"); ok {
		t.Error("unexpected match for unknown intent")
	}
}

func TestMemoryEntry_ActionMemory(t *testing.T) {
	e := MemoryEntry{Meta: map[string]interface{}{"action_memory": "<action/>"}}
	if s, ok := e.ActionMemory(); !ok || s != "<action/>" {
		t.Errorf("ActionMemory() = %q, %v", s, ok)
	}
	empty := MemoryEntry{}
	if _, ok := empty.ActionMemory(); ok {
		t.Error("expected no action memory on empty meta")
	}
}
