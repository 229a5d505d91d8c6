package models

import (
	"errors"
	"fmt"
)

// TaskStatus is the completion state of a planned task
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskDone    TaskStatus = "done"
)

// Task represents one unit of planned work. Tasks form a tree; a parent's status
// is never derived from its children.
type Task struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Children    []Task     `json:"children,omitempty"`
}

// NewTask creates a pending task
func NewTask(title, description string) Task {
	return Task{
		Title:       title,
		Description: description,
		Status:      TaskPending,
	}
}

// Validate checks if the task has all required fields
func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.Status != TaskPending && t.Status != TaskDone {
		return fmt.Errorf("invalid task status %q", t.Status)
	}
	for i := range t.Children {
		if err := t.Children[i].Validate(); err != nil {
			return fmt.Errorf("child %d: %w", i, err)
		}
	}
	return nil
}

// IsDone returns true if the task status is "done"
func (t *Task) IsDone() bool {
	return t.Status == TaskDone
}

// MarkDone records the result and marks the task done. Children are untouched.
func (t *Task) MarkDone(result string) {
	t.Status = TaskDone
	t.Result = result
}

// Prompt renders the task as an instruction for an executing agent
func (t *Task) Prompt() string {
	if t.Description == "" {
		return t.Title
	}
	return t.Title + "\n\n" + t.Description
}

// Count returns the number of tasks in the tree, children included
func Count(tasks []Task) int {
	n := 0
	for i := range tasks {
		n += 1 + Count(tasks[i].Children)
	}
	return n
}
