package domain

import "strings"

// Priority is the three-level urgency scale attached to every task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the three known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is the sole persisted planner entity. The JSON field names match the
// v1 document format shared by the planner_tasks_v1 local slot and the remote
// task documents, so payloads stay identical across both stores.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Course    string   `json:"course"`
	DueDate   string   `json:"dueDate"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
	CreatedAt int64    `json:"createdAt"`
}

// Normalize trims free-text fields and falls back to a medium priority.
func (t *Task) Normalize() {
	if t == nil {
		return
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Course = strings.TrimSpace(t.Course)
	if !t.Priority.Valid() {
		t.Priority = PriorityMedium
	}
}
