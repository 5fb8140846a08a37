// Package domain holds the task entity, its closed status and source types, and the
// merge policy used to reconcile reports from several channels.
// It has no dependencies on other packages.
package domain

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks malformed input: unknown enum values, missing ids.
	ErrValidation = errors.New("validation error")
	// ErrTaskNotFound is returned when an operation targets an unknown task.
	ErrTaskNotFound = errors.New("task not found")
)

// Task is one unit of observable AI-agent work, keyed by a caller-supplied id
// (by convention "{ide}_{project}").
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"` // computed on read, never stored
	IDE         string `json:"ide"`
	WindowTitle string `json:"window_title"`
	ProjectPath string `json:"project_path,omitempty"`
	ActiveFile  string `json:"active_file,omitempty"`
	IsFocused   bool   `json:"is_focused"`

	Status   Status `json:"status"`
	Source   Source `json:"source"`
	Progress int    `json:"progress"`

	// Epoch milliseconds. Zero means unset.
	StartTime     int64 `json:"start_time"`
	EndTime       int64 `json:"end_time,omitempty"`
	LastHeartbeat int64 `json:"last_heartbeat"`

	CurrentStage      string `json:"current_stage,omitempty"`
	EstimatedDuration int64  `json:"estimated_duration,omitempty"` // milliseconds
}

// NewTask returns a freshly registered task: armed, owned by the plugin channel.
func NewTask(id string) *Task {
	return &Task{
		ID:     id,
		Name:   id,
		Status: StatusArmed,
		Source: SourcePlugin,
	}
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// DisplayName strips the "{ide} - " prefix from name when present.
func DisplayName(name, ide string) string {
	prefix := ide + " - "
	if strings.HasPrefix(name, prefix) {
		return name[len(prefix):]
	}
	return name
}

// DerivedProgress is the progress shown for t at nowMs. A running task that reports
// no progress of its own but carries an estimate gets a time-based value capped at 99.
func DerivedProgress(t Task, nowMs int64) int {
	if t.Status != StatusRunning || t.Progress > 0 || t.StartTime <= 0 || t.EstimatedDuration <= 0 {
		return t.Progress
	}
	elapsed := nowMs - t.StartTime
	if elapsed <= 0 {
		return 0
	}
	p := int(elapsed * 100 / t.EstimatedDuration)
	if p > 99 {
		p = 99
	}
	return p
}
