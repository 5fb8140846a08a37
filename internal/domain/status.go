package domain

import (
	"fmt"
	"strings"
)

// Status is the execution state of a task.
type Status string

const (
	StatusArmed     Status = "armed"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusArmed, StatusRunning, StatusCompleted, StatusError, StatusCancelled}

// ParseStatus validates s against the closed status set. Both facades go through here.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: invalid status '%s'. Valid: %s", ErrValidation, s, joinStatuses())
}

// IsTerminal reports whether s ends a run cycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
