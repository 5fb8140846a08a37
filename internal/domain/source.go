package domain

import (
	"fmt"
	"sort"
)

// Source is the reporting channel that last legitimately wrote a task.
// Priority: hook > mcp > plugin.
type Source string

const (
	SourceHook   Source = "hook"
	SourceMCP    Source = "mcp"
	SourcePlugin Source = "plugin"
)

// Sources lists the valid sources from highest to lowest priority.
var Sources = []Source{SourceHook, SourceMCP, SourcePlugin}

// ParseSource validates s. An empty string means the plugin channel.
func ParseSource(s string) (Source, error) {
	if s == "" {
		return SourcePlugin, nil
	}
	for _, src := range Sources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: invalid source '%s'. Valid: hook, mcp, plugin", ErrValidation, s)
}

// Priority ranks the source; unknown sources rank 0.
func (s Source) Priority() int {
	switch s {
	case SourceHook:
		return 3
	case SourceMCP:
		return 2
	case SourcePlugin:
		return 1
	default:
		return 0
	}
}

// CanOverwrite reports whether a write from incoming may replace state owned by current.
// Equal priority is allowed so a channel can always update its own writes.
func CanOverwrite(current, incoming Source) bool {
	return incoming.Priority() >= current.Priority()
}

// SortTasks orders tasks by source priority (highest first), then id ascending.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := tasks[i].Source.Priority(), tasks[j].Source.Priority()
		if pi != pj {
			return pi > pj
		}
		return tasks[i].ID < tasks[j].ID
	})
}
