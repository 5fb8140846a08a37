package app

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jaakkos/agentbar/internal/domain"
)

// touch returns the task with the given id, registering it when unknown, and refreshes
// its heartbeat. A non-nil focused flag is applied through setFocus.
func (b *Board) touch(id string, focused *bool, now int64, logger *log.Logger) (*domain.Task, bool) {
	t, ok := b.Tasks[id]
	created := !ok
	if created {
		t = domain.NewTask(id)
		b.Tasks[id] = t
	}
	t.LastHeartbeat = now
	if focused != nil {
		b.setFocus(t, *focused, logger)
	}
	return t, created
}

// setFocus keeps at most one task focused. Regaining focus on a completed task re-arms it
// and hands ownership back to the plugin channel; this bypasses the priority gate.
func (b *Board) setFocus(t *domain.Task, focused bool, logger *log.Logger) {
	wasFocused := t.IsFocused
	t.IsFocused = focused
	if !focused {
		if b.FocusedID == t.ID {
			b.FocusedID = ""
		}
		return
	}
	if b.FocusedID != t.ID {
		if prev, ok := b.Tasks[b.FocusedID]; ok {
			prev.IsFocused = false
		}
		b.FocusedID = t.ID
	}
	if !wasFocused && t.Status == domain.StatusCompleted {
		logger.Info("focused completed task, resetting to armed", "task_id", t.ID, "source", t.Source)
		t.Source = domain.SourcePlugin
		rearm(t)
	}
}

// apply runs one StateChange against t after the block and priority gates.
func (b *Board) apply(t *domain.Task, ch StateChange, now int64, logger *log.Logger) Outcome {
	out := Outcome{Previous: t.Status}
	if !domain.CanOverwrite(t.Source, ch.Source) {
		logger.Debug("update ignored: lower priority source",
			"task_id", t.ID, "current", t.Source, "incoming", ch.Source)
		out.Status, out.Reason, out.Task = OutcomeIgnored, ReasonLowerPriority, *t
		return out
	}
	if ch.Status != nil && ch.Source == domain.SourcePlugin && b.BlockPluginStatus {
		logger.Debug("update ignored: plugin status blocked", "task_id", t.ID)
		out.Status, out.Reason, out.Task = OutcomeIgnored, ReasonPluginBlocked, *t
		return out
	}

	t.Source = ch.Source
	if ch.Status != nil {
		transition(t, *ch.Status, now)
		if t.Status != out.Previous {
			logger.Info("task state changed",
				"task_id", t.ID, "from", out.Previous, "to", t.Status, "source", ch.Source)
		}
	}
	if ch.CurrentStage != nil {
		t.CurrentStage = *ch.CurrentStage
	}
	if ch.EstimatedDuration != nil {
		t.EstimatedDuration = *ch.EstimatedDuration
	}
	if ch.Progress != nil {
		t.Progress = domain.ClampProgress(*ch.Progress)
	}
	if t.Status == domain.StatusCompleted {
		t.Progress = 100
	}
	out.Status, out.Task = OutcomeOK, *t
	return out
}

// transition moves t into next and maintains the run-cycle timestamps.
//
//	armed:    clears the run cycle
//	running:  from a terminal state starts a new cycle; otherwise keeps start_time
//	terminal: stamps end_time once per cycle
func transition(t *domain.Task, next domain.Status, now int64) {
	prev := t.Status
	switch {
	case next == domain.StatusArmed:
		rearm(t)
	case next == domain.StatusRunning:
		if prev.IsTerminal() {
			t.StartTime = now
			t.EndTime = 0
			t.EstimatedDuration = 0
			t.Progress = 0
			t.CurrentStage = t.ActiveFile
		} else if t.StartTime == 0 {
			t.StartTime = now
		}
	case next.IsTerminal():
		if !prev.IsTerminal() || t.EndTime == 0 {
			t.EndTime = now
		}
	}
	t.Status = next
}

func rearm(t *domain.Task) {
	t.Status = domain.StatusArmed
	t.Progress = 0
	t.StartTime = 0
	t.EndTime = 0
	t.EstimatedDuration = 0
	t.CurrentStage = ""
}

// findByPath returns the first task in display order whose project path matches and,
// when ide is set, whose ide matches case-insensitively.
func (b *Board) findByPath(projectPath, ide string) *domain.Task {
	var best *domain.Task
	for _, t := range b.Tasks {
		if t.ProjectPath != projectPath {
			continue
		}
		if ide != "" && !strings.EqualFold(t.IDE, ide) {
			continue
		}
		if best == nil || displaysBefore(t, best) {
			best = t
		}
	}
	return best
}

func displaysBefore(a, b *domain.Task) bool {
	pa, pb := a.Source.Priority(), b.Source.Priority()
	if pa != pb {
		return pa > pb
	}
	return a.ID < b.ID
}

// remove deletes the task and clears the focus pointer if it pointed there.
func (b *Board) remove(id string) bool {
	if _, ok := b.Tasks[id]; !ok {
		return false
	}
	delete(b.Tasks, id)
	if b.FocusedID == id {
		b.FocusedID = ""
	}
	return true
}
