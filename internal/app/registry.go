package app

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaakkos/agentbar/internal/domain"
)

// Triggerable is something that can be poked after the registry changes (e.g. the event hub).
type Triggerable interface {
	Trigger()
}

// OutcomeStatus is the result class of a mutating call.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeIgnored OutcomeStatus = "ignored"
)

// Reasons reported with OutcomeIgnored.
const (
	ReasonLowerPriority = "lower_priority_source"
	ReasonPluginBlocked = "plugin_status_blocked"
)

// Outcome describes what a mutating call did. An ignored write is not an error:
// the request was valid and policy chose to drop it.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	// Previous is the status before the call; Task is the task after it.
	Previous domain.Status `json:"-"`
	Task     domain.Task   `json:"-"`
}

// Applied reports whether the write took effect.
func (o Outcome) Applied() bool { return o.Status == OutcomeOK }

// Snapshot is the merged, swept, sorted view handed to readers.
type Snapshot struct {
	CurrentTask *domain.Task  `json:"currentTask"`
	Tasks       []domain.Task `json:"tasks"`
	TaskCount   int           `json:"taskCount"`
}

// StateChange is a status/progress write from one reporting channel. Nil fields are left alone.
type StateChange struct {
	Source            domain.Source
	Status            *domain.Status
	Progress          *int
	EstimatedDuration *int64
	CurrentStage      *string
}

// ReportInput is the window metadata a plugin reports. Empty ProjectPath or
// ActiveFile keep the stored value.
type ReportInput struct {
	TaskID      string
	Name        string
	IDE         string
	WindowTitle string
	IsFocused   bool
	ProjectPath string
	ActiveFile  string
}

// Board is the guarded aggregate: every task, the focused task pointer and the
// block-plugin-status flag. It is only touched while Registry.mu is held.
type Board struct {
	Tasks             map[string]*domain.Task
	FocusedID         string
	BlockPluginStatus bool
}

// Registry is the single source of truth for task state. All reads and writes go
// through one mutex; find-then-mutate always happens in one critical section.
type Registry struct {
	mu       sync.Mutex
	board    Board
	logger   *log.Logger
	now      func() time.Time
	timeout  time.Duration
	notifier Triggerable
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithHeartbeatTimeout sets how long a task may go without a heartbeat before eviction.
func WithHeartbeatTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBlockPluginStatus sets the initial value of the block-plugin-status flag.
func WithBlockPluginStatus(block bool) RegistryOption {
	return func(r *Registry) { r.board.BlockPluginStatus = block }
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *log.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		board:   Board{Tasks: make(map[string]*domain.Task)},
		logger:  logger,
		now:     time.Now,
		timeout: DefaultHeartbeatTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetNotifier attaches a Triggerable poked after every write and every sweep that evicted tasks.
func (r *Registry) SetNotifier(n Triggerable) {
	r.mu.Lock()
	r.notifier = n
	r.mu.Unlock()
}

// HeartbeatTimeout returns the eviction timeout in use.
func (r *Registry) HeartbeatTimeout() time.Duration { return r.timeout }

// Run runs fn with exclusive access to the board, then pokes the notifier.
// Caller must not retain the board or its task pointers after fn returns.
func (r *Registry) Run(fn func(b *Board, nowMs int64) error) error {
	r.mu.Lock()
	err := fn(&r.board, r.nowMillis())
	n := r.notifier
	r.mu.Unlock()
	if err == nil && n != nil {
		n.Trigger()
	}
	return err
}

// Query runs fn with exclusive access to the board without notifying. fn must not mutate.
func (r *Registry) Query(fn func(b *Board, nowMs int64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.board, r.nowMillis())
}

func (r *Registry) nowMillis() int64 {
	return r.now().UnixMilli()
}

// List sweeps stale tasks and returns the sorted view with display names filled in.
// Listing therefore mutates the registry when something has expired.
func (r *Registry) List() Snapshot {
	r.mu.Lock()
	now := r.nowMillis()
	evicted := r.board.sweep(now, r.timeout)

	snap := Snapshot{Tasks: make([]domain.Task, 0, len(r.board.Tasks))}
	for _, t := range r.board.Tasks {
		view := *t
		view.DisplayName = domain.DisplayName(t.Name, t.IDE)
		view.Progress = domain.DerivedProgress(*t, now)
		snap.Tasks = append(snap.Tasks, view)
	}
	focused := r.board.FocusedID
	n := r.notifier
	r.mu.Unlock()

	domain.SortTasks(snap.Tasks)
	snap.TaskCount = len(snap.Tasks)
	for i := range snap.Tasks {
		if focused != "" && snap.Tasks[i].ID == focused {
			current := snap.Tasks[i]
			snap.CurrentTask = &current
			break
		}
	}

	r.reportEvicted(evicted, n)
	return snap
}

// Sweep evicts tasks whose heartbeat is older than the timeout and returns their ids.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	evicted := r.board.sweep(r.nowMillis(), r.timeout)
	n := r.notifier
	r.mu.Unlock()
	r.reportEvicted(evicted, n)
	return evicted
}

func (r *Registry) reportEvicted(evicted []string, n Triggerable) {
	if len(evicted) == 0 {
		return
	}
	r.logger.Info("cleaned up stale tasks", "count", len(evicted), "ids", evicted, "timeout", r.timeout)
	if n != nil {
		n.Trigger()
	}
}

// Get returns a copy of the stored task. It does not sweep.
func (r *Registry) Get(id string) (domain.Task, bool) {
	var (
		t  domain.Task
		ok bool
	)
	r.Query(func(b *Board, _ int64) {
		if stored, found := b.Tasks[id]; found {
			t, ok = *stored, true
		}
	})
	return t, ok
}

// FocusedID returns the id of the focused task, or "".
func (r *Registry) FocusedID() string {
	var id string
	r.Query(func(b *Board, _ int64) { id = b.FocusedID })
	return id
}

// Count returns the number of stored tasks without sweeping.
func (r *Registry) Count() int {
	var n int
	r.Query(func(b *Board, _ int64) { n = len(b.Tasks) })
	return n
}

// Report upserts window metadata from the plugin channel, refreshes the heartbeat and
// applies the focus flag. Unknown ids are registered as armed plugin tasks.
func (r *Registry) Report(in ReportInput) (Outcome, error) {
	if in.TaskID == "" {
		return Outcome{}, errMissingTaskID
	}
	focused := in.IsFocused
	var out Outcome
	err := r.Run(func(b *Board, now int64) error {
		t, created := b.touch(in.TaskID, &focused, now, r.logger)
		out.Previous = t.Status
		if !created && !domain.CanOverwrite(t.Source, domain.SourcePlugin) {
			r.logger.Debug("report ignored: lower priority source", "task_id", in.TaskID, "source", t.Source)
			out.Status, out.Reason, out.Task = OutcomeIgnored, ReasonLowerPriority, *t
			return nil
		}
		t.Name = in.Name
		t.IDE = in.IDE
		t.WindowTitle = in.WindowTitle
		if in.ProjectPath != "" {
			t.ProjectPath = in.ProjectPath
		}
		if in.ActiveFile != "" {
			t.ActiveFile = in.ActiveFile
		}
		if created {
			r.logger.Info("task auto-registered", "task_id", in.TaskID, "name", in.Name, "ide", in.IDE)
		}
		out.Status, out.Task = OutcomeOK, *t
		return nil
	})
	return out, err
}

// Heartbeat refreshes a task's liveness and, when focused is non-nil, its focus flag.
// It never goes through the priority gate and registers unknown ids.
func (r *Registry) Heartbeat(id string, focused *bool) (Outcome, error) {
	if id == "" {
		return Outcome{}, errMissingTaskID
	}
	var out Outcome
	err := r.Run(func(b *Board, now int64) error {
		t, created := b.touch(id, focused, now, r.logger)
		if created {
			r.logger.Info("task auto-registered by heartbeat", "task_id", id)
		}
		out = Outcome{Status: OutcomeOK, Previous: t.Status, Task: *t}
		return nil
	})
	return out, err
}

// UpdateState applies a status/progress write to the task with the given id.
func (r *Registry) UpdateState(id string, ch StateChange) (Outcome, error) {
	if id == "" {
		return Outcome{}, errMissingTaskID
	}
	var out Outcome
	err := r.Run(func(b *Board, now int64) error {
		t, ok := b.Tasks[id]
		if !ok {
			return taskNotFound(id)
		}
		out = b.apply(t, ch, now, r.logger)
		return nil
	})
	return out, err
}

// UpdateStateByPath is UpdateState with the target resolved by project path and,
// when ide is non-empty, by ide. Among several matches the first in display order wins.
func (r *Registry) UpdateStateByPath(projectPath, ide string, ch StateChange) (Outcome, error) {
	if projectPath == "" {
		return Outcome{}, errMissingProjectPath
	}
	var out Outcome
	err := r.Run(func(b *Board, now int64) error {
		t := b.findByPath(projectPath, ide)
		if t == nil {
			return pathNotFound(projectPath, ide)
		}
		out = b.apply(t, ch, now, r.logger)
		return nil
	})
	return out, err
}

// Delete removes one task unconditionally. Returns false if it did not exist.
func (r *Registry) Delete(id string) bool {
	var removed bool
	_ = r.Run(func(b *Board, _ int64) error {
		removed = b.remove(id)
		return nil
	})
	if removed {
		r.logger.Info("task deleted", "task_id", id)
	}
	return removed
}

// Reset removes the task with the given id, or every task when id is empty.
func (r *Registry) Reset(id string) {
	_ = r.Run(func(b *Board, _ int64) error {
		if id == "" {
			b.Tasks = make(map[string]*domain.Task)
			b.FocusedID = ""
			return nil
		}
		b.remove(id)
		return nil
	})
	if id == "" {
		r.logger.Info("all tasks reset")
	} else {
		r.logger.Info("task removed", "task_id", id)
	}
}

// SetBlockPluginStatus toggles dropping of plugin-channel status writes.
func (r *Registry) SetBlockPluginStatus(block bool) {
	_ = r.Run(func(b *Board, _ int64) error {
		b.BlockPluginStatus = block
		return nil
	})
}

// BlockPluginStatus returns the current value of the flag.
func (r *Registry) BlockPluginStatus() bool {
	var block bool
	r.Query(func(b *Board, _ int64) { block = b.BlockPluginStatus })
	return block
}
