package app

import (
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaakkos/agentbar/internal/domain"
)

// fakeClock is a settable clock for registry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingTrigger struct {
	mu sync.Mutex
	n  int
}

func (c *countingTrigger) Trigger() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingTrigger) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func testRegistry(clock *fakeClock, opts ...RegistryOption) *Registry {
	opts = append([]RegistryOption{WithClock(clock.Now)}, opts...)
	return NewRegistry(testLogger(), opts...)
}

func statusPtr(s domain.Status) *domain.Status { return &s }
func intPtr(i int) *int                        { return &i }
func int64Ptr(i int64) *int64                  { return &i }
func strPtr(s string) *string                  { return &s }
func boolPtr(b bool) *bool                     { return &b }

func mustReport(t *testing.T, r *Registry, in ReportInput) Outcome {
	t.Helper()
	out, err := r.Report(in)
	if err != nil {
		t.Fatalf("Report(%s): %v", in.TaskID, err)
	}
	return out
}

func mustUpdate(t *testing.T, r *Registry, id string, ch StateChange) Outcome {
	t.Helper()
	out, err := r.UpdateState(id, ch)
	if err != nil {
		t.Fatalf("UpdateState(%s): %v", id, err)
	}
	return out
}

func TestReport_RegistersArmedPluginTask(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)

	out := mustReport(t, r, ReportInput{TaskID: "t1", Name: "cursor - proj", IDE: "cursor", WindowTitle: "proj", IsFocused: true})
	if out.Status != OutcomeOK {
		t.Fatalf("expected ok, got %+v", out)
	}
	task, ok := r.Get("t1")
	if !ok {
		t.Fatal("task not registered")
	}
	if task.Status != domain.StatusArmed || task.Source != domain.SourcePlugin {
		t.Errorf("expected armed/plugin, got %s/%s", task.Status, task.Source)
	}
	if task.LastHeartbeat != clock.Now().UnixMilli() {
		t.Errorf("heartbeat not set: %d", task.LastHeartbeat)
	}
	if !task.IsFocused || r.FocusedID() != "t1" {
		t.Errorf("expected t1 focused, pointer=%q", r.FocusedID())
	}
}

func TestReport_MissingTaskID(t *testing.T) {
	r := testRegistry(newFakeClock())
	_, err := r.Report(ReportInput{Name: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReport_KeepsPathsWhenOmitted(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1", Name: "a", ProjectPath: "/p", ActiveFile: "main.go"})
	mustReport(t, r, ReportInput{TaskID: "t1", Name: "b"})

	task, _ := r.Get("t1")
	if task.Name != "b" {
		t.Errorf("name not updated: %q", task.Name)
	}
	if task.ProjectPath != "/p" || task.ActiveFile != "main.go" {
		t.Errorf("paths overwritten: %q %q", task.ProjectPath, task.ActiveFile)
	}
}

func TestReport_IdempotentRereport(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	in := ReportInput{TaskID: "t1", Name: "n", IDE: "cursor", WindowTitle: "w"}
	mustReport(t, r, in)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourcePlugin, Status: statusPtr(domain.StatusRunning), Progress: intPtr(40)})
	before, _ := r.Get("t1")

	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		if out := mustReport(t, r, in); out.Status != OutcomeOK {
			t.Fatalf("report %d: expected ok, got %+v", i, out)
		}
	}
	after, _ := r.Get("t1")
	if after.Status != before.Status || after.Progress != before.Progress ||
		after.StartTime != before.StartTime || after.EndTime != before.EndTime {
		t.Errorf("re-report changed state: before=%+v after=%+v", before, after)
	}
}

func TestReport_IgnoredForHigherPrioritySource(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1", Name: "orig"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})

	out := mustReport(t, r, ReportInput{TaskID: "t1", Name: "changed"})
	if out.Status != OutcomeIgnored || out.Reason != ReasonLowerPriority {
		t.Fatalf("expected ignored lower_priority_source, got %+v", out)
	}
	task, _ := r.Get("t1")
	if task.Name != "orig" {
		t.Errorf("metadata overwritten: %q", task.Name)
	}
}

func TestFocus_SingleFocusedTask(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "a", IsFocused: true})
	mustReport(t, r, ReportInput{TaskID: "b", IsFocused: true})

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	if a.IsFocused || !b.IsFocused {
		t.Errorf("expected only b focused: a=%v b=%v", a.IsFocused, b.IsFocused)
	}
	if r.FocusedID() != "b" {
		t.Errorf("pointer = %q, want b", r.FocusedID())
	}

	mustReport(t, r, ReportInput{TaskID: "b", IsFocused: false})
	if r.FocusedID() != "" {
		t.Errorf("pointer should clear when focused task blurs, got %q", r.FocusedID())
	}
	// Blurring a task that is not the pointer leaves it alone.
	mustReport(t, r, ReportInput{TaskID: "a", IsFocused: true})
	mustReport(t, r, ReportInput{TaskID: "b", IsFocused: false})
	if r.FocusedID() != "a" {
		t.Errorf("pointer = %q, want a", r.FocusedID())
	}
}

func TestFocus_ResetOnCompletedBypassesPriority(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1", IsFocused: false})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning),
		EstimatedDuration: int64Ptr(60000), CurrentStage: strPtr("build")})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusCompleted)})

	mustReport(t, r, ReportInput{TaskID: "t1", IsFocused: true})

	task, _ := r.Get("t1")
	if task.Status != domain.StatusArmed || task.Source != domain.SourcePlugin {
		t.Fatalf("expected armed/plugin after focus, got %s/%s", task.Status, task.Source)
	}
	if task.Progress != 0 || task.StartTime != 0 || task.EndTime != 0 {
		t.Errorf("run cycle not cleared: %+v", task)
	}
	if task.EstimatedDuration != 0 || task.CurrentStage != "" {
		t.Errorf("estimate/stage not cleared: %+v", task)
	}
}

func TestFocus_AlreadyFocusedCompletedStays(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1", IsFocused: true})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusCompleted)})

	mustReport(t, r, ReportInput{TaskID: "t1", IsFocused: true})
	task, _ := r.Get("t1")
	if task.Status != domain.StatusCompleted {
		t.Errorf("completed task reset without a focus transition: %s", task.Status)
	}
}

func TestHeartbeat_AutoRegistersAndBypassesPriority(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)

	out, err := r.Heartbeat("t1", nil)
	if err != nil || out.Status != OutcomeOK {
		t.Fatalf("heartbeat: %+v %v", out, err)
	}
	task, _ := r.Get("t1")
	if task.Name != "t1" || task.Status != domain.StatusArmed {
		t.Errorf("unexpected auto-registered task: %+v", task)
	}

	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	clock.Advance(5 * time.Second)
	if _, err := r.Heartbeat("t1", boolPtr(true)); err != nil {
		t.Fatal(err)
	}
	task, _ = r.Get("t1")
	if task.LastHeartbeat != clock.Now().UnixMilli() {
		t.Error("heartbeat not refreshed on hook-owned task")
	}
	if task.Source != domain.SourceHook || task.Status != domain.StatusRunning {
		t.Errorf("heartbeat changed ownership: %s/%s", task.Source, task.Status)
	}
	if r.FocusedID() != "t1" {
		t.Errorf("focus not applied: %q", r.FocusedID())
	}
}

func TestUpdateState_NotFound(t *testing.T) {
	r := testRegistry(newFakeClock())
	_, err := r.UpdateState("missing", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if r.Count() != 0 {
		t.Error("update must not create tasks")
	}
}

func TestUpdateState_PriorityMonotonicity(t *testing.T) {
	sources := []domain.Source{domain.SourcePlugin, domain.SourceMCP, domain.SourceHook}
	for i, low := range sources {
		for _, high := range sources[i+1:] {
			t.Run(string(low)+"_after_"+string(high), func(t *testing.T) {
				clock := newFakeClock()
				r := testRegistry(clock)
				mustReport(t, r, ReportInput{TaskID: "t1", ProjectPath: "/p"})
				mustUpdate(t, r, "t1", StateChange{Source: high, Status: statusPtr(domain.StatusRunning), Progress: intPtr(10)})
				before, _ := r.Get("t1")

				clock.Advance(time.Second)
				out := mustUpdate(t, r, "t1", StateChange{
					Source:            low,
					Status:            statusPtr(domain.StatusCompleted),
					Progress:          intPtr(90),
					EstimatedDuration: int64Ptr(1000),
					CurrentStage:      strPtr("x"),
				})
				if out.Status != OutcomeIgnored || out.Reason != ReasonLowerPriority {
					t.Fatalf("expected ignored, got %+v", out)
				}
				after, _ := r.Get("t1")
				if !reflect.DeepEqual(before, after) {
					t.Errorf("ignored write changed the task:\nbefore=%+v\nafter =%+v", before, after)
				}
			})
		}
	}
}

func TestUpdateState_EqualAndHigherPriorityApply(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceMCP, Status: statusPtr(domain.StatusRunning)})

	if out := mustUpdate(t, r, "t1", StateChange{Source: domain.SourceMCP, Progress: intPtr(20)}); !out.Applied() {
		t.Fatalf("same source should apply: %+v", out)
	}
	out := mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusError)})
	if !out.Applied() || out.Previous != domain.StatusRunning {
		t.Fatalf("higher source should apply: %+v", out)
	}
	task, _ := r.Get("t1")
	if task.Source != domain.SourceHook || task.Status != domain.StatusError {
		t.Errorf("got %s/%s", task.Source, task.Status)
	}
}

func TestUpdateState_ProgressClamp(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1"})

	mustUpdate(t, r, "t1", StateChange{Source: domain.SourcePlugin, Progress: intPtr(150)})
	if task, _ := r.Get("t1"); task.Progress != 100 {
		t.Errorf("progress 150 stored as %d", task.Progress)
	}
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourcePlugin, Progress: intPtr(-5)})
	if task, _ := r.Get("t1"); task.Progress != 0 {
		t.Errorf("progress -5 stored as %d", task.Progress)
	}
}

func TestUpdateState_CompletedForcesFullProgress(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusCompleted), Progress: intPtr(30)})
	task, _ := r.Get("t1")
	if task.Progress != 100 || task.EndTime == 0 {
		t.Errorf("expected progress 100 and end_time set, got %+v", task)
	}
}

func TestUpdateState_RestartClearsTimestamps(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	mustReport(t, r, ReportInput{TaskID: "t1", ActiveFile: "main.go"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning), EstimatedDuration: int64Ptr(5000)})
	clock.Advance(2 * time.Second)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusCompleted)})
	done, _ := r.Get("t1")
	if done.EndTime <= 0 {
		t.Fatal("end_time not set on completion")
	}

	clock.Advance(time.Second)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	task, _ := r.Get("t1")
	if task.StartTime <= done.EndTime {
		t.Errorf("start_time %d not after previous end_time %d", task.StartTime, done.EndTime)
	}
	if task.EndTime != 0 || task.Progress != 0 || task.EstimatedDuration != 0 {
		t.Errorf("restart did not clear the cycle: %+v", task)
	}
	if task.CurrentStage != "main.go" {
		t.Errorf("stage should default to active file, got %q", task.CurrentStage)
	}
}

func TestUpdateState_RunningKeepsStartTime(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceMCP, Status: statusPtr(domain.StatusRunning)})
	first, _ := r.Get("t1")
	clock.Advance(3 * time.Second)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceMCP, Status: statusPtr(domain.StatusRunning)})
	second, _ := r.Get("t1")
	if first.StartTime != second.StartTime {
		t.Errorf("start_time moved: %d -> %d", first.StartTime, second.StartTime)
	}
}

func TestUpdateState_TerminalToTerminalKeepsEndTime(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusError)})
	first, _ := r.Get("t1")
	clock.Advance(time.Second)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusCancelled)})
	second, _ := r.Get("t1")
	if second.EndTime != first.EndTime {
		t.Errorf("end_time changed between terminal states: %d -> %d", first.EndTime, second.EndTime)
	}
}

func TestUpdateState_ArmedClearsCycle(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning),
		Progress: intPtr(50), CurrentStage: strPtr("lint")})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusArmed)})
	task, _ := r.Get("t1")
	if task.StartTime != 0 || task.EndTime != 0 || task.Progress != 0 || task.CurrentStage != "" {
		t.Errorf("armed did not clear the cycle: %+v", task)
	}
}

func TestUpdateState_BlockPluginStatus(t *testing.T) {
	r := testRegistry(newFakeClock(), WithBlockPluginStatus(true))
	mustReport(t, r, ReportInput{TaskID: "t1"})

	out := mustUpdate(t, r, "t1", StateChange{Source: domain.SourcePlugin, Status: statusPtr(domain.StatusRunning)})
	if out.Status != OutcomeIgnored || out.Reason != ReasonPluginBlocked {
		t.Fatalf("expected plugin_status_blocked, got %+v", out)
	}
	if out := mustUpdate(t, r, "t1", StateChange{Source: domain.SourcePlugin, Progress: intPtr(40)}); !out.Applied() {
		t.Errorf("progress-only plugin write should pass: %+v", out)
	}
	if out := mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)}); !out.Applied() {
		t.Errorf("hook write should pass: %+v", out)
	}

	r.SetBlockPluginStatus(false)
	mustReport(t, r, ReportInput{TaskID: "t2"})
	if out := mustUpdate(t, r, "t2", StateChange{Source: domain.SourcePlugin, Status: statusPtr(domain.StatusRunning)}); !out.Applied() {
		t.Errorf("plugin write should pass when unblocked: %+v", out)
	}
}

func TestUpdateState_DoesNotTouchHeartbeat(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	mustReport(t, r, ReportInput{TaskID: "t1"})
	before, _ := r.Get("t1")
	clock.Advance(time.Second)
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	after, _ := r.Get("t1")
	if after.LastHeartbeat != before.LastHeartbeat {
		t.Error("update_state refreshed the heartbeat")
	}
}

func TestUpdateStateByPath(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "cursor_proj", IDE: "Cursor", ProjectPath: "/work/proj"})
	mustReport(t, r, ReportInput{TaskID: "vscode_proj", IDE: "VSCode", ProjectPath: "/work/proj"})

	out, err := r.UpdateStateByPath("/work/proj", "vscode", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})
	if err != nil || !out.Applied() {
		t.Fatalf("update by path: %+v %v", out, err)
	}
	if out.Task.ID != "vscode_proj" {
		t.Errorf("matched %q, want vscode_proj", out.Task.ID)
	}

	// Without an ide filter the first task in display order wins; vscode_proj now outranks.
	out, err = r.UpdateStateByPath("/work/proj", "", StateChange{Source: domain.SourceHook, Progress: intPtr(10)})
	if err != nil || out.Task.ID != "vscode_proj" {
		t.Errorf("expected vscode_proj, got %+v %v", out.Task.ID, err)
	}

	if _, err := r.UpdateStateByPath("/other", "", StateChange{Source: domain.SourceHook}); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := r.UpdateStateByPath("", "", StateChange{Source: domain.SourceHook}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestList_SweepsStaleTasks(t *testing.T) {
	clock := newFakeClock()
	trig := &countingTrigger{}
	r := testRegistry(clock, WithHeartbeatTimeout(15*time.Second))
	r.SetNotifier(trig)

	mustReport(t, r, ReportInput{TaskID: "stale", IsFocused: true})
	clock.Advance(10 * time.Second)
	mustReport(t, r, ReportInput{TaskID: "fresh"})
	clock.Advance(6 * time.Second) // stale is now 16s old, fresh 6s
	before := trig.Count()

	snap := r.List()
	if snap.TaskCount != 1 || snap.Tasks[0].ID != "fresh" {
		t.Fatalf("expected only fresh, got %+v", snap.Tasks)
	}
	if snap.CurrentTask != nil {
		t.Errorf("evicted focused task still current: %+v", snap.CurrentTask)
	}
	if r.FocusedID() != "" {
		t.Errorf("focus pointer = %q after eviction", r.FocusedID())
	}
	if trig.Count() != before+1 {
		t.Errorf("sweep eviction should notify once, got %d", trig.Count()-before)
	}
}

func TestList_SweepBoundary(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock, WithHeartbeatTimeout(15*time.Second))
	mustReport(t, r, ReportInput{TaskID: "t1"})
	clock.Advance(15*time.Second - time.Millisecond)
	if snap := r.List(); snap.TaskCount != 1 {
		t.Errorf("task just inside the timeout should survive, got %d", snap.TaskCount)
	}
	clock.Advance(time.Millisecond)
	if snap := r.List(); snap.TaskCount != 0 {
		t.Errorf("task at the timeout should be evicted, got %d", snap.TaskCount)
	}
}

func TestList_NeverHeartbeatedDoesNotExpire(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	_ = r.Run(func(b *Board, _ int64) error {
		b.Tasks["oneshot"] = domain.NewTask("oneshot")
		return nil
	})
	clock.Advance(time.Hour)
	if snap := r.List(); snap.TaskCount != 1 {
		t.Errorf("task with zero heartbeat was evicted")
	}
}

func TestList_OrderingAndView(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock)
	for _, id := range []string{"c", "a", "b", "d"} {
		mustReport(t, r, ReportInput{TaskID: id, Name: "cursor - " + id, IDE: "cursor"})
	}
	mustUpdate(t, r, "d", StateChange{Source: domain.SourceHook, Progress: intPtr(1)})
	mustUpdate(t, r, "c", StateChange{Source: domain.SourceMCP, Progress: intPtr(1)})
	mustReport(t, r, ReportInput{TaskID: "b", Name: "cursor - b", IDE: "cursor", IsFocused: true})

	snap := r.List()
	var ids []string
	for _, task := range snap.Tasks {
		ids = append(ids, task.ID)
	}
	if want := []string{"d", "c", "a", "b"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
	if snap.Tasks[0].DisplayName != "d" {
		t.Errorf("display name = %q, want d", snap.Tasks[0].DisplayName)
	}
	if snap.CurrentTask == nil || snap.CurrentTask.ID != "b" {
		t.Errorf("current task = %+v, want b", snap.CurrentTask)
	}
	stored, _ := r.Get("d")
	if stored.DisplayName != "" {
		t.Error("display name leaked into stored task")
	}
}

func TestList_DerivedProgress(t *testing.T) {
	clock := newFakeClock()
	r := testRegistry(clock, WithHeartbeatTimeout(time.Hour))
	mustReport(t, r, ReportInput{TaskID: "t1"})
	mustUpdate(t, r, "t1", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning), EstimatedDuration: int64Ptr(10_000)})
	clock.Advance(5 * time.Second)

	snap := r.List()
	if snap.Tasks[0].Progress != 50 {
		t.Errorf("derived progress = %d, want 50", snap.Tasks[0].Progress)
	}
	if stored, _ := r.Get("t1"); stored.Progress != 0 {
		t.Errorf("derived progress written back: %d", stored.Progress)
	}
}

func TestDeleteAndReset(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "a", IsFocused: true})
	mustReport(t, r, ReportInput{TaskID: "b"})
	mustUpdate(t, r, "a", StateChange{Source: domain.SourceHook, Status: statusPtr(domain.StatusRunning)})

	if !r.Delete("a") {
		t.Fatal("delete of hook-owned task should succeed")
	}
	if r.Delete("a") {
		t.Error("second delete should report missing")
	}
	if r.FocusedID() != "" {
		t.Error("delete should clear the focus pointer")
	}

	r.Reset("nope") // unknown id is not an error
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
	mustReport(t, r, ReportInput{TaskID: "c", IsFocused: true})
	r.Reset("")
	if r.Count() != 0 || r.FocusedID() != "" {
		t.Errorf("reset all left %d tasks, focus %q", r.Count(), r.FocusedID())
	}
}

func TestRun_NotifiesOnSuccessOnly(t *testing.T) {
	r := testRegistry(newFakeClock())
	trig := &countingTrigger{}
	r.SetNotifier(trig)

	mustReport(t, r, ReportInput{TaskID: "t1"})
	if trig.Count() != 1 {
		t.Fatalf("expected 1 trigger, got %d", trig.Count())
	}
	_, _ = r.UpdateState("missing", StateChange{Source: domain.SourceHook})
	if trig.Count() != 1 {
		t.Errorf("failed write should not notify, got %d", trig.Count())
	}
}

func TestRegistry_ConcurrentWriters(t *testing.T) {
	r := testRegistry(newFakeClock())
	mustReport(t, r, ReportInput{TaskID: "t1"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = r.Report(ReportInput{TaskID: "t1", IsFocused: true})
		}()
		go func(p int) {
			defer wg.Done()
			_, _ = r.UpdateState("t1", StateChange{Source: domain.SourceMCP, Progress: &p})
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()
	if task, ok := r.Get("t1"); !ok || task.Source != domain.SourceMCP {
		t.Errorf("unexpected final task: %+v", task)
	}
}
