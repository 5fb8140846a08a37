package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/agentbar/internal/app"
	"github.com/jaakkos/agentbar/internal/domain"
)

// taskView is the per-task shape list_tasks returns to agents.
type taskView struct {
	ID          string        `json:"id"`
	IDE         string        `json:"ide"`
	WindowTitle string        `json:"window_title"`
	ProjectPath string        `json:"project_path"`
	ActiveFile  string        `json:"active_file"`
	Status      domain.Status `json:"status"`
	Progress    int           `json:"progress"`
	Source      domain.Source `json:"source"`
}

func registerListTasks(s *server.MCPServer, registry *app.Registry) {
	s.AddTool(
		mcp.NewTool(ToolListTasks,
			mcp.WithDescription("List all tracked tasks with their IDE, project, status, progress and owning source. "+
				"Use the returned id with update_task_status and update_task_progress."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			snap := registry.List()
			views := make([]taskView, 0, len(snap.Tasks))
			for _, t := range snap.Tasks {
				views = append(views, taskView{
					ID:          t.ID,
					IDE:         t.IDE,
					WindowTitle: t.WindowTitle,
					ProjectPath: t.ProjectPath,
					ActiveFile:  t.ActiveFile,
					Status:      t.Status,
					Progress:    t.Progress,
					Source:      t.Source,
				})
			}
			b, err := json.MarshalIndent(views, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("encode tasks: %w", err)
			}
			return mcp.NewToolResultText(string(b)), nil
		},
	)
}

func registerUpdateTaskStatus(s *server.MCPServer, registry *app.Registry, logger *log.Logger) {
	statuses := make([]string, len(domain.Statuses))
	for i, st := range domain.Statuses {
		statuses[i] = string(st)
	}
	s.AddTool(
		mcp.NewTool(ToolUpdateTaskStatus,
			mcp.WithDescription("Report the status of a task. Call with running when you start, completed when done, "+
				"error on failure. Ignored when a CLI hook owns the task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id from list_tasks")),
			mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum(statuses...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			taskID, err := requireString(args, "task_id")
			if err != nil {
				return nil, err
			}
			raw, err := requireString(args, "status")
			if err != nil {
				return nil, err
			}
			st, err := domain.ParseStatus(raw)
			if err != nil {
				return nil, invalidParams(err)
			}

			out, err := registry.UpdateState(taskID, app.StateChange{Source: domain.SourceMCP, Status: &st})
			if err != nil {
				return nil, mapRegistryError(taskID, err)
			}
			if !out.Applied() {
				return mcp.NewToolResultText(ignoredText(taskID, out)), nil
			}
			logger.Info("task status updated via mcp", "task_id", taskID, "from", out.Previous, "to", out.Task.Status)
			return mcp.NewToolResultText(fmt.Sprintf("Task %s status updated: %s -> %s", taskID, out.Previous, out.Task.Status)), nil
		},
	)
}

func registerUpdateTaskProgress(s *server.MCPServer, registry *app.Registry, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool(ToolUpdateTaskProgress,
			mcp.WithDescription("Report progress on a task: a percentage, the current stage, or an estimated total duration. "+
				"Ignored when a CLI hook owns the task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id from list_tasks")),
			mcp.WithNumber("progress", mcp.Description("Progress percentage, clamped to 0-100"), mcp.Min(0), mcp.Max(100)),
			mcp.WithString("current_stage", mcp.Description("Short description of the current stage")),
			mcp.WithNumber("estimated_duration", mcp.Description("Estimated total duration in milliseconds"), mcp.Min(0)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			taskID, err := requireString(args, "task_id")
			if err != nil {
				return nil, err
			}
			ch := app.StateChange{Source: domain.SourceMCP}
			progress, err := optionalInt(args, "progress")
			if err != nil {
				return nil, err
			}
			if progress != nil {
				p := int(*progress)
				ch.Progress = &p
			}
			if ch.EstimatedDuration, err = optionalInt(args, "estimated_duration"); err != nil {
				return nil, err
			}
			if ch.CurrentStage, err = optionalString(args, "current_stage"); err != nil {
				return nil, err
			}

			out, err := registry.UpdateState(taskID, ch)
			if err != nil {
				return nil, mapRegistryError(taskID, err)
			}
			if !out.Applied() {
				return mcp.NewToolResultText(ignoredText(taskID, out)), nil
			}
			logger.Debug("task progress updated via mcp", "task_id", taskID, "progress", out.Task.Progress)
			return mcp.NewToolResultText(fmt.Sprintf("Task %s progress updated", taskID)), nil
		},
	)
}

func ignoredText(taskID string, out app.Outcome) string {
	return fmt.Sprintf("Ignored: task %s has higher priority source '%s'", taskID, out.Task.Source)
}

// mapRegistryError turns registry failures into -32602 errors for the caller.
func mapRegistryError(taskID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return invalidParams(fmt.Errorf("Task not found: %s", taskID))
	case errors.Is(err, domain.ErrValidation):
		return invalidParams(err)
	default:
		return err
	}
}
