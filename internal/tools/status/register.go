// Package status exposes the task registry to AI agents as MCP tools and serves them
// over plain JSON-RPC on /mcp.
package status

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/agentbar/internal/app"
)

// ServerName is reported as serverInfo.name on initialize.
const ServerName = "agentbar"

// Tool names.
const (
	ToolListTasks          = "list_tasks"
	ToolUpdateTaskStatus   = "update_task_status"
	ToolUpdateTaskProgress = "update_task_progress"
)

// NewServer builds the MCP server with the status tools registered and the error-code
// mapping hook installed.
func NewServer(registry *app.Registry, logger *log.Logger, version string) *server.MCPServer {
	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Debug("tool call", "tool", message.Params.Name, "id", id)
		}
	})
	hooks.AddOnError(recordFault)

	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithInstructions(InstructionsText()),
		server.WithToolCapabilities(false),
		server.WithHooks(hooks),
	)
	Register(s, registry, logger)
	return s
}

// Register registers the status tools with the mcp-go server.
func Register(s *server.MCPServer, registry *app.Registry, logger *log.Logger) {
	registerListTasks(s, registry)
	registerUpdateTaskStatus(s, registry, logger)
	registerUpdateTaskProgress(s, registry, logger)
}
