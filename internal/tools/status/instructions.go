package status

// InstructionsText is returned to clients on initialize.
func InstructionsText() string {
	return `agentbar tracks the status of AI coding tasks across IDE windows.

Use list_tasks to see every task with its id, IDE, project, status, progress and owning source.
Use update_task_status with a task_id from list_tasks to report your state:
  running when you start working, completed when done, error on failure, cancelled if stopped.
Use update_task_progress to report progress (0-100), the current stage, or an estimated duration in ms.

Writes from this channel are attributed to source "mcp". A task currently owned by a CLI hook
(source "hook") outranks MCP; such writes are ignored and the result says so.`
}
