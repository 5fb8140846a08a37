package app

import (
	"fmt"

	"github.com/jaakkos/agentbar/internal/domain"
)

var (
	errMissingTaskID      = fmt.Errorf("%w: task_id is required", domain.ErrValidation)
	errMissingProjectPath = fmt.Errorf("%w: project_path is required", domain.ErrValidation)
)

func taskNotFound(id string) error {
	return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
}

func pathNotFound(projectPath, ide string) error {
	if ide != "" {
		return fmt.Errorf("%w: no task for project_path %s (ide %s)", domain.ErrTaskNotFound, projectPath, ide)
	}
	return fmt.Errorf("%w: no task for project_path %s", domain.ErrTaskNotFound, projectPath)
}
