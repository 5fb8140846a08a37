package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaakkos/agentbar/internal/client"
	"github.com/jaakkos/agentbar/internal/domain"
)

// hookCmd reports state from a CLI agent hook (e.g. a Claude Code Stop hook).
// Writes carry source=hook and target the task by project path.
func hookCmd(configPath *string) *cobra.Command {
	var (
		url         string
		projectPath string
		ide         string
		statusName  string
		progress    int
		stage       string
	)
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Report task state from a CLI agent hook",
		Example: `  agentbar hook --status running
  agentbar hook --status completed --project-path ~/src/app --ide Cursor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectPath == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				projectPath = wd
			}
			update := client.StateUpdate{
				ProjectPath: projectPath,
				IDE:         ide,
				Source:      string(domain.SourceHook),
			}
			if statusName != "" {
				st, err := domain.ParseStatus(statusName)
				if err != nil {
					return err
				}
				s := string(st)
				update.Status = &s
			}
			if cmd.Flags().Changed("progress") {
				p := domain.ClampProgress(progress)
				update.Progress = &p
			}
			if cmd.Flags().Changed("stage") {
				update.CurrentStage = &stage
			}
			if update.Status == nil && update.Progress == nil && update.CurrentStage == nil {
				return fmt.Errorf("nothing to report: pass --status, --progress or --stage")
			}

			if url == "" {
				url = serverURL(*configPath)
			}
			resp, err := client.New(url).UpdateStateByPath(cmd.Context(), update)
			if err != nil {
				return err
			}
			if resp.Status != "ok" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Status, resp.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default from config)")
	cmd.Flags().StringVar(&projectPath, "project-path", "", "project directory of the task (default: current directory)")
	cmd.Flags().StringVar(&ide, "ide", "", "only match tasks from this IDE")
	cmd.Flags().StringVar(&statusName, "status", "", "new status: armed, running, completed, error, cancelled")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress percentage (0-100)")
	cmd.Flags().StringVar(&stage, "stage", "", "current stage description")
	return cmd
}
