package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jaakkos/agentbar/internal/app"
	"github.com/jaakkos/agentbar/internal/client"
)

func statusCmd(configPath *string) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the merged task view from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = serverURL(*configPath)
			}
			snap, err := client.New(url).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("agentbar is not reachable at %s: %w", url, err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default from config)")
	return cmd
}

func printSnapshot(w io.Writer, snap *app.Snapshot) {
	if snap.TaskCount == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	focused := ""
	if snap.CurrentTask != nil {
		focused = snap.CurrentTask.ID
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tIDE\tSTATUS\tPROGRESS\tSOURCE\tSTAGE")
	for _, t := range snap.Tasks {
		marker := ""
		if t.ID == focused {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			marker, t.ID, t.DisplayName, t.IDE, t.Status, t.Progress, t.Source, strings.TrimSpace(t.CurrentStage))
	}
	tw.Flush()
}
