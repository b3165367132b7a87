package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/syncagent"
)

// NewTasksCommand creates the tasks command.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List this client's pending tasks on the backend",
		Long: `Fetch the pending tasks the backend holds for CLIENT_ID, oldest first.

Rejected tasks are not listed. The request authenticates with CLIENT_TOKEN.

Examples:
  tallybridge tasks
  tallybridge tasks --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := rootOpts.prepare(cmd)
			if err != nil {
				return err
			}

			backend := syncagent.NewBackend(cfg.Agent.BackendURL, cfg.Agent.ClientID, cfg.Agent.ClientToken, cfg.Agent.UploadTimeout)
			tasks, err := backend.PendingTasks(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to fetch tasks", err)
			}
			return rootOpts.formatter(cmd).Success(taskListing(tasks))
		},
	}
}

// taskListing is the printed result of tasks.
type taskListing []model.Task

func (l taskListing) renderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "no pending tasks")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tBYTES")
	for _, t := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", t.ID, t.DataType, formatTime(&t.CreatedAt), len(t.VoucherData))
	}
	return tw.Flush()
}
