package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tallybridge/internal/config"
	"github.com/roach88/tallybridge/internal/syncagent"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Types       []string
	RequestsDir string
	Tally       string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Export data from the terminal and upload it to the backend",
		Long: `Run one export pass.

For each sync type (SYNC_TYPES, default "ledgers") the request document
<requests-dir>/<type>.xml is posted to the terminal and the response is
uploaded to the backend as an xml task. Types without a request document are
skipped. The pass ends by reporting /sync_status with whether the terminal
answered.

Examples:
  tallybridge sync
  tallybridge sync --types ledgers,vouchers --requests ./requests`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Types, "types", nil, "sync types (overrides agent.sync_types)")
	cmd.Flags().StringVar(&opts.RequestsDir, "requests", "", "request document directory (overrides agent.requests_dir)")
	cmd.Flags().StringVar(&opts.Tally, "tally", "", "terminal URL (overrides terminal.url)")

	return cmd
}

// syncSummary is the printed result of a sync pass.
type syncSummary struct {
	syncagent.Report
}

func (s syncSummary) renderText(w io.Writer) error {
	if !s.TallyAccessOK {
		_, err := fmt.Fprintln(w, "terminal unreachable, nothing exported")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tRESULT")
	for _, r := range s.Results {
		var result string
		switch {
		case r.Skipped != "":
			result = "skipped: " + r.Skipped
		case r.Error != "":
			result = "failed: " + r.Error
		default:
			result = fmt.Sprintf("task #%d (%s)", r.TaskID, r.Status)
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Type, result)
	}
	return tw.Flush()
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.prepare(cmd)
	if err != nil {
		return err
	}
	if len(opts.Types) > 0 {
		cfg.Agent.SyncTypes = config.SplitTypes(strings.Join(opts.Types, ","))
	}
	if opts.RequestsDir != "" {
		cfg.Agent.RequestsDir = opts.RequestsDir
	}
	if opts.Tally != "" {
		cfg.Terminal.URL = opts.Tally
	}
	if cfg.Agent.ClientToken == "" {
		logger.Warn("CLIENT_TOKEN not set, backend will refuse uploads")
	}

	backend := syncagent.NewBackend(cfg.Agent.BackendURL, cfg.Agent.ClientID, cfg.Agent.ClientToken, cfg.Agent.UploadTimeout)
	agent := syncagent.New(newTerminal(cfg), backend, cfg.Agent.RequestsDir, cfg.Agent.SyncTypes,
		syncagent.WithLogger(logger))

	report, err := agent.Sync(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "sync failed", err)
	}
	return opts.formatter(cmd).Success(syncSummary{report})
}
