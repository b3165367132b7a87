package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tallybridge/internal/delivery"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
)

// DeliverOptions holds flags for the deliver command.
type DeliverOptions struct {
	*RootOptions
	Kind     string
	Database string
	Tally    string
}

// NewDeliverCommand creates the deliver command.
func NewDeliverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeliverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deliver <file|->",
		Short: "Deliver one document to the terminal, or queue it",
		Long: `Deliver one document to the accounting terminal.

The terminal is probed first. If it answers, the document is sent once and the
terminal's response is printed. Otherwise, or if the send fails, the document
is stored in the durable queue for the retry worker. Use "-" to read stdin.

Examples:
  tallybridge deliver voucher.xml
  cat voucher.xml | tallybridge deliver - --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeliver(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", model.DefaultKind, "payload kind recorded with queued items")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to queue database (overrides queue.db_path)")
	cmd.Flags().StringVar(&opts.Tally, "tally", "", "terminal URL (overrides terminal.url)")

	return cmd
}

// deliverResult is the printed outcome of a delivery.
type deliverResult struct {
	delivery.Outcome
}

func (r deliverResult) renderText(w io.Writer) error {
	if r.Status == delivery.OutcomeQueued {
		_, err := fmt.Fprintf(w, "queued as #%d\n", r.QueueID)
		return err
	}
	_, err := fmt.Fprintf(w, "delivered\n%s\n", strings.TrimRight(r.Response, "\n"))
	return err
}

func runDeliver(opts *DeliverOptions, source string, cmd *cobra.Command) error {
	cfg, logger, err := opts.prepare(cmd)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Queue.DBPath = opts.Database
	}
	if opts.Tally != "" {
		cfg.Terminal.URL = opts.Tally
	}

	payload, err := readPayload(source, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read payload", err)
	}
	if strings.TrimSpace(payload) == "" {
		return NewExitError(ExitCommandError, "payload is empty")
	}

	q, err := store.Open(cfg.Queue.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	defer closeStore(q, logger)

	term := newTerminal(cfg)
	front := delivery.NewFront(q, term, term, delivery.WithFrontLogger(logger))

	outcome, err := front.DeliverOrQueue(commandContext(cmd), payload, opts.Kind)
	if err != nil {
		return WrapExitError(ExitFailure, "delivery failed", err)
	}

	return opts.formatter(cmd).Success(deliverResult{outcome})
}

func readPayload(source string, stdin io.Reader) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(source)
	return string(data), err
}
