package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/tallybridge/internal/delivery"
	"github.com/roach88/tallybridge/internal/model"
	"github.com/roach88/tallybridge/internal/store"
)

// QueueOptions holds flags shared by the queue subcommands.
type QueueOptions struct {
	*RootOptions
	Database string
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the outbound queue",
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to queue database (overrides queue.db_path)")

	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueDrainCommand(opts))

	return cmd
}

func (o *QueueOptions) open(cmd *cobra.Command) (*store.Store, func(), error) {
	cfg, logger, err := o.prepare(cmd)
	if err != nil {
		return nil, nil, err
	}
	if o.Database != "" {
		cfg.Queue.DBPath = o.Database
	}
	q, err := store.Open(cfg.Queue.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return q, func() { closeStore(q, logger) }, nil
}

// queueRow is one queue item without its payload.
type queueRow struct {
	ID          int64             `json:"id"`
	Status      model.QueueStatus `json:"status"`
	Kind        string            `json:"kind"`
	Bytes       int               `json:"bytes"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// queueListing is the output of queue list.
type queueListing struct {
	Pending  int        `json:"pending"`
	Complete int        `json:"complete"`
	Items    []queueRow `json:"items"`
}

func (l queueListing) renderText(w io.Writer) error {
	if len(l.Items) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tKIND\tBYTES")
		for _, r := range l.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", r.ID, r.Status, r.Kind, r.Bytes)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "%d pending, %d complete\n", l.Pending, l.Complete)
	return err
}

func newQueueListCommand(opts *QueueOptions) *cobra.Command {
	var (
		all   bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued documents",
		Long: `List queued documents in delivery order.

Only pending items are shown unless --all is given.

Examples:
  tallybridge queue list
  tallybridge queue list --all --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(opts, all, limit, cmd)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include delivered items")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum items to show with --all (0 = no limit)")

	return cmd
}

func runQueueList(opts *QueueOptions, all bool, limit int, cmd *cobra.Command) error {
	q, done, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer done()

	ctx := commandContext(cmd)

	var items []model.QueueItem
	if all {
		items, err = q.ListQueue(ctx, limit)
	} else {
		items, err = q.ListPending(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list queue", err)
	}

	pending, complete, err := q.QueueStats(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to count queue", err)
	}

	listing := queueListing{Pending: pending, Complete: complete, Items: make([]queueRow, 0, len(items))}
	for _, it := range items {
		listing.Items = append(listing.Items, queueRow{
			ID:          it.ID,
			Status:      it.Status,
			Kind:        it.Kind,
			Bytes:       len(it.Payload),
			CreatedAt:   it.CreatedAt,
			CompletedAt: it.CompletedAt,
		})
	}

	return opts.formatter(cmd).Success(listing)
}

// drainReport is the printed result of queue drain.
type drainReport struct {
	delivery.DrainResult
}

func (r drainReport) renderText(w io.Writer) error {
	var err error
	switch {
	case r.Pending == 0:
		_, err = fmt.Fprintln(w, "queue is empty")
	case !r.Probed:
		_, err = fmt.Fprintf(w, "pass cancelled, %d pending\n", r.Pending)
	case !r.Reachable:
		_, err = fmt.Fprintf(w, "terminal unreachable, %d pending\n", r.Pending)
	case r.Failure != "":
		_, err = fmt.Fprintf(w, "delivered %d of %d, stopped at #%d: %s\n",
			len(r.Delivered), r.Pending, r.FailedID, r.Failure)
	default:
		_, err = fmt.Fprintf(w, "delivered %d of %d\n", len(r.Delivered), r.Pending)
	}
	return err
}

func newQueueDrainCommand(opts *QueueOptions) *cobra.Command {
	var tally string

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run one retry pass now",
		Long: `Run one retry pass against the terminal.

The pass probes the terminal once, then sends pending items in id order and
stops at the first failure, exactly as the agent's retry worker does.

Do not run this while an agent is draining the same queue.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueDrain(opts, tally, cmd)
		},
	}

	cmd.Flags().StringVar(&tally, "tally", "", "terminal URL (overrides terminal.url)")

	return cmd
}

func runQueueDrain(opts *QueueOptions, tally string, cmd *cobra.Command) error {
	cfg, logger, err := opts.prepare(cmd)
	if err != nil {
		return err
	}
	if opts.Database != "" {
		cfg.Queue.DBPath = opts.Database
	}
	if tally != "" {
		cfg.Terminal.URL = tally
	}

	q, err := store.Open(cfg.Queue.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	defer closeStore(q, logger)

	term := newTerminal(cfg)
	worker := delivery.NewWorker(q, term, term,
		delivery.WithSendRate(rate.Limit(cfg.Retry.SendRate)),
		delivery.WithLogger(logger),
	)

	res, err := worker.DrainOnce(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitFailure, "drain failed", err)
	}
	return opts.formatter(cmd).Success(drainReport{res})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
