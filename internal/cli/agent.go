package cli

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roach88/tallybridge/internal/api"
	"github.com/roach88/tallybridge/internal/config"
	"github.com/roach88/tallybridge/internal/delivery"
	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/store"
	"github.com/roach88/tallybridge/internal/terminal"
)

// AgentOptions holds flags for the agent command.
type AgentOptions struct {
	*RootOptions
	Listen string
}

// NewAgentCommand creates the agent command.
func NewAgentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AgentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the edge delivery agent",
		Long: `Run the edge agent next to the accounting terminal.

The agent accepts documents on POST /deliver, delivers them to the terminal
when it answers, and queues them otherwise. A retry worker drains the queue
every retry interval (RETRY_INTERVAL, default 15m).

Example:
  tallybridge agent --listen 127.0.0.1:8765
  TALLY_URL=http://10.0.0.5:9000 tallybridge agent -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "intake listen address (overrides agent.listen)")

	return cmd
}

func runAgent(opts *AgentOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.prepare(cmd)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Agent.Listen = opts.Listen
	}

	q, err := store.Open(cfg.Queue.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	defer closeStore(q, logger)

	term := newTerminal(cfg)
	front := delivery.NewFront(q, term, term, delivery.WithFrontLogger(logger))
	worker := delivery.NewWorker(q, term, term,
		delivery.WithInterval(cfg.Retry.Interval),
		delivery.WithSendRate(rate.Limit(cfg.Retry.SendRate)),
		delivery.WithLogger(logger),
	)

	metrics.Register(prometheus.DefaultRegisterer)
	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:              cfg.Agent.Listen,
		Handler:           api.NewEdgeRouter(front, q, api.WithLogger(logger)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Info("agent starting",
		"terminal", cfg.Terminal.URL,
		"queue_db", cfg.Queue.DBPath,
		"retry_interval", cfg.Retry.Interval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	serveHTTP(gctx, g, srv, logger)

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "agent error", err)
	}
	logger.Info("agent stopped")
	return nil
}

func newTerminal(cfg config.Config) *terminal.Client {
	return terminal.New(cfg.Terminal.URL,
		terminal.WithProbeTimeout(cfg.Terminal.ProbeTimeout),
		terminal.WithSendTimeout(cfg.Terminal.SendTimeout),
	)
}
