package cli

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tallybridge/internal/api"
	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/metrics"
	"github.com/roach88/tallybridge/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API",
		Long: `Run the backend ingestion API.

Clients authenticate with a bearer token issued by "tallybridge client register".
Admin routes (/clients, /dashboard) are mounted only when ADMIN_TOKEN or
server.admin_token is set.

Example:
  tallybridge serve --addr :8000 --db ./backend.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to backend database (overrides server.db_path)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.prepare(cmd)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Database != "" {
		cfg.Server.DBPath = opts.Database
	}

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeStore(st, logger)

	schema, err := ingest.DefaultSchema()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load voucher schema", err)
	}
	svc := ingest.NewService(st, schema, ingest.WithLogger(logger))

	metrics.Register(prometheus.DefaultRegisterer)
	gin.SetMode(gin.ReleaseMode)

	routerOpts := []api.Option{api.WithLogger(logger)}
	if cfg.Server.AdminToken != "" {
		routerOpts = append(routerOpts, api.WithAdminToken(cfg.Server.AdminToken))
	} else {
		logger.Warn("admin token not set, admin routes disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewBackendRouter(svc, st, routerOpts...),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	serveHTTP(gctx, g, srv, logger)

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped")
	return nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}
