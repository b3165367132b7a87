package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tallybridge/internal/ingest"
	"github.com/roach88/tallybridge/internal/store"
)

// ClientOptions holds flags shared by the client subcommands.
type ClientOptions struct {
	*RootOptions
	Database string
}

// NewClientCommand creates the client command group.
func NewClientCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClientOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage backend clients",
		Long: `Manage the backend's client registry directly on its database.

Each client has a bearer token used for /upload_voucher, /tasks and
/sync_status.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to backend database (overrides server.db_path)")

	cmd.AddCommand(newClientRegisterCommand(opts))
	cmd.AddCommand(newClientListCommand(opts))

	return cmd
}

func (o *ClientOptions) service(cmd *cobra.Command) (*ingest.Service, func(), error) {
	cfg, logger, err := o.prepare(cmd)
	if err != nil {
		return nil, nil, err
	}
	if o.Database != "" {
		cfg.Server.DBPath = o.Database
	}

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	schema, err := ingest.DefaultSchema()
	if err != nil {
		closeStore(st, logger)
		return nil, nil, WrapExitError(ExitFailure, "failed to load voucher schema", err)
	}
	return ingest.NewService(st, schema, ingest.WithLogger(logger)), func() { closeStore(st, logger) }, nil
}

// registration is the printed result of client register. Unlike
// model.Client it carries the token.
type registration struct {
	ClientID    string `json:"client_id"`
	CompanyName string `json:"company_name,omitempty"`
	Token       string `json:"token"`
}

func (r registration) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "client: %s\ntoken:  %s\n", r.ClientID, r.Token)
	return err
}

func newClientRegisterCommand(opts *ClientOptions) *cobra.Command {
	var company string

	cmd := &cobra.Command{
		Use:   "register <client-id>",
		Short: "Register a client and print its token",
		Long: `Register a client and print its bearer token.

Registering an existing client prints its current token; a non-empty
--company replaces the stored company name.

Example:
  tallybridge client register acme --company "Acme Traders"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := opts.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			c, err := svc.Register(commandContext(cmd), args[0], company)
			if err != nil {
				if ingest.IsValidation(err) {
					return WrapExitError(ExitCommandError, "invalid client", err)
				}
				return WrapExitError(ExitFailure, "failed to register client", err)
			}
			return opts.formatter(cmd).Success(registration{
				ClientID:    c.ClientID,
				CompanyName: c.CompanyName,
				Token:       c.Token,
			})
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "company name")

	return cmd
}

// clientListing is the output of client list.
type clientListing ingest.Dashboard

func (l clientListing) renderText(w io.Writer) error {
	if len(l.Clients) == 0 {
		_, err := fmt.Fprintln(w, "no clients registered")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLIENT\tCOMPANY\tLAST SYNC\tLAST TALLY ACCESS\tREJECTED")
	for _, c := range l.Clients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			c.ClientID, orDash(c.CompanyName), formatTime(c.LastSync), formatTime(c.LastTallyAccess), len(c.Rejected))
	}
	return tw.Flush()
}

func newClientListCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List clients with sync status and rejected uploads",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := opts.service(cmd)
			if err != nil {
				return err
			}
			defer done()

			d, err := svc.Dashboard(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list clients", err)
			}
			f := opts.formatter(cmd)
			f.VerboseLog("%d client(s)", len(d.Clients))
			return f.Success(clientListing(d))
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
