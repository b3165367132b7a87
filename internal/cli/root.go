// Package cli implements the tallybridge command tree.
//
// Edge commands (agent, deliver, queue, sync, tasks) run next to the accounting
// terminal. Backend commands (serve, client) run the ingestion API and manage
// its client registry.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tallybridge/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tallybridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tallybridge",
		Short: "tallybridge - accounting terminal bridge",
		Long: `Bridge between an on-premises accounting terminal and a central ingestion API.

Documents bound for the terminal are delivered immediately when it answers and
are otherwise kept in a durable local queue that a retry worker drains.
Documents bound for the backend are checked for required fields and recorded
as tasks per client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewAgentCommand(opts))
	cmd.AddCommand(NewDeliverCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewClientCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewTasksCommand(opts))

	return cmd
}

func (o *RootOptions) validate() error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig reads .env, the --config file and the environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to read .env", err)
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: text on w, Debug under --verbose.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// prepare is the common preamble of every command: check global flags, load
// configuration and build the logger on the command's stderr.
func (o *RootOptions) prepare(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	if err := o.validate(); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, o.newLogger(cmd.ErrOrStderr()), nil
}
