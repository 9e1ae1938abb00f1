package app

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/cmd/stocksync/cmd/check"
	"github.com/agentstation/stocksync/cmd/stocksync/cmd/completion"
	"github.com/agentstation/stocksync/cmd/stocksync/cmd/report"
	"github.com/agentstation/stocksync/cmd/stocksync/cmd/set"
	"github.com/agentstation/stocksync/cmd/stocksync/cmd/suppliers"
	synccmd "github.com/agentstation/stocksync/cmd/stocksync/cmd/sync"
	"github.com/agentstation/stocksync/cmd/stocksync/cmd/version"
	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/pkg/logging"
)

// Execute runs the stocksync CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "stocksync",
		Short:   "Supplier inventory sync for the commerce platform",
		Version: a.version,
		Long: `Stocksync reconciles supplier stock levels into the commerce platform catalog.

For every configured supplier it reads the tagged slice of the catalog,
collects the supplier's stock, matches records by EAN then SKU, holds back
suspicious drops for review and writes the remaining changes. Every run
is recorded as sync_<timestamp>.json in the log directory.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	rootCmd.PersistentFlags().StringVar(&a.config.ConfigFile, "config", "", "config file (default is ./stocksync.yaml or ./config/stocksync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().BoolVar(&a.config.NoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&a.config.Format, "format", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("stocksync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// These flags are defined as persistent flags in createRootCommand, so errors indicate programming errors
	verbose := mustGetBool(cmd, "verbose")
	quiet := mustGetBool(cmd, "quiet")
	noColor := mustGetBool(cmd, "no-color")
	format := mustGetString(cmd, "format")
	logLevel := mustGetString(cmd, "log-level")

	if _, err := output.ParseFormat(format); err != nil {
		return err
	}

	a.config.UpdateFromFlags(verbose, quiet, noColor, format, logLevel)

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger
	logging.SetDefault(logger)
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(synccmd.NewCommand(a))
	rootCmd.AddCommand(check.NewCommand(a))
	rootCmd.AddCommand(report.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(suppliers.NewCommand(a))
	rootCmd.AddCommand(set.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(version.NewCommand(a))
	rootCmd.AddCommand(completion.NewCommand())
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *application.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code()
	}
	return 1
}

// ExitOnError prints an error and exits with its exit code.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(ExitCode(err))
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
