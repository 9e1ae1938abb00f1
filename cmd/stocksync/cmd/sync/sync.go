// Package sync provides the sync command.
package sync

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/alerts"
	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/emoji"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/internal/cmd/table"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/safety"
	"github.com/agentstation/stocksync/pkg/sync"
)

// Flags holds the sync command flags.
type Flags struct {
	DryRun      bool
	Force       bool
	Supplier    string
	Limit       int
	Identifiers []string
	ShowUpdates bool
}

// NewCommand creates the sync command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "core",
		Short:   "Reconcile supplier stock into the catalog",
		Long: `Sync runs every enabled supplier through the reconciliation pipeline:
catalog read, supplier fetch or search, matching, safety checks and the
platform write. Suppliers run one at a time; a failing supplier is logged
and the run continues with the next.

Exit status is 0 when the run succeeded, including runs with not-found,
duplicate or flagged items, and 1 when any hard error was recorded.`,
		Example: `  stocksync sync --dry-run                       # Everything except the platform write
  stocksync sync --supplier acme                 # Only the acme supplier
  stocksync sync --supplier beta --limit 5       # Search only the first 5 identifiers
  stocksync sync --identifier 5901234567890      # Pin the run to one identifier
  stocksync sync --force                         # Disable the safety checks`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "perform every step except the platform write")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "disable safety checks and apply flagged changes")
	cmd.Flags().StringVarP(&flags.Supplier, "supplier", "s", "", "process only this supplier")
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "search at most N identifiers per supplier (testing)")
	cmd.Flags().StringSliceVar(&flags.Identifiers, "identifier", nil, "restrict the run to these EANs or SKUs (repeatable, testing)")
	cmd.Flags().BoolVar(&flags.ShowUpdates, "show-updates", false, "list every quantity change in table output")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	settings, err := app.Settings()
	if err != nil {
		return err
	}
	client, err := app.Platform()
	if err != nil {
		return err
	}

	if flags.Force && !flags.DryRun {
		logger.Warn().Msg("Safety checks disabled; flagged changes will be written")
	}

	orch := sync.New(client, app.Suppliers(), settings.Suppliers,
		sync.WithDryRun(flags.DryRun),
		sync.WithForce(flags.Force),
		sync.WithSupplier(flags.Supplier),
		sync.WithLimit(flags.Limit),
		sync.WithIdentifiers(flags.Identifiers...),
		sync.WithSafety(settings.SafetyLimits),
	)

	opts := orch.Options()
	logger.Debug().
		Bool("dry_run", opts.DryRun).
		Bool("force", opts.Force).
		Str("supplier", opts.Supplier).
		Int("limit", opts.Limit).
		Strs("identifiers", opts.Identifiers).
		Msg("Starting sync")

	res, runErr := orch.Run(ctx)

	// The log is persisted even when the run failed fatally.
	path, saveErr := res.Log.Save(settings.LogDir)
	if saveErr != nil {
		logger.Error().Err(saveErr).Str("dir", settings.LogDir).Msg("Failed to save run log")
	} else {
		logger.Info().Str("path", path).Msg("Run log saved")
	}
	sendReport(cmd, app, res.Log)

	noColor, _ := cmd.Flags().GetBool("no-color")
	if err := render(cmd.OutOrStdout(), app.OutputFormat(), res, path, flags.ShowUpdates, noColor); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	if status := res.ExitStatus(); status == runlog.Failure {
		return &application.ExitError{Status: status, Path: path}
	}
	return nil
}

// sendReport e-mails the run report when configured. Delivery failures are
// logged and never change the exit status.
func sendReport(cmd *cobra.Command, app application.Application, log *runlog.Log) {
	logger := app.Logger()
	n, err := app.Notifier()
	if err != nil {
		logger.Error().Err(err).Msg("E-mail notifier unavailable")
		return
	}
	if n == nil {
		return
	}
	ctx := logging.WithLogger(cmd.Context(), logger)
	if _, err := n.Notify(ctx, log); err != nil {
		logger.Error().Err(err).Msg("Failed to send e-mail report")
	}
}

func render(w io.Writer, format string, res *sync.Result, path string, showUpdates, noColor bool) error {
	f := output.DetectFormat(format)
	if !f.IsTable() {
		return output.NewFormatter(f).Format(w, res.Log)
	}

	log := res.Log
	tables := []table.Data{
		table.SummaryToTableData(log),
		table.SuppliersToTableData(log.Suppliers),
	}
	if showUpdates {
		tables = append(tables, table.UpdatesToTableData(log.Updates))
	}
	if len(log.Errors) > 0 {
		tables = append(tables, table.ErrorsToTableData(log.Errors))
	}
	if err := output.Tables(w, tables...); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, safety.FormatFlagged(res.Flagged())); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", emoji.Info, res.Summary())
	if path != "" {
		fmt.Fprintf(w, "%s Run log: %s\n", emoji.Info, path)
	}
	return alerts.NewWriter(w, noColor).Write(alerts.FromLog(log)...)
}
