// Package report provides the report command.
package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/alerts"
	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/emoji"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/internal/cmd/table"
	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/pkg/runlog"
)

// NewCommand creates the report command.
func NewCommand(app application.Application) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "report [FILE]",
		GroupID: "core",
		Short:   "Show a saved run log",
		Long: `Report renders a saved sync_<timestamp>.json run log. Without a file
argument the newest log in the log directory is shown.`,
		Example: `  stocksync report                                  # Latest run
  stocksync report logs/sync_2024-05-01_08-30-00.json
  stocksync report -o yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolvePath(app, dir, args)
			if err != nil {
				return err
			}
			log, err := runlog.Load(path)
			if err != nil {
				return err
			}
			app.Logger().Debug().Str("path", path).Msg("Loaded run log")

			w := cmd.OutOrStdout()
			if f := output.DetectFormat(app.OutputFormat()); !f.IsTable() {
				return output.NewFormatter(f).Format(w, log)
			}

			fmt.Fprintf(w, "%s %s\n\n", emoji.Info, path)
			err = output.Tables(w,
				table.SummaryToTableData(log),
				table.SuppliersToTableData(log.Suppliers),
				table.UpdatesToTableData(log.Updates),
				table.FlaggedToTableData(log.Flagged),
				table.NotFoundToTableData(log.NotFound),
				table.DuplicatesToTableData(log.Duplicates),
				table.ErrorsToTableData(log.Errors),
			)
			if err != nil {
				return err
			}
			noColor, _ := cmd.Flags().GetBool("no-color")
			return alerts.NewWriter(w, noColor).Write(alerts.FromLog(log)...)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "log directory to search (default from config, else ./logs)")

	return cmd
}

func resolvePath(app application.Application, dir string, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if dir == "" {
		dir = config.DefaultLogDir
		if settings, err := app.Settings(); err == nil && settings.LogDir != "" {
			dir = settings.LogDir
		} else if err != nil {
			app.Logger().Debug().Err(err).Msg("No usable config; using default log directory")
		}
	}
	return runlog.Latest(dir)
}
