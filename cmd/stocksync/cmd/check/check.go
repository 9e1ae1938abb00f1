// Package check provides the check command.
package check

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/emoji"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/internal/cmd/table"
	"github.com/agentstation/stocksync/internal/platform"
)

// Report is what check found out about the platform connection.
type Report struct {
	Shop       platform.Shop     `json:"shop" yaml:"shop"`
	Location   platform.Location `json:"primary_location" yaml:"primary_location"`
	APIVersion string            `json:"api_version" yaml:"api_version"`
}

// NewCommand creates the check command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		GroupID: "core",
		Short:   "Verify platform credentials and the primary location",
		Long: `Check connects to the commerce platform with the configured credentials,
reads the shop record and resolves the location that stock writes target.
Nothing is written.`,
		Example: `  stocksync check
  stocksync check -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			settings, err := app.Settings()
			if err != nil {
				return err
			}
			client, err := app.Platform()
			if err != nil {
				return err
			}

			shop, err := client.Ping(ctx)
			if err != nil {
				return err
			}
			loc, err := client.PrimaryLocation(ctx)
			if err != nil {
				return err
			}
			app.Logger().Debug().Str("shop", shop.Domain).Int64("location_id", loc.ID).Msg("Platform reachable")

			rep := Report{Shop: *shop, Location: loc, APIVersion: settings.Platform.APIVersion}
			w := cmd.OutOrStdout()
			if f := output.DetectFormat(app.OutputFormat()); !f.IsTable() {
				return output.NewFormatter(f).Format(w, rep)
			}
			if err := output.Tables(w, toTableData(rep)); err != nil {
				return err
			}
			fmt.Fprintf(w, "%s Connected to %s\n", emoji.Success, shop.Name)
			return nil
		},
	}
}

func toTableData(rep Report) table.Data {
	return table.Data{
		Title:   "Platform",
		Headers: []string{"Field", "Value"},
		Rows: [][]string{
			{"Shop", rep.Shop.Name},
			{"Domain", rep.Shop.Domain},
			{"API version", rep.APIVersion},
			{"Location", rep.Location.Name},
			{"Location ID", strconv.FormatInt(rep.Location.ID, 10)},
		},
	}
}
