// Package suppliers provides the suppliers command.
package suppliers

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/output"
	"github.com/agentstation/stocksync/internal/cmd/table"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// View is the machine readable form of a configured supplier. Credentials
// are never included.
type View struct {
	Name      string `json:"name" yaml:"name"`
	Driver    string `json:"driver" yaml:"driver"`
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Tag       string `json:"tag,omitempty" yaml:"tag,omitempty"`
	EnvPrefix string `json:"env_prefix,omitempty" yaml:"env_prefix,omitempty"`
	Known     bool   `json:"driver_registered" yaml:"driver_registered"`
	HasCreds  bool   `json:"credentials_set" yaml:"credentials_set"`
}

// NewCommand creates the suppliers command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "suppliers",
		Aliases: []string{"supplier"},
		GroupID: "management",
		Short:   "List configured suppliers",
		Long: `List the suppliers from the configuration file with their driver,
catalog tag and whether the driver is available in this build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := app.Settings()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if f := output.DetectFormat(app.OutputFormat()); !f.IsTable() {
				return output.NewFormatter(f).Format(w, views(settings.Suppliers, app.KnownDriver))
			}
			return output.Tables(w, table.SupplierConfigsToTableData(settings.Suppliers, app.KnownDriver))
		},
	}
}

func views(configs []suppliers.Config, known func(string) bool) []View {
	out := make([]View, 0, len(configs))
	for _, c := range configs {
		out = append(out, View{
			Name:      c.Name,
			Driver:    c.DriverName(),
			Enabled:   c.Enabled,
			Tag:       c.Tag,
			EnvPrefix: c.EnvPrefix,
			Known:     known(c.DriverName()),
			HasCreds:  c.Username != "" && c.Password != "",
		})
	}
	return out
}
