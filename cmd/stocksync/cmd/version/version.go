// Package version provides the version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/cmd/output"
)

// Info is the build information printed by the command.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	BuiltBy   string `json:"built_by" yaml:"built_by"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// NewCommand creates the version command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version information for the stocksync CLI.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := Info{
				Version:   app.Version(),
				Commit:    app.Commit(),
				Date:      app.Date(),
				BuiltBy:   app.BuiltBy(),
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}

			w := cmd.OutOrStdout()
			if f := output.Format(app.OutputFormat()); f != "" && !f.IsTable() {
				return output.NewFormatter(f).Format(w, info)
			}

			fmt.Fprintf(w, "stocksync version %s\n", info.Version)
			fmt.Fprintf(w, "commit: %s\n", info.Commit)
			fmt.Fprintf(w, "built: %s\n", info.Date)
			fmt.Fprintf(w, "built by: %s\n", info.BuiltBy)
			fmt.Fprintf(w, "go version: %s\n", info.GoVersion)
			fmt.Fprintf(w, "platform: %s\n", info.Platform)
			return nil
		},
	}
}
