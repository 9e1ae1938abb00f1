// Package completion provides the shell completion command.
package completion

import (
	"github.com/spf13/cobra"
)

// Supported shells.
const (
	ShellBash       = "bash"
	ShellZsh        = "zsh"
	ShellFish       = "fish"
	ShellPowerShell = "powershell"
)

// NewCommand creates the completion command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:

  $ source <(stocksync completion bash)

  # To load completions for each session, execute once:
  $ stocksync completion bash > /etc/bash_completion.d/stocksync

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ stocksync completion zsh > "${fpath[1]}/_stocksync"

Fish:

  $ stocksync completion fish | source

  # To load completions for each session, execute once:
  $ stocksync completion fish > ~/.config/fish/completions/stocksync.fish

PowerShell:

  PS> stocksync completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{ShellBash, ShellZsh, ShellFish, ShellPowerShell},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			root := cmd.Root()
			switch args[0] {
			case ShellBash:
				return root.GenBashCompletionV2(w, true)
			case ShellZsh:
				return root.GenZshCompletion(w)
			case ShellFish:
				return root.GenFishCompletion(w, true)
			case ShellPowerShell:
				return root.GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}
}
