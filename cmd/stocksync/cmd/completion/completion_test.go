package completion

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	root := &cobra.Command{Use: "stocksync"}
	root.AddCommand(NewCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"completion"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{ShellBash, ShellZsh, ShellFish, ShellPowerShell} {
		t.Run(shell, func(t *testing.T) {
			out, err := execute(shell)
			require.NoError(t, err)
			assert.Contains(t, out, "stocksync")
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	_, err := execute("tcsh")
	assert.Error(t, err)

	_, err = execute()
	assert.Error(t, err)
}
