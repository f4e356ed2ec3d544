package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddCompletionCommand replaces cobra's default completion command with one
// that documents how to load each script.
func AddCompletionCommand(root *cobra.Command) {
	root.CompletionOptions.DisableDefaultCmd = true

	cmd := &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completions",
		Long: `Generate a shell completion script for deskpilot.

To load completions in the current session:
  source <(deskpilot completion bash)
  source <(deskpilot completion zsh)
  deskpilot completion fish | source
  deskpilot completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return fmt.Errorf("invalid argument %q", args[0])
		},
	}
	root.AddCommand(cmd)
}
