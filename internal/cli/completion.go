package cli

import (
	"github.com/spf13/cobra"
)

func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for tafarru3.

To load completions:

Bash:
  $ source <(tafarru3 completion bash)

  # To load completions in every new shell, execute once:
  # Linux:
  $ tafarru3 completion bash > /etc/bash_completion.d/tafarru3
  # macOS:
  $ tafarru3 completion bash > $(brew --prefix)/etc/bash_completion.d/tafarru3

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # Then, once:
  $ tafarru3 completion zsh > "${fpath[1]}/_tafarru3"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ tafarru3 completion fish | source

  # Or permanently:
  $ tafarru3 completion fish > ~/.config/fish/completions/tafarru3.fish

PowerShell:
  PS> tafarru3 completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> tafarru3 completion powershell > tafarru3.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(stdout, true)
			case "zsh":
				return root.GenZshCompletion(stdout)
			case "fish":
				return root.GenFishCompletion(stdout, true)
			default:
				return root.GenPowerShellCompletionWithDesc(stdout)
			}
		},
	}
}
