package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for restcheck.

To load completions:

Bash:
  $ source <(restcheck completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ restcheck completion bash > /etc/bash_completion.d/restcheck
  # macOS:
  $ restcheck completion bash > $(brew --prefix)/etc/bash_completion.d/restcheck

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ restcheck completion zsh > "${fpath[1]}/_restcheck"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ restcheck completion fish | source

  # To load completions for each session, execute once:
  $ restcheck completion fish > ~/.config/fish/completions/restcheck.fish

PowerShell:
  PS> restcheck completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> restcheck completion powershell > restcheck.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  usageArgs(cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
