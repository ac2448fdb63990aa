package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command for generating shell completions
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for taskexec.

The completion script must be sourced to provide completions. After generating the
completion script, follow the instructions for your shell:

Bash:
  $ source <(taskexec completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ taskexec completion bash > /etc/bash_completion.d/taskexec
  # macOS:
  $ taskexec completion bash > $(brew --prefix)/etc/bash_completion.d/taskexec

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ taskexec completion zsh > "${fpath[1]}/_taskexec"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ taskexec completion fish | source

  # To load completions for each session, execute once:
  $ taskexec completion fish > ~/.config/fish/completions/taskexec.fish

PowerShell:
  PS> taskexec completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> taskexec completion powershell > taskexec.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Completion scripts need no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, args[0])
		},
	}

	return cmd
}

// runCompletion generates the completion script for the specified shell
func runCompletion(cmd *cobra.Command, shell string) error {
	out := cmd.OutOrStdout()

	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletionV2(out, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell type %q", shell)
	}
}
