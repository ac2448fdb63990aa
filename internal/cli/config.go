package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yuplx-HU/task-executor/internal/output"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the taskexec configuration",
		Long: `Show or change the taskexec configuration.

The configuration is read from --config, $HOME/.taskexec/.taskexec.yaml or
$HOME/.taskexec.yaml. Any key can be overridden by a TASKEXEC_ environment
variable, for example TASKEXEC_DEFAULTS_TIMEOUT=5s or TASKEXEC_JOURNAL_DSN.`,
	}

	cmd.AddCommand(newConfigViewCmd(global))
	cmd.AddCommand(newConfigSetCmd(global))

	return cmd
}

func newConfigViewCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := global.config()
			if err != nil {
				return err
			}

			name := global.outputName()
			format := output.FormatYAML
			if name != "" {
				if format, err = output.ParseFormat(name); err != nil {
					return err
				}
			}
			if format == output.FormatTable {
				format = output.FormatYAML
			}

			return output.NewFormatter(format).Format(cmd.OutOrStdout(), mgr.GetConfig())
		},
	}
}

func newConfigSetCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value and save the file",
		Example: `  # Enforce a 5s deadline per attempt by default
  taskexec config set defaults.timeout 5s

  # Record every batch in a SQLite journal
  taskexec config set journal.dsn ~/.taskexec.db

  # Share a base URL between every http batch
  taskexec config set workloads.http.base_url https://api.example.com`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := global.config()
			if err != nil {
				return err
			}

			if err := mgr.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := mgr.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], mgr.Path())
			return nil
		},
	}
}
