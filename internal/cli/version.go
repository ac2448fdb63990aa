package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Yuplx-HU/task-executor/internal/output"
	"github.com/Yuplx-HU/task-executor/pkg/version"
)

// newVersionCmd creates the version command
func newVersionCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for taskexec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, global)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command, global *globalOptions) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	// Without -o the human-readable block is printed, ignoring the configured default
	name := global.outputName()
	if name == "" {
		fmt.Fprintln(out, info.String())
		return nil
	}

	formatter, err := global.formatter(output.WithNoHeaders(true))
	if err != nil {
		return err
	}

	if _, ok := formatter.(*output.TableFormatter); ok {
		return formatter.Format(out, info.Map())
	}
	return formatter.Format(out, info)
}
