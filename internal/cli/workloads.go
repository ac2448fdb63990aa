package cli

import (
	"github.com/spf13/cobra"

	"github.com/Yuplx-HU/task-executor/internal/output"
	"github.com/Yuplx-HU/task-executor/internal/workload"
)

func newWorkloadsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workloads",
		Aliases: []string{"workload", "wl"},
		Short:   "List built-in workloads",
		Long: `List the workloads a batch can run.

The workload of a batch is named in the manifest or with 'taskexec run --workload'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := global.formatter()
			if err != nil {
				return err
			}

			infos := workload.List()
			out := cmd.OutOrStdout()

			if _, ok := formatter.(*output.TableFormatter); !ok {
				return formatter.Format(out, infos)
			}

			table := newTable(out, "Name", "Description")
			for _, info := range infos {
				table.Append([]string{info.Name, info.Description})
			}
			table.Render()
			return nil
		},
	}

	return cmd
}
