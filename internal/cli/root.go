package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Yuplx-HU/task-executor/internal/config"
	"github.com/Yuplx-HU/task-executor/internal/output"
	"github.com/Yuplx-HU/task-executor/pkg/version"
)

// globalOptions carries state shared by every subcommand of one root command
type globalOptions struct {
	cfgFile string
	manager *config.Manager
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "taskexec",
		Short: "taskexec - Batch task executor with timeouts and retry rounds",
		Long: `taskexec runs a batch of independent tasks through a built-in workload,
sequentially or concurrently, with an optional per-task timeout.

Every attempt is classified as success, timeout or error. Failures whose kind is
selected by --retry-on are dispatched again in further rounds until they succeed
or the retry budget is exhausted. Outcomes can be recorded in a SQL journal.`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.taskexec.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show progress and debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.SetVersionTemplate(version.Get().Short() + "\n")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newWorkloadsCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// initConfig loads the configuration file and sets up logging
func (o *globalOptions) initConfig(cmd *cobra.Command) error {
	// TASKEXEC_OUTPUT, TASKEXEC_VERBOSE and TASKEXEC_NO_COLOR stand in for the flags
	viper.SetEnvPrefix("TASKEXEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	o.manager = config.NewManager(o.cfgFile)
	if _, err := o.manager.Load(); err != nil {
		return err
	}

	setupLogging(o.verbose(), o.noColor())

	if path := o.manager.Path(); path != "" {
		slog.Debug("loaded configuration", "file", path)
	}
	return nil
}

// verbose reports whether -v was given
func (o *globalOptions) verbose() bool {
	return viper.GetBool("verbose")
}

// noColor combines the --no-color flag with the configured default
func (o *globalOptions) noColor() bool {
	if viper.GetBool("no-color") {
		return true
	}
	return o.manager != nil && o.manager.GetConfig().Defaults.NoColor
}

// outputName returns the -o value, empty when not given
func (o *globalOptions) outputName() string {
	return viper.GetString("output")
}

// formatter builds the output formatter from -o, falling back to the configured default
func (o *globalOptions) formatter(extra ...output.Option) (output.Formatter, error) {
	name := o.outputName()
	if name == "" && o.manager != nil {
		name = o.manager.GetConfig().Defaults.OutputFormat
	}

	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	opts := append([]output.Option{output.WithNoColor(o.noColor())}, extra...)
	return output.NewFormatter(format, opts...), nil
}

// config returns the loaded configuration manager
func (o *globalOptions) config() (*config.Manager, error) {
	if o.manager == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return o.manager, nil
}

// setupLogging configures structured logging with slog
func setupLogging(verbose, noColor bool) {
	// Routine batch logs stay quiet unless -v is given
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if noColor {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))

	if verbose {
		slog.Debug("verbose logging enabled")
	}
}
