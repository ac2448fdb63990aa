package config

import "time"

// TaskexecConfig represents the taskexec configuration file structure
type TaskexecConfig struct {
	// Defaults contains the executor and output settings used when a run does not override them
	Defaults DefaultsConfig `yaml:"defaults" json:"defaults" mapstructure:"defaults"`

	// Journal selects where outcomes are recorded
	Journal JournalConfig `yaml:"journal" json:"journal" mapstructure:"journal"`

	// Workloads maps a workload name to parameters shared by every task of that workload.
	// Manifest shared parameters take precedence.
	Workloads map[string]map[string]any `yaml:"workloads,omitempty" json:"workloads,omitempty" mapstructure:"workloads"`
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// Parallel selects concurrent dispatch
	Parallel bool `yaml:"parallel" json:"parallel" mapstructure:"parallel"`

	// Timeout is the per-attempt deadline in concurrent mode (0 disables it)
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// MaxRetryRounds is the total number of rounds per batch
	MaxRetryRounds int `yaml:"max_retry_rounds" json:"max_retry_rounds" mapstructure:"max_retry_rounds"`

	// RetryOn is a comma separated list of outcome kinds to retry
	RetryOn string `yaml:"retry_on" json:"retry_on" mapstructure:"retry_on"`

	// Workers bounds concurrency (0 means one worker per task)
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`

	// OutputFormat is the default output format (table, json, yaml)
	OutputFormat string `yaml:"output_format" json:"output_format" mapstructure:"output_format"`

	// NoColor disables colored output
	NoColor bool `yaml:"no_color" json:"no_color" mapstructure:"no_color"`
}

// JournalConfig configures outcome persistence
type JournalConfig struct {
	// Driver is sqlite3, postgres or mysql
	Driver string `yaml:"driver" json:"driver" mapstructure:"driver"`

	// DSN is the data source name; empty disables the journal
	DSN string `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
}
