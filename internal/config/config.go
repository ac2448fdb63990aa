package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

const (
	defaultConfigName = ".taskexec"
	defaultConfigDir  = ".taskexec"
	envPrefix         = "TASKEXEC"
)

// Manager handles taskexec configuration
type Manager struct {
	configPath string
	config     *TaskexecConfig
	viper      *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &TaskexecConfig{},
	}
}

// Load loads the configuration from file and TASKEXEC_* environment variables
func (m *Manager) Load() (*TaskexecConfig, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// ~/.taskexec/.taskexec.yaml, then ~/.taskexec.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	// TASKEXEC_DEFAULTS_TIMEOUT overrides defaults.timeout
	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	m.registerDefaults()

	m.config = &TaskexecConfig{}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	return m.config, nil
}

// Save writes the current configuration, defaults included, to file
func (m *Manager) Save() error {
	if m.configPath == "" {
		m.configPath = m.viper.ConfigFileUsed()
	}
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		m.configPath = filepath.Join(home, defaultConfigName+".yaml")
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := m.viper.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the file the configuration was read from or will be saved to
func (m *Manager) Path() string {
	if m.configPath != "" {
		return m.configPath
	}
	return m.viper.ConfigFileUsed()
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *TaskexecConfig {
	return m.config
}

// Set updates a single key such as "defaults.timeout" and refreshes the configuration
func (m *Manager) Set(key string, value any) error {
	if !m.viper.IsSet(key) && !strings.HasPrefix(key, "workloads.") {
		return util.NewValidationError(key, value, "unknown configuration key")
	}

	m.viper.Set(key, value)

	cfg := &TaskexecConfig{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to apply %s: %w", key, err)
	}
	m.config = cfg
	m.applyDefaults()

	return m.Validate()
}

// Validate checks values that can only be verified after parsing
func (m *Manager) Validate() error {
	_, err := m.ExecutorConfig()
	return err
}

// ExecutorConfig converts the defaults section into an executor configuration
func (m *Manager) ExecutorConfig() (executor.Config, error) {
	d := m.config.Defaults

	retryOn, err := executor.ParseKinds(d.RetryOn)
	if err != nil {
		return executor.Config{}, util.NewValidationError("defaults.retry_on", d.RetryOn, err.Error())
	}

	cfg := executor.DefaultConfig()
	cfg.Parallel = d.Parallel
	cfg.Timeout = d.Timeout
	cfg.MaxRetryRounds = d.MaxRetryRounds
	cfg.RetryOn = retryOn
	cfg.Workers = d.Workers

	if err := cfg.Validate(); err != nil {
		return executor.Config{}, err
	}
	return cfg, nil
}

// SharedParams returns the configured parameters of a workload merged under overrides
func (m *Manager) SharedParams(workload string, overrides executor.Params) executor.Params {
	merged := executor.Params{}
	for k, v := range m.config.Workloads[workload] {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// registerDefaults makes every key known to viper so environment variables
// are picked up by Unmarshal even when the file does not mention them
func (m *Manager) registerDefaults() {
	def := executor.DefaultConfig()

	m.viper.SetDefault("defaults.parallel", def.Parallel)
	m.viper.SetDefault("defaults.timeout", def.Timeout)
	m.viper.SetDefault("defaults.max_retry_rounds", def.MaxRetryRounds)
	m.viper.SetDefault("defaults.retry_on", def.RetryOn.String())
	m.viper.SetDefault("defaults.workers", def.Workers)
	m.viper.SetDefault("defaults.output_format", "table")
	m.viper.SetDefault("defaults.no_color", false)
	m.viper.SetDefault("journal.driver", "sqlite3")
	m.viper.SetDefault("journal.dsn", "")
}

// applyDefaults fills values an explicit zero in the file cannot mean
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	if m.config.Defaults.MaxRetryRounds == 0 {
		m.config.Defaults.MaxRetryRounds = 1
	}

	if m.config.Defaults.OutputFormat == "" {
		m.config.Defaults.OutputFormat = "table"
	}
	m.config.Defaults.OutputFormat = strings.ToLower(m.config.Defaults.OutputFormat)

	if m.config.Journal.Driver == "" {
		m.config.Journal.Driver = "sqlite3"
	}

	if m.config.Journal.DSN != "" {
		m.config.Journal.DSN = expandHome(m.config.Journal.DSN)
	}

	if m.config.Workloads == nil {
		m.config.Workloads = make(map[string]map[string]any)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
