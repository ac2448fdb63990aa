// Package manifest loads batch definitions from YAML or JSON files.
//
// A manifest names the workload to run, the parameters shared by every task
// and the list of tasks:
//
//	workload: http
//	shared:
//	  base_url: https://api.example.com
//	options:
//	  timeout: 5s
//	  retries: 3
//	tasks:
//	  - id: item-1
//	    params: {path: /items/1}
//	  - item-2
//
// A task given as a bare string has that string as its id and no params.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

// Format is the encoding of a manifest file
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Batch is a parsed manifest
type Batch struct {
	// Workload names a registered workload; the CLI may override it
	Workload string `yaml:"workload" json:"workload"`

	// Shared parameters are passed to every task
	Shared executor.Params `yaml:"shared" json:"shared"`

	// Options override the configured executor settings for this batch
	Options Options `yaml:"options" json:"options"`

	// Tasks in submission order
	Tasks []Task `yaml:"tasks" json:"tasks"`
}

// Task is one entry of the tasks list
type Task struct {
	ID     string          `yaml:"id" json:"id"`
	Params executor.Params `yaml:"params" json:"params"`
}

// Options are per-batch executor settings; nil fields keep the configured value
type Options struct {
	Parallel    *bool   `yaml:"parallel" json:"parallel"`
	Timeout     *string `yaml:"timeout" json:"timeout"`
	Retries     *int    `yaml:"retries" json:"retries"`
	RetryOn     *string `yaml:"retry_on" json:"retry_on"`
	Workers     *int    `yaml:"workers" json:"workers"`
	Description *string `yaml:"description" json:"description"`
}

// UnmarshalYAML accepts either a mapping or a bare id
func (t *Task) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.ID = node.Value
		return nil
	}

	type plain Task
	return node.Decode((*plain)(t))
}

// UnmarshalJSON accepts either an object or a bare id
func (t *Task) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &t.ID)
	}

	type plain Task
	return json.Unmarshal(data, (*plain)(t))
}

// Load reads and validates the manifest at path; the format follows the extension
func Load(path string) (*Batch, error) {
	format, err := formatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	batch, err := Parse(data, format)
	if err != nil {
		return nil, util.WrapErrorf(err, "manifest %s", path)
	}
	return batch, nil
}

// Parse decodes and validates manifest data
func Parse(data []byte, format Format) (*Batch, error) {
	var batch Batch

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		return nil, util.NewValidationError("format", format, "must be yaml or json")
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Validate checks that the batch has tasks with unique, non-empty ids
func (b *Batch) Validate() error {
	if len(b.Tasks) == 0 {
		return util.NewValidationError("tasks", 0, "manifest has no tasks")
	}

	seen := make(map[string]int, len(b.Tasks))
	for i, task := range b.Tasks {
		if task.ID == "" {
			return util.NewValidationError("tasks", i, "task id must not be empty")
		}
		if first, dup := seen[task.ID]; dup {
			return util.NewValidationError("tasks", task.ID, fmt.Sprintf("duplicate task id (entries %d and %d)", first, i))
		}
		seen[task.ID] = i
	}

	if _, err := b.Options.timeout(); err != nil {
		return err
	}
	return nil
}

// IDs returns the task ids in order
func (b *Batch) IDs() []string {
	ids := make([]string, len(b.Tasks))
	for i, task := range b.Tasks {
		ids[i] = task.ID
	}
	return ids
}

// Params returns the per-task parameters aligned with IDs
func (b *Batch) Params() []executor.Params {
	params := make([]executor.Params, len(b.Tasks))
	for i, task := range b.Tasks {
		params[i] = task.Params
	}
	return params
}

// Apply overlays the options that are set onto cfg
func (o Options) Apply(cfg *executor.Config) error {
	if o.Parallel != nil {
		cfg.Parallel = *o.Parallel
	}

	timeout, err := o.timeout()
	if err != nil {
		return err
	}
	if o.Timeout != nil {
		cfg.Timeout = timeout
	}

	if o.Retries != nil {
		cfg.MaxRetryRounds = *o.Retries
	}

	if o.RetryOn != nil {
		set, err := executor.ParseKinds(*o.RetryOn)
		if err != nil {
			return err
		}
		cfg.RetryOn = set
	}

	if o.Workers != nil {
		cfg.Workers = *o.Workers
	}

	if o.Description != nil {
		cfg.Description = *o.Description
	}

	return nil
}

func (o Options) timeout() (time.Duration, error) {
	if o.Timeout == nil || *o.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*o.Timeout)
	if err != nil {
		return 0, util.NewValidationError("options.timeout", *o.Timeout, err.Error())
	}
	return d, nil
}

func formatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", util.NewValidationError("manifest", path, "unknown extension (want .yaml, .yml or .json)")
	}
}
