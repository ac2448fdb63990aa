package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "batch.yaml", `
workload: http
shared:
  base_url: https://api.example.com
options:
  parallel: false
  timeout: 2s
  retries: 3
  retry_on: timeout
tasks:
  - id: a
    params:
      path: /items/1
      tags: [x, y]
  - b
`)

	batch, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", batch.Workload)
	assert.Equal(t, "https://api.example.com", batch.Shared["base_url"])
	assert.Equal(t, []string{"a", "b"}, batch.IDs())

	params := batch.Params()
	require.Len(t, params, 2)
	assert.Equal(t, "/items/1", params[0]["path"])
	assert.Equal(t, []any{"x", "y"}, params[0]["tags"])
	assert.Nil(t, params[1])

	cfg := executor.DefaultConfig()
	require.NoError(t, batch.Options.Apply(&cfg))
	assert.False(t, cfg.Parallel)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetryRounds)
	assert.Equal(t, executor.NewKindSet(executor.KindTimeout), cfg.RetryOn)
	assert.Equal(t, 0, cfg.Workers, "unset options keep the configured value")
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "batch.json", `{
  "workload": "echo",
  "tasks": [
    {"id": "a", "params": {"n": 1}},
    "b"
  ],
  "options": {"workers": 4, "retry_on": ""}
}`)

	batch, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "echo", batch.Workload)
	assert.Equal(t, []string{"a", "b"}, batch.IDs())
	assert.Equal(t, float64(1), batch.Tasks[0].Params["n"])

	cfg := executor.DefaultConfig()
	require.NoError(t, batch.Options.Apply(&cfg))
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.RetryOn.Empty(), "an explicit empty retry_on disables retries")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantErr   string
		isInvalid bool
	}{
		{
			name:    "missing file",
			file:    "",
			wantErr: "failed to read manifest",
		},
		{
			name:      "unknown extension",
			file:      "batch.toml",
			content:   "tasks = []",
			wantErr:   "unknown extension",
			isInvalid: true,
		},
		{
			name:      "empty task list",
			file:      "batch.yaml",
			content:   "workload: echo\ntasks: []\n",
			wantErr:   "no tasks",
			isInvalid: true,
		},
		{
			name:      "duplicate ids",
			file:      "batch.yaml",
			content:   "tasks: [a, b, a]\n",
			wantErr:   "duplicate task id",
			isInvalid: true,
		},
		{
			name:      "empty id",
			file:      "batch.yaml",
			content:   "tasks:\n  - params: {n: 1}\n",
			wantErr:   "must not be empty",
			isInvalid: true,
		},
		{
			name:      "bad timeout",
			file:      "batch.yaml",
			content:   "options: {timeout: soon}\ntasks: [a]\n",
			wantErr:   "options.timeout",
			isInvalid: true,
		},
		{
			name:    "malformed json",
			file:    "batch.json",
			content: "{",
			wantErr: "failed to parse json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.content)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.isInvalid, util.IsInvalidConfig(err))
		})
	}
}

func TestOptionsApply_InvalidRetryOn(t *testing.T) {
	bad := "sometimes"
	cfg := executor.DefaultConfig()
	err := Options{RetryOn: &bad}.Apply(&cfg)
	assert.True(t, util.IsInvalidConfig(err))
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse([]byte("tasks: [a]"), "toml")
	assert.True(t, util.IsInvalidConfig(err))
}
