// Package workload provides the built-in work functions the CLI can run in bulk.
//
// A workload is looked up by name and built once per batch from the shared
// parameters; the resulting executor.WorkFunc is then called once per task
// attempt with that task's unique parameters.
package workload

import (
	"context"
	"fmt"
	"sort"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

// Factory builds a work function from the parameters shared by the batch.
// Resources the work function holds are released once ctx is done.
type Factory func(ctx context.Context, shared executor.Params) (executor.WorkFunc, error)

// Info describes a registered workload
type Info struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

type entry struct {
	info    Info
	factory Factory
}

var registry = map[string]entry{
	"echo": {
		info:    Info{Name: "echo", Description: "Return the task params; fail and sleep params simulate errors and slow tasks"},
		factory: NewEcho,
	},
	"http": {
		info:    Info{Name: "http", Description: "Send one HTTP request per task (url or path relative to shared base_url)"},
		factory: NewHTTP,
	},
	"exec": {
		info:    Info{Name: "exec", Description: "Run the shared command once per task with the task args, params exported as TASK_* env vars"},
		factory: NewExec,
	},
	"kube": {
		info:    Info{Name: "kube", Description: "Query one Kubernetes context per task (op: version or namespaces)"},
		factory: NewKube,
	},
}

// Lookup returns the factory registered under name
func Lookup(name string) (Factory, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", util.ErrUnknownWorkload, name, Names())
	}
	return e.factory, nil
}

// Names returns the registered workload names in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every registered workload in name order
func List() []Info {
	infos := make([]Info, 0, len(registry))
	for _, name := range Names() {
		infos = append(infos, registry[name].info)
	}
	return infos
}
