package workload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// NewExec builds a work function that runs a command once per task.
//
// The command comes from the shared "command" param (a task may override it).
// Arguments are the shared "args" followed by the task "args". Every scalar
// unique param is exported as TASK_<KEY>. The trimmed stdout is the payload;
// a non-zero exit fails the attempt with stderr in the message.
func NewExec(_ context.Context, shared executor.Params) (executor.WorkFunc, error) {
	sharedArgs, err := stringSliceParam(shared, "args")
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, unique, shared executor.Params) (any, error) {
		command, err := stringParamOr(unique, shared, "command")
		if err != nil {
			return nil, err
		}
		if command == "" {
			return nil, fmt.Errorf("param \"command\" is required")
		}

		taskArgs, err := stringSliceParam(unique, "args")
		if err != nil {
			return nil, err
		}
		args := append(append([]string{}, sharedArgs...), taskArgs...)

		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = append(os.Environ(), taskEnv(unique)...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", command, err, msg)
			}
			return nil, fmt.Errorf("%s: %w", command, err)
		}

		return strings.TrimSpace(stdout.String()), nil
	}, nil
}

// taskEnv exports scalar params as TASK_<KEY>=value in key order
func taskEnv(p executor.Params) []string {
	env := make([]string, 0, len(p))
	for _, k := range sortedParamKeys(p) {
		switch v := p[k].(type) {
		case string, bool, int, int64, float64:
			env = append(env, fmt.Sprintf("TASK_%s=%v", envKey(k), v))
		}
	}
	return env
}

func envKey(key string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, key)
}
