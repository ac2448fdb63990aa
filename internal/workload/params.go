package workload

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// Parameter values come from YAML or JSON manifests, so numbers may be int or
// float64 and lists arrive as []interface{}. The helpers below accept both.

func stringParam(p executor.Params, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("param %q: expected a string, got %T", key, v)
	}
}

// stringParamOr looks the key up in unique first, then shared
func stringParamOr(unique, shared executor.Params, key string) (string, error) {
	if _, ok := unique[key]; ok {
		return stringParam(unique, key)
	}
	return stringParam(shared, key)
}

func boolParam(p executor.Params, key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(b) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
	}
	return false, fmt.Errorf("param %q: expected a bool, got %v", key, v)
}

// durationParam accepts a Go duration string ("1.5s") or a number of seconds
func durationParam(p executor.Params, key string) (time.Duration, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return parsed, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("param %q: expected a duration, got %T", key, v)
	}
}

func stringSliceParam(p executor.Params, key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case string:
		return []string{list}, nil
	case []interface{}:
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("param %q: expected a list, got %T", key, v)
	}
}

func stringMapParam(p executor.Params, key string) (map[string]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]interface{}:
		out := make(map[string]string, len(m))
		for k, item := range m {
			out[k] = fmt.Sprint(item)
		}
		return out, nil
	case executor.Params:
		out := make(map[string]string, len(m))
		for k, item := range m {
			out[k] = fmt.Sprint(item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("param %q: expected a mapping, got %T", key, v)
	}
}

func sortedParamKeys(p executor.Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
