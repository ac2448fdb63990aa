package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"resty.dev/v3"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// HTTPResult is the payload of a successful http task
type HTTPResult struct {
	Status int `json:"status" yaml:"status"`
	Body   any `json:"body" yaml:"body"`
}

// NewHTTP builds a work function that sends one request per task.
//
// Shared params: base_url, headers, method.
// Unique params: url or path, method, headers, body.
// A 2xx response yields an HTTPResult; JSON bodies are decoded.
// Any other status is an error. The client is closed once ctx is done.
func NewHTTP(ctx context.Context, shared executor.Params) (executor.WorkFunc, error) {
	baseURL, err := stringParam(shared, "base_url")
	if err != nil {
		return nil, err
	}
	sharedHeaders, err := stringMapParam(shared, "headers")
	if err != nil {
		return nil, err
	}

	client := resty.New().SetHeaders(sharedHeaders)
	closeOnDone(ctx, client)

	return func(ctx context.Context, unique, shared executor.Params) (any, error) {
		url, err := requestURL(baseURL, unique)
		if err != nil {
			return nil, err
		}

		method, err := stringParamOr(unique, shared, "method")
		if err != nil {
			return nil, err
		}
		if method == "" {
			method = http.MethodGet
		}

		headers, err := stringMapParam(unique, "headers")
		if err != nil {
			return nil, err
		}

		req := client.R().SetContext(ctx).SetHeaders(headers)
		if body, ok := unique["body"]; ok && body != nil {
			req.SetBody(body)
		}

		resp, err := req.Execute(strings.ToUpper(method), url)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", strings.ToUpper(method), url, err)
		}

		if !resp.IsSuccess() {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
		}

		return HTTPResult{
			Status: resp.StatusCode(),
			Body:   decodeBody(resp.Header().Get("Content-Type"), resp.Bytes()),
		}, nil
	}, nil
}

// closeOnDone closes c once ctx is done. The close runs at most once;
// a resty client panics when closed twice.
func closeOnDone(ctx context.Context, c io.Closer) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		c.Close()
	})
}

// requestURL resolves the task url, joining path onto baseURL when needed
func requestURL(baseURL string, unique executor.Params) (string, error) {
	url, err := stringParam(unique, "url")
	if err != nil {
		return "", err
	}
	if url != "" {
		return url, nil
	}

	path, err := stringParam(unique, "path")
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("param \"url\" or \"path\" is required")
	}
	if baseURL == "" {
		return "", fmt.Errorf("param \"path\" needs a shared base_url")
	}

	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"), nil
}

func decodeBody(contentType string, body []byte) any {
	if strings.Contains(contentType, "json") && len(body) > 0 {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return decoded
		}
	}
	return strings.TrimSpace(string(body))
}
