package workload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

const (
	kubeOpVersion    = "version"
	kubeOpNamespaces = "namespaces"
)

// kubeClient is a connection to the cluster behind one kubeconfig context
type kubeClient struct {
	Context   string
	Cluster   string
	Clientset kubernetes.Interface
}

// connectFunc opens a client for a kubeconfig context ("" means current context)
type connectFunc func(kubeconfig, contextName string) (*kubeClient, error)

// NamespaceInfo is one entry of a namespaces payload
type NamespaceInfo struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Age    string `json:"age" yaml:"age"`
}

// KubeResult is the payload of a successful kube task
type KubeResult struct {
	Context    string          `json:"context" yaml:"context"`
	Cluster    string          `json:"cluster" yaml:"cluster"`
	Version    string          `json:"version,omitempty" yaml:"version,omitempty"`
	Namespaces []NamespaceInfo `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
}

// NewKube builds a work function that queries one Kubernetes context per task.
//
// Shared params: kubeconfig, op. Unique params: context, op.
// op is "version" (default) or "namespaces".
func NewKube(_ context.Context, shared executor.Params) (executor.WorkFunc, error) {
	return newKube(shared, connectKubeconfig)
}

func newKube(shared executor.Params, connect connectFunc) (executor.WorkFunc, error) {
	kubeconfig, err := stringParam(shared, "kubeconfig")
	if err != nil {
		return nil, err
	}
	if kubeconfig != "" {
		if kubeconfig, err = expandPath(kubeconfig); err != nil {
			return nil, err
		}
	}

	if _, err := kubeOp(nil, shared); err != nil {
		return nil, err
	}

	pool := &clientPool{
		kubeconfig: kubeconfig,
		connect:    connect,
		clients:    make(map[string]*kubeClient),
	}

	return func(ctx context.Context, unique, shared executor.Params) (any, error) {
		op, err := kubeOp(unique, shared)
		if err != nil {
			return nil, err
		}

		contextName, err := stringParam(unique, "context")
		if err != nil {
			return nil, err
		}

		client, err := pool.get(contextName)
		if err != nil {
			return nil, err
		}

		result := KubeResult{
			Context: client.Context,
			Cluster: ShortClusterName(client.Cluster),
		}

		switch op {
		case kubeOpNamespaces:
			result.Namespaces, err = listNamespaces(ctx, client.Clientset)
		default:
			result.Version, err = serverVersion(ctx, client.Clientset)
		}
		if err != nil {
			return nil, err
		}

		return result, nil
	}, nil
}

func kubeOp(unique, shared executor.Params) (string, error) {
	op, err := stringParamOr(unique, shared, "op")
	if err != nil {
		return "", err
	}
	switch op {
	case "":
		return kubeOpVersion, nil
	case kubeOpVersion, kubeOpNamespaces:
		return op, nil
	default:
		return "", fmt.Errorf("param \"op\": unsupported operation %q (want %s or %s)", op, kubeOpVersion, kubeOpNamespaces)
	}
}

// clientPool caches one client per context so retry rounds reuse connections
type clientPool struct {
	kubeconfig string
	connect    connectFunc

	mu      sync.RWMutex
	clients map[string]*kubeClient
}

func (p *clientPool) get(contextName string) (*kubeClient, error) {
	p.mu.RLock()
	client, ok := p.clients[contextName]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[contextName]; ok {
		return client, nil
	}

	client, err := p.connect(p.kubeconfig, contextName)
	if err != nil {
		return nil, err
	}
	p.clients[contextName] = client
	return client, nil
}

// connectKubeconfig builds a clientset for contextName using the standard
// loading rules (explicit path, then KUBECONFIG, then ~/.kube/config)
func connectKubeconfig(kubeconfig, contextName string) (*kubeClient, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}

	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

	raw, err := clientConfig.RawConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	if contextName == "" {
		contextName = raw.CurrentContext
	}
	kubeContext, ok := raw.Contexts[contextName]
	if !ok || kubeContext == nil {
		return nil, fmt.Errorf("context %q not found in kubeconfig", contextName)
	}

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create client config for context %q: %w", contextName, err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &kubeClient{
		Context:   contextName,
		Cluster:   kubeContext.Cluster,
		Clientset: clientset,
	}, nil
}

// serverVersion asks the discovery API for the server version
// The discovery call takes no context, so it runs in a goroutine raced against ctx
func serverVersion(ctx context.Context, clientset kubernetes.Interface) (string, error) {
	type result struct {
		version string
		err     error
	}
	resultCh := make(chan result, 1)

	go func() {
		info, err := clientset.Discovery().ServerVersion()
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		resultCh <- result{version: info.GitVersion}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("get server version: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to get server version: %w", res.err)
		}
		return res.version, nil
	}
}

func listNamespaces(ctx context.Context, clientset kubernetes.Interface) ([]NamespaceInfo, error) {
	list, err := clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	now := time.Now()
	namespaces := make([]NamespaceInfo, 0, len(list.Items))
	for _, ns := range list.Items {
		namespaces = append(namespaces, NamespaceInfo{
			Name:   ns.Name,
			Status: string(ns.Status.Phase),
			Age:    age(ns.CreationTimestamp.Time, now),
		})
	}
	return namespaces, nil
}

func age(created, now time.Time) string {
	if created.IsZero() {
		return "<unknown>"
	}

	d := now.Sub(created)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// ShortClusterName extracts the cluster name from an EKS ARN such as
// arn:aws:eks:region:account-id:cluster/name, or returns name unchanged
func ShortClusterName(name string) string {
	if !strings.HasPrefix(name, "arn:") {
		return name
	}

	if idx := strings.LastIndex(name, "cluster/"); idx != -1 {
		return name[idx+len("cluster/"):]
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}
	if idx := strings.LastIndex(name, ":"); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// expandPath expands environment variables and a leading ~
func expandPath(path string) (string, error) {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	return filepath.Clean(path), nil
}
