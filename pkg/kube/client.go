package kube

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"cluster-portal/pkg/models"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// SystemNamespace holds the cluster's own components
const SystemNamespace = "kube-system"

// Target is a cluster reachable through a kubeconfig
type Target struct {
	ID string
	// Kubeconfig is base64 encoded
	Kubeconfig string
}

// ClientFactory builds a client from raw kubeconfig bytes
type ClientFactory func(kubeconfig []byte) (kubernetes.Interface, error)

// Manager manages Kubernetes client connections for multiple clusters
type Manager struct {
	mu      sync.RWMutex
	clients map[string]kubernetes.Interface
	create  ClientFactory
}

// NewManager creates a new K8s client manager
func NewManager() *Manager {
	return NewManagerWith(newClientset)
}

// NewManagerWith creates a manager building its clients with create
func NewManagerWith(create ClientFactory) *Manager {
	return &Manager{
		clients: make(map[string]kubernetes.Interface),
		create:  create,
	}
}

// GetClient returns a K8s client for the specified cluster
func (m *Manager) GetClient(t Target) (kubernetes.Interface, error) {
	m.mu.RLock()
	client, exists := m.clients[t.ID]
	m.mu.RUnlock()

	if exists {
		return client, nil
	}

	kubeconfig, err := base64.StdEncoding.DecodeString(t.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode kubeconfig: %w", err)
	}
	client, err = m.create(kubeconfig)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.clients[t.ID] = client
	m.mu.Unlock()

	return client, nil
}

// RemoveClient removes a cached client for the specified cluster
func (m *Manager) RemoveClient(clusterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, clusterID)
}

func newClientset(kubeconfig []byte) (kubernetes.Interface, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return clientset, nil
}

// TestConnection checks the cluster answers and returns its version
func (m *Manager) TestConnection(ctx context.Context, t Target) (string, error) {
	client, err := m.GetClient(t)
	if err != nil {
		return "", err
	}

	// The discovery client takes no context, bound it ourselves
	type result struct {
		version string
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := client.Discovery().ServerVersion()
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{version: v.GitVersion}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			// Remove cached client on failure
			m.RemoveClient(t.ID)
			return "", fmt.Errorf("failed to connect to cluster: %w", r.err)
		}
		return r.version, nil
	case <-ctx.Done():
		m.RemoveClient(t.ID)
		return "", fmt.Errorf("failed to connect to cluster: %w", ctx.Err())
	}
}

// Components lists the pods of the system namespace as cluster components
func (m *Manager) Components(ctx context.Context, t Target) ([]models.Component, error) {
	client, err := m.GetClient(t)
	if err != nil {
		return nil, err
	}

	pods, err := client.CoreV1().Pods(SystemNamespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list system pods: %w", err)
	}

	components := make([]models.Component, 0, len(pods.Items))
	for _, pod := range pods.Items {
		components = append(components, componentFromPod(&pod))
	}
	sort.Slice(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return components, nil
}

func componentFromPod(pod *corev1.Pod) models.Component {
	c := models.Component{
		ID:     string(pod.UID),
		Name:   pod.Name,
		Kind:   "pod",
		Status: string(pod.Status.Phase),
		Host:   pod.Spec.NodeName,
	}
	if c.ID == "" {
		c.ID = pod.Namespace + "/" + pod.Name
	}
	if app, ok := pod.Labels["k8s-app"]; ok {
		c.Kind = app
	}
	if len(pod.Spec.Containers) > 0 {
		c.Version = imageTag(pod.Spec.Containers[0].Image)
	}
	return c
}

// imageTag returns the tag of an image reference, or "latest"
func imageTag(image string) string {
	for i := len(image) - 1; i >= 0; i-- {
		switch image[i] {
		case ':':
			return image[i+1:]
		case '/', '@':
			return "latest"
		}
	}
	return "latest"
}
