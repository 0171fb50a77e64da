// Package kube reads clusters out of kubeconfig files and talks to them
// through client-go.
package kube

import (
	"encoding/base64"
	"fmt"
	"sort"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// Candidate is one kubeconfig context that can be registered as a cluster
type Candidate struct {
	Name     string `json:"name" yaml:"name"`
	EndPoint string `json:"endPoint" yaml:"endPoint"`
	// Kubeconfig is a self-contained, base64 encoded kubeconfig for this
	// context alone
	Kubeconfig string `json:"kubeconfig" yaml:"-"`
}

// LoadCandidates reads a kubeconfig file and splits it into one candidate per
// context. When contexts is not empty only those are returned.
func LoadCandidates(path string, contexts ...string) ([]Candidate, error) {
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return Candidates(cfg, contexts...)
}

// ParseCandidates is LoadCandidates for kubeconfig content
func ParseCandidates(data []byte, contexts ...string) ([]Candidate, error) {
	cfg, err := clientcmd.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	return Candidates(cfg, contexts...)
}

// Candidates splits cfg into one candidate per context
func Candidates(cfg *clientcmdapi.Config, contexts ...string) ([]Candidate, error) {
	wanted := make(map[string]bool, len(contexts))
	for _, name := range contexts {
		if _, ok := cfg.Contexts[name]; !ok {
			return nil, fmt.Errorf("context %q not found", name)
		}
		wanted[name] = true
	}

	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		if len(wanted) == 0 || wanted[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		c, err := candidate(cfg, name)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func candidate(cfg *clientcmdapi.Config, name string) (Candidate, error) {
	single := cfg.DeepCopy()
	single.CurrentContext = name
	if err := clientcmdapi.MinifyConfig(single); err != nil {
		return Candidate{}, fmt.Errorf("context %q: %w", name, err)
	}
	if err := clientcmdapi.FlattenConfig(single); err != nil {
		return Candidate{}, fmt.Errorf("context %q: %w", name, err)
	}

	data, err := clientcmd.Write(*single)
	if err != nil {
		return Candidate{}, fmt.Errorf("context %q: %w", name, err)
	}

	c := Candidate{Name: name, Kubeconfig: base64.StdEncoding.EncodeToString(data)}
	if cluster, ok := single.Clusters[cfg.Contexts[name].Cluster]; ok {
		c.EndPoint = cluster.Server
	}
	return c, nil
}

// EncodeKubeconfig returns data base64 encoded unless it already is
func EncodeKubeconfig(data string) string {
	if _, err := base64.StdEncoding.DecodeString(data); err == nil {
		return data
	}
	return base64.StdEncoding.EncodeToString([]byte(data))
}
