package portal

import (
	"context"

	"cluster-portal/pkg/config"
	"cluster-portal/pkg/kube"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/presenter"
	"cluster-portal/pkg/services"
)

// ImportResult is the outcome of registering one kubeconfig context
type ImportResult struct {
	Name    string         `yaml:"name"`
	Cluster models.Cluster `yaml:"cluster,omitempty"`
	// Code is the resolved failure code, empty on success
	Code string `yaml:"code,omitempty"`
	Err  error  `yaml:"-"`
}

// ImportClusters signs in and registers every candidate as a cluster. A
// failing candidate does not stop the others; only a failed sign-in does.
func ImportClusters(ctx context.Context, cfg *config.Config, username, password string, candidates []kube.Candidate, probe bool) ([]ImportResult, error) {
	g, _, _, err := newGateway(cfg, nil)
	if err != nil {
		return nil, err
	}
	svc := services.New(g)

	if _, err := svc.Auth.Login(ctx, username, password); err != nil {
		return nil, err
	}

	resolver := presenter.New(nil, nil)
	results := make([]ImportResult, 0, len(candidates))
	for _, c := range candidates {
		cluster, err := svc.Clusters.Add(ctx, services.NewCluster{
			Name:       c.Name,
			EndPoint:   c.EndPoint,
			Kubeconfig: c.Kubeconfig,
			SkipProbe:  !probe,
		})
		r := ImportResult{Name: c.Name, Cluster: cluster, Err: err}
		if err != nil {
			r.Code = resolver.Resolve(err).Code
		}
		results = append(results, r)
	}
	return results, nil
}
