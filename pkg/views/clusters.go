package views

import (
	"context"
	"fmt"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/view"
)

// clustersView is the cluster picker. It is the only listing that loads
// without a selected cluster.
type clustersView struct {
	*listingView[models.Cluster]
}

func newClusters(d router.Deps, m router.Manifest) (router.View, error) {
	if err := requireServices(d, m); err != nil {
		return nil, err
	}
	svc := d.Services.Clusters
	lv := newListingView[models.Cluster](d, m, view.Options{
		Name:       "clusters",
		MessageKey: "clusters.load",
		Global:     true,
	}, func(ctx context.Context, _ *models.ClusterSelection, q models.PageQuery) (models.Page[models.Cluster], error) {
		return svc.List(ctx, q)
	})
	return &clustersView{listingView: lv}, nil
}

func (v *clustersView) Actions() []string {
	return []string{
		"select <id|name>   operate against a cluster",
		"clear              forget the selected cluster",
	}
}

func (v *clustersView) Act(name string, args []string) error {
	switch name {
	case "select":
		if len(args) != 1 {
			return usage("select <id|name>")
		}
		return v.Select(args[0])
	case "clear":
		return v.deps.Env.Store.ClearCluster()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
}

// Select makes the listed cluster with the given ID or name current and
// goes home
func (v *clustersView) Select(key string) error {
	for _, c := range v.listing.Items() {
		if c.ID == key || c.Name == key {
			if err := v.deps.Env.Store.SetCluster(c.Selection()); err != nil {
				return err
			}
			if v.deps.Navigator != nil {
				v.deps.Navigator.Navigate(PathHome)
			}
			return nil
		}
	}
	return fmt.Errorf("cluster %q is not on this page", key)
}
