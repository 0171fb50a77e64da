package views

import (
	"context"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/view"
)

// ListingSnapshot is the rendered state of a listing view
type ListingSnapshot[T any] struct {
	Title     string            `yaml:"title"`
	Cluster   string            `yaml:"cluster,omitempty"`
	Page      int               `yaml:"page"`
	TotalPage int               `yaml:"totalPage"`
	Total     int               `yaml:"total"`
	Filters   map[string]string `yaml:"filters,omitempty"`
	Loading   bool              `yaml:"loading,omitempty"`
	Items     []T               `yaml:"items"`
}

// listingView adapts a view.Listing to the router's View
type listingView[T any] struct {
	deps    router.Deps
	title   string
	listing *view.Listing[T]
}

func newListingView[T any](d router.Deps, m router.Manifest, opts view.Options, fetch view.Fetcher[T]) *listingView[T] {
	if opts.PageSize == 0 {
		opts.PageSize = d.PageSize
	}
	title := m.Title
	if title == "" {
		title = opts.Name
	}
	return &listingView[T]{
		deps:    d,
		title:   title,
		listing: view.NewListing(d.Env, opts, fetch),
	}
}

func (v *listingView[T]) Start()                      { v.listing.Load() }
func (v *listingView[T]) Close()                      { v.listing.Close() }
func (v *listingView[T]) OnUpdate(fn func())          { v.listing.OnUpdate(fn) }
func (v *listingView[T]) SetPage(n int)               { v.listing.SetPage(n) }
func (v *listingView[T]) SetFilter(key, value string) { v.listing.SetFilter(key, value) }
func (v *listingView[T]) Refresh()                    { v.listing.Refresh() }

// Listing exposes the underlying controller
func (v *listingView[T]) Listing() *view.Listing[T] { return v.listing }

func (v *listingView[T]) Snapshot() any {
	s := ListingSnapshot[T]{
		Title:     v.title,
		Page:      v.listing.Page(),
		TotalPage: v.listing.TotalPage(),
		Total:     v.listing.Total(),
		Filters:   v.listing.Query().Filters,
		Loading:   v.listing.Loading(),
		Items:     v.listing.Items(),
	}
	if c := v.deps.Env.Store.CurrentCluster(); c != nil {
		s.Cluster = c.ID
		if c.Name != "" {
			s.Cluster = c.Name
		}
	}
	return s
}

func (v *listingView[T]) cluster() *models.ClusterSelection {
	return v.deps.Env.Store.CurrentCluster()
}

// mutate runs a cluster-scoped change and refreshes the listing on success
func (v *listingView[T]) mutate(titleKey string, work func(ctx context.Context, c *models.ClusterSelection) error) {
	c := v.cluster()
	action(v.deps, v.listing.Closed, titleKey, func(ctx context.Context) error {
		return work(ctx, c)
	}, v.listing.Refresh)
}
