// Package view holds the shared behaviour of every listing view: the page
// query, cluster-change refresh, stale response suppression and teardown.
//
// A Listing is owned by the event loop. All of its methods must be called
// from tasks running on that loop.
package view

import (
	"context"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/session"

	"github.com/rs/zerolog"
)

// Presenter shows a failure to the user
type Presenter interface {
	Present(failure any, titleKey string)
}

// Env is what every view needs from the running portal
type Env struct {
	Loop      *loop.Loop
	Store     *session.Store
	Presenter Presenter
}

// Fetcher retrieves one page. cluster is nil only for listings that do not
// require a cluster.
type Fetcher[T any] func(ctx context.Context, cluster *models.ClusterSelection, q models.PageQuery) (models.Page[T], error)

// Options configure a Listing
type Options struct {
	// Name identifies the listing in logs
	Name string
	// MessageKey titles the modal shown when a load fails
	MessageKey string
	// PageSize is the initial limit
	PageSize int
	// Global listings are not cluster-scoped and load without a selection
	Global bool
	// Filters are the initial filters
	Filters map[string]string
}

// Listing is the generic paged list controller
type Listing[T any] struct {
	env   Env
	opts  Options
	fetch Fetcher[T]

	query     models.PageQuery
	items     []T
	total     int
	totalPage int
	loading   bool

	requests    Tracker
	unsubscribe func()
	onUpdate    func()

	logger zerolog.Logger
}

// NewListing creates a listing and subscribes it to cluster changes. It does
// not load anything until Load is called.
func NewListing[T any](env Env, opts Options, fetch Fetcher[T]) *Listing[T] {
	l := &Listing[T]{
		env:   env,
		opts:  opts,
		fetch: fetch,
		query: models.PageQuery{Limit: opts.PageSize, Filters: map[string]string{}},
		items: []T{},
		logger: log.WithComponent("view").With().
			Str("view", opts.Name).
			Logger(),
	}
	for k, v := range opts.Filters {
		l.query.Filters[k] = v
	}

	if !opts.Global {
		l.unsubscribe = env.Store.OnChange(session.KindCluster, l.clusterChanged)
	}
	return l
}

// OnUpdate sets the hook called after the listing state changes
func (l *Listing[T]) OnUpdate(fn func()) {
	l.onUpdate = fn
}

// Items returns the current page
func (l *Listing[T]) Items() []T { return l.items }

// Total returns the total number of matching entities
func (l *Listing[T]) Total() int { return l.total }

// TotalPage returns the number of pages
func (l *Listing[T]) TotalPage() int { return l.totalPage }

// Loading reports whether a request is in flight
func (l *Listing[T]) Loading() bool { return l.loading }

// Closed reports whether the listing has been torn down
func (l *Listing[T]) Closed() bool { return l.requests.Closed() }

// Query returns a copy of the page query
func (l *Listing[T]) Query() models.PageQuery { return l.query.Clone() }

// Page returns the 1-based index of the current page
func (l *Listing[T]) Page() int {
	if l.query.Limit <= 0 {
		return 1
	}
	return l.query.Skip/l.query.Limit + 1
}

// SetPage moves to the 1-based page n and reloads
func (l *Listing[T]) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	l.query.Skip = (n - 1) * l.query.Limit
	l.Load()
}

// SetSkip sets the offset and reloads
func (l *Listing[T]) SetSkip(skip int) {
	if skip < 0 {
		skip = 0
	}
	l.query.Skip = skip
	l.Load()
}

// SetLimit changes the page size, returns to the first page and reloads
func (l *Listing[T]) SetLimit(limit int) {
	l.query.Limit = limit
	l.query.Skip = 0
	l.Load()
}

// SetFilter sets or, with an empty value, removes a filter. The listing
// returns to the first page.
func (l *Listing[T]) SetFilter(key, value string) {
	if value == "" {
		delete(l.query.Filters, key)
	} else {
		l.query.Filters[key] = value
	}
	l.query.Skip = 0
	l.Load()
}

// Refresh reissues the current query
func (l *Listing[T]) Refresh() {
	l.Load()
}

// Load issues the current query. Any request still in flight is superseded.
func (l *Listing[T]) Load() {
	if l.requests.Closed() {
		return
	}

	cluster := l.env.Store.CurrentCluster()
	if !l.opts.Global && cluster == nil {
		l.requests.Abort()
		l.logger.Debug().Msg("No cluster selected, showing empty listing")
		l.items = []T{}
		l.total = 0
		l.totalPage = 0
		l.loading = false
		l.notify()
		return
	}

	ctx, stamp := l.requests.Begin()
	l.loading = true
	q := l.query.Clone()
	l.notify()

	loop.Async(l.env.Loop, ctx, func(ctx context.Context) (models.Page[T], error) {
		return l.fetch(ctx, cluster, q)
	}, func(page models.Page[T], err error) {
		if !l.requests.Current(stamp) {
			metrics.StaleResponses.Inc()
			l.logger.Debug().Uint64("generation", stamp).Msg("Discarding superseded response")
			return
		}
		l.requests.Finish(stamp)
		l.loading = false

		if err != nil {
			l.env.Presenter.Present(err, l.opts.MessageKey)
			l.notify()
			return
		}

		l.items = page.Data
		if l.items == nil {
			l.items = []T{}
		}
		l.total = page.Count
		l.totalPage = TotalPages(page.Count, q.Limit)
		l.notify()
	})
}

// Close unsubscribes from cluster changes and cancels any request in flight.
// Responses arriving afterwards are discarded.
func (l *Listing[T]) Close() {
	if l.requests.Closed() {
		return
	}
	l.requests.Close()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
}

func (l *Listing[T]) clusterChanged(c session.Change) {
	if l.requests.Closed() || models.SameCluster(c.OldCluster, c.NewCluster) {
		return
	}
	l.logger.Debug().Msg("Cluster changed, reloading from the first page")
	l.query.Skip = 0
	l.Load()
}

func (l *Listing[T]) notify() {
	if l.onUpdate != nil {
		l.onUpdate()
	}
}

// TotalPages returns ceil(count / limit). A non-positive limit means a
// single page.
func TotalPages(count, limit int) int {
	if count <= 0 {
		return 0
	}
	if limit <= 0 {
		return 1
	}
	return (count + limit - 1) / limit
}
