// Package router maps paths to lazily loaded view modules. It enforces the
// session and cluster preconditions of each route before anything is loaded,
// loads each module at most once, and tears down the previous view when a
// new one becomes current.
//
// A Resolver is owned by the event loop; call it from loop tasks only.
package router

import (
	"context"
	"fmt"
	"sync"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/session"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TitleViewLoad titles the modal shown when a module fails to load
const TitleViewLoad = "error.viewLoad"

// Status is the load state of a route's module
type Status int

const (
	StatusUnresolved Status = iota
	StatusLoading
	StatusResolved
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Route is one entry of the route table
type Route struct {
	Path            string
	Module          ModuleID
	RequiresSession bool
	RequiresCluster bool
}

// Config is the route table plus the well-known redirect targets
type Config struct {
	Routes []Route
	// HomePath receives unknown paths
	HomePath string
	// LoginPath receives navigations without a valid session
	LoginPath string
	// ClusterPath receives navigations without a selected cluster
	ClusterPath string
}

// Resolver is the route resolver
type Resolver struct {
	cfg    Config
	routes map[string]Route
	loader Loader
	deps   Deps

	group  singleflight.Group
	mu     sync.Mutex
	loaded map[ModuleID]Module

	loading map[ModuleID]bool
	gen     uint64
	pending string

	current  string
	route    Route
	view     View
	onChange func(path string, v View)

	unsubscribe []func()
	logger      zerolog.Logger
}

// New creates a resolver and subscribes it to session and cluster changes.
// deps.Navigator is set to the resolver itself.
func New(cfg Config, loader Loader, deps Deps) (*Resolver, error) {
	r := &Resolver{
		cfg:     cfg,
		routes:  make(map[string]Route, len(cfg.Routes)),
		loader:  loader,
		loaded:  make(map[ModuleID]Module),
		loading: make(map[ModuleID]bool),
		logger:  log.WithComponent("router"),
	}
	for _, route := range cfg.Routes {
		if _, dup := r.routes[route.Path]; dup {
			return nil, fmt.Errorf("duplicate route %q", route.Path)
		}
		r.routes[route.Path] = route
	}
	for _, p := range []string{cfg.HomePath, cfg.LoginPath, cfg.ClusterPath} {
		if _, ok := r.routes[p]; !ok {
			return nil, fmt.Errorf("route table has no %q route", p)
		}
	}
	if r.routes[cfg.LoginPath].RequiresSession {
		return nil, fmt.Errorf("login route %q cannot require a session", cfg.LoginPath)
	}

	deps.Navigator = r
	r.deps = deps

	store := deps.Env.Store
	r.unsubscribe = append(r.unsubscribe,
		store.OnChange(session.KindSession, r.sessionChanged),
		store.OnChange(session.KindCluster, r.clusterChanged),
	)
	return r, nil
}

// OnNavigate sets the hook called whenever a new view becomes current
func (r *Resolver) OnNavigate(fn func(path string, v View)) {
	r.onChange = fn
}

// Current returns the current path and view
func (r *Resolver) Current() (string, View) {
	return r.current, r.view
}

// Pending returns the path of a navigation waiting for its module, if any
func (r *Resolver) Pending() string {
	return r.pending
}

// Routes returns the route table
func (r *Resolver) Routes() []Route {
	return append([]Route(nil), r.cfg.Routes...)
}

// State returns the load state of the module behind path
func (r *Resolver) State(path string) Status {
	route, ok := r.routes[path]
	if !ok {
		return StatusUnresolved
	}
	if _, ok := r.module(route.Module); ok {
		return StatusResolved
	}
	if r.loading[route.Module] {
		return StatusLoading
	}
	return StatusUnresolved
}

// ToLogin navigates to the login route unless it is already current
func (r *Resolver) ToLogin() {
	if r.current == r.cfg.LoginPath && r.pending == "" {
		return
	}
	r.Navigate(r.cfg.LoginPath)
}

// Navigate resolves path and makes its view current. Preconditions are
// checked first; the module load, if any, completes asynchronously. A later
// navigation supersedes this one.
func (r *Resolver) Navigate(path string) {
	r.gen++
	gen := r.gen

	route, ok := r.routes[path]
	if !ok {
		r.logger.Warn().Str("path", path).Msg("Unknown route, going home")
		metrics.Navigations.WithLabelValues("not_found").Inc()
		route = r.routes[r.cfg.HomePath]
	}
	switch {
	case route.RequiresSession && !r.deps.Env.Store.SessionValid():
		r.routeLog(route.Path).Debug().Msg("No valid session, redirecting to login")
		metrics.Navigations.WithLabelValues("redirect_login").Inc()
		route = r.routes[r.cfg.LoginPath]
	case route.RequiresCluster && r.deps.Env.Store.CurrentCluster() == nil:
		r.routeLog(route.Path).Debug().Msg("No cluster selected, redirecting to cluster picker")
		metrics.Navigations.WithLabelValues("redirect_cluster").Inc()
		route = r.routes[r.cfg.ClusterPath]
		if route.RequiresSession && !r.deps.Env.Store.SessionValid() {
			route = r.routes[r.cfg.LoginPath]
		}
	}

	if m, ok := r.module(route.Module); ok {
		r.pending = ""
		r.activate(route, m)
		return
	}

	r.pending = route.Path
	r.loading[route.Module] = true
	r.routeLog(route.Path).Debug().Str("module", string(route.Module)).Msg("Loading module")

	ch := r.group.DoChan(string(route.Module), func() (any, error) {
		return r.load(route.Module)
	})
	loop := r.deps.Env.Loop
	go func() {
		res := <-ch
		loop.Post(func() { r.finishLoad(gen, route, res) })
	}()
}

// Close tears down the current view and stops reacting to store changes
func (r *Resolver) Close() {
	for _, unsubscribe := range r.unsubscribe {
		unsubscribe()
	}
	r.unsubscribe = nil
	r.gen++
	if r.view != nil {
		r.view.Close()
		r.view = nil
	}
}

// load runs outside the loop. A module already loaded is returned without
// asking the loader again.
func (r *Resolver) load(id ModuleID) (Module, error) {
	if m, ok := r.module(id); ok {
		return m, nil
	}

	timer := metrics.NewTimer()
	m, err := r.loader.Load(context.Background(), id)
	if err != nil {
		metrics.ModuleLoads.WithLabelValues(string(id), "failure").Inc()
		r.logger.Error().Err(err).Str("module", string(id)).Msg("Module load failed")
		return Module{}, err
	}

	r.mu.Lock()
	r.loaded[id] = m
	r.mu.Unlock()
	metrics.ModuleLoads.WithLabelValues(string(id), "success").Inc()
	r.logger.Info().
		Str("module", string(id)).
		Str("version", m.Version).
		Dur("elapsed", timer.Duration()).
		Msg("Module loaded")
	return m, nil
}

func (r *Resolver) module(id ModuleID) (Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.loaded[id]
	return m, ok
}

func (r *Resolver) finishLoad(gen uint64, route Route, res singleflight.Result) {
	delete(r.loading, route.Module)

	if gen != r.gen {
		metrics.Navigations.WithLabelValues("superseded").Inc()
		r.routeLog(route.Path).Debug().Msg("Navigation superseded while loading")
		return
	}
	r.pending = ""

	if res.Err != nil {
		metrics.Navigations.WithLabelValues("load_failed").Inc()
		r.deps.Env.Presenter.Present(viewLoadError(route.Module, res.Err), TitleViewLoad)
		return
	}
	r.activate(route, res.Val.(Module))
}

// activate instantiates the route's view and tears down the previous one.
// On failure the previous view stays current.
func (r *Resolver) activate(route Route, m Module) {
	d := r.deps
	if m.PageSize > 0 {
		d.PageSize = m.PageSize
	}

	v, err := m.New(d, m.Manifest)
	if err != nil {
		metrics.Navigations.WithLabelValues("load_failed").Inc()
		r.routeLog(route.Path).Error().Err(err).Msg("View construction failed")
		r.deps.Env.Presenter.Present(viewLoadError(route.Module, err), TitleViewLoad)
		return
	}

	prev := r.view
	r.current = route.Path
	r.route = route
	r.view = v
	if prev != nil {
		prev.Close()
	}

	metrics.Navigations.WithLabelValues("success").Inc()
	r.routeLog(route.Path).Info().Msg("Navigated")
	v.Start()
	if r.onChange != nil {
		r.onChange(route.Path, v)
	}
}

func (r *Resolver) sessionChanged(session.Change) {
	if r.view == nil || !r.route.RequiresSession || r.deps.Env.Store.SessionValid() {
		return
	}
	r.routeLog(r.current).Info().Msg("Session ended, leaving gated route")
	r.Navigate(r.cfg.LoginPath)
}

func (r *Resolver) clusterChanged(c session.Change) {
	if r.view == nil || !r.route.RequiresCluster || c.NewCluster != nil {
		return
	}
	r.routeLog(r.current).Info().Msg("Cluster cleared, leaving cluster route")
	r.Navigate(r.cfg.ClusterPath)
}

func (r *Resolver) routeLog(path string) *zerolog.Logger {
	l := log.WithRoute(path)
	return &l
}

func viewLoadError(id ModuleID, err error) *models.ErrorInfo {
	return &models.ErrorInfo{
		Kind:  models.KindModuleLoad,
		Code:  models.CodeViewLoadFailed,
		Data:  map[string]any{"module": string(id), "message": err.Error()},
		Cause: err,
	}
}
