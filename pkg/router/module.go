package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cluster-portal/pkg/gateway"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/services"
	"cluster-portal/pkg/view"
)

// ErrUnknownModule is returned for a module nobody registered
var ErrUnknownModule = errors.New("unknown module")

// ModuleID names a lazily loaded view module
type ModuleID string

// View is a live view instance owned by the router
type View interface {
	// Start runs once the view became current
	Start()
	// Close tears the view down. It must stop all further updates.
	Close()
}

// Navigator moves the application to another route
type Navigator interface {
	Navigate(path string)
}

// Account signs the user in and out of the portal. It talks to the API
// only; the caller applies the result to the session store.
type Account interface {
	Login(ctx context.Context, username, password string) (models.Session, error)
	Logout(ctx context.Context) error
}

// Deps is everything a module factory may hand to its view
type Deps struct {
	Env       view.Env
	Services  *services.Services
	Account   Account
	Navigator Navigator
	// PageSize is the default listing limit
	PageSize int
}

// Manifest describes a module as the server publishes it
type Manifest struct {
	ID       ModuleID `json:"id" yaml:"id"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	PageSize int      `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
}

// Factory builds a view for a loaded module
type Factory func(d Deps, m Manifest) (View, error)

// Module is a loaded module ready to instantiate views
type Module struct {
	Manifest
	New Factory
}

// Loader loads a module by ID
type Loader interface {
	Load(ctx context.Context, id ModuleID) (Module, error)
}

// Registry holds the factories compiled into the binary. It is itself a
// Loader that resolves modules without any remote manifest.
type Registry struct {
	mu        sync.RWMutex
	factories map[ModuleID]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[ModuleID]Factory)}
}

// Register adds a factory, replacing any previous one for id
func (r *Registry) Register(id ModuleID, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Factory returns the factory registered for id
func (r *Registry) Factory(id ModuleID) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[id]
	return f, ok
}

func (r *Registry) Load(_ context.Context, id ModuleID) (Module, error) {
	f, ok := r.Factory(id)
	if !ok {
		return Module{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}
	return Module{Manifest: Manifest{ID: id}, New: f}, nil
}

// ManifestLoader fetches GET /modules/{id} and binds the manifest to the
// registered factory
type ManifestLoader struct {
	gateway  *gateway.Gateway
	registry *Registry
}

// NewManifestLoader creates a loader backed by the API's module manifests
func NewManifestLoader(g *gateway.Gateway, registry *Registry) *ManifestLoader {
	return &ManifestLoader{gateway: g, registry: registry}
}

func (l *ManifestLoader) Load(ctx context.Context, id ModuleID) (Module, error) {
	f, ok := l.registry.Factory(id)
	if !ok {
		return Module{}, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	m, err := gateway.Call[Manifest](ctx, l.gateway, gateway.RequestSpec{Path: "/modules/" + string(id)})
	if err != nil {
		return Module{}, fmt.Errorf("failed to fetch manifest for %s: %w", id, err)
	}
	if m.ID != "" && m.ID != id {
		return Module{}, fmt.Errorf("manifest for %s describes %s", id, m.ID)
	}
	m.ID = id
	return Module{Manifest: m, New: f}, nil
}
