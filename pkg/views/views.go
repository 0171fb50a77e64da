// Package views implements the portal's pages on top of the view base and
// registers them as lazily loaded router modules.
package views

import (
	"context"
	"errors"
	"fmt"

	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/router"
)

// Route paths
const (
	PathLogin      = "/login"
	PathHome       = "/"
	PathClusters   = "/clusters"
	PathAlerts     = "/alerts"
	PathLogs       = "/logs"
	PathNetworks   = "/networks"
	PathComponents = "/components"
	PathSMTP       = "/smtp"
)

// Module IDs
const (
	ModuleLogin      router.ModuleID = "login"
	ModuleHome       router.ModuleID = "home"
	ModuleClusters   router.ModuleID = "clusters"
	ModuleAlerts     router.ModuleID = "alerts"
	ModuleLogs       router.ModuleID = "logs"
	ModuleNetworks   router.ModuleID = "networks"
	ModuleComponents router.ModuleID = "components"
	ModuleSMTP       router.ModuleID = "smtp"
)

var (
	// ErrUnknownAction is returned for an action the view does not offer
	ErrUnknownAction = errors.New("unknown action")
	// ErrUsage is returned when an action gets the wrong arguments
	ErrUsage = errors.New("wrong arguments")
)

// Snapshotter is a view that can be rendered
type Snapshotter interface {
	Snapshot() any
}

// Observable is a view that reports its own updates
type Observable interface {
	OnUpdate(fn func())
}

// Actor is a view offering actions beyond paging
type Actor interface {
	// Actions returns usage lines, one per action
	Actions() []string
	Act(action string, args []string) error
}

// Pager is a paged view
type Pager interface {
	SetPage(n int)
	SetFilter(key, value string)
	Refresh()
}

// RouteConfig returns the portal's route table
func RouteConfig() router.Config {
	return router.Config{
		Routes: []router.Route{
			{Path: PathLogin, Module: ModuleLogin},
			{Path: PathHome, Module: ModuleHome, RequiresSession: true},
			{Path: PathClusters, Module: ModuleClusters, RequiresSession: true},
			{Path: PathAlerts, Module: ModuleAlerts, RequiresSession: true, RequiresCluster: true},
			{Path: PathLogs, Module: ModuleLogs, RequiresSession: true, RequiresCluster: true},
			{Path: PathNetworks, Module: ModuleNetworks, RequiresSession: true, RequiresCluster: true},
			{Path: PathComponents, Module: ModuleComponents, RequiresSession: true, RequiresCluster: true},
			{Path: PathSMTP, Module: ModuleSMTP, RequiresSession: true, RequiresCluster: true},
		},
		HomePath:    PathHome,
		LoginPath:   PathLogin,
		ClusterPath: PathClusters,
	}
}

// Register adds every view factory to registry
func Register(registry *router.Registry) {
	registry.Register(ModuleLogin, newLogin)
	registry.Register(ModuleHome, newHome)
	registry.Register(ModuleClusters, newClusters)
	registry.Register(ModuleAlerts, newAlerts)
	registry.Register(ModuleLogs, newLogs)
	registry.Register(ModuleNetworks, newNetworks)
	registry.Register(ModuleComponents, newComponents)
	registry.Register(ModuleSMTP, newSMTP)
}

func requireServices(d router.Deps, m router.Manifest) error {
	if d.Services == nil || d.Env.Store == nil || d.Env.Loop == nil || d.Env.Presenter == nil {
		return fmt.Errorf("module %s: incomplete dependencies", m.ID)
	}
	return nil
}

// action runs work off the loop and, back on it, presents a failure under
// titleKey or calls done. Nothing happens once the view is closed.
func action(d router.Deps, closed func() bool, titleKey string, work func(ctx context.Context) error, done func()) {
	loop.Async(d.Env.Loop, context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	}, func(_ struct{}, err error) {
		if closed() {
			return
		}
		if err != nil {
			d.Env.Presenter.Present(err, titleKey)
			return
		}
		if done != nil {
			done()
		}
	})
}

func usage(line string) error {
	return fmt.Errorf("%w, usage: %s", ErrUsage, line)
}
