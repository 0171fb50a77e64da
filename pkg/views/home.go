package views

import (
	"time"

	"cluster-portal/pkg/router"
	"cluster-portal/pkg/session"
)

// HomeSnapshot is the rendered state of the landing page
type HomeSnapshot struct {
	Title     string    `yaml:"title"`
	User      string    `yaml:"user"`
	ExpiresAt time.Time `yaml:"expiresAt,omitempty"`
	Cluster   string    `yaml:"cluster,omitempty"`
	EndPoint  string    `yaml:"endPoint,omitempty"`
	Pages     []string  `yaml:"pages"`
}

// homeView shows who is signed in and where they operate. It follows
// cluster changes but makes no requests.
type homeView struct {
	deps        router.Deps
	unsubscribe func()
	onUpdate    func()
}

func newHome(d router.Deps, _ router.Manifest) (router.View, error) {
	return &homeView{deps: d}, nil
}

func (v *homeView) Start() {
	v.unsubscribe = v.deps.Env.Store.OnChange(session.KindCluster, func(session.Change) { v.notify() })
	v.notify()
}

func (v *homeView) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
	v.onUpdate = nil
}

func (v *homeView) OnUpdate(fn func()) { v.onUpdate = fn }

func (v *homeView) Snapshot() any {
	s := v.deps.Env.Store.CurrentSession()
	snap := HomeSnapshot{
		Title:     "Home",
		User:      s.Identity,
		ExpiresAt: s.ExpiresAt,
		Pages:     []string{PathClusters},
	}
	if c := v.deps.Env.Store.CurrentCluster(); c != nil {
		snap.Cluster = c.ID
		if c.Name != "" {
			snap.Cluster = c.Name
		}
		snap.EndPoint = c.EndPoint
		snap.Pages = append(snap.Pages, PathAlerts, PathLogs, PathNetworks, PathComponents, PathSMTP)
	}
	return snap
}

func (v *homeView) notify() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}
