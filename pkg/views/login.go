package views

import (
	"context"
	"fmt"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/view"
)

// LoginSnapshot is the rendered state of the login page
type LoginSnapshot struct {
	Title   string `yaml:"title"`
	Status  string `yaml:"status"`
	Pending bool   `yaml:"pending,omitempty"`
}

type loginView struct {
	deps     router.Deps
	requests view.Tracker
	status   string
	pending  bool
	onUpdate func()
}

func newLogin(d router.Deps, m router.Manifest) (router.View, error) {
	if d.Account == nil || d.Env.Store == nil || d.Env.Loop == nil || d.Env.Presenter == nil {
		return nil, fmt.Errorf("module %s: incomplete dependencies", m.ID)
	}
	return &loginView{deps: d}, nil
}

func (v *loginView) Start() {
	v.status = "signed out"
	v.notify()
}

func (v *loginView) Close() { v.requests.Close() }

func (v *loginView) OnUpdate(fn func()) { v.onUpdate = fn }

func (v *loginView) Snapshot() any {
	return LoginSnapshot{Title: "Sign in", Status: v.status, Pending: v.pending}
}

func (v *loginView) Actions() []string {
	return []string{"login <username> <password>"}
}

func (v *loginView) Act(name string, args []string) error {
	if name != "login" {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	if len(args) != 2 {
		return usage("login <username> <password>")
	}
	v.Login(args[0], args[1])
	return nil
}

// Login signs in and, on success, stores the session and goes home. A newer
// attempt supersedes an older one.
func (v *loginView) Login(username, password string) {
	ctx, stamp := v.requests.Begin()
	v.pending = true
	v.status = "signing in as " + username
	v.notify()

	loop.Async(v.deps.Env.Loop, ctx, func(ctx context.Context) (models.Session, error) {
		return v.deps.Account.Login(ctx, username, password)
	}, func(s models.Session, err error) {
		if !v.requests.Current(stamp) {
			return
		}
		v.requests.Finish(stamp)
		v.pending = false

		if err != nil {
			v.status = "sign in failed"
			v.deps.Env.Presenter.Present(err, "login.failed")
			v.notify()
			return
		}

		if err := v.deps.Env.Store.SetSession(s); err != nil {
			logger := log.WithComponent("views")
			logger.Warn().Err(err).Msg("Session is active but could not be persisted")
		}
		v.status = "signed in as " + s.Identity
		v.notify()
		if v.deps.Navigator != nil {
			v.deps.Navigator.Navigate(PathHome)
		}
	})
}

func (v *loginView) notify() {
	if v.onUpdate != nil {
		v.onUpdate()
	}
}
