// Package portal assembles the running application: durable storage, the
// session store, the API gateway, the error presenter, the router with its
// views and the console shell, all driven by one event loop.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"cluster-portal/pkg/auth"
	"cluster-portal/pkg/config"
	"cluster-portal/pkg/console"
	"cluster-portal/pkg/gateway"
	"cluster-portal/pkg/log"
	"cluster-portal/pkg/loop"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/presenter"
	"cluster-portal/pkg/router"
	"cluster-portal/pkg/services"
	"cluster-portal/pkg/session"
	"cluster-portal/pkg/storage"
	"cluster-portal/pkg/view"
	"cluster-portal/pkg/views"

	"github.com/rs/zerolog"
)

// Option configures a Portal
type Option func(*options)

type options struct {
	backend session.Backend
	out     io.Writer
	client  *http.Client
}

// WithBackend replaces the bbolt database under the data directory
func WithBackend(b session.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithOutput sets where the console writes. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithHTTPClient replaces the HTTP client. Its jar, if any, is replaced by
// the portal's own.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Portal is the assembled application
type Portal struct {
	cfg     *config.Config
	db      *storage.BoltStore
	store   *session.Store
	loop    *loop.Loop
	jar     http.CookieJar
	api     *url.URL
	gateway *gateway.Gateway

	services  *services.Services
	account   *account
	modal     *console.Modal
	presenter *presenter.Presenter
	router    *router.Resolver
	shell     *console.Shell

	unsubscribe func()
	logger      zerolog.Logger
}

// New wires a portal from cfg. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*Portal, error) {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Portal{cfg: cfg, loop: loop.New(), logger: log.WithComponent("portal")}

	backend := o.backend
	if backend == nil {
		db, err := storage.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		p.db = db
		backend = db
	}

	store, err := session.New(backend)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.store = store

	if err := p.initGateway(o.client); err != nil {
		p.Close()
		return nil, err
	}
	p.services = services.New(p.gateway)
	p.account = &account{auth: p.services.Auth, secret: cfg.Session.JWTSecret}

	// The cookie must follow the session before the router reacts to it
	p.restoreCookie()
	p.unsubscribe = store.OnChange(session.KindSession, p.sessionChanged)

	p.modal = console.NewModal(o.out, nil)
	p.presenter = presenter.New(store, p.modal)

	registry := router.NewRegistry()
	views.Register(registry)
	var loader router.Loader = registry
	if cfg.Views.Manifests {
		loader = router.NewManifestLoader(p.gateway, registry)
	}

	p.router, err = router.New(views.RouteConfig(), loader, router.Deps{
		Env:      view.Env{Loop: p.loop, Store: store, Presenter: p.presenter},
		Services: p.services,
		Account:  p.account,
		PageSize: cfg.Views.PageSize,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.presenter.BindNavigator(p.router)

	p.shell = console.NewShell(console.ShellConfig{
		Loop:   p.loop,
		Router: p.router,
		Modal:  p.modal,
		Store:  store,
		Out:    o.out,
		Logout: p.Logout,
	})
	return p, nil
}

func (p *Portal) initGateway(client *http.Client) error {
	g, jar, api, err := newGateway(p.cfg, client)
	if err != nil {
		return err
	}
	p.gateway, p.jar, p.api = g, jar, api
	return nil
}

// newGateway creates a gateway whose client keeps cookies in a fresh jar
func newGateway(cfg *config.Config, client *http.Client) (*gateway.Gateway, http.CookieJar, *url.URL, error) {
	api, err := url.Parse(cfg.API.BaseURL)
	if err != nil || !api.IsAbs() {
		return nil, nil, nil, fmt.Errorf("api base url is not an absolute URL: %q", cfg.API.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, nil, err
	}

	hc := &http.Client{}
	if client != nil {
		c := *client
		hc = &c
	}
	hc.Jar = jar

	g, err := gateway.New(cfg.API.BaseURL,
		gateway.WithHTTPClient(hc),
		gateway.WithTimeout(cfg.API.Timeout),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return g, jar, api, nil
}

// Store returns the session store
func (p *Portal) Store() *session.Store { return p.store }

// Loop returns the event loop
func (p *Portal) Loop() *loop.Loop { return p.loop }

// Router returns the route resolver
func (p *Portal) Router() *router.Resolver { return p.router }

// Modal returns the console modal
func (p *Portal) Modal() *console.Modal { return p.modal }

// Shell returns the console shell
func (p *Portal) Shell() *console.Shell { return p.shell }

// Services returns the API services
func (p *Portal) Services() *services.Services { return p.services }

func (p *Portal) setCookie(token string) {
	c := &http.Cookie{Name: p.cfg.Session.CookieName, Value: token, Path: "/"}
	if token == "" {
		c.MaxAge = -1
	}
	p.jar.SetCookies(p.api, []*http.Cookie{c})
}

// restoreCookie hands a persisted session's token back to the jar
func (p *Portal) restoreCookie() {
	if s := p.store.CurrentSession(); s.Token != "" {
		p.setCookie(s.Token)
	}
}

func (p *Portal) sessionChanged(c session.Change) {
	if c.NewSession.Token == c.OldSession.Token {
		return
	}
	p.setCookie(c.NewSession.Token)
}

// Logout ends the session on the server and clears it locally. The local
// session is cleared even when the server call fails. It runs on the loop.
func (p *Portal) Logout() {
	loop.Async(p.loop, context.Background(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.account.Logout(ctx)
	}, func(_ struct{}, err error) {
		if err != nil {
			p.logger.Warn().Err(err).Msg("Server logout failed, clearing session anyway")
		}
		if err := p.store.ClearSession(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to persist logout")
		}
	})
}

// Start runs the loop in the background and queues the navigation home.
// Cancel ctx to stop the loop.
func (p *Portal) Start(ctx context.Context) {
	go func() {
		if err := p.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error().Err(err).Msg("Event loop stopped")
		}
	}()
	p.loop.Post(func() { p.router.Navigate(views.PathHome) })
}

// Run starts the portal and runs the shell on in until it quits
func (p *Portal) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := p.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	p.Start(ctx)
	err := p.shell.Run(ctx, in)
	p.Stop()
	cancel()
	<-p.loop.Stopped()
	return err
}

// Stop tears down the current view and detaches the modal
func (p *Portal) Stop() {
	if err := p.loop.Do(p.router.Close); err != nil {
		p.router.Close()
	}
	p.modal.Detach()
}

// Close releases the database
func (p *Portal) Close() error {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// account signs in through the API and derives the session from the token
type account struct {
	auth   *services.Auth
	secret string
}

func (a *account) Login(ctx context.Context, username, password string) (models.Session, error) {
	resp, err := a.auth.Login(ctx, username, password)
	if err != nil {
		return models.Session{}, err
	}

	s, err := auth.SessionFromToken(resp.Token, a.secret)
	if err != nil {
		return models.Session{}, &models.ErrorInfo{
			Kind:  models.KindProtocol,
			Code:  models.CodeInvalidToken,
			Cause: err,
		}
	}
	return s, nil
}

func (a *account) Logout(ctx context.Context) error {
	return a.auth.Logout(ctx)
}
