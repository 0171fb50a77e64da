// Package services wraps the REST API in typed calls, one service per
// feature area. Failures are returned untouched so callers can present them.
package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"cluster-portal/pkg/gateway"
	"cluster-portal/pkg/models"
)

// ErrNoCluster is returned by cluster-scoped calls made without a selection
var ErrNoCluster = errors.New("no cluster selected")

// Services bundles every feature service
type Services struct {
	Auth       *Auth
	Clusters   *Clusters
	Alerts     *Alerts
	Logs       *Logs
	Networks   *Networks
	Components *Components
	SMTP       *SMTP
}

// New creates all services on top of g
func New(g *gateway.Gateway) *Services {
	return &Services{
		Auth:       &Auth{g: g},
		Clusters:   &Clusters{g: g},
		Alerts:     &Alerts{g: g},
		Logs:       &Logs{g: g},
		Networks:   &Networks{g: g},
		Components: &Components{g: g},
		SMTP:       &SMTP{g: g},
	}
}

// clusterPath builds /api/clusters/{id}/{parts...}
func clusterPath(c *models.ClusterSelection, parts ...string) (string, error) {
	if c == nil || c.ID == "" {
		return "", ErrNoCluster
	}
	segs := []string{"api", "clusters", url.PathEscape(c.ID)}
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return "/" + strings.Join(segs, "/"), nil
}

func list[T any](ctx context.Context, g *gateway.Gateway, path string, q models.PageQuery) (models.Page[T], error) {
	p, err := g.Send(ctx, gateway.RequestSpec{Method: http.MethodGet, Path: path, Query: gateway.ListQuery(q)})
	if err != nil {
		return models.Page[T]{}, err
	}
	return gateway.DecodePage[T](p)
}

func listIn[T any](ctx context.Context, g *gateway.Gateway, c *models.ClusterSelection, q models.PageQuery, parts ...string) (models.Page[T], error) {
	path, err := clusterPath(c, parts...)
	if err != nil {
		return models.Page[T]{}, err
	}
	return list[T](ctx, g, path, q)
}

// Auth signs users in and out
type Auth struct {
	g *gateway.Gateway
}

// Login exchanges credentials for a session token. The API also sets the
// session cookie on the gateway's cookie jar.
func (a *Auth) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	return gateway.Call[models.LoginResponse](ctx, a.g, gateway.RequestSpec{
		Method: http.MethodPost,
		Path:   "/api/login",
		Body:   models.LoginRequest{Username: username, Password: password},
	})
}

// Logout ends the session on the server
func (a *Auth) Logout(ctx context.Context) error {
	_, err := a.g.Send(ctx, gateway.RequestSpec{Method: http.MethodPost, Path: "/api/logout"})
	return err
}

// Clusters lists the clusters the user can operate against
type Clusters struct {
	g *gateway.Gateway
}

func (s *Clusters) List(ctx context.Context, q models.PageQuery) (models.Page[models.Cluster], error) {
	return list[models.Cluster](ctx, s.g, "/api/clusters", q)
}

// NewCluster registers a cluster. Kubeconfig may be plain or base64 encoded.
type NewCluster struct {
	Name       string `json:"name"`
	EndPoint   string `json:"endPoint,omitempty"`
	Kubeconfig string `json:"kubeconfig,omitempty"`
	SkipProbe  bool   `json:"skipProbe,omitempty"`
}

func (s *Clusters) Add(ctx context.Context, c NewCluster) (models.Cluster, error) {
	return gateway.Call[models.Cluster](ctx, s.g, gateway.RequestSpec{Method: http.MethodPost, Path: "/api/clusters", Body: c})
}

func (s *Clusters) Delete(ctx context.Context, id string) error {
	_, err := s.g.Send(ctx, gateway.RequestSpec{Method: http.MethodDelete, Path: "/api/clusters/" + url.PathEscape(id)})
	return err
}

// Alerts reads and acknowledges cluster alerts
type Alerts struct {
	g *gateway.Gateway
}

func (s *Alerts) List(ctx context.Context, c *models.ClusterSelection, q models.PageQuery) (models.Page[models.Alert], error) {
	return listIn[models.Alert](ctx, s.g, c, q, "alerts")
}

// Acknowledge marks an alert as seen and returns its new state
func (s *Alerts) Acknowledge(ctx context.Context, c *models.ClusterSelection, id string) (models.Alert, error) {
	path, err := clusterPath(c, "alerts", id, "ack")
	if err != nil {
		return models.Alert{}, err
	}
	return gateway.Call[models.Alert](ctx, s.g, gateway.RequestSpec{Method: http.MethodPost, Path: path})
}

// Logs reads cluster logs
type Logs struct {
	g *gateway.Gateway
}

func (s *Logs) List(ctx context.Context, c *models.ClusterSelection, q models.PageQuery) (models.Page[models.LogEntry], error) {
	return listIn[models.LogEntry](ctx, s.g, c, q, "logs")
}

// Networks manages cluster networks
type Networks struct {
	g *gateway.Gateway
}

func (s *Networks) List(ctx context.Context, c *models.ClusterSelection, q models.PageQuery) (models.Page[models.Network], error) {
	return listIn[models.Network](ctx, s.g, c, q, "networks")
}

func (s *Networks) Create(ctx context.Context, c *models.ClusterSelection, n models.Network) (models.Network, error) {
	path, err := clusterPath(c, "networks")
	if err != nil {
		return models.Network{}, err
	}
	return gateway.Call[models.Network](ctx, s.g, gateway.RequestSpec{Method: http.MethodPost, Path: path, Body: n})
}

func (s *Networks) Delete(ctx context.Context, c *models.ClusterSelection, id string) error {
	path, err := clusterPath(c, "networks", id)
	if err != nil {
		return err
	}
	_, err = s.g.Send(ctx, gateway.RequestSpec{Method: http.MethodDelete, Path: path})
	return err
}

// Components lists services running on a cluster
type Components struct {
	g *gateway.Gateway
}

func (s *Components) List(ctx context.Context, c *models.ClusterSelection, q models.PageQuery) (models.Page[models.Component], error) {
	return listIn[models.Component](ctx, s.g, c, q, "components")
}

// SMTP manages the alert mail configuration of a cluster
type SMTP struct {
	g *gateway.Gateway
}

func (s *SMTP) Get(ctx context.Context, c *models.ClusterSelection) (models.SMTPConfig, error) {
	path, err := clusterPath(c, "smtp")
	if err != nil {
		return models.SMTPConfig{}, err
	}
	return gateway.Call[models.SMTPConfig](ctx, s.g, gateway.RequestSpec{Method: http.MethodGet, Path: path})
}

func (s *SMTP) Update(ctx context.Context, c *models.ClusterSelection, cfg models.SMTPConfig) (models.SMTPConfig, error) {
	path, err := clusterPath(c, "smtp")
	if err != nil {
		return models.SMTPConfig{}, err
	}
	return gateway.Call[models.SMTPConfig](ctx, s.g, gateway.RequestSpec{Method: http.MethodPut, Path: path, Body: cfg})
}

// Test asks the cluster to send a test mail to recipient
func (s *SMTP) Test(ctx context.Context, c *models.ClusterSelection, recipient string) error {
	path, err := clusterPath(c, "smtp", "test")
	if err != nil {
		return err
	}
	_, err = s.g.Send(ctx, gateway.RequestSpec{
		Method: http.MethodPost,
		Path:   path,
		Body:   map[string]string{"recipient": recipient},
	})
	return err
}
