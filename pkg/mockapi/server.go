// Package mockapi is a development server speaking the cluster-management
// REST API the portal consumes. It serves seeded fixtures and, for clusters
// registered with a kubeconfig, live data through client-go.
package mockapi

import (
	"fmt"
	"net/http"
	"strconv"

	"cluster-portal/pkg/auth"
	"cluster-portal/pkg/config"
	"cluster-portal/pkg/kube"
	"cluster-portal/pkg/log"
	"cluster-portal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Server wires the store, auth and handlers into a gin engine
type Server struct {
	cfg    *config.Config
	store  *Store
	auth   *auth.Auth
	engine *gin.Engine
}

// New creates a server from cfg. cfg.Mock.DataDir empty keeps the data in
// memory.
func New(cfg *config.Config) (*Server, error) {
	return newServer(cfg, kube.NewManager())
}

func newServer(cfg *config.Config, k *kube.Manager) (*Server, error) {
	// Initialize store
	store, err := NewStore(cfg.Mock.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// Initialize auth
	a := auth.New(&cfg.Mock, cfg.Session.TTL)

	h := NewHandlers(cfg, store, a, k)

	s := &Server{cfg: cfg, store: store, auth: a}
	s.engine = s.routes(h)
	return s, nil
}

func (s *Server) routes(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/modules/:module", h.Manifest)

	// API routes
	api := r.Group("/api")
	api.Use(s.auth.Middleware(s.cfg.Session.CookieName))
	{
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)

		// Cluster management
		api.GET("/clusters", h.ListClusters)
		api.POST("/clusters", h.AddCluster)
		api.DELETE("/clusters/:id", h.DeleteCluster)

		api.GET("/clusters/:id/alerts", h.ListAlerts)
		api.POST("/clusters/:id/alerts/:alert/ack", h.AckAlert)
		api.GET("/clusters/:id/logs", h.ListLogs)
		api.GET("/clusters/:id/networks", h.ListNetworks)
		api.POST("/clusters/:id/networks", h.CreateNetwork)
		api.DELETE("/clusters/:id/networks/:network", h.DeleteNetwork)
		api.GET("/clusters/:id/components", h.ListComponents)
		api.GET("/clusters/:id/smtp", h.GetSMTP)
		api.PUT("/clusters/:id/smtp", h.UpdateSMTP)
		api.POST("/clusters/:id/smtp/test", h.TestSMTP)
	}
	return r
}

// requestLogger logs every request through zerolog and counts it
func requestLogger() gin.HandlerFunc {
	logger := log.WithComponent("mockapi")
	return func(c *gin.Context) {
		timer := metrics.NewTimer()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.MockRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", timer.Duration()).
			Msg("request")
	}
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Auth returns the server's token issuer
func (s *Server) Auth() *auth.Auth {
	return s.auth
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Mock.Host, s.cfg.Mock.Port)
}

// Run serves the API on the configured address until it fails
func (s *Server) Run() error {
	logger := log.WithComponent("mockapi")
	logger.Info().Str("addr", s.Addr()).Str("username", s.cfg.Mock.Username).Msg("starting development API")
	return s.engine.Run(s.Addr())
}
