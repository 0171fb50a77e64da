package mockapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cluster-portal/pkg/auth"
	"cluster-portal/pkg/config"
	"cluster-portal/pkg/kube"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/router"

	"github.com/gin-gonic/gin"
)

// Error data types reported in {"code": 400, "data": {"type": ...}} bodies
const (
	TypeInvalidRequest     = "InvalidRequest"
	TypeInvalidQuery       = "InvalidQuery"
	TypeClusterUnreachable = "ClusterUnreachable"
	TypeSMTPNotConfigured  = "SMTPNotConfigured"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	config    *config.Config
	store     *Store
	auth      *auth.Auth
	kube      *kube.Manager
	manifests map[router.ModuleID]router.Manifest
}

// NewHandlers creates a new Handlers instance
func NewHandlers(cfg *config.Config, store *Store, a *auth.Auth, k *kube.Manager) *Handlers {
	return &Handlers{
		config:    cfg,
		store:     store,
		auth:      a,
		kube:      k,
		manifests: defaultManifests(),
	}
}

func badRequest(c *gin.Context, dataType, message string) {
	data := gin.H{"type": dataType}
	if message != "" {
		data["message"] = message
	}
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "data": data})
}

func notFound(c *gin.Context, dataType, id string) {
	c.JSON(http.StatusNotFound, gin.H{"code": models.CodeNotFound, "data": gin.H{"type": dataType, "id": id}})
}

func alreadyPresent(c *gin.Context) {
	badRequest(c, models.CodeRepositoryAlreadyPresent, "")
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"code": models.CodeServerError, "data": gin.H{"message": err.Error()}})
}

// ============== Auth Handlers ==============

// Login handles user login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, TypeInvalidRequest, err.Error())
		return
	}

	if err := h.auth.ValidateCredentials(req.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": models.CodeInvalidCredentials})
		return
	}

	token, expiresAt, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		internalError(c, err)
		return
	}

	// Set token as cookie
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(h.config.Session.CookieName, token, maxAge, "/", "", false, true)

	c.JSON(http.StatusOK, models.LoginResponse{Token: token, Username: req.Username})
}

// Logout revokes the caller's token and clears the cookie
func (h *Handlers) Logout(c *gin.Context) {
	h.auth.Revoke(c.GetString("token"))
	c.SetCookie(h.config.Session.CookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// ============== Listing helpers ==============

// filterFields maps a query parameter to the entity field it filters on
type filterFields[T any] map[string]func(T) string

// respondPage filters items by the query string, then slices them by
// skip/limit into a {count, data} page. count is taken after filtering.
func respondPage[T any](c *gin.Context, items []T, fields filterFields[T]) {
	skip, limit, ok := pageBounds(c)
	if !ok {
		return
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if matches(c, item, fields) {
			filtered = append(filtered, item)
		}
	}

	c.JSON(http.StatusOK, models.Page[T]{Count: len(filtered), Data: window(filtered, skip, limit)})
}

func pageBounds(c *gin.Context) (skip, limit int, ok bool) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		badRequest(c, TypeInvalidQuery, "skip must be a non-negative integer")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		badRequest(c, TypeInvalidQuery, "limit must be a non-negative integer")
		return 0, 0, false
	}
	return skip, limit, true
}

func matches[T any](c *gin.Context, item T, fields filterFields[T]) bool {
	for param, field := range fields {
		want := c.Query(param)
		if want != "" && !strings.EqualFold(field(item), want) {
			return false
		}
	}
	return true
}

// window returns items[skip:skip+limit]; a zero limit means no limit
func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}

// cluster resolves the :id path parameter or writes a 404
func (h *Handlers) cluster(c *gin.Context) (clusterRecord, bool) {
	id := c.Param("id")
	cluster, found := h.store.cluster(id)
	if !found {
		notFound(c, "Cluster", id)
		return clusterRecord{}, false
	}
	return cluster, true
}

func (r clusterRecord) target() kube.Target {
	return kube.Target{ID: r.ID, Kubeconfig: r.Kubeconfig}
}

// ============== Cluster Handlers ==============

// ListClusters returns a page of clusters. Clusters registered with a
// kubeconfig get their connection status probed.
func (h *Handlers) ListClusters(c *gin.Context) {
	skip, limit, ok := pageBounds(c)
	if !ok {
		return
	}

	records := h.store.clusters()
	filtered := make([]clusterRecord, 0, len(records))
	name := c.Query("name")
	for _, r := range records {
		if name == "" || strings.Contains(strings.ToLower(r.Name), strings.ToLower(name)) {
			filtered = append(filtered, r)
		}
	}

	page := window(filtered, skip, limit)
	result := make([]models.Cluster, 0, len(page))
	for _, r := range page {
		cluster := r.Cluster
		if r.Kubeconfig != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			if _, err := h.kube.TestConnection(ctx, r.target()); err != nil {
				cluster.Status = "unreachable"
			} else {
				cluster.Status = "connected"
			}
			cancel()
		}
		result = append(result, cluster)
	}

	c.JSON(http.StatusOK, models.Page[models.Cluster]{Count: len(filtered), Data: result})
}

// AddClusterRequest represents add cluster request
type AddClusterRequest struct {
	Name     string `json:"name" binding:"required"`
	EndPoint string `json:"endPoint"`
	// Kubeconfig can be base64 or plain text
	Kubeconfig string `json:"kubeconfig"`
	// SkipProbe registers the cluster without contacting it
	SkipProbe bool `json:"skipProbe"`
}

// AddCluster adds a new cluster
func (h *Handlers) AddCluster(c *gin.Context) {
	var req AddClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, TypeInvalidRequest, err.Error())
		return
	}
	if req.EndPoint == "" && req.Kubeconfig == "" {
		badRequest(c, TypeInvalidRequest, "endPoint or kubeconfig required")
		return
	}

	record := clusterRecord{
		Cluster: models.Cluster{
			Name:      req.Name,
			EndPoint:  req.EndPoint,
			Status:    "registered",
			CreatedAt: time.Now().UTC(),
		},
	}

	if req.Kubeconfig != "" {
		record.Kubeconfig = kube.EncodeKubeconfig(req.Kubeconfig)

		if !req.SkipProbe {
			// Test connection before saving
			ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
			defer cancel()

			if _, err := h.kube.TestConnection(ctx, record.target()); err != nil {
				badRequest(c, TypeClusterUnreachable, err.Error())
				return
			}
			record.Status = "connected"
		}
	}

	saved, err := h.store.addCluster(record)
	if errors.Is(err, ErrAlreadyPresent) {
		alreadyPresent(c)
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, saved.Cluster)
}

// DeleteCluster deletes a cluster
func (h *Handlers) DeleteCluster(c *gin.Context) {
	id := c.Param("id")
	h.kube.RemoveClient(id)

	if err := h.store.deleteCluster(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			notFound(c, "Cluster", id)
			return
		}
		internalError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ============== Alert Handlers ==============

var alertFields = filterFields[models.Alert]{
	"severity":  func(a models.Alert) string { return a.Severity },
	"status":    func(a models.Alert) string { return a.Status },
	"component": func(a models.Alert) string { return a.Component },
}

// ListAlerts returns a page of the cluster's alerts
func (h *Handlers) ListAlerts(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	respondPage(c, h.store.alerts(cluster.ID), alertFields)
}

// AckAlert acknowledges an alert
func (h *Handlers) AckAlert(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	alert, err := h.store.ackAlert(cluster.ID, c.Param("alert"))
	if errors.Is(err, ErrNotFound) {
		notFound(c, "Alert", c.Param("alert"))
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// ============== Log Handlers ==============

var logFields = filterFields[models.LogEntry]{
	"level":     func(l models.LogEntry) string { return l.Level },
	"component": func(l models.LogEntry) string { return l.Component },
	"host":      func(l models.LogEntry) string { return l.Host },
}

// ListLogs returns a page of the cluster's log lines
func (h *Handlers) ListLogs(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	respondPage(c, h.store.logs(cluster.ID), logFields)
}

// ============== Network Handlers ==============

var networkFields = filterFields[models.Network]{
	"name":   func(n models.Network) string { return n.Name },
	"driver": func(n models.Network) string { return n.Driver },
}

// ListNetworks returns a page of the cluster's networks
func (h *Handlers) ListNetworks(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	respondPage(c, h.store.networks(cluster.ID), networkFields)
}

// CreateNetworkRequest represents create network request
type CreateNetworkRequest struct {
	Name    string `json:"name" binding:"required"`
	Subnet  string `json:"subnet" binding:"required"`
	Gateway string `json:"gateway"`
	Driver  string `json:"driver"`
}

// CreateNetwork adds a network. Names are unique per cluster.
func (h *Handlers) CreateNetwork(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}

	var req CreateNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, TypeInvalidRequest, err.Error())
		return
	}
	if req.Driver == "" {
		req.Driver = "bridge"
	}

	n, err := h.store.addNetwork(cluster.ID, models.Network{
		Name:    req.Name,
		Subnet:  req.Subnet,
		Gateway: req.Gateway,
		Driver:  req.Driver,
	})
	if errors.Is(err, ErrAlreadyPresent) {
		alreadyPresent(c)
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// DeleteNetwork deletes a network
func (h *Handlers) DeleteNetwork(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	if err := h.store.deleteNetwork(cluster.ID, c.Param("network")); err != nil {
		if errors.Is(err, ErrNotFound) {
			notFound(c, "Network", c.Param("network"))
			return
		}
		internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ============== Component Handlers ==============

var componentFields = filterFields[models.Component]{
	"kind":   func(m models.Component) string { return m.Kind },
	"status": func(m models.Component) string { return m.Status },
}

// ListComponents returns a page of the cluster's components. Clusters with a
// kubeconfig are asked live, others answer from fixtures.
func (h *Handlers) ListComponents(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}

	if cluster.Kubeconfig == "" {
		respondPage(c, h.store.components(cluster.ID), componentFields)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	components, err := h.kube.Components(ctx, cluster.target())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"code": TypeClusterUnreachable, "data": gin.H{"message": err.Error()}})
		return
	}
	respondPage(c, components, componentFields)
}

// ============== SMTP Handlers ==============

// GetSMTP returns the cluster's mail configuration without the password
func (h *Handlers) GetSMTP(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}
	cfg := h.store.smtp(cluster.ID)
	cfg.Password = ""
	if cfg.Recipients == nil {
		cfg.Recipients = []string{}
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateSMTP replaces the cluster's mail configuration. An empty password
// keeps the stored one.
func (h *Handlers) UpdateSMTP(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}

	var cfg models.SMTPConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		badRequest(c, TypeInvalidRequest, err.Error())
		return
	}
	if cfg.Host == "" || cfg.Port < 1 || cfg.Port > 65535 {
		badRequest(c, TypeInvalidRequest, "host and a port between 1 and 65535 are required")
		return
	}
	if cfg.Password == "" {
		cfg.Password = h.store.smtp(cluster.ID).Password
	}

	if err := h.store.setSMTP(cluster.ID, cfg); err != nil {
		internalError(c, err)
		return
	}
	cfg.Password = ""
	c.JSON(http.StatusOK, cfg)
}

// TestSMTPRequest represents the test mail request
type TestSMTPRequest struct {
	Recipient string `json:"recipient" binding:"required"`
}

// TestSMTP pretends to send a test mail
func (h *Handlers) TestSMTP(c *gin.Context) {
	cluster, ok := h.cluster(c)
	if !ok {
		return
	}

	var req TestSMTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, TypeInvalidRequest, err.Error())
		return
	}
	if h.store.smtp(cluster.ID).Host == "" {
		badRequest(c, TypeSMTPNotConfigured, "")
		return
	}
	c.Status(http.StatusNoContent)
}

// ============== Module Handlers ==============

func defaultManifests() map[router.ModuleID]router.Manifest {
	manifests := map[router.ModuleID]router.Manifest{}
	for _, m := range []router.Manifest{
		{ID: "login", Title: "Sign in"},
		{ID: "home", Title: "Overview"},
		{ID: "clusters", Title: "Clusters"},
		{ID: "alerts", Title: "Alerts"},
		{ID: "logs", Title: "Logs", PageSize: 50},
		{ID: "networks", Title: "Networks"},
		{ID: "components", Title: "Components"},
		{ID: "smtp", Title: "Mail notifications"},
	} {
		m.Version = "1.0.0"
		manifests[m.ID] = m
	}
	return manifests
}

// Manifest publishes a view module's manifest
func (h *Handlers) Manifest(c *gin.Context) {
	id := router.ModuleID(c.Param("module"))
	m, ok := h.manifests[id]
	if !ok {
		notFound(c, "Module", string(id))
		return
	}
	c.JSON(http.StatusOK, m)
}
