package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cluster-portal/pkg/gateway"
	"cluster-portal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method string
	path   string
	query  string
	body   map[string]any
}

func newServices(t *testing.T, status int, reply string) (*Services, *seen) {
	t.Helper()
	got := &seen{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.EscapedPath()
		got.query = r.URL.RawQuery
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&got.body)
		}
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	g, err := gateway.New(server.URL)
	require.NoError(t, err)
	return New(g), got
}

var c1 = &models.ClusterSelection{ID: "c1", EndPoint: "https://c1"}

func TestClusterScopedPaths(t *testing.T) {
	q := models.PageQuery{Skip: 0, Limit: 20}
	ctx := context.Background()

	tests := []struct {
		name string
		call func(s *Services) error
		path string
	}{
		{"alerts", func(s *Services) error { _, err := s.Alerts.List(ctx, c1, q); return err }, "/api/clusters/c1/alerts"},
		{"logs", func(s *Services) error { _, err := s.Logs.List(ctx, c1, q); return err }, "/api/clusters/c1/logs"},
		{"networks", func(s *Services) error { _, err := s.Networks.List(ctx, c1, q); return err }, "/api/clusters/c1/networks"},
		{"components", func(s *Services) error { _, err := s.Components.List(ctx, c1, q); return err }, "/api/clusters/c1/components"},
		{"clusters", func(s *Services) error { _, err := s.Clusters.List(ctx, q); return err }, "/api/clusters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, got := newServices(t, http.StatusOK, `{"count": 0, "data": []}`)
			require.NoError(t, tt.call(s))
			assert.Equal(t, http.MethodGet, got.method)
			assert.Equal(t, tt.path, got.path)
			assert.Equal(t, "limit=20&skip=0", got.query)
		})
	}
}

func TestClusterScopedCallsRequireSelection(t *testing.T) {
	s, got := newServices(t, http.StatusOK, `{}`)

	_, err := s.Alerts.List(context.Background(), nil, models.PageQuery{})
	assert.ErrorIs(t, err, ErrNoCluster)
	err = s.SMTP.Test(context.Background(), &models.ClusterSelection{}, "ops@example.com")
	assert.ErrorIs(t, err, ErrNoCluster)
	assert.Empty(t, got.method)
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	s, got := newServices(t, http.StatusNoContent, ``)

	err := s.Networks.Delete(context.Background(), &models.ClusterSelection{ID: "a/b"}, "n 1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/api/clusters/a%2Fb/networks/n%201", got.path)
}

func TestLogin(t *testing.T) {
	s, got := newServices(t, http.StatusOK, `{"token": "tok", "username": "admin"}`)

	resp, err := s.Auth.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "/api/login", got.path)
	assert.Equal(t, "admin", got.body["username"])
	assert.Equal(t, "secret", got.body["password"])
}

func TestCreateNetworkPassesErrorThrough(t *testing.T) {
	s, _ := newServices(t, http.StatusBadRequest, `{"code": 400, "data": {"type": "RepositoryAlreadyPresent"}}`)

	_, err := s.Networks.Create(context.Background(), c1, models.Network{Name: "backend"})
	var info *models.ErrorInfo
	require.ErrorAs(t, err, &info)
	assert.Equal(t, "400", info.Code)
	assert.Equal(t, "RepositoryAlreadyPresent", info.DataType())
}

func TestSMTPUpdateAndTest(t *testing.T) {
	s, got := newServices(t, http.StatusOK, `{"host": "mail", "port": 25, "from": "portal@example.com", "recipients": ["ops@example.com"]}`)

	cfg, err := s.SMTP.Update(context.Background(), c1, models.SMTPConfig{Host: "mail", Port: 25})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/api/clusters/c1/smtp", got.path)
	assert.Equal(t, []string{"ops@example.com"}, cfg.Recipients)

	require.NoError(t, s.SMTP.Test(context.Background(), c1, "ops@example.com"))
	assert.Equal(t, "/api/clusters/c1/smtp/test", got.path)
	assert.Equal(t, "ops@example.com", got.body["recipient"])
}

func TestAddCluster(t *testing.T) {
	s, got := newServices(t, http.StatusCreated, `{"_id": "c9", "name": "lab", "endPoint": "https://lab:6443"}`)

	c, err := s.Clusters.Add(context.Background(), NewCluster{Name: "lab", EndPoint: "https://lab:6443", SkipProbe: true})
	require.NoError(t, err)
	assert.Equal(t, "c9", c.ID)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/clusters", got.path)
	assert.Equal(t, true, got.body["skipProbe"])
	assert.NotContains(t, got.body, "kubeconfig")
}
