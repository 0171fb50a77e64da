package portal

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cluster-portal/pkg/config"
	"cluster-portal/pkg/kube"
	"cluster-portal/pkg/mockapi"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/session"
	"cluster-portal/pkg/views"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type env struct {
	t       *testing.T
	cfg     *config.Config
	api     *mockapi.Server
	backend *session.MemoryBackend
}

func newEnv(t *testing.T) *env {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Mock.DataDir = ""
	api, err := mockapi.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 5 * time.Second

	return &env{t: t, cfg: cfg, api: api, backend: session.NewMemoryBackend()}
}

type running struct {
	t      *testing.T
	portal *Portal
	out    *syncBuffer
}

func (e *env) start() *running {
	out := &syncBuffer{}
	p, err := New(e.cfg, WithBackend(e.backend), WithOutput(out))
	require.NoError(e.t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e.t.Cleanup(func() {
		p.Stop()
		cancel()
		<-p.Loop().Stopped()
		p.Close()
	})
	p.Start(ctx)
	return &running{t: e.t, portal: p, out: out}
}

func (r *running) exec(line string) {
	require.NoError(r.t, r.portal.Loop().Do(func() { r.portal.Shell().Exec(line) }))
}

// state reads the current route and snapshot on the loop
func (r *running) state() (string, any) {
	var path string
	var snapshot any
	err := r.portal.Loop().Do(func() {
		p, v := r.portal.Router().Current()
		path = p
		if s, ok := v.(views.Snapshotter); ok {
			snapshot = s.Snapshot()
		}
	})
	if err != nil {
		return "", nil
	}
	return path, snapshot
}

func (r *running) waitPath(path string) {
	require.Eventually(r.t, func() bool {
		p, _ := r.state()
		return p == path
	}, 3*time.Second, 10*time.Millisecond, "never reached %s", path)
}

func waitListing[T any](r *running, cond func(views.ListingSnapshot[T]) bool) views.ListingSnapshot[T] {
	var last views.ListingSnapshot[T]
	require.Eventually(r.t, func() bool {
		_, snapshot := r.state()
		s, ok := snapshot.(views.ListingSnapshot[T])
		if !ok || s.Loading {
			return false
		}
		last = s
		return cond(s)
	}, 3*time.Second, 10*time.Millisecond)
	return last
}

func (r *running) login() {
	r.waitPath(views.PathLogin)
	r.exec("login admin admin123")
	r.waitPath(views.PathHome)
}

func (r *running) selectCluster(name string) {
	r.exec("go " + views.PathClusters)
	r.waitPath(views.PathClusters)
	waitListing(r, func(s views.ListingSnapshot[models.Cluster]) bool { return s.Total > 0 })
	r.exec("select " + name)
	r.waitPath(views.PathHome)
}

func TestSignInSelectClusterAndBrowseAlerts(t *testing.T) {
	r := newEnv(t).start()
	r.login()
	assert.Equal(t, "admin", r.portal.Store().CurrentSession().Identity)

	// alerts needs a cluster first
	r.exec("go " + views.PathAlerts)
	r.waitPath(views.PathClusters)

	r.selectCluster("prod")
	require.NotNil(t, r.portal.Store().CurrentCluster())
	assert.Equal(t, mockapi.ProdClusterID, r.portal.Store().CurrentCluster().ID)

	r.exec("go " + views.PathAlerts)
	r.waitPath(views.PathAlerts)
	alerts := waitListing(r, func(s views.ListingSnapshot[models.Alert]) bool { return s.Total > 0 })
	assert.Equal(t, 45, alerts.Total)
	assert.Equal(t, 3, alerts.TotalPage)
	assert.Len(t, alerts.Items, 20)

	r.exec("page 3")
	last := waitListing(r, func(s views.ListingSnapshot[models.Alert]) bool { return s.Page == 3 })
	assert.Len(t, last.Items, 5)

	assert.Contains(t, r.out.String(), "/alerts")
}

func TestRevokedSessionForcesLogoutAfterAcknowledgement(t *testing.T) {
	e := newEnv(t)
	r := e.start()
	r.login()
	r.selectCluster("prod")
	r.exec("go " + views.PathLogs)
	r.waitPath(views.PathLogs)
	waitListing(r, func(s views.ListingSnapshot[models.LogEntry]) bool { return s.Total > 0 })

	e.api.Auth().Revoke(r.portal.Store().CurrentSession().Token)
	r.exec("refresh")

	require.Eventually(t, func() bool { return r.portal.Modal().Pending() }, 3*time.Second, 10*time.Millisecond)
	dialog, _ := r.portal.Modal().Current()
	assert.Equal(t, models.CodePermissionRevoked, dialog.Code)
	assert.True(t, dialog.SessionInvalid)

	// nothing happens until the user acknowledges
	assert.True(t, r.portal.Store().SessionValid())
	path, _ := r.state()
	assert.Equal(t, views.PathLogs, path)

	r.exec("ok")
	r.waitPath(views.PathLogin)
	assert.False(t, r.portal.Store().SessionValid())
	// the cluster selection outlives the session
	assert.NotNil(t, r.portal.Store().CurrentCluster())
}

func TestWrongPasswordIsPresented(t *testing.T) {
	r := newEnv(t).start()
	r.waitPath(views.PathLogin)

	r.exec("login admin wrong")
	require.Eventually(t, func() bool { return r.portal.Modal().Pending() }, 3*time.Second, 10*time.Millisecond)
	dialog, _ := r.portal.Modal().Current()
	assert.Equal(t, models.CodeInvalidCredentials, dialog.Code)
	assert.Equal(t, "login.failed", dialog.TitleKey)

	r.exec("ok")
	assert.False(t, r.portal.Modal().Pending())
	path, _ := r.state()
	assert.Equal(t, views.PathLogin, path)
}

func TestPersistedSessionIsRestored(t *testing.T) {
	e := newEnv(t)
	first := e.start()
	first.login()
	first.selectCluster("staging")
	first.portal.Stop()

	second := e.start()
	second.waitPath(views.PathHome)
	assert.Equal(t, "admin", second.portal.Store().CurrentSession().Identity)

	// the restored cookie authenticates requests
	second.exec("go " + views.PathAlerts)
	second.waitPath(views.PathAlerts)
	alerts := waitListing(second, func(s views.ListingSnapshot[models.Alert]) bool { return s.Total > 0 })
	assert.Equal(t, 7, alerts.Total)
	assert.Equal(t, "staging", alerts.Cluster)
}

func TestLogoutCommand(t *testing.T) {
	e := newEnv(t)
	r := e.start()
	r.login()
	token := r.portal.Store().CurrentSession().Token

	r.exec("logout")
	r.waitPath(views.PathLogin)
	assert.False(t, r.portal.Store().SessionValid())

	_, err := e.api.Auth().ValidateToken(token)
	assert.Error(t, err)
}

func TestManifestPageSize(t *testing.T) {
	e := newEnv(t)
	e.cfg.Views.Manifests = true
	r := e.start()
	r.login()
	r.selectCluster("prod")

	r.exec("go " + views.PathLogs)
	r.waitPath(views.PathLogs)
	logs := waitListing(r, func(s views.ListingSnapshot[models.LogEntry]) bool { return s.Total > 0 })
	assert.Equal(t, 60, logs.Total)
	assert.Len(t, logs.Items, 50)
	assert.Equal(t, 2, logs.TotalPage)
}

const kubeconfig = `apiVersion: v1
kind: Config
current-context: lab
clusters:
- name: lab
  cluster:
    server: https://lab.example.com:6443
- name: prod
  cluster:
    server: https://prod.example.com:6443
users:
- name: admin
  user:
    token: secret
contexts:
- name: lab
  context:
    cluster: lab
    user: admin
- name: prod
  context:
    cluster: prod
    user: admin
`

func TestImportClusters(t *testing.T) {
	e := newEnv(t)
	candidates, err := kube.ParseCandidates([]byte(kubeconfig))
	require.NoError(t, err)

	results, err := ImportClusters(context.Background(), e.cfg, "admin", "admin123", candidates, false)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "lab", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "https://lab.example.com:6443", results[0].Cluster.EndPoint)

	// prod is seeded already
	assert.Equal(t, "prod", results[1].Name)
	assert.Error(t, results[1].Err)
	assert.Equal(t, models.CodeRepositoryAlreadyPresent, results[1].Code)

	_, err = ImportClusters(context.Background(), e.cfg, "admin", "wrong", candidates, false)
	assert.Error(t, err)
}
