package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cluster-portal/pkg/gateway"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, h http.Handler, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	g, err := gateway.New(server.URL+"/", opts...)
	require.NoError(t, err)
	return g
}

func errorInfo(t *testing.T, err error) *models.ErrorInfo {
	t.Helper()
	var info *models.ErrorInfo
	require.True(t, errors.As(err, &info), "error is not *models.ErrorInfo: %v", err)
	return info
}

func TestNewRejectsRelativeRoot(t *testing.T) {
	_, err := gateway.New("api/v1")
	assert.Error(t, err)
}

func TestSendListing(t *testing.T) {
	var got *http.Request
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count": 45, "data": [{"_id": "a1", "name": "disk full", "severity": "critical"}]}`))
	}))

	q := models.PageQuery{Skip: 20, Limit: 20, Filters: map[string]string{"severity": "critical", "status": ""}}
	p, err := g.Send(context.Background(), gateway.RequestSpec{Path: "/api/clusters/c1/alerts", Query: gateway.ListQuery(q)})
	require.NoError(t, err)

	page, err := gateway.DecodePage[models.Alert](p)
	require.NoError(t, err)
	assert.Equal(t, 45, page.Count)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "disk full", page.Data[0].Name)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/api/clusters/c1/alerts", got.URL.Path)
	assert.Equal(t, "20", got.URL.Query().Get("skip"))
	assert.Equal(t, "20", got.URL.Query().Get("limit"))
	assert.Equal(t, "critical", got.URL.Query().Get("severity"))
	assert.False(t, got.URL.Query().Has("status"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
}

func TestSendJSONBody(t *testing.T) {
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var net models.Network
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&net))
		net.ID = "n1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(net)
	}))

	created, err := gateway.Call[models.Network](context.Background(), g, gateway.RequestSpec{
		Method: http.MethodPost,
		Path:   "api/clusters/c1/networks",
		Body:   models.Network{Name: "backend", Subnet: "10.1.0.0/16"},
	})
	require.NoError(t, err)
	assert.Equal(t, "n1", created.ID)
	assert.Equal(t, "backend", created.Name)
}

func TestSendEmptySuccessBody(t *testing.T) {
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	p, err := g.Send(context.Background(), gateway.RequestSpec{Method: http.MethodDelete, Path: "/api/x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, p.Status)
	assert.Empty(t, p.Body)

	_, err = gateway.Decode[models.Network](p)
	assert.Equal(t, models.KindProtocol, errorInfo(t, err).Kind)
}

func TestSendErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind models.ErrorKind
		wantCode string
		wantType string
	}{
		{
			name: "application error passes through", status: http.StatusBadRequest,
			body:     `{"code": 400, "data": {"type": "RepositoryAlreadyPresent"}}`,
			wantKind: models.KindApplication, wantCode: "400", wantType: "RepositoryAlreadyPresent",
		},
		{
			name: "string code", status: http.StatusUnauthorized,
			body:     `{"code": "SessionExpired"}`,
			wantKind: models.KindApplication, wantCode: models.CodeSessionExpired,
		},
		{
			name: "empty code is kept for the presenter", status: http.StatusInternalServerError,
			body:     `{"code": ""}`,
			wantKind: models.KindApplication, wantCode: "",
		},
		{
			name: "object without code uses status", status: http.StatusBadGateway,
			body:     `{"message": "upstream down"}`,
			wantKind: models.KindApplication, wantCode: "502",
		},
		{
			name: "bare string", status: http.StatusInternalServerError,
			body:     `"something broke"`,
			wantKind: models.KindApplication, wantCode: models.CodeServerError,
		},
		{
			name: "html error page", status: http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantKind: models.KindProtocol, wantCode: models.CodeUnreachableServer,
		},
		{
			name: "2xx with non json body", status: http.StatusOK,
			body:     `<html>login</html>`,
			wantKind: models.KindProtocol, wantCode: models.CodeUnreachableServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := g.Send(context.Background(), gateway.RequestSpec{Path: "/api/anything"})
			info := errorInfo(t, err)
			assert.Equal(t, tt.wantKind, info.Kind)
			assert.Equal(t, tt.wantCode, info.Code)
			assert.Equal(t, tt.wantType, info.DataType())
			assert.Equal(t, tt.status, info.Status)
		})
	}
}

func TestStatusClassOf(t *testing.T) {
	tests := []struct {
		code int
		want gateway.StatusClass
	}{
		{0, gateway.StatusNone},
		{101, gateway.Status1xx},
		{204, gateway.Status2xx},
		{302, gateway.Status3xx},
		{409, gateway.Status4xx},
		{503, gateway.Status5xx},
		{700, gateway.StatusNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gateway.StatusClassOf(tt.code), "code %d", tt.code)
	}
	assert.Equal(t, "4xx", gateway.Status4xx.String())
	assert.Equal(t, "none", gateway.StatusNone.String())
}

func TestSendCountsRequestsByStatusClass(t *testing.T) {
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code": "NotFound", "data": {"type": "Cluster"}}`))
			return
		}
		w.Write([]byte(`{}`))
	}))

	ok := metrics.RequestsTotal.WithLabelValues(http.MethodPatch, "success", "2xx")
	missing := metrics.RequestsTotal.WithLabelValues(http.MethodPatch, "application", "4xx")
	okBefore, missingBefore := testutil.ToFloat64(ok), testutil.ToFloat64(missing)

	_, err := g.Send(context.Background(), gateway.RequestSpec{Method: http.MethodPatch, Path: "/api/found"})
	require.NoError(t, err)
	_, err = g.Send(context.Background(), gateway.RequestSpec{Method: http.MethodPatch, Path: "/api/missing"})
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, missingBefore+1, testutil.ToFloat64(missing))
}

func TestSendTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	g, err := gateway.New(url)
	require.NoError(t, err)

	_, err = g.Send(context.Background(), gateway.RequestSpec{Path: "/api/clusters"})
	info := errorInfo(t, err)
	assert.Equal(t, models.KindTransport, info.Kind)
	assert.Equal(t, models.CodeServiceUnavailable, info.Code)
	assert.NotNil(t, info.Cause)
}

func TestSendTimeout(t *testing.T) {
	release := make(chan struct{})
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), gateway.WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := g.Send(context.Background(), gateway.RequestSpec{Path: "/api/slow"})
	info := errorInfo(t, err)
	assert.Equal(t, models.KindTransport, info.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendConcurrentCallsAreIndependent(t *testing.T) {
	g := newGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"code": "PermissionRevoked"}`))
			return
		}
		w.Write([]byte(`{"count": 1, "data": ["` + r.URL.Query().Get("id") + `"]}`))
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fail := i%2 == 0
			q := map[string][]string{"id": {string(rune('a' + i))}}
			if fail {
				q["fail"] = []string{"1"}
			}
			p, err := g.Send(context.Background(), gateway.RequestSpec{Path: "/api/items", Query: q})
			if fail {
				var info *models.ErrorInfo
				if assert.ErrorAs(t, err, &info) {
					assert.Equal(t, models.CodePermissionRevoked, info.Code)
				}
				return
			}
			page, err := gateway.DecodePage[string](p)
			if assert.NoError(t, err) {
				assert.Equal(t, []string{string(rune('a' + i))}, page.Data)
			}
		}(i)
	}
	wg.Wait()
}
