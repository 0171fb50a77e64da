// Package gateway issues REST calls and normalizes every outcome into either
// a payload or a *models.ErrorInfo. It never recovers failures itself and
// never touches session state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/metrics"
	"cluster-portal/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestSpec describes one call
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON when non-nil
	Body any
}

// Payload is a successful response body
type Payload struct {
	Status int
	Body   json.RawMessage
}

// Option configures a Gateway
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client (and with it the cookie jar)
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) {
		g.httpclient = hc
	}
}

// WithTimeout bounds every request. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// Gateway sends requests to the API root. It holds no per-call state and is
// safe for concurrent use.
type Gateway struct {
	httpclient *http.Client
	api        string
	timeout    time.Duration
	logger     zerolog.Logger
}

// New creates a gateway for the API rooted at apiRoot
func New(apiRoot string, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(apiRoot)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("api root is not an absolute URL: %q", apiRoot)
	}

	g := &Gateway{
		httpclient: new(http.Client),
		api:        strings.TrimSuffix(apiRoot, "/"),
		logger:     log.WithComponent("gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// BaseURL returns the API root
func (g *Gateway) BaseURL() string {
	return g.api
}

// build URL with path and query
func (g *Gateway) apipath(path string, query url.Values) string {
	u := g.api + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Send performs the call. On failure the error is always a *models.ErrorInfo.
func (g *Gateway) Send(ctx context.Context, spec RequestSpec) (Payload, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	timer := metrics.NewTimer()
	requestID := uuid.NewString()

	payload, err := g.send(ctx, method, requestID, spec)
	timer.ObserveDurationVec(metrics.RequestDuration, method)

	outcome := "success"
	status := payload.Status
	ev := g.logger.Debug()
	var info *models.ErrorInfo
	if errors.As(err, &info) {
		outcome = info.Kind.String()
		status = info.Status
		ev = ev.Str("code", info.Code)
	}
	class := StatusClassOf(status)
	metrics.RequestsTotal.WithLabelValues(method, outcome, class.String()).Inc()
	ev.Str("request_id", requestID).
		Str("method", method).
		Str("path", spec.Path).
		Str("outcome", outcome).
		Str("status", class.String()).
		Dur("elapsed", timer.Duration()).
		Msg("API request finished")

	return payload, err
}

func (g *Gateway) send(ctx context.Context, method, requestID string, spec RequestSpec) (Payload, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var body io.Reader
	if spec.Body != nil {
		buf, err := json.Marshal(spec.Body)
		if err != nil {
			// A body we cannot encode never reached the server
			return Payload{}, &models.ErrorInfo{Kind: models.KindProtocol, Code: models.CodeServerError, Cause: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apipath(spec.Path, spec.Query), body)
	if err != nil {
		return Payload{}, &models.ErrorInfo{Kind: models.KindProtocol, Code: models.CodeServerError, Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpclient.Do(req)
	if err != nil {
		return Payload{}, &models.ErrorInfo{Kind: models.KindTransport, Code: models.CodeServiceUnavailable, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, &models.ErrorInfo{
			Kind: models.KindTransport, Code: models.CodeServiceUnavailable, Status: resp.StatusCode, Cause: err,
		}
	}

	if StatusClassOf(resp.StatusCode) == Status2xx {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && !json.Valid(trimmed) {
			return Payload{}, &models.ErrorInfo{
				Kind: models.KindProtocol, Code: models.CodeUnreachableServer, Status: resp.StatusCode,
				Cause: fmt.Errorf("response body is not JSON"),
			}
		}
		return Payload{Status: resp.StatusCode, Body: json.RawMessage(trimmed)}, nil
	}

	return Payload{}, parseErrorBody(resp.StatusCode, raw)
}

// parseErrorBody turns a non-2xx body into an ErrorInfo.
//
//   - {"code": ..., "data": ...} is passed through; a missing code becomes the status
//   - a bare JSON string becomes ServerError with the string as data.message
//   - anything else is a protocol error (UnreachableServer)
func parseErrorBody(status int, raw []byte) *models.ErrorInfo {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			info := &models.ErrorInfo{}
			if err := json.Unmarshal(trimmed, info); err == nil {
				if _, ok := probe["code"]; !ok {
					info.Code = strconv.Itoa(status)
				}
				info.Kind = models.KindApplication
				info.Status = status
				return info
			}
		}
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var message string
		if err := json.Unmarshal(trimmed, &message); err == nil {
			return &models.ErrorInfo{
				Kind: models.KindApplication, Code: models.CodeServerError, Status: status,
				Data: map[string]any{"message": message},
			}
		}
	}

	return &models.ErrorInfo{
		Kind: models.KindProtocol, Code: models.CodeUnreachableServer, Status: status,
		Cause: fmt.Errorf("unparseable error body (status %d)", status),
	}
}

// Decode unmarshals a payload. Shape mismatches are protocol errors.
func Decode[T any](p Payload) (T, error) {
	var v T
	if len(p.Body) == 0 {
		return v, &models.ErrorInfo{
			Kind: models.KindProtocol, Code: models.CodeUnreachableServer, Status: p.Status,
			Cause: fmt.Errorf("empty response body"),
		}
	}
	if err := json.Unmarshal(p.Body, &v); err != nil {
		return v, &models.ErrorInfo{
			Kind: models.KindProtocol, Code: models.CodeUnreachableServer, Status: p.Status, Cause: err,
		}
	}
	return v, nil
}

// DecodePage unmarshals a {count, data} listing
func DecodePage[T any](p Payload) (models.Page[T], error) {
	page, err := Decode[models.Page[T]](p)
	if err != nil {
		return page, err
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page, nil
}

// Call sends spec and decodes the successful body into T
func Call[T any](ctx context.Context, g *Gateway, spec RequestSpec) (T, error) {
	p, err := g.Send(ctx, spec)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](p)
}

// ListQuery builds skip/limit/filter query parameters
func ListQuery(q models.PageQuery) url.Values {
	v := url.Values{}
	v.Set("skip", strconv.Itoa(q.Skip))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for k, f := range q.Filters {
		if f != "" {
			v.Set(k, f)
		}
	}
	return v
}
