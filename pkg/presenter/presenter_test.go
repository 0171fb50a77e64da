package presenter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shown struct {
	dialog Dialog
	ack    func()
}

type fakeModal struct {
	shown []shown
	err   error
}

func (m *fakeModal) Show(d Dialog, onAck func()) error {
	if m.err != nil {
		return m.err
	}
	m.shown = append(m.shown, shown{dialog: d, ack: onAck})
	return nil
}

func (m *fakeModal) last(t *testing.T) shown {
	t.Helper()
	require.NotEmpty(t, m.shown)
	return m.shown[len(m.shown)-1]
}

type fakeNavigator struct {
	logins int
}

func (n *fakeNavigator) ToLogin() { n.logins++ }

type fakeSink struct {
	reports []models.ErrorInfo
	causes  []error
}

func (s *fakeSink) Report(info models.ErrorInfo, _ string, cause error) {
	s.reports = append(s.reports, info)
	s.causes = append(s.causes, cause)
}

func signedIn(t *testing.T) *session.Store {
	t.Helper()
	s, err := session.New(session.NewMemoryBackend())
	require.NoError(t, err)
	require.NoError(t, s.SetSession(models.Session{Identity: "alice", ExpiresAt: time.Now().Add(time.Hour)}))
	return s
}

func TestResolve(t *testing.T) {
	p := New(nil, nil)

	tests := []struct {
		name     string
		failure  any
		wantCode string
	}{
		{name: "nil", failure: nil, wantCode: models.CodeServiceUnavailable},
		{name: "nil pointer", failure: (*models.ErrorInfo)(nil), wantCode: models.CodeServiceUnavailable},
		{name: "bare string", failure: "boom", wantCode: models.CodeServerError},
		{name: "empty code", failure: &models.ErrorInfo{Code: ""}, wantCode: models.CodeUnreachableServer},
		{name: "value error info", failure: models.ErrorInfo{Code: "NotFound"}, wantCode: "NotFound"},
		{
			name:     "repository already present",
			failure:  &models.ErrorInfo{Code: "400", Data: map[string]any{"type": "RepositoryAlreadyPresent"}},
			wantCode: models.CodeRepositoryAlreadyPresent,
		},
		{
			name:     "other 400 passes through",
			failure:  &models.ErrorInfo{Code: "400", Data: map[string]any{"type": "Validation"}},
			wantCode: "400",
		},
		{name: "400 without type", failure: &models.ErrorInfo{Code: "400"}, wantCode: "400"},
		{
			name:     "wrapped error info",
			failure:  fmt.Errorf("listing: %w", &models.ErrorInfo{Code: models.CodeSessionExpired}),
			wantCode: models.CodeSessionExpired,
		},
		{name: "plain error", failure: errors.New("unexpected"), wantCode: models.CodeServerError},
		{name: "unknown type", failure: 42, wantCode: models.CodeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, p.Resolve(tt.failure).Code)
		})
	}
}

func TestResolveStringKeepsMessage(t *testing.T) {
	p := New(nil, nil)
	info := p.Resolve("disk is full")
	assert.Equal(t, "disk is full", info.Data["message"])
}

func TestPresentShowsDialog(t *testing.T) {
	modal := &fakeModal{}
	p := New(signedIn(t), modal)

	p.Present(&models.ErrorInfo{Code: "NotFound", Data: map[string]any{"id": "n1"}}, "networks.load")
	got := modal.last(t).dialog
	assert.Equal(t, "networks.load", got.TitleKey)
	assert.Equal(t, "NotFound", got.Code)
	assert.Equal(t, "n1", got.Data["id"])
	assert.False(t, got.SessionInvalid)

	p.Present(nil, "")
	got = modal.last(t).dialog
	assert.Equal(t, DefaultTitleKey, got.TitleKey)
	assert.Equal(t, models.CodeServiceUnavailable, got.Code)
}

func TestSessionInvalidCodesLogOutOnAck(t *testing.T) {
	for _, code := range SessionInvalidCodes {
		t.Run(code, func(t *testing.T) {
			store := signedIn(t)
			modal := &fakeModal{}
			nav := &fakeNavigator{}
			p := New(store, modal)
			p.BindNavigator(nav)

			p.Present(&models.ErrorInfo{Code: code}, "alerts.load")
			shown := modal.last(t)
			assert.True(t, shown.dialog.SessionInvalid)

			// nothing happens until the user acknowledges
			assert.True(t, store.SessionValid())
			assert.Equal(t, 0, nav.logins)

			shown.ack()
			assert.False(t, store.SessionValid())
			assert.Equal(t, 1, nav.logins)

			// a second acknowledgement is ignored
			shown.ack()
			assert.Equal(t, 1, nav.logins)
		})
	}
}

func TestOtherCodesLeaveSessionAlone(t *testing.T) {
	for _, code := range []string{"400", models.CodeServerError, models.CodeUnreachableServer, "Forbidden"} {
		t.Run(code, func(t *testing.T) {
			store := signedIn(t)
			modal := &fakeModal{}
			nav := &fakeNavigator{}
			p := New(store, modal, WithNavigator(nav))

			p.Present(&models.ErrorInfo{Code: code}, "")
			modal.last(t).ack()

			assert.True(t, store.SessionValid())
			assert.Equal(t, 0, nav.logins)
		})
	}
}

func TestModalFailureGoesToSinkAndStillLogsOut(t *testing.T) {
	store := signedIn(t)
	sink := &fakeSink{}
	nav := &fakeNavigator{}
	modal := &fakeModal{err: errors.New("terminal detached")}
	p := New(store, modal, WithSink(sink), WithNavigator(nav))

	p.Present(&models.ErrorInfo{Code: models.CodeInvalidToken}, "")

	require.Len(t, sink.reports, 1)
	assert.Equal(t, models.CodeInvalidToken, sink.reports[0].Code)
	assert.EqualError(t, sink.causes[0], "terminal detached")
	assert.False(t, store.SessionValid())
	assert.Equal(t, 1, nav.logins)
}

func TestNoModalReportsToSink(t *testing.T) {
	sink := &fakeSink{}
	p := New(signedIn(t), nil, WithSink(sink))

	p.Present("boom", "")
	require.Len(t, sink.causes, 1)
	assert.ErrorIs(t, sink.causes[0], ErrNoModal)
}

func TestWithRemapAddsEntries(t *testing.T) {
	modal := &fakeModal{}
	p := New(nil, modal, WithRemap(RemapTable{
		{Code: "409", DataType: "NetworkInUse"}: {Code: "NetworkInUse", TitleKey: "networks.delete"},
	}))

	p.Present(&models.ErrorInfo{Code: "409", Data: map[string]any{"type": "NetworkInUse"}}, "")
	got := modal.last(t).dialog
	assert.Equal(t, "NetworkInUse", got.Code)
	assert.Equal(t, "networks.delete", got.TitleKey)

	// the default entry survives
	assert.Equal(t, models.CodeRepositoryAlreadyPresent,
		p.Resolve(&models.ErrorInfo{Code: "400", Data: map[string]any{"type": "RepositoryAlreadyPresent"}}).Code)
}
