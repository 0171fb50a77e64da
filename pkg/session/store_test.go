package session

import (
	"errors"
	"testing"
	"time"

	"cluster-portal/pkg/models"
	"cluster-portal/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	s, err := New(backend)
	require.NoError(t, err)
	return s, backend
}

func TestListenersRunInRegistrationOrderBeforeReturn(t *testing.T) {
	s, _ := newStore(t)

	var calls []string
	s.OnChange(KindCluster, func(Change) { calls = append(calls, "first") })
	s.OnChange(KindCluster, func(Change) { calls = append(calls, "second") })
	s.OnChange(KindSession, func(Change) { calls = append(calls, "session") })
	s.OnChange(KindCluster, func(Change) { calls = append(calls, "third") })

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1", EndPoint: "10.0.0.1"}))

	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestChangeCarriesOldAndNewValues(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))

	var got Change
	s.OnChange(KindCluster, func(c Change) { got = c })
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c2"}))

	assert.Equal(t, KindCluster, got.Kind)
	require.NotNil(t, got.OldCluster)
	require.NotNil(t, got.NewCluster)
	assert.Equal(t, "c1", got.OldCluster.ID)
	assert.Equal(t, "c2", got.NewCluster.ID)
}

func TestListenerRegisteredDuringDispatchIsNotCalled(t *testing.T) {
	s, _ := newStore(t)

	late := 0
	s.OnChange(KindCluster, func(Change) {
		s.OnChange(KindCluster, func(Change) { late++ })
	})

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	assert.Equal(t, 0, late)

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c2"}))
	assert.Equal(t, 1, late)
}

func TestUnsubscribe(t *testing.T) {
	s, _ := newStore(t)

	calls := 0
	unsubscribe := s.OnChange(KindCluster, func(Change) { calls++ })
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c2"}))

	assert.Equal(t, 1, calls)
}

func TestUnsubscribeDuringDispatchSkipsPendingListener(t *testing.T) {
	s, _ := newStore(t)

	var second func()
	calls := 0
	s.OnChange(KindCluster, func(Change) { second() })
	second = s.OnChange(KindCluster, func(Change) { calls++ })

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	assert.Equal(t, 0, calls)
}

func TestReentrantMutationIsRejected(t *testing.T) {
	s, _ := newStore(t)

	var inner error
	s.OnChange(KindCluster, func(Change) {
		inner = s.ClearSession()
		if inner == nil {
			inner = s.SetSession(models.Session{Identity: "mallory"})
		}
	})

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	assert.ErrorIs(t, inner, ErrReentrantMutation)
	assert.Equal(t, "", s.CurrentSession().Identity)

	// the store is usable again afterwards
	require.NoError(t, s.SetSession(models.Session{Identity: "alice"}))
	assert.Equal(t, "alice", s.CurrentSession().Identity)
}

func TestNoNotificationWithoutChange(t *testing.T) {
	s, _ := newStore(t)

	calls := 0
	s.OnChange(KindSession, func(Change) { calls++ })
	s.OnChange(KindCluster, func(Change) { calls++ })

	require.NoError(t, s.ClearSession())
	require.NoError(t, s.ClearCluster())
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))

	assert.Equal(t, 1, calls)
}

func TestCurrentClusterReturnsCopy(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.CurrentCluster())

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1"}))
	c := s.CurrentCluster()
	c.ID = "tampered"

	assert.Equal(t, "c1", s.CurrentCluster().ID)
}

func TestSessionValidity(t *testing.T) {
	s, _ := newStore(t)
	assert.False(t, s.SessionValid())

	require.NoError(t, s.SetSession(models.Session{Identity: "alice", ExpiresAt: time.Now().Add(time.Hour)}))
	assert.True(t, s.SessionValid())

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.False(t, s.SessionValid())
}

func TestPersistenceAcrossStores(t *testing.T) {
	backend := NewMemoryBackend()
	s, err := New(backend)
	require.NoError(t, err)

	require.NoError(t, s.SetCluster(models.ClusterSelection{ID: "c1", EndPoint: "https://c1"}))
	require.NoError(t, s.SetSession(models.Session{Identity: "alice", ExpiresAt: time.Now().Add(time.Hour), Token: "tok"}))

	raw, err := backend.Get(storage.BucketPreferences, "clusterSelection")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"c1","endPoint":"https://c1"}`, string(raw))

	restored, err := New(backend)
	require.NoError(t, err)
	require.NotNil(t, restored.CurrentCluster())
	assert.Equal(t, "c1", restored.CurrentCluster().ID)
	assert.Equal(t, "alice", restored.CurrentSession().Identity)
	assert.Equal(t, "tok", restored.CurrentSession().Token)

	require.NoError(t, restored.ClearSession())
	again, err := New(backend)
	require.NoError(t, err)
	assert.Equal(t, "", again.CurrentSession().Identity)
}

func TestExpiredSessionIsNotRestored(t *testing.T) {
	backend := NewMemoryBackend()
	s, err := New(backend)
	require.NoError(t, err)
	require.NoError(t, s.SetSession(models.Session{Identity: "alice", ExpiresAt: time.Now().Add(-time.Minute)}))

	restored, err := New(backend)
	require.NoError(t, err)
	assert.Equal(t, models.Session{}, restored.CurrentSession())
}

func TestPersistFailureStillAppliesAndNotifies(t *testing.T) {
	s, backend := newStore(t)
	require.NoError(t, s.SetSession(models.Session{Identity: "alice"}))

	backend.Err = errors.New("disk full")
	notified := false
	s.OnChange(KindSession, func(Change) { notified = true })

	err := s.ClearSession()
	assert.ErrorIs(t, err, backend.Err)
	assert.True(t, notified)
	assert.Equal(t, "", s.CurrentSession().Identity)
}
