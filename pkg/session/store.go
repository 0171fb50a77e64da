// Package session holds the tab-wide state every view reads: who is signed
// in and which cluster is selected.
//
// All mutation goes through the Store's setters so that subscribers are
// notified. Notification is synchronous: every listener registered before a
// mutation runs, in registration order, before the setter returns.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cluster-portal/pkg/log"
	"cluster-portal/pkg/models"
	"cluster-portal/pkg/storage"

	"github.com/rs/zerolog"
)

// ErrReentrantMutation is returned when a listener tries to mutate the
// store while it is still notifying listeners of a previous mutation.
var ErrReentrantMutation = errors.New("session store mutated from within a change listener")

const (
	keyCluster = "clusterSelection"
	keySession = "current"
)

// Kind selects which field a listener is interested in
type Kind int

const (
	KindSession Kind = iota
	KindCluster
)

func (k Kind) String() string {
	if k == KindCluster {
		return "cluster"
	}
	return "session"
}

// Change describes one mutation. Only the fields of its Kind are set.
type Change struct {
	Kind       Kind
	OldSession models.Session
	NewSession models.Session
	OldCluster *models.ClusterSelection
	NewCluster *models.ClusterSelection
}

// Backend is the durable storage the store persists to
type Backend interface {
	Get(bucket, key string) ([]byte, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
}

type subscription struct {
	kind   Kind
	fn     func(Change)
	active atomic.Bool
}

// Store is the single owner of Session and ClusterSelection
type Store struct {
	mu          sync.Mutex
	session     models.Session
	cluster     *models.ClusterSelection
	subs        []*subscription
	dispatching bool

	backend Backend
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a store and restores whatever the backend persisted
func New(backend Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  log.WithComponent("session"),
	}

	if data, err := backend.Get(storage.BucketPreferences, keyCluster); err != nil {
		return nil, fmt.Errorf("failed to read cluster selection: %w", err)
	} else if data != nil {
		var c models.ClusterSelection
		if err := json.Unmarshal(data, &c); err != nil {
			s.logger.Warn().Err(err).Msg("Discarding unreadable cluster selection")
		} else if c.ID != "" {
			s.cluster = &c
		}
	}

	if data, err := backend.Get(storage.BucketSession, keySession); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	} else if data != nil {
		var sess models.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.logger.Warn().Err(err).Msg("Discarding unreadable session")
		} else if sess.Valid(s.now()) {
			s.session = sess
		}
	}

	return s, nil
}

// CurrentSession returns the current session
func (s *Store) CurrentSession() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// SessionValid reports whether someone is signed in and the session has not expired
func (s *Store) SessionValid() bool {
	return s.CurrentSession().Valid(s.now())
}

// CurrentCluster returns a copy of the selection, or nil when none is chosen
func (s *Store) CurrentCluster() *models.ClusterSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cluster == nil {
		return nil
	}
	c := *s.cluster
	return &c
}

// SetSession replaces the session
func (s *Store) SetSession(sess models.Session) error {
	return s.mutate(KindSession, func() (Change, bool, error) {
		if s.session == sess {
			return Change{}, false, nil
		}
		change := Change{Kind: KindSession, OldSession: s.session, NewSession: sess}
		s.session = sess

		data, err := json.Marshal(sess)
		if err != nil {
			return change, true, err
		}
		return change, true, s.backend.Put(storage.BucketSession, keySession, data)
	})
}

// ClearSession signs the user out locally
func (s *Store) ClearSession() error {
	return s.mutate(KindSession, func() (Change, bool, error) {
		if s.session == (models.Session{}) {
			return Change{}, false, nil
		}
		change := Change{Kind: KindSession, OldSession: s.session}
		s.session = models.Session{}
		return change, true, s.backend.Delete(storage.BucketSession, keySession)
	})
}

// SetCluster selects the cluster views operate against
func (s *Store) SetCluster(c models.ClusterSelection) error {
	return s.mutate(KindCluster, func() (Change, bool, error) {
		if s.cluster != nil && *s.cluster == c {
			return Change{}, false, nil
		}
		next := c
		change := Change{Kind: KindCluster, OldCluster: s.cluster, NewCluster: &next}
		s.cluster = &next

		data, err := json.Marshal(c)
		if err != nil {
			return change, true, err
		}
		return change, true, s.backend.Put(storage.BucketPreferences, keyCluster, data)
	})
}

// ClearCluster forgets the selected cluster
func (s *Store) ClearCluster() error {
	return s.mutate(KindCluster, func() (Change, bool, error) {
		if s.cluster == nil {
			return Change{}, false, nil
		}
		change := Change{Kind: KindCluster, OldCluster: s.cluster}
		s.cluster = nil
		return change, true, s.backend.Delete(storage.BucketPreferences, keyCluster)
	})
}

// OnChange registers fn for mutations of kind and returns a function that
// removes it. Removing a listener during a notification stops it from
// receiving that notification if it has not run yet.
func (s *Store) OnChange(kind Kind, fn func(Change)) (unsubscribe func()) {
	sub := &subscription{kind: kind, fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.subs {
			if existing == sub {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				break
			}
		}
	}
}

// mutate applies a change under the lock, then notifies listeners outside
// it. A persistence failure does not undo the in-memory change.
func (s *Store) mutate(kind Kind, apply func() (Change, bool, error)) error {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		s.logger.Error().Str("kind", kind.String()).Msg("Rejected mutation from within a change listener")
		return ErrReentrantMutation
	}

	change, changed, persistErr := apply()
	if !changed {
		s.mu.Unlock()
		return nil
	}

	var listeners []*subscription
	for _, sub := range s.subs {
		if sub.kind == kind {
			listeners = append(listeners, sub)
		}
	}
	s.dispatching = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.dispatching = false
		s.mu.Unlock()
	}()

	if persistErr != nil {
		s.logger.Error().Err(persistErr).Str("kind", kind.String()).Msg("Failed to persist change")
		persistErr = fmt.Errorf("failed to persist %s: %w", kind, persistErr)
	}

	for _, sub := range listeners {
		if sub.active.Load() {
			sub.fn(change)
		}
	}

	return persistErr
}
