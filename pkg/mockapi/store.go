package mockapi

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"cluster-portal/pkg/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyPresent = errors.New("already present")
)

// clusterRecord is a cluster as stored, with the kubeconfig never exposed
// through the API
type clusterRecord struct {
	models.Cluster
	Kubeconfig string `json:"kubeconfig,omitempty"`
}

type dataset struct {
	Clusters   []clusterRecord               `json:"clusters"`
	Alerts     map[string][]models.Alert     `json:"alerts"`
	Logs       map[string][]models.LogEntry  `json:"logs"`
	Networks   map[string][]models.Network   `json:"networks"`
	Components map[string][]models.Component `json:"components"`
	SMTP       map[string]models.SMTPConfig  `json:"smtp"`
}

// Store provides JSON file-based storage for the fake API's data. An empty
// data directory keeps everything in memory.
type Store struct {
	dataDir string
	mu      sync.RWMutex
	data    dataset
}

// NewStore creates a store, seeding demo data when nothing was saved yet
func NewStore(dataDir string) (*Store, error) {
	s := &Store{dataDir: dataDir}

	if dataDir == "" {
		s.data = seed()
		return s, nil
	}

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	// Load existing data
	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) dataFile() string {
	return filepath.Join(s.dataDir, "mock.json")
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.dataFile())
	if err != nil {
		if os.IsNotExist(err) {
			s.data = seed()
			return s.save()
		}
		return err
	}

	s.data = dataset{}
	if err := json.Unmarshal(data, &s.data); err != nil {
		return err
	}
	s.data.ensureMaps()
	return nil
}

func (s *Store) save() error {
	if s.dataDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.dataFile(), data, 0644)
}

func (d *dataset) ensureMaps() {
	if d.Alerts == nil {
		d.Alerts = make(map[string][]models.Alert)
	}
	if d.Logs == nil {
		d.Logs = make(map[string][]models.LogEntry)
	}
	if d.Networks == nil {
		d.Networks = make(map[string][]models.Network)
	}
	if d.Components == nil {
		d.Components = make(map[string][]models.Component)
	}
	if d.SMTP == nil {
		d.SMTP = make(map[string]models.SMTPConfig)
	}
}

// clusters returns all clusters
func (s *Store) clusters() []clusterRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]clusterRecord, len(s.data.Clusters))
	copy(result, s.data.Clusters)
	return result
}

// cluster returns a cluster by ID
func (s *Store) cluster(id string) (clusterRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return clusterRecord{}, false
}

// addCluster adds a new cluster. Names are unique.
func (s *Store) addCluster(c clusterRecord) (clusterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Clusters {
		if existing.Name == c.Name {
			return clusterRecord{}, ErrAlreadyPresent
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.data.Clusters = append(s.data.Clusters, c)
	return c, s.save()
}

// deleteCluster deletes a cluster and everything scoped to it
func (s *Store) deleteCluster(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.data.Clusters {
		if c.ID == id {
			s.data.Clusters = append(s.data.Clusters[:i], s.data.Clusters[i+1:]...)
			delete(s.data.Alerts, id)
			delete(s.data.Logs, id)
			delete(s.data.Networks, id)
			delete(s.data.Components, id)
			delete(s.data.SMTP, id)
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *Store) alerts(clusterID string) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert(nil), s.data.Alerts[clusterID]...)
}

func (s *Store) ackAlert(clusterID, alertID string) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := s.data.Alerts[clusterID]
	for i := range alerts {
		if alerts[i].ID == alertID {
			alerts[i].Acknowledged = true
			alerts[i].Status = "acknowledged"
			return alerts[i], s.save()
		}
	}
	return models.Alert{}, ErrNotFound
}

func (s *Store) logs(clusterID string) []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LogEntry(nil), s.data.Logs[clusterID]...)
}

func (s *Store) networks(clusterID string) []models.Network {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Network(nil), s.data.Networks[clusterID]...)
}

func (s *Store) addNetwork(clusterID string, n models.Network) (models.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Networks[clusterID] {
		if existing.Name == n.Name {
			return models.Network{}, ErrAlreadyPresent
		}
	}
	n.ID = uuid.New().String()
	s.data.Networks[clusterID] = append(s.data.Networks[clusterID], n)
	return n, s.save()
}

func (s *Store) deleteNetwork(clusterID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	networks := s.data.Networks[clusterID]
	for i, n := range networks {
		if n.ID == id {
			s.data.Networks[clusterID] = append(networks[:i], networks[i+1:]...)
			return s.save()
		}
	}
	return ErrNotFound
}

func (s *Store) components(clusterID string) []models.Component {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Component(nil), s.data.Components[clusterID]...)
}

func (s *Store) smtp(clusterID string) models.SMTPConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.SMTP[clusterID]
}

func (s *Store) setSMTP(clusterID string, cfg models.SMTPConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SMTP[clusterID] = cfg
	return s.save()
}
