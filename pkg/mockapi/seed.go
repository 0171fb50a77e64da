package mockapi

import (
	"fmt"
	"time"

	"cluster-portal/pkg/models"
)

// Seeded cluster IDs
const (
	ProdClusterID    = "c-prod"
	StagingClusterID = "c-staging"
)

var seedEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// seed returns the demo data set
func seed() dataset {
	d := dataset{
		Clusters: []clusterRecord{
			{Cluster: models.Cluster{ID: ProdClusterID, Name: "prod", EndPoint: "https://10.0.0.10:6443", Status: "connected", CreatedAt: seedEpoch}},
			{Cluster: models.Cluster{ID: StagingClusterID, Name: "staging", EndPoint: "https://10.0.1.10:6443", Status: "connected", CreatedAt: seedEpoch}},
		},
	}
	d.ensureMaps()

	severities := []string{"critical", "warning", "info"}
	for _, id := range []string{ProdClusterID, StagingClusterID} {
		n := 45
		if id == StagingClusterID {
			n = 7
		}
		for i := 0; i < n; i++ {
			d.Alerts[id] = append(d.Alerts[id], models.Alert{
				ID:        fmt.Sprintf("%s-a%02d", id, i+1),
				Name:      fmt.Sprintf("node-%d disk usage above threshold", i%5+1),
				Severity:  severities[i%len(severities)],
				Status:    "open",
				Component: "node-exporter",
				RaisedAt:  seedEpoch.Add(time.Duration(i) * time.Minute),
			})
		}

		levels := []string{"info", "info", "warn", "error"}
		components := []string{"apiserver", "scheduler", "etcd"}
		for i := 0; i < 60; i++ {
			d.Logs[id] = append(d.Logs[id], models.LogEntry{
				ID:        fmt.Sprintf("%s-l%03d", id, i+1),
				Timestamp: seedEpoch.Add(time.Duration(i) * 10 * time.Second),
				Level:     levels[i%len(levels)],
				Component: components[i%len(components)],
				Host:      fmt.Sprintf("node-%d", i%3+1),
				Message:   fmt.Sprintf("request %d handled", i+1),
			})
		}

		d.Networks[id] = []models.Network{
			{ID: id + "-n1", Name: "default", Subnet: "10.244.0.0/16", Gateway: "10.244.0.1", Driver: "bridge"},
			{ID: id + "-n2", Name: "storage", Subnet: "10.50.0.0/24", Driver: "macvlan"},
		}

		d.Components[id] = []models.Component{
			{ID: id + "-k1", Name: "kube-apiserver", Kind: "control-plane", Version: "v1.29.2", Status: "Running", Host: "node-1"},
			{ID: id + "-k2", Name: "kube-scheduler", Kind: "control-plane", Version: "v1.29.2", Status: "Running", Host: "node-1"},
			{ID: id + "-k3", Name: "etcd", Kind: "control-plane", Version: "3.5.10", Status: "Running", Host: "node-1"},
			{ID: id + "-k4", Name: "coredns", Kind: "addon", Version: "v1.11.1", Status: "Running", Host: "node-2"},
			{ID: id + "-k5", Name: "node-exporter", Kind: "monitoring", Version: "1.7.0", Status: "Running", Host: "node-2"},
			{ID: id + "-k6", Name: "alertmanager", Kind: "monitoring", Version: "0.27.0", Status: "Pending", Host: "node-3"},
		}
	}

	d.SMTP[ProdClusterID] = models.SMTPConfig{
		Host:       "smtp.example.com",
		Port:       587,
		From:       "alerts@example.com",
		Recipients: []string{"ops@example.com"},
		TLS:        true,
	}
	return d
}
