package models

import "time"

// Cluster represents a managed cluster as listed by the API
type Cluster struct {
	ID        string    `json:"_id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	EndPoint  string    `json:"endPoint" yaml:"endPoint"`
	Status    string    `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// Selection returns the selection that points at this cluster
func (c Cluster) Selection() ClusterSelection {
	return ClusterSelection{ID: c.ID, EndPoint: c.EndPoint, Name: c.Name}
}

// ClusterSelection is the cluster the user is currently operating against.
// A nil *ClusterSelection means no cluster has been chosen.
type ClusterSelection struct {
	ID       string `json:"_id" yaml:"id"`
	EndPoint string `json:"endPoint" yaml:"endPoint"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// SameCluster reports whether a and b identify the same cluster.
// Two absent selections are the same; an absent and a present one are not.
func SameCluster(a, b *ClusterSelection) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
