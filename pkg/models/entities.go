package models

import "time"

// Page is the {count, data} envelope returned by listing endpoints
type Page[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

// PageQuery is a listing cursor plus entity-specific filters
type PageQuery struct {
	Skip    int
	Limit   int
	Filters map[string]string
}

// Clone returns a copy that does not share the filter map
func (q PageQuery) Clone() PageQuery {
	c := PageQuery{Skip: q.Skip, Limit: q.Limit}
	if q.Filters != nil {
		c.Filters = make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			c.Filters[k] = v
		}
	}
	return c
}

// Equal reports whether both queries would produce the same request
func (q PageQuery) Equal(o PageQuery) bool {
	if q.Skip != o.Skip || q.Limit != o.Limit || len(q.Filters) != len(o.Filters) {
		return false
	}
	for k, v := range q.Filters {
		if ov, ok := o.Filters[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Alert is a cluster alert raised by the monitoring pipeline
type Alert struct {
	ID           string    `json:"_id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Severity     string    `json:"severity" yaml:"severity"`
	Status       string    `json:"status" yaml:"status"`
	Component    string    `json:"component,omitempty" yaml:"component,omitempty"`
	Message      string    `json:"message,omitempty" yaml:"message,omitempty"`
	RaisedAt     time.Time `json:"raisedAt" yaml:"raisedAt"`
	Acknowledged bool      `json:"acknowledged" yaml:"acknowledged"`
}

// LogEntry is a single line of cluster log output
type LogEntry struct {
	ID        string    `json:"_id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Level     string    `json:"level" yaml:"level"`
	Component string    `json:"component" yaml:"component"`
	Host      string    `json:"host,omitempty" yaml:"host,omitempty"`
	Message   string    `json:"message" yaml:"message"`
}

// Network is a network defined on a cluster
type Network struct {
	ID      string `json:"_id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Subnet  string `json:"subnet" yaml:"subnet"`
	Gateway string `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Driver  string `json:"driver,omitempty" yaml:"driver,omitempty"`
}

// Component is a service or daemon running on a cluster
type Component struct {
	ID      string `json:"_id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	Status  string `json:"status" yaml:"status"`
	Host    string `json:"host,omitempty" yaml:"host,omitempty"`
}

// SMTPConfig is the outgoing mail configuration used for alert notifications
type SMTPConfig struct {
	Host       string   `json:"host" yaml:"host"`
	Port       int      `json:"port" yaml:"port"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password   string   `json:"password,omitempty" yaml:"-"`
	From       string   `json:"from" yaml:"from"`
	Recipients []string `json:"recipients" yaml:"recipients"`
	TLS        bool     `json:"tls" yaml:"tls"`
}
