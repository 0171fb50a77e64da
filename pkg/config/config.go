package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config represents the portal configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	DataDir string        `yaml:"data_dir"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Views   ViewsConfig   `yaml:"views"`
	Mock    MockConfig    `yaml:"mock"`
}

// APIConfig describes how to reach the cluster-management REST API
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Timeout bounds each request; zero leaves requests unbounded.
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig describes the session cookie
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	// JWTSecret verifies the cookie signature when set. Without it the
	// claims are read unverified and the server stays the authority.
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig represents the optional prometheus listener
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ViewsConfig holds defaults shared by listing views
type ViewsConfig struct {
	PageSize int `yaml:"page_size"`
	// Manifests makes the router fetch view manifests from the API before
	// instantiating a view for the first time.
	Manifests bool `yaml:"manifests"`
}

// MockConfig configures the development API server
type MockConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	JWTSecret string `yaml:"jwt_secret"`
	DataDir   string `yaml:"data_dir"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8080",
		},
		Session: SessionConfig{
			CookieName: "token",
			TTL:        6 * time.Hour,
		},
		DataDir: "./data",
		Log: LogConfig{
			Level: "info",
		},
		Views: ViewsConfig{
			PageSize: 20,
		},
		Mock: MockConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			Username:  "admin",
			Password:  "admin123",
			JWTSecret: "cluster-portal-secret-change-me",
			DataDir:   "./data/mock",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// Missing file means defaults
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides overrides configuration with environment variables
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTAL_API_URL"); v != "" {
		cfg.API.BaseURL = strings.TrimSuffix(v, "/")
	}
	if v := os.Getenv("PORTAL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PORTAL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if username := os.Getenv("AUTH_USERNAME"); username != "" {
		cfg.Mock.Username = username
	}
	if password := os.Getenv("AUTH_PASSWORD"); password != "" {
		cfg.Mock.Password = password
	}
	if jwtSecret := os.Getenv("AUTH_JWT_SECRET"); jwtSecret != "" {
		cfg.Mock.JWTSecret = jwtSecret
		cfg.Session.JWTSecret = jwtSecret
	}
}

// Save saves configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
