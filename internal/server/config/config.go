// Package config handles configuration for the transfer service,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the FileFerry server.
type Config struct {
	// EndpointAddrHTTP is the bind address for the HTTP API.
	EndpointAddrHTTP string

	// RedisAddr selects the session/record store. Empty means the
	// in-process store (single instance, development).
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DatabaseDSN is the PostgreSQL DSN for transfer history. Empty
	// disables history archival.
	DatabaseDSN string

	// SecretKey signs session tokens (HS256). Do not use the test
	// default in prod.
	SecretKey string

	// SessionTTL is the authorization window. Sessions cannot be
	// extended past it.
	SessionTTL time.Duration
	// ApprovalRetention is how long used approval references are
	// remembered for replay detection.
	ApprovalRetention time.Duration
	// RecordRetention bounds how long finished transfer records stay in
	// the hot store.
	RecordRetention time.Duration

	// STSRoleARN enables AssumeRole credential issuance. When empty, the
	// static credentials below are used instead (MinIO, development).
	STSRoleARN      string
	StaticAccessKey string
	StaticSecretKey string
	S3Region        string
	S3BaseEndpoint  string

	// Streaming engine tunables.
	ChunkSize    int64
	Workers      int
	ChunkRetries uint64
	RetryBackoff time.Duration
	DialTimeout  time.Duration

	// Orchestration tunables.
	SmallObjectThreshold int64
	LargeObjectThreshold int64
	AuthRetries          uint64
	TransferRetries      uint64
	TransferTimeout      time.Duration

	// Collaborators. Empty URLs disable them.
	ServiceNowURL       string
	ServiceNowTable     string
	ServiceNowUser      string
	ServiceNowPassword  string
	WebhookURL          string
	CollaboratorTimeout time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.SecretKey = "secretKey"
	c.SessionTTL = 10 * time.Second
	c.ApprovalRetention = 24 * time.Hour
	c.RecordRetention = 720 * time.Hour
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.StaticAccessKey = "admin"
	c.StaticSecretKey = "secretpassword"
	c.ChunkSize = 10 * 1024 * 1024
	c.Workers = 5
	c.ChunkRetries = 3
	c.RetryBackoff = 500 * time.Millisecond
	c.DialTimeout = 30 * time.Second
	c.SmallObjectThreshold = 100 * 1024 * 1024
	c.LargeObjectThreshold = 1024 * 1024 * 1024
	c.AuthRetries = 3
	c.TransferRetries = 3
	c.ServiceNowTable = "incident"
	c.CollaboratorTimeout = 10 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
