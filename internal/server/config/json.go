package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/flagx"
	"github.com/dmitrijs2005/fileferry/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "10s" and integer nanoseconds. After unmarshalling,
// set fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	DatabaseDSN string `json:"database_dsn"`
	SecretKey   string `json:"secret_key"`

	SessionTTL        timex.Duration `json:"session_ttl"`
	ApprovalRetention timex.Duration `json:"approval_retention"`
	RecordRetention   timex.Duration `json:"record_retention"`

	STSRoleARN      string `json:"sts_role_arn"`
	StaticAccessKey string `json:"static_access_key"`
	StaticSecretKey string `json:"static_secret_key"`
	S3Region        string `json:"s3_region"`
	S3BaseEndpoint  string `json:"s3_base_endpoint"`

	ChunkSize    int64          `json:"chunk_size"`
	Workers      int            `json:"workers"`
	ChunkRetries uint64         `json:"chunk_retries"`
	RetryBackoff timex.Duration `json:"retry_backoff"`
	DialTimeout  timex.Duration `json:"dial_timeout"`

	SmallObjectThreshold int64          `json:"small_object_threshold"`
	LargeObjectThreshold int64          `json:"large_object_threshold"`
	AuthRetries          uint64         `json:"auth_retries"`
	TransferRetries      uint64         `json:"transfer_retries"`
	TransferTimeout      timex.Duration `json:"transfer_timeout"`

	ServiceNowURL       string         `json:"servicenow_url"`
	ServiceNowTable     string         `json:"servicenow_table"`
	ServiceNowUser      string         `json:"servicenow_user"`
	ServiceNowPassword  string         `json:"servicenow_password"`
	WebhookURL          string         `json:"webhook_url"`
	CollaboratorTimeout timex.Duration `json:"collaborator_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; when neither is set, no JSON file is loaded. Only fields present
// with non-zero values override the defaults. Unreadable files and invalid
// JSON panic: a broken config file should stop startup.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.RedisAddr, c.RedisAddr)
	overlayString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != 0 {
		config.RedisDB = c.RedisDB
	}
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.SecretKey, c.SecretKey)
	overlayDuration(&config.SessionTTL, c.SessionTTL)
	overlayDuration(&config.ApprovalRetention, c.ApprovalRetention)
	overlayDuration(&config.RecordRetention, c.RecordRetention)
	overlayString(&config.STSRoleARN, c.STSRoleARN)
	overlayString(&config.StaticAccessKey, c.StaticAccessKey)
	overlayString(&config.StaticSecretKey, c.StaticSecretKey)
	overlayString(&config.S3Region, c.S3Region)
	overlayString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.ChunkSize != 0 {
		config.ChunkSize = c.ChunkSize
	}
	if c.Workers != 0 {
		config.Workers = c.Workers
	}
	if c.ChunkRetries != 0 {
		config.ChunkRetries = c.ChunkRetries
	}
	overlayDuration(&config.RetryBackoff, c.RetryBackoff)
	overlayDuration(&config.DialTimeout, c.DialTimeout)
	if c.SmallObjectThreshold != 0 {
		config.SmallObjectThreshold = c.SmallObjectThreshold
	}
	if c.LargeObjectThreshold != 0 {
		config.LargeObjectThreshold = c.LargeObjectThreshold
	}
	if c.AuthRetries != 0 {
		config.AuthRetries = c.AuthRetries
	}
	if c.TransferRetries != 0 {
		config.TransferRetries = c.TransferRetries
	}
	overlayDuration(&config.TransferTimeout, c.TransferTimeout)
	overlayString(&config.ServiceNowURL, c.ServiceNowURL)
	overlayString(&config.ServiceNowTable, c.ServiceNowTable)
	overlayString(&config.ServiceNowUser, c.ServiceNowUser)
	overlayString(&config.ServiceNowPassword, c.ServiceNowPassword)
	overlayString(&config.WebhookURL, c.WebhookURL)
	overlayDuration(&config.CollaboratorTimeout, c.CollaboratorTimeout)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
