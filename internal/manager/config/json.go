package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/stacksync/internal/flagx"
	"github.com/dmitrijs2005/stacksync/internal/timex"
)

// JsonConfig is the on-disk form of Config. CallTimeout accepts "10s" or
// integer nanoseconds.
type JsonConfig struct {
	DatabaseDSN     string         `json:"database_dsn"`
	TenantName      string         `json:"tenant_name"`
	AdminUsername   string         `json:"admin_username"`
	AdminPassword   string         `json:"admin_password"`
	AuthEndpoint    string         `json:"auth_endpoint"`
	StorageBaseURL  string         `json:"storage_base_url"`
	StorageBackend  string         `json:"storage_backend"`
	S3Region        string         `json:"s3_region"`
	S3AccessKey     string         `json:"s3_access_key"`
	S3SecretKey     string         `json:"s3_secret_key"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint"`
	CallTimeout     timex.Duration `json:"call_timeout"`
	SecretMasterKey string         `json:"secret_master_key"`
	LogLevel        string         `json:"log_level"`
}

// parseJson overlays the file named by -c or -config onto config. Keys
// absent from the file keep their current values. It panics when the file
// cannot be read or parsed.
func parseJson(config *Config) {
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

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.TenantName, c.TenantName)
	overlay(&config.AdminUsername, c.AdminUsername)
	overlay(&config.AdminPassword, c.AdminPassword)
	overlay(&config.AuthEndpoint, c.AuthEndpoint)
	overlay(&config.StorageBaseURL, c.StorageBaseURL)
	overlay(&config.StorageBackend, c.StorageBackend)
	overlay(&config.S3Region, c.S3Region)
	overlay(&config.S3AccessKey, c.S3AccessKey)
	overlay(&config.S3SecretKey, c.S3SecretKey)
	overlay(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overlay(&config.SecretMasterKey, c.SecretMasterKey)
	overlay(&config.LogLevel, c.LogLevel)
	if c.CallTimeout.Duration != 0 {
		config.CallTimeout = c.CallTimeout.Duration
	}
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
