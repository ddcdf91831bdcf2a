package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/weavekeeper/internal/flagx"
	"github.com/dmitrijs2005/weavekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
// Durations accept "90s"-style strings or integer nanoseconds.
type JsonConfig struct {
	Environment        string         `json:"environment"`
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	ArweaveProtocol    string         `json:"arweave_protocol"`
	ArweaveHost        string         `json:"arweave_host"`
	ArweavePort        int            `json:"arweave_port"`
	ArweaveWalletJWK   string         `json:"arweave_wallet_jwk"`
	ArweaveTestWallet  string         `json:"arweave_test_wallet"`
	DevWalletPath      string         `json:"dev_wallet_path"`
	BlobBackend        string         `json:"blob_backend"`
	BlobDir            string         `json:"blob_dir"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	MaxUploadSize      int64          `json:"max_upload_size"`
	PriceCacheTTL      timex.Duration `json:"price_cache_ttl"`
	PriceCacheSize     int            `json:"price_cache_size"`
	ProcessingTimeout  timex.Duration `json:"processing_timeout"`
	ReaperInterval     timex.Duration `json:"reaper_interval"`
	CORSAllowedOrigins []string       `json:"cors_allowed_origins"`
	LogFormat          string         `json:"log_format"`
	LogLevel           string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (if any) and copies every
// non-zero field into config. An unreadable or invalid file panics.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.Environment, c.Environment)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ArweaveProtocol, c.ArweaveProtocol)
	setString(&config.ArweaveHost, c.ArweaveHost)
	if c.ArweavePort != 0 {
		config.ArweavePort = c.ArweavePort
	}
	setString(&config.ArweaveWalletJWK, c.ArweaveWalletJWK)
	setString(&config.ArweaveTestWallet, c.ArweaveTestWallet)
	setString(&config.DevWalletPath, c.DevWalletPath)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.BlobDir, c.BlobDir)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.MaxUploadSize != 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	if c.PriceCacheTTL.Duration != 0 {
		config.PriceCacheTTL = c.PriceCacheTTL.Duration
	}
	if c.PriceCacheSize != 0 {
		config.PriceCacheSize = c.PriceCacheSize
	}
	if c.ProcessingTimeout.Duration != 0 {
		config.ProcessingTimeout = c.ProcessingTimeout.Duration
	}
	if c.ReaperInterval.Duration != 0 {
		config.ReaperInterval = c.ReaperInterval.Duration
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
