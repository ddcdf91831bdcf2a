package config

import (
	"fmt"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/kelseyhightower/envconfig"
)

// parseEnv overlays values from environment variables named by the
// envconfig tags on Config. Unset variables leave the current value intact.
// A malformed value (e.g. "PRICE_CACHE_TTL=soon") panics, like a bad JSON file.
func parseEnv(config *Config) {
	if err := envconfig.Process("", config); err != nil {
		panic(err)
	}
}

// LoadEnvConfig applies defaults and the environment only, for tools that
// own their command line.
func LoadEnvConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfig, err)
	}
	return cfg, nil
}
