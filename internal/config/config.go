// Package config loads the gateway's configuration from a YAML file, an
// optional environment-specific overlay, and environment variables, in
// that order of increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/synnergy-labs/monero-gateway/internal/errs"
	"github.com/synnergy-labs/monero-gateway/pkg/utils"
)

// Config is the unified runtime configuration for gatewayd.
type Config struct {
	Storage struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"storage"`

	API struct {
		Public struct {
			Bind string `mapstructure:"bind"`
		} `mapstructure:"public"`
		Internal struct {
			Bind string `mapstructure:"bind"`
		} `mapstructure:"internal"`
		PidCache struct {
			TTLSeconds int `mapstructure:"ttl_s"`
			Capacity   int `mapstructure:"capacity"`
		} `mapstructure:"pid_cache"`
		PidBloom struct {
			Entries uint    `mapstructure:"entries"`
			FPRate  float64 `mapstructure:"fp_rate"`
		} `mapstructure:"pid_bloom"`
	} `mapstructure:"api"`

	Monitor struct {
		RPC struct {
			URL string `mapstructure:"url"`
		} `mapstructure:"rpc"`
		StartHeight       uint64 `mapstructure:"start_height"`
		PollIntervalS     int    `mapstructure:"poll_interval_s"`
		MinConfirmations  uint64 `mapstructure:"min_confirmations"`
		MinPaymentAmount  int64  `mapstructure:"min_payment_amount"`
	} `mapstructure:"monitor"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// PollInterval returns Monitor.PollIntervalS as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollIntervalS) * time.Second
}

// CacheTTL returns API.PidCache.TTLSeconds as a time.Duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.API.PidCache.TTLSeconds) * time.Second
}

// Validate enforces the invariants the rest of the gateway assumes hold:
// a storage URL and a wallet RPC URL are always required, and at least
// one of the two HTTP listeners must be configured.
func (c Config) Validate() error {
	if c.Storage.URL == "" {
		return fmt.Errorf("%w: storage.url is required", errs.ErrConfig)
	}
	if c.Monitor.RPC.URL == "" {
		return fmt.Errorf("%w: monitor.rpc.url is required", errs.ErrConfig)
	}
	if c.API.Public.Bind == "" && c.API.Internal.Bind == "" {
		return fmt.Errorf("%w: at least one of api.public.bind or api.internal.bind must be set", errs.ErrConfig)
	}
	return nil
}

// Load reads config/default.yaml, optionally merges config/<env>.yaml,
// applies GATEWAY_-prefixed environment variable overrides, and
// validates the result.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("default")
	v.AddConfigPath("config")
	v.SetConfigType("yaml")

	v.SetDefault("api.pid_cache.ttl_s", 60)
	v.SetDefault("api.pid_cache.capacity", 100000)
	v.SetDefault("api.pid_bloom.entries", 100000)
	v.SetDefault("api.pid_bloom.fp_rate", 0.01)
	v.SetDefault("monitor.poll_interval_s", 5)
	v.SetDefault("monitor.min_confirmations", 10)
	v.SetDefault("monitor.min_payment_amount", 0)
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}
	if env != "" {
		v.SetConfigName(env)
		if err := v.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	v.SetEnvPrefix("gateway")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration using the GATEWAY_ENV environment
// variable to select the overlay file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("GATEWAY_ENV", ""))
}
