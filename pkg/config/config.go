package config

// Package config provides a reusable loader for chainhook-node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"chainhook/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for one chainhook-node instance. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Bitcoin struct {
		RPCURL      string `mapstructure:"rpc_url" json:"rpc_url"`
		RPCUser     string `mapstructure:"rpc_user" json:"rpc_user"`
		RPCPassword string `mapstructure:"rpc_password" json:"rpc_password"`
		Retention   uint64 `mapstructure:"retention" json:"retention"`
	} `mapstructure:"bitcoin" json:"bitcoin"`

	Stacks struct {
		NodeURL         string `mapstructure:"node_url" json:"node_url"`
		Retention       uint64 `mapstructure:"retention" json:"retention"`
		NakamotoEnabled bool   `mapstructure:"nakamoto_enabled" json:"nakamoto_enabled"`
	} `mapstructure:"stacks" json:"stacks"`

	Ingest struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"ingest" json:"ingest"`

	Registration struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"registration" json:"registration"`

	Diagnostics struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"diagnostics" json:"diagnostics"`

	Predicates struct {
		BootstrapDir string `mapstructure:"bootstrap_dir" json:"bootstrap_dir"`
	} `mapstructure:"predicates" json:"predicates"`

	Delivery struct {
		RetryCount   int           `mapstructure:"retry_count" json:"retry_count"`
		RetryBackoff time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	} `mapstructure:"delivery" json:"delivery"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	applyDefaults(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHAINHOOK_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAINHOOK_ENV", ""))
}

// applyDefaults fills in zero-valued fields viper left unset, mirroring
// spec.md §3's default retention windows and delivery parameters.
func applyDefaults(c *Config) {
	if c.Bitcoin.Retention == 0 {
		c.Bitcoin.Retention = 7
	}
	if c.Stacks.Retention == 0 {
		c.Stacks.Retention = 1
	}
	if c.Ingest.ListenAddr == "" {
		c.Ingest.ListenAddr = ":20456"
	}
	if c.Registration.ListenAddr == "" {
		c.Registration.ListenAddr = ":20455"
	}
	if c.Diagnostics.ListenAddr == "" {
		c.Diagnostics.ListenAddr = ":20457"
	}
	if c.Delivery.RetryCount == 0 {
		c.Delivery.RetryCount = 3
	}
	if c.Delivery.RetryBackoff == 0 {
		c.Delivery.RetryBackoff = time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
