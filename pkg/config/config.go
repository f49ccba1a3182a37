package config

// Package config provides a reusable loader for the compiler's
// configuration files and environment variables. It is versioned so
// that applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pyra-compiler/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for the pyra CLI. It mirrors the
// structure of the YAML files under cmd/config.
type Config struct {
	Build struct {
		OutDir          string `mapstructure:"out_dir" json:"out_dir"`
		Harden          bool   `mapstructure:"harden" json:"harden"`
		ReentrancyGuard bool   `mapstructure:"reentrancy_guard" json:"reentrancy_guard"`
		LockSlot        uint64 `mapstructure:"lock_slot" json:"lock_slot"`
	} `mapstructure:"build" json:"build"`

	Serve struct {
		Addr string `mapstructure:"addr" json:"addr"`
	} `mapstructure:"serve" json:"serve"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

func defaults() Config {
	var c Config
	c.Build.OutDir = "."
	c.Build.Harden = true
	c.Build.ReentrancyGuard = false
	c.Build.LockSlot = 0xff
	c.Serve.Addr = ":8420"
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded. A missing default config file is not an error: the built-in
// defaults above stand in for it.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	AppConfig = defaults()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("PYRA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the PYRA_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("PYRA_ENV", ""))
}
