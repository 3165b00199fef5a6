/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"fmt"
	"time"

	"github.com/acronis/go-ttlcache/config"
	"github.com/acronis/go-ttlcache/retry"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyDefaultTTL                  = "defaultTTL"
	cfgKeyCheckInterval               = "checkInterval"
	cfgKeyShardsNumber                = "shardsNumber"
	cfgKeyGracefulStopTimeout         = "gracefulStopTimeout"
	cfgKeySweepBackoffInitialInterval = "sweepBackoff.initialInterval"
)

// Default configuration values.
const (
	DefaultTTL                 = time.Minute
	DefaultGracefulStopTimeout = 5 * time.Second
)

// Config represents a set of configuration parameters for the cache.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	// DefaultTTL is the TTL of entries added by Put.
	DefaultTTL config.TimeDuration `mapstructure:"defaultTTL" yaml:"defaultTTL" json:"defaultTTL"`

	// CheckInterval is the interval between runs of the background sweeper. Zero means DefaultTTL.
	CheckInterval config.TimeDuration `mapstructure:"checkInterval" yaml:"checkInterval" json:"checkInterval"`

	// ShardsNumber must be a power of two.
	ShardsNumber int `mapstructure:"shardsNumber" yaml:"shardsNumber" json:"shardsNumber"`

	// GracefulStopTimeout limits how long Close waits for the sweeper. Zero means no limit.
	GracefulStopTimeout config.TimeDuration `mapstructure:"gracefulStopTimeout" yaml:"gracefulStopTimeout" json:"gracefulStopTimeout"`

	SweepBackoff SweepBackoffConfig `mapstructure:"sweepBackoff" yaml:"sweepBackoff" json:"sweepBackoff"`

	keyPrefix string
}

// SweepBackoffConfig configures delays between sweeps after a failed one.
type SweepBackoffConfig struct {
	InitialInterval config.TimeDuration `mapstructure:"initialInterval" yaml:"initialInterval" json:"initialInterval"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.DefaultTTL = config.TimeDuration(DefaultTTL)
	cfg.ShardsNumber = DefaultShardsNumber
	cfg.GracefulStopTimeout = config.TimeDuration(DefaultGracefulStopTimeout)
	cfg.SweepBackoff.InitialInterval = config.TimeDuration(DefaultSweepFailureBackoffInitialInterval)
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the cache in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDefaultTTL, DefaultTTL.String())
	dp.SetDefault(cfgKeyShardsNumber, DefaultShardsNumber)
	dp.SetDefault(cfgKeyGracefulStopTimeout, DefaultGracefulStopTimeout.String())
	dp.SetDefault(cfgKeySweepBackoffInitialInterval, DefaultSweepFailureBackoffInitialInterval.String())
}

// Set sets the cache configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	defaultTTL, err := dp.GetDuration(cfgKeyDefaultTTL)
	if err != nil {
		return err
	}
	if defaultTTL <= 0 {
		return dp.WrapKeyErr(cfgKeyDefaultTTL, fmt.Errorf("must be positive"))
	}
	c.DefaultTTL = config.TimeDuration(defaultTTL)

	checkInterval, err := dp.GetDuration(cfgKeyCheckInterval)
	if err != nil {
		return err
	}
	if checkInterval < 0 {
		return dp.WrapKeyErr(cfgKeyCheckInterval, fmt.Errorf("cannot be negative"))
	}
	c.CheckInterval = config.TimeDuration(checkInterval)

	if c.ShardsNumber, err = dp.GetInt(cfgKeyShardsNumber); err != nil {
		return err
	}
	if c.ShardsNumber <= 0 || c.ShardsNumber&(c.ShardsNumber-1) != 0 {
		return dp.WrapKeyErr(cfgKeyShardsNumber, fmt.Errorf("must be a positive power of two"))
	}

	gracefulStopTimeout, err := dp.GetDuration(cfgKeyGracefulStopTimeout)
	if err != nil {
		return err
	}
	if gracefulStopTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyGracefulStopTimeout, fmt.Errorf("cannot be negative"))
	}
	c.GracefulStopTimeout = config.TimeDuration(gracefulStopTimeout)

	backoffInitial, err := dp.GetDuration(cfgKeySweepBackoffInitialInterval)
	if err != nil {
		return err
	}
	if backoffInitial <= 0 {
		return dp.WrapKeyErr(cfgKeySweepBackoffInitialInterval, fmt.Errorf("must be positive"))
	}
	c.SweepBackoff.InitialInterval = config.TimeDuration(backoffInitial)

	return nil
}

// NewFromConfig creates a new Cache from the configuration. Values from cfg override
// the corresponding fields of opts, other fields (logger, metrics, name) are taken from opts as is.
func NewFromConfig[K comparable, V any](cfg *Config, opts Options) (*Cache[K, V], error) {
	opts.CheckInterval = time.Duration(cfg.CheckInterval)
	opts.ShardsNumber = cfg.ShardsNumber
	opts.GracefulStopTimeout = time.Duration(cfg.GracefulStopTimeout)
	if cfg.SweepBackoff.InitialInterval > 0 {
		opts.SweepFailureBackoff = retry.NewExponentialBackoffPolicy(time.Duration(cfg.SweepBackoff.InitialInterval), 0)
	}
	return NewWithOpts[K, V](time.Duration(cfg.DefaultTTL), opts)
}
