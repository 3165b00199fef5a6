/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache_test

import (
	"bytes"
	"fmt"
	stdlog "log"
	"time"

	"github.com/acronis/go-ttlcache/config"
	"github.com/acronis/go-ttlcache/log"
	"github.com/acronis/go-ttlcache/ttlcache"
)

type AppConfig struct {
	Cache *ttlcache.Config
	Log   *log.Config
}

func NewAppConfig() *AppConfig {
	return &AppConfig{Cache: ttlcache.NewConfig(), Log: log.NewConfig()}
}

func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

func Example() {
	// Cache for user sessions: entries live 30 minutes.
	sessions, err := ttlcache.New[string, string](30 * time.Minute)
	if err != nil {
		stdlog.Fatal(err)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			stdlog.Println(closeErr)
		}
	}()

	sessions.Put("session-1", "alice")
	sessions.PutWithTTL("session-2", "bob", time.Minute)

	user, found := sessions.Get("session-1")
	fmt.Println(user, found)
	fmt.Println(sessions.Contains("session-2"), sessions.Len())

	sessions.Remove("session-1")
	fmt.Println(sessions.GetOption("session-1").OrElse("anonymous"))

	// Output:
	// alice true
	// true 2
	// anonymous
}

func Example_config() {
	cfgData := bytes.NewBufferString(`
cache:
  defaultTTL: 10m
  checkInterval: 1m
  shardsNumber: 32
log:
  level: debug
  format: text
  output: stderr
`)
	appCfg := NewAppConfig()
	if err := config.NewDefaultLoader("myapp").LoadFromReader(cfgData, config.DataTypeYAML, appCfg); err != nil {
		stdlog.Fatal(err)
	}

	logger, closeLogger := log.NewLogger(appCfg.Log)
	defer closeLogger()

	cache, err := ttlcache.NewFromConfig[string, []byte](appCfg.Cache, ttlcache.Options{
		Name:             "tokens",
		Logger:           logger.WithLevel(log.LevelWarn),
		MetricsCollector: ttlcache.NewPrometheusMetrics(),
	})
	if err != nil {
		stdlog.Fatal(err)
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			logger.Error("failed to close cache", log.Error(closeErr))
		}
	}()

	fmt.Println(cache.DefaultTTL(), cache.CheckInterval(), appCfg.Log.Level)

	// Output:
	// 10m0s 1m0s debug
}
