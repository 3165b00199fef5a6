/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
)

// Loader loads configuration values from data provider (with initializing default values before)
// and sets them in configuration objects.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a new configurations loader backed by viper
// with an ability to read values from the environment variables.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a new configurations' loader.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// LoadFromFile reads a YAML or JSON file into the data provider and then loads the given configs from it.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	return l.loadAfter(func() error { return l.DataProvider.SetFromFile(path, dataType) }, cfg, cfgs)
}

// LoadFromReader is the same as LoadFromFile, but the data is read from reader.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	return l.loadAfter(func() error { return l.DataProvider.SetFromReader(reader, dataType) }, cfg, cfgs)
}

// Load fills the given configs from defaults and environment variables (if enabled) only.
func (l *Loader) Load(cfg Config, cfgs ...Config) error {
	return l.loadAfter(nil, cfg, cfgs)
}

// loadAfter runs readData (if any) and then sets all defaults before the first Set call,
// so a config may rely on defaults of the configs that follow it.
func (l *Loader) loadAfter(readData func() error, first Config, rest []Config) error {
	if readData != nil {
		if err := readData(); err != nil {
			return err
		}
	}
	all := append([]Config{first}, rest...)
	providers := make([]DataProvider, len(all))
	for i, cfg := range all {
		providers[i] = dataProviderFor(cfg, l.DataProvider)
		cfg.SetProviderDefaults(providers[i])
	}
	for i, cfg := range all {
		if err := cfg.Set(providers[i]); err != nil {
			return err
		}
	}
	return nil
}
