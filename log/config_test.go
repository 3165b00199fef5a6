/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-ttlcache/config"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfgDataType config.DataType
		cfgData     string
		expectedCfg func() *Config
	}{
		{
			name:        "empty yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData:     `log: {}`,
			expectedCfg: func() *Config { return NewDefaultConfig() },
		},
		{
			name:        "yaml config",
			cfgDataType: config.DataTypeYAML,
			cfgData: `
log:
  level: warn
  format: text
  output: file
  file:
    path: my-cache.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 42
  addCaller: true
`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelWarn
				cfg.Format = FormatText
				cfg.Output = OutputFile
				cfg.File.Path = "my-cache.log"
				cfg.File.Rotation.MaxSize = 100 * 1024 * 1024
				cfg.File.Rotation.MaxBackups = 42
				cfg.File.Rotation.Compress = true
				cfg.AddCaller = true
				return cfg
			},
		},
		{
			name:        "json config",
			cfgDataType: config.DataTypeJSON,
			cfgData: `
{
	"log": {
		"level": "ERROR",
		"output": "stderr",
		"nocolor": true
	}
}`,
			expectedCfg: func() *Config {
				cfg := NewDefaultConfig()
				cfg.Level = LevelError
				cfg.Output = OutputStderr
				cfg.NoColor = true
				return cfg
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), tt.cfgDataType, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expectedCfg(), cfg)
		})
	}
}

func TestConfigWithKeyPrefix(t *testing.T) {
	cfgData := `
cache:
  log:
    level: debug
`
	cfg := NewConfig(WithKeyPrefix("cache.log"))
	err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(cfgData), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, cfg.Level)
	require.Equal(t, "cache.log", cfg.KeyPrefix())
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name        string
		cfgData     string
		expectedErr string
	}{
		{
			name:        "unknown level",
			cfgData:     `log: {level: verbose}`,
			expectedErr: `log.level: unknown value "verbose", should be one of [error warn info debug]`,
		},
		{
			name:        "file output without path",
			cfgData:     `log: {output: file}`,
			expectedErr: `log.file.path: cannot be empty when "file" output is used`,
		},
		{
			name:        "too small max size",
			cfgData:     `log: {file: {rotation: {maxSize: 1K}}}`,
			expectedErr: `log.file.rotation.maxSize: should be >= 1M`,
		},
		{
			name:        "negative max age",
			cfgData:     `log: {file: {rotation: {maxAgeDays: -1}}}`,
			expectedErr: `log.file.rotation.maxAgeDays: should be >= 0`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("").LoadFromReader(bytes.NewBufferString(tt.cfgData), config.DataTypeYAML, cfg)
			require.EqualError(t, err, tt.expectedErr)
		})
	}
}

func TestConfigYAMLUnmarshal(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte(`
level: info
output: file
file:
  path: cache.log
  rotation:
    maxSize: 10M
`), &cfg)
	require.NoError(t, err)
	require.Equal(t, LevelInfo, cfg.Level)
	require.Equal(t, OutputFile, cfg.Output)
	require.Equal(t, config.ByteSize(10*1024*1024), cfg.File.Rotation.MaxSize)
}
