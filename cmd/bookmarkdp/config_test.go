package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		cfg := defaultConfig()
		cfg.Output = "out/bookmarks.json"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"Valid", func(*Config) {}, ""},
		{"Markdown", func(c *Config) { c.Format = "markdown" }, ""},
		{"NoOutput", func(c *Config) { c.Output = " " }, "output is required"},
		{"BadFormat", func(c *Config) { c.Format = "csv" }, `unknown format "csv"`},
		{"PortZero", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"PortHigh", func(c *Config) { c.Port = 70000 }, "port 70000 out of range"},
		{"NoHost", func(c *Config) { c.Host = "" }, "host is required"},
		{"RelativePath", func(c *Config) { c.Path = "cdp" }, "must start with /"},
		{"NegativeScrolls", func(c *Config) { c.MaxScrolls = -1 }, "max-scrolls -1"},
		{"ZeroScrolls", func(c *Config) { c.MaxScrolls = 0 }, ""},
		{"NegativeRetries", func(c *Config) { c.Retries = -2 }, "retries -2"},
		{"ZeroPageLoad", func(c *Config) { c.PageLoadTimeout = 0 }, "page-load-timeout"},
		{"ZeroCommand", func(c *Config) { c.CommandTimeout = 0 }, "command-timeout"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Port = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output is required")
	assert.Contains(t, err.Error(), "port -1")
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("output", "bookmarks.md")
	v.Set("format", "markdown")
	v.Set("port", 9333)
	v.Set("scroll-delay", "250ms")
	v.Set("folder", "AI")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "bookmarks.md", cfg.Output)
	assert.Equal(t, "markdown", cfg.Format)
	assert.Equal(t, 9333, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.ScrollDelay)
	assert.Equal(t, "AI", cfg.Folder)
	assert.Equal(t, defaultConfig().Host, cfg.Host)
	assert.Equal(t, defaultConfig().PageLoadTimeout, cfg.PageLoadTimeout)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("output", "bookmarks.json")
	v.Set("max-scrolls", -3)

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestScrapeFlagsFromEnv(t *testing.T) {
	t.Setenv("BOOKMARKDP_OUTPUT", "from-env.json")
	t.Setenv("BOOKMARKDP_MAX_SCROLLS", "4")

	v := viper.New()
	cmd := newScrapeCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--folder", "Go"}))
	require.NoError(t, initConfig(v, ""))

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env.json", cfg.Output)
	assert.Equal(t, 4, cfg.MaxScrolls)
	assert.Equal(t, "Go", cfg.Folder)
}
