package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chromedp/bookmarkdp"
	"github.com/chromedp/bookmarkdp/render"
)

// Config holds the scrape command settings, merged from flags, BOOKMARKDP_*
// environment variables and the optional config file.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`

	Output string `mapstructure:"output"`
	Format string `mapstructure:"format"`

	MaxScrolls      int           `mapstructure:"max-scrolls"`
	Folder          string        `mapstructure:"folder"`
	ScrollDelay     time.Duration `mapstructure:"scroll-delay"`
	PageLoadTimeout time.Duration `mapstructure:"page-load-timeout"`
	CommandTimeout  time.Duration `mapstructure:"command-timeout"`
	Retries         int           `mapstructure:"retries"`
	RetryDelay      time.Duration `mapstructure:"retry-delay"`

	Debug bool `mapstructure:"debug"`
}

// defaultConfig returns the configuration used when nothing is set.
func defaultConfig() Config {
	return Config{
		Host:            bookmarkdp.DefaultHost,
		Port:            bookmarkdp.DefaultPort,
		Path:            bookmarkdp.DefaultPath,
		Format:          string(render.FormatJSON),
		MaxScrolls:      bookmarkdp.DefaultMaxScrolls,
		ScrollDelay:     bookmarkdp.DefaultScrollDelay,
		PageLoadTimeout: bookmarkdp.DefaultPageLoadTimeout,
		CommandTimeout:  bookmarkdp.DefaultCommandTimeout,
		Retries:         bookmarkdp.DefaultRetryCount,
		RetryDelay:      bookmarkdp.DefaultRetryDelay,
	}
}

// Validate checks the configuration before any connection is attempted.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with /", c.Path))
	}
	if strings.TrimSpace(c.Output) == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if _, err := render.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.MaxScrolls < 0 {
		errs = append(errs, fmt.Errorf("max-scrolls %d must not be negative", c.MaxScrolls))
	}
	if c.ScrollDelay < 0 {
		errs = append(errs, fmt.Errorf("scroll-delay %v must not be negative", c.ScrollDelay))
	}
	if c.PageLoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("page-load-timeout %v must be positive", c.PageLoadTimeout))
	}
	if c.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command-timeout %v must be positive", c.CommandTimeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries %d must not be negative", c.Retries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry-delay %v must not be negative", c.RetryDelay))
	}
	return errors.Join(errs...)
}

// loadConfig decodes and validates the merged settings held by v.
func loadConfig(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
