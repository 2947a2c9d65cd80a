package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/user/review-crawler/pkg/utils"
)

const (
	EnvPrefix = "REVIEWCRAWLER"

	BrowserChromedp = "chromedp"
	BrowserRod      = "rod"

	// FailureDiscard drops everything collected when a page fetch fails.
	FailureDiscard = "discard"
	// FailurePersist writes the reviews gathered before the failing page.
	FailurePersist = "persist"

	configFileName = "reviewcrawler/config.yaml"
)

// Config holds the application configuration.
type Config struct {
	URL      string `mapstructure:"url"`
	DestDir  string `mapstructure:"path_to_dest_directory"`
	DestFile string `mapstructure:"dest_file"`
	LogLevel string `mapstructure:"log_level"`

	Browser         string        `mapstructure:"browser"`
	Headless        bool          `mapstructure:"headless"`
	Stealth         bool          `mapstructure:"stealth"`
	UserAgent       string        `mapstructure:"user_agent"`
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
	IdleConnections int           `mapstructure:"idle_connections"`
	IdleQuiet       time.Duration `mapstructure:"idle_quiet"`
	// ControlURL attaches the rod backend to a running Chrome (DevTools
	// websocket URL) instead of launching one.
	ControlURL string `mapstructure:"browser_control_url"`

	BlockResourceTypes []string `mapstructure:"block_resource_types"`
	BlockHosts         []string `mapstructure:"block_hosts"`

	OnFailure string `mapstructure:"on_failure"`
	MaxPages  int    `mapstructure:"max_pages"`

	MetricsAddr     string `mapstructure:"metrics_addr"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// DefaultBlockHosts are ad and tracking hosts that never carry review text.
var DefaultBlockHosts = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googletagmanager.com",
	"google-analytics.com",
	"adservice.google.com",
	"amazon-adsystem.com",
	"scorecardresearch.com",
	"quantserve.com",
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", "")
	v.SetDefault("path_to_dest_directory", "./data")
	v.SetDefault("dest_file", "data.txt")
	v.SetDefault("log_level", "info")
	v.SetDefault("browser", BrowserChromedp)
	v.SetDefault("headless", true)
	v.SetDefault("stealth", false)
	v.SetDefault("user_agent", "")
	v.SetDefault("page_timeout", 60*time.Second)
	v.SetDefault("idle_connections", 2)
	v.SetDefault("idle_quiet", 500*time.Millisecond)
	v.SetDefault("browser_control_url", "")
	v.SetDefault("block_resource_types", []string{"image", "font", "media"})
	v.SetDefault("block_hosts", DefaultBlockHosts)
	v.SetDefault("on_failure", FailureDiscard)
	v.SetDefault("max_pages", 0)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("metrics_textfile", "")
}

// Load reads configuration from flags already bound to v, environment
// variables and an optional YAML file, then validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	} else if file, err := xdg.SearchConfigFile(configFileName); err == nil {
		// The XDG file is optional, so only a broken one is an error.
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	} else if err := utils.ValidateTargetURL(c.URL); err != nil {
		errs = append(errs, err)
	}
	if c.DestDir == "" {
		errs = append(errs, errors.New("path_to_dest_directory must not be empty"))
	}
	if c.DestFile == "" {
		errs = append(errs, errors.New("dest_file must not be empty"))
	}
	switch c.Browser {
	case BrowserChromedp, BrowserRod:
	default:
		errs = append(errs, fmt.Errorf("browser must be %q or %q, got %q", BrowserChromedp, BrowserRod, c.Browser))
	}
	switch c.OnFailure {
	case FailureDiscard, FailurePersist:
	default:
		errs = append(errs, fmt.Errorf("on_failure must be %q or %q, got %q", FailureDiscard, FailurePersist, c.OnFailure))
	}
	if c.ControlURL != "" && c.Browser != BrowserRod {
		errs = append(errs, errors.New("browser_control_url is only supported with the rod browser"))
	}
	if c.PageTimeout < 0 {
		errs = append(errs, errors.New("page_timeout must not be negative"))
	}
	if c.IdleConnections < 0 {
		errs = append(errs, errors.New("idle_connections must not be negative"))
	}
	if c.IdleQuiet < 0 {
		errs = append(errs, errors.New("idle_quiet must not be negative"))
	}
	if c.MaxPages < 0 {
		errs = append(errs, errors.New("max_pages must not be negative"))
	}
	return errors.Join(errs...)
}
