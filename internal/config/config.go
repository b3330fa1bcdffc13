// Package config wraps Viper behind a small typed accessor surface and
// defines the settings netcanvas reads at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. NETCANVAS_API_BASE_URL.
const EnvPrefix = "NETCANVAS"

// Config is a read-only view over a Viper instance. A nil Viper behaves
// like an empty configuration.
type Config struct {
	v *viper.Viper
}

// New wraps v. Passing nil yields an empty Config.
func New(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	return &Config{v: v}
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetFloat64(key string) float64        { return c.v.GetFloat64(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// File returns the config file that was read, or "" when none was.
func (c *Config) File() string { return c.v.ConfigFileUsed() }

// Sub returns the subtree rooted at key. Missing keys yield an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target.
func (c *Config) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}

// Settings is the typed configuration of the client.
type Settings struct {
	API struct {
		BaseURL   string        `mapstructure:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RateLimit float64       `mapstructure:"rate_limit"`
		RateBurst int           `mapstructure:"rate_burst"`
	} `mapstructure:"api"`
	Canvas struct {
		Width  float64 `mapstructure:"width"`
		Height float64 `mapstructure:"height"`
	} `mapstructure:"canvas"`
	Diagnostics struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"diagnostics"`
	Notifications struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"notifications"`
	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`
	UI struct {
		Locale string `mapstructure:"locale"`
	} `mapstructure:"ui"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
	Serve struct {
		Addr  string `mapstructure:"addr"`
		Token string `mapstructure:"token"`
	} `mapstructure:"serve"`
}

// SetDefaults registers the default value of every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.rate_limit", 0)
	v.SetDefault("api.rate_burst", 1)
	v.SetDefault("canvas.width", 1200)
	v.SetDefault("canvas.height", 800)
	v.SetDefault("diagnostics.poll_interval", time.Second)
	v.SetDefault("notifications.ttl", 3*time.Second)
	v.SetDefault("storage.path", defaultStatePath())
	v.SetDefault("ui.locale", "en")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("serve.addr", "127.0.0.1:8000")
	v.SetDefault("serve.token", "")
}

// Load reads the optional config file at path, applies defaults and
// NETCANVAS_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("netcanvas")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "netcanvas"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return New(v), nil
}

// Settings decodes the configuration into a Settings value and checks it.
func (c *Config) Settings() (*Settings, error) {
	var s Settings
	if err := c.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the client cannot run with.
func (s *Settings) Validate() error {
	if s.API.BaseURL == "" {
		return errors.New("api.base_url must be set")
	}
	if s.Canvas.Width <= 64 || s.Canvas.Height <= 64 {
		return fmt.Errorf("canvas must be larger than 64x64, got %vx%v", s.Canvas.Width, s.Canvas.Height)
	}
	if s.Diagnostics.PollInterval <= 0 {
		return errors.New("diagnostics.poll_interval must be positive")
	}
	if s.Notifications.TTL <= 0 {
		return errors.New("notifications.ttl must be positive")
	}
	return nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "netcanvas.db"
	}
	return filepath.Join(dir, "netcanvas", "state.db")
}
