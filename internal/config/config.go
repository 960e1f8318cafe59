package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. ALADINKR_TIMEOUT
const EnvPrefix = "ALADINKR"

// Config holds all runtime settings
type Config struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Stagger      time.Duration `mapstructure:"stagger" yaml:"stagger"`
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	DatabasePath string        `mapstructure:"database_path" yaml:"database_path"`
	PagesDir     string        `mapstructure:"pages_dir" yaml:"pages_dir"`
	Server       ServerConfig  `mapstructure:"server" yaml:"server"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	pagesDir := "Desktop"
	if home, err := os.UserHomeDir(); err == nil {
		pagesDir = filepath.Join(home, "Desktop")
	}
	return Config{
		BaseURL:  "https://www.aladin.co.kr",
		Timeout:  30 * time.Second,
		Stagger:  100 * time.Millisecond,
		PagesDir: pagesDir,
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from defaults, then the config file, then
// ALADINKR_* environment variables. A missing config file is not an error
// unless cfgFile names it explicitly.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("base_url", defaults.BaseURL)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("stagger", defaults.Stagger)
	v.SetDefault("user_agent", defaults.UserAgent)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("pages_dir", defaults.PagesDir)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.jwt_secret", defaults.Server.JWTSecret)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("aladinkr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.aladinkr")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.PagesDir = expandHome(cfg.PagesDir)
	cfg.DatabasePath = expandHome(cfg.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Stagger < 0 {
		return fmt.Errorf("stagger must not be negative, got %s", c.Stagger)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	return nil
}

// WriteDefault writes the default configuration to the specified path
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# aladinkr configuration
# Every key can be overridden with an ALADINKR_ environment variable,
# e.g. ALADINKR_TIMEOUT=10s or ALADINKR_SERVER_JWT_SECRET=...

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
