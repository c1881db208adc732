// Package config loads the tickmirror settings from ~/.config/tickmirror/config.json with
// TICKMIRROR_* environment overrides.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/tickmirror/pkg/model"
	"github.com/harrisonrobin/tickmirror/pkg/transport"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

const (
	xdgAppName = "tickmirror"
	configFile = "config.json"
	envPrefix  = "TICKMIRROR"
)

// Config is the persisted configuration.
type Config struct {
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`

	ClientID     string `json:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string `json:"redirect_url" mapstructure:"redirect_url"`
	// AccessToken is a token JSON document or a bare token; it takes precedence over the
	// stored token file.
	AccessToken string `json:"access_token" mapstructure:"access_token"`

	BaseURL    string `json:"base_url" mapstructure:"base_url"`
	OpenAPIURL string `json:"open_api_url" mapstructure:"open_api_url"`

	PollInterval  string `json:"poll_interval" mapstructure:"poll_interval"`
	Retries       int    `json:"retries" mapstructure:"retries"`
	Backoff       string `json:"backoff" mapstructure:"backoff"`
	RetryStatuses []int  `json:"retry_statuses" mapstructure:"retry_statuses"`

	Calendar string `json:"calendar" mapstructure:"calendar"`
	LogFile  string `json:"log_file" mapstructure:"log_file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	p := transport.DefaultPolicy()
	return &Config{
		BaseURL:       "https://api.ticktick.com/api/v2/",
		OpenAPIURL:    "https://api.ticktick.com",
		PollInterval:  "1m",
		Retries:       p.Retries,
		Backoff:       p.Backoff.String(),
		RetryStatuses: p.Statuses,
		Calendar:      "TickTick",
	}
}

// Keys lists every configuration key.
func Keys() []string {
	var keys []string
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"username":       d.Username,
		"password":       d.Password,
		"client_id":      d.ClientID,
		"client_secret":  d.ClientSecret,
		"redirect_url":   d.RedirectURL,
		"access_token":   d.AccessToken,
		"base_url":       d.BaseURL,
		"open_api_url":   d.OpenAPIURL,
		"poll_interval":  d.PollInterval,
		"retries":        d.Retries,
		"backoff":        d.Backoff,
		"retry_statuses": d.RetryStatuses,
		"calendar":       d.Calendar,
		"log_file":       d.LogFile,
	}
}

// Dir returns the directory holding the config, token and cache files.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath returns the path of config.json.
func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the default config file.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads path. A missing file yields the defaults, still subject to environment
// overrides.
func LoadFrom(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

// Validate checks the duration fields.
func (c *Config) Validate() error {
	if _, err := c.Interval(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Interval returns the poll interval.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("poll_interval %q is not a positive duration: %w", c.PollInterval, model.ErrInvalidArgument)
	}
	return d, nil
}

// Policy returns the transport retry policy.
func (c *Config) Policy() (transport.Policy, error) {
	p := transport.DefaultPolicy()
	backoff, err := time.ParseDuration(c.Backoff)
	if err != nil || backoff < 0 {
		return p, fmt.Errorf("backoff %q is not a duration: %w", c.Backoff, model.ErrInvalidArgument)
	}
	if c.Retries < 0 {
		return p, fmt.Errorf("retries %d is negative: %w", c.Retries, model.ErrInvalidArgument)
	}
	p.Retries = c.Retries
	p.Backoff = backoff
	if len(c.RetryStatuses) > 0 {
		p.Statuses = c.RetryStatuses
	}
	return p, nil
}

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as indented JSON, replacing path atomically.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(b, '\n'))); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}

// Set updates one key of the file at path and saves it.
func Set(path, key, value string) (*Config, error) {
	if _, ok := defaults()[key]; !ok {
		return nil, fmt.Errorf("unknown config key %q (known: %s): %w", key, strings.Join(Keys(), ", "), model.ErrInvalidArgument)
	}
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	if key == "retry_statuses" {
		v.Set(key, strings.Split(value, ","))
	} else {
		v.Set(key, value)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, SaveTo(path, cfg)
}
