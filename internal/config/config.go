// Package config loads the stocksync configuration from .env files, a
// config file and environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/stocksync/internal/notify"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/safety"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// DefaultLogDir is where run logs are written when log_dir is unset.
const DefaultLogDir = "logs"

// Config is the complete application configuration.
type Config struct {
	Platform      platform.Config    `mapstructure:"platform" json:"platform" yaml:"platform"`
	Suppliers     []suppliers.Config `mapstructure:"-" json:"suppliers" yaml:"suppliers"`
	StatusMapping map[string]int     `mapstructure:"status_mapping" json:"status_mapping,omitempty" yaml:"status_mapping,omitempty"`
	SafetyLimits  safety.Config      `mapstructure:"safety_limits" json:"safety_limits" yaml:"safety_limits"`
	Email         notify.Config      `mapstructure:"email" json:"email" yaml:"email"`
	LogDir        string             `mapstructure:"log_dir" json:"log_dir" yaml:"log_dir"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" json:"-" yaml:"-"`
}

// supplierEntry is the on-disk shape of a supplier. Enabled defaults to true.
type supplierEntry struct {
	Name      string         `mapstructure:"name"`
	Driver    string         `mapstructure:"driver"`
	Enabled   *bool          `mapstructure:"enabled"`
	Tag       string         `mapstructure:"tag"`
	EnvPrefix string         `mapstructure:"env_prefix"`
	Username  string         `mapstructure:"username"`
	Password  string         `mapstructure:"password"`
	Settings  map[string]any `mapstructure:"settings"`
}

// Loader controls where configuration is read from.
type Loader struct {
	File        string   // Explicit config file; empty means search
	SearchPaths []string // Directories searched for stocksync.{yaml,yml,toml,json}
	EnvFiles    []string // .env files loaded before anything else; later files do not override earlier ones or the process environment
}

// DefaultLoader returns the loader used by the CLI.
func DefaultLoader() Loader {
	return Loader{
		SearchPaths: []string{".", "./config"},
		EnvFiles:    []string{".env.local", ".env"},
	}
}

// Load reads configuration using the default loader and an optional explicit file.
func Load(file string) (*Config, error) {
	l := DefaultLoader()
	l.File = file
	return l.Load()
}

// Load reads configuration in order of precedence:
// 1. Environment variables (including those from .env files)
// 2. Config file
// 3. Defaults
func (l Loader) Load() (*Config, error) {
	loadEnvFiles(l.EnvFiles)

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, errors.NewConfigError("config", "bind environment", err)
	}

	if l.File != "" {
		v.SetConfigFile(l.File)
	} else {
		v.SetConfigName("stocksync")
		for _, p := range l.SearchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.File != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "read config file", err)
		}
	}

	cfg := &Config{File: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "decode config", err)
	}

	var entries []supplierEntry
	if err := v.UnmarshalKey("suppliers", &entries); err != nil {
		return nil, errors.NewConfigError("config", "decode suppliers", err)
	}
	cfg.Email = cfg.Email.Normalize()
	mapping := suppliers.NewStatusMapping(cfg.StatusMapping)
	for _, e := range entries {
		cfg.Suppliers = append(cfg.Suppliers, e.resolve(mapping))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if err := c.Platform.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Suppliers))
	for i, s := range c.Suppliers {
		if strings.TrimSpace(s.Name) == "" {
			return errors.NewConfigError("suppliers", fmt.Sprintf("entry %d has no name", i), nil)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return errors.NewConfigError("suppliers", fmt.Sprintf("supplier %q is configured twice", s.Name), nil)
		}
		seen[key] = true
	}

	if p := c.SafetyLimits.MaxQuantityDropPercent; p < 0 || p > 100 {
		return errors.NewConfigError("safety_limits", "max_quantity_drop_percent must be between 0 and 100", nil)
	}
	if c.SafetyLimits.MinQuantityForZeroCheck < 0 {
		return errors.NewConfigError("safety_limits", "min_quantity_for_zero_check must be non-negative", nil)
	}
	return c.Email.Validate()
}

// ValidateDrivers checks every supplier's driver against the known set.
func (c *Config) ValidateDrivers(known func(driver string) bool) error {
	for _, s := range c.Suppliers {
		if !known(s.DriverName()) {
			return errors.NewConfigError("supplier "+s.Name, fmt.Sprintf("unknown driver %q", s.DriverName()), nil)
		}
	}
	return nil
}

// Supplier returns the named supplier configuration, matched case-insensitively.
func (c *Config) Supplier(name string) (suppliers.Config, bool) {
	for _, s := range c.Suppliers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return suppliers.Config{}, false
}

func (e supplierEntry) resolve(mapping suppliers.StatusMapping) suppliers.Config {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	cfg := suppliers.Config{
		Name:          e.Name,
		Driver:        e.Driver,
		Enabled:       enabled,
		Tag:           e.Tag,
		EnvPrefix:     e.EnvPrefix,
		Username:      e.Username,
		Password:      e.Password,
		Settings:      e.Settings,
		StatusMapping: mapping,
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]any{}
	}
	if cfg.Username == "" {
		cfg.Username = Credential(cfg, "USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = Credential(cfg, "PASSWORD")
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.api_version", constants.DefaultAPIVersion)
	v.SetDefault("platform.auth_header", constants.DefaultAuthHeader)
	v.SetDefault("platform.requests_per_second", constants.DefaultRequestsPerSecond)
	v.SetDefault("platform.timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("safety_limits.max_quantity_drop_percent", constants.DefaultMaxQuantityDropPercent)
	v.SetDefault("safety_limits.min_quantity_for_zero_check", constants.DefaultMinQuantityForZeroCheck)
	v.SetDefault("safety_limits.enable_safety_checks", true)
	email := notify.DefaultConfig()
	v.SetDefault("email.smtp_port", email.SMTPPort)
	v.SetDefault("email.subject_prefix", email.SubjectPrefix)
	v.SetDefault("email.send_on_success", email.SendOnSuccess)
	v.SetDefault("email.send_on_warnings", email.SendOnWarnings)
	v.SetDefault("email.send_on_errors", email.SendOnErrors)
	v.SetDefault("log_dir", DefaultLogDir)
}

// bindEnv maps the conventional platform and e-mail variables onto their
// keys. EMAIL_TO is a comma-separated list.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"platform.shop_url":      "SHOPIFY_SHOP_URL",
		"platform.access_token":  "SHOPIFY_ACCESS_TOKEN",
		"platform.api_version":   "SHOPIFY_API_VERSION",
		"email.smtp_host":        "EMAIL_SMTP_HOST",
		"email.smtp_port":        "EMAIL_SMTP_PORT",
		"email.username":         "EMAIL_USERNAME",
		"email.password":         "EMAIL_PASSWORD",
		"email.from_email":       "EMAIL_FROM",
		"email.to_emails":        "EMAIL_TO",
		"email.send_on_success":  "EMAIL_SEND_ON_SUCCESS",
		"email.send_on_warnings": "EMAIL_SEND_ON_WARNINGS",
		"email.send_on_errors":   "EMAIL_SEND_ON_ERRORS",
		"log_dir":                "STOCKSYNC_LOG_DIR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files. Missing files are skipped.
func loadEnvFiles(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}
