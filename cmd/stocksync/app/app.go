// Package app provides the application context and dependency management
// for the stocksync CLI. It centralizes configuration, logging and the
// platform client, and hands them to commands through application.Application.
package app

import (
	gosync "sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/internal/notify"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/internal/suppliers/registry"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/suppliers"
	"github.com/agentstation/stocksync/pkg/sync"
)

// App represents the stocksync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Command-line configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Settings and platform client (lazy-initialized, singletons)
	mu       gosync.RWMutex
	settings *config.Config
	platform *platform.Client
	factory  sync.Factory
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		config:  LoadConfig(),
		factory: func(cfg suppliers.Config) (suppliers.Supplier, error) { return registry.Get(cfg) },
	}

	logger := NewLogger(app.config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the command-line configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the --format flag value.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Suppliers returns the supplier driver factory.
func (a *App) Suppliers() sync.Factory {
	return a.factory
}

// KnownDriver reports whether a supplier driver is registered.
func (a *App) KnownDriver(driver string) bool {
	return registry.Has(driver)
}

// Settings loads the stocksync configuration on first use.
func (a *App) Settings() (*config.Config, error) {
	a.mu.RLock()
	if a.settings != nil {
		s := a.settings
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.settings != nil {
		return a.settings, nil
	}

	s, err := config.Load(a.config.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateDrivers(registry.Has); err != nil {
		return nil, err
	}
	if s.File != "" {
		a.logger.Debug().Str("file", s.File).Msg("Loaded config file")
	}
	a.settings = s
	return s, nil
}

// Platform returns the platform client, creating it on first use.
func (a *App) Platform() (*platform.Client, error) {
	s, err := a.Settings()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.platform != nil {
		return a.platform, nil
	}
	c, err := platform.New(s.Platform)
	if err != nil {
		return nil, errors.WrapResource("create", "platform client", s.Platform.ShopURL, err)
	}
	a.platform = c
	return c, nil
}

// Notifier returns the e-mail notifier, or nil when no SMTP host and
// username are configured.
func (a *App) Notifier() (*notify.Notifier, error) {
	s, err := a.Settings()
	if err != nil {
		return nil, err
	}
	if !s.Email.Enabled() {
		return nil, nil
	}
	return notify.New(s.Email, nil), nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom command-line configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		logging.SetDefault(*logger)
		return nil
	}
}

// WithSettings sets preloaded stocksync settings (useful for testing).
func WithSettings(s *config.Config) Option {
	return func(a *App) error {
		a.settings = s
		return nil
	}
}

// WithPlatform sets a custom platform client (useful for testing).
func WithPlatform(c *platform.Client) Option {
	return func(a *App) error {
		a.platform = c
		return nil
	}
}

// WithSupplierFactory replaces the supplier driver factory (useful for testing).
func WithSupplierFactory(f sync.Factory) Option {
	return func(a *App) error {
		a.factory = f
		return nil
	}
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
