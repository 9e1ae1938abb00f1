package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/internal/notify"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/sync"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
// Example Usage:
//
//	srv := platformtest.New(t)
//	mock := &application.Mock{
//	    SettingsFunc: func() (*config.Config, error) { return cfg, nil },
//	    PlatformFunc: func() (*platform.Client, error) { return srv.Client(t), nil },
//	}
//	cmd := sync.NewCommand(mock)
//	// ... test command
type Mock struct {
	SettingsFunc     func() (*config.Config, error)
	PlatformFunc     func() (*platform.Client, error)
	NotifierFunc     func() (*notify.Notifier, error)
	SuppliersFunc    func() sync.Factory
	KnownDriverFunc  func(driver string) bool
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// Settings returns settings using the mock function or a not-found error.
func (m *Mock) Settings() (*config.Config, error) {
	if m.SettingsFunc != nil {
		return m.SettingsFunc()
	}
	return nil, errors.NewNotFoundError("config", "mock")
}

// Platform returns a platform client using the mock function or a not-found error.
func (m *Mock) Platform() (*platform.Client, error) {
	if m.PlatformFunc != nil {
		return m.PlatformFunc()
	}
	return nil, errors.NewNotFoundError("platform", "mock")
}

// Notifier returns a notifier using the mock function or nil (e-mail off).
func (m *Mock) Notifier() (*notify.Notifier, error) {
	if m.NotifierFunc != nil {
		return m.NotifierFunc()
	}
	return nil, nil
}

// Suppliers returns a factory using the mock function or one that builds nothing.
func (m *Mock) Suppliers() sync.Factory {
	if m.SuppliersFunc != nil {
		return m.SuppliersFunc()
	}
	return nil
}

// KnownDriver reports drivers using the mock function or accepts everything.
func (m *Mock) KnownDriver(driver string) bool {
	if m.KnownDriverFunc != nil {
		return m.KnownDriverFunc(driver)
	}
	return true
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
