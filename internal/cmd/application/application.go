// Package application defines what commands need from the running app.
// Commands accept this interface rather than the concrete App type so they
// can be tested with Mock.
package application

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/internal/notify"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/sync"
)

// Application is the dependency surface shared by all commands.
type Application interface {
	// Settings returns the loaded stocksync configuration. It is loaded on
	// first use so commands that need none, like version, work without it.
	Settings() (*config.Config, error)

	// Platform returns a client for the configured commerce platform.
	Platform() (*platform.Client, error)

	// Notifier returns the e-mail notifier, or nil when e-mail is not configured.
	Notifier() (*notify.Notifier, error)

	// Suppliers returns the factory that builds supplier drivers.
	Suppliers() sync.Factory

	// KnownDriver reports whether a supplier driver is registered.
	KnownDriver(driver string) bool

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}

// ExitError carries a run outcome that must end the process with a non-zero
// exit code after the command has already reported it.
type ExitError struct {
	Status runlog.ExitStatus
	Path   string // Saved run log, if any
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("sync finished with status %s; see %s", e.Status, e.Path)
	}
	return fmt.Sprintf("sync finished with status %s", e.Status)
}

// Code is the process exit code.
func (e *ExitError) Code() int {
	return e.Status.Code()
}
