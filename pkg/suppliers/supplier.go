// Package suppliers defines the capability contract every supplier driver
// satisfies and the helpers drivers share.
//
// A driver is a Supplier plus exactly one of InventoryFetcher (it can dump its
// whole catalog) or IdentifierSearcher (it must be asked per identifier).
// Session resources acquired in Authenticate are released in Cleanup, which
// callers invoke unconditionally; see WithSession.
package suppliers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// Supplier is the lifecycle every driver implements.
type Supplier interface {
	// Name returns the configured supplier name.
	Name() string
	// Authenticate opens the supplier session.
	Authenticate(ctx context.Context) error
	// Cleanup releases anything Authenticate acquired. It must be safe to
	// call when Authenticate failed or was never called.
	Cleanup() error
}

// InventoryFetcher is a supplier that can list its full inventory.
type InventoryFetcher interface {
	Supplier
	FetchInventory(ctx context.Context) ([]inventory.SupplierRecord, error)
}

// IdentifierSearcher is a supplier that answers per-identifier queries.
type IdentifierSearcher interface {
	Supplier
	// SearchKey is the identifier family queries are issued by.
	SearchKey() identifier.Kind
	// SearchByIdentifiers returns records for the queries that were found.
	// Identifiers the supplier does not know are simply absent. When some
	// searches fail, the records found so far are returned together with a
	// *SearchFailures naming the unanswered queries.
	SearchByIdentifiers(ctx context.Context, queries []inventory.Query) ([]inventory.SupplierRecord, error)
}

// WithSession authenticates s, runs fn, and always cleans up, including when
// fn panics. A cleanup failure is returned only when nothing else failed.
func WithSession(ctx context.Context, s Supplier, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if cerr := s.Cleanup(); cerr != nil && err == nil {
			err = errors.WrapResource("cleanup", "supplier", s.Name(), cerr)
		}
	}()

	if err := s.Authenticate(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Config is one configured supplier.
type Config struct {
	Name      string         `mapstructure:"name" json:"name" yaml:"name"`
	Driver    string         `mapstructure:"driver" json:"driver" yaml:"driver"`
	Enabled   bool           `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Tag       string         `mapstructure:"tag" json:"tag,omitempty" yaml:"tag,omitempty"`
	EnvPrefix string         `mapstructure:"env_prefix" json:"env_prefix,omitempty" yaml:"env_prefix,omitempty"`
	Username  string         `mapstructure:"username" json:"-" yaml:"-"`
	Password  string         `mapstructure:"password" json:"-" yaml:"-"`
	Settings  map[string]any `mapstructure:"settings" json:"settings,omitempty" yaml:"settings,omitempty"`

	// StatusMapping is shared by all suppliers and filled in by the config loader.
	StatusMapping StatusMapping `mapstructure:"-" json:"-" yaml:"-"`
}

// DriverName returns the driver, defaulting to the supplier name.
func (c Config) DriverName() string {
	if c.Driver != "" {
		return c.Driver
	}
	return c.Name
}

// String returns a setting as a string, or def when unset.
func (c Config) String(key, def string) string {
	v, ok := c.Settings[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Int returns a numeric setting, or def when unset or malformed.
func (c Config) Int(key string, def int) int {
	switch v := c.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns a boolean setting, or def when unset or malformed.
func (c Config) Bool(key string, def bool) bool {
	switch v := c.Settings[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration returns a duration setting. Strings use time.ParseDuration and
// bare numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.Settings[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// Require returns a string setting or a ConfigError naming it.
func (c Config) Require(key string) (string, error) {
	v := c.String(key, "")
	if v == "" {
		return "", errors.NewConfigError("supplier "+c.Name, fmt.Sprintf("setting %q is required", key), nil)
	}
	return v, nil
}
