// Package sync runs the per-supplier reconciliation pipeline: read the
// platform catalog, collect supplier stock, match, classify and write the
// safe changes back.
package sync

import (
	"fmt"
	"strings"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/safety"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// Options controls a sync run.
type Options struct {
	// Orchestration control
	DryRun bool // Run every step except the platform write
	Force  bool // Disable the safety-check policy

	// Supplier selection
	Supplier string // Restrict the run to one named supplier (empty means all enabled)

	// Verification runs
	Limit       int      // Cap the number of identifiers searched or records processed (0 means no cap)
	Identifiers []string // Pin the run to these identifiers

	// Safety policy used when Force is off
	Safety safety.Config
}

// Apply applies the given options to the sync options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Defaults returns the default sync options.
func Defaults() *Options {
	return &Options{
		DryRun:      false,
		Force:       false,
		Supplier:    "",
		Limit:       0,
		Identifiers: nil,
		Safety:      safety.DefaultConfig(),
	}
}

// Option is a function that configures sync Options.
type Option func(*Options)

// Validate checks the options against the configured suppliers.
func (o *Options) Validate(configs []suppliers.Config) error {
	if o.Limit < 0 {
		return &errors.ValidationError{
			Field:   "Limit",
			Value:   o.Limit,
			Message: "limit must be non-negative",
		}
	}

	if o.Safety.MaxQuantityDropPercent < 0 || o.Safety.MaxQuantityDropPercent > 100 {
		return &errors.ValidationError{
			Field:   "Safety.MaxQuantityDropPercent",
			Value:   o.Safety.MaxQuantityDropPercent,
			Message: "drop threshold must be between 0 and 100",
		}
	}

	if o.Supplier != "" {
		found := false
		for _, c := range configs {
			if strings.EqualFold(c.Name, o.Supplier) {
				found = true
				break
			}
		}
		if !found {
			return &errors.ValidationError{
				Field:   "Supplier",
				Value:   o.Supplier,
				Message: fmt.Sprintf("supplier '%s' is not configured", o.Supplier),
			}
		}
	}

	return nil
}

// Policy returns the safety policy for the run. Force mode disables every check.
func (o *Options) Policy() *safety.Policy {
	cfg := o.Safety
	if o.Force {
		cfg.EnableSafetyChecks = false
	}
	return safety.New(cfg)
}

// selected returns the suppliers the run should process, in configuration order.
// A supplier named by the filter runs even when disabled.
func (o *Options) selected(configs []suppliers.Config) []suppliers.Config {
	var out []suppliers.Config
	for _, c := range configs {
		if o.Supplier != "" {
			if strings.EqualFold(c.Name, o.Supplier) {
				out = append(out, c)
			}
			continue
		}
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(opts *Options) {
		opts.DryRun = dryRun
	}
}

// WithForce disables the safety-check policy.
func WithForce(force bool) Option {
	return func(opts *Options) {
		opts.Force = force
	}
}

// WithSupplier restricts the run to one supplier.
func WithSupplier(name string) Option {
	return func(opts *Options) {
		opts.Supplier = name
	}
}

// WithLimit caps the identifiers searched, or the records processed for
// catalog-dump suppliers.
func WithLimit(n int) Option {
	return func(opts *Options) {
		opts.Limit = n
	}
}

// WithIdentifiers pins the run to the given identifiers.
func WithIdentifiers(ids ...string) Option {
	return func(opts *Options) {
		opts.Identifiers = ids
	}
}

// WithSafety sets the safety policy configuration.
func WithSafety(cfg safety.Config) Option {
	return func(opts *Options) {
		opts.Safety = cfg
	}
}
