// Package registry maps supplier driver names to their constructors.
// This package is separate from the drivers to avoid circular dependencies.
package registry

import (
	"fmt"
	"sort"

	"github.com/agentstation/stocksync/internal/suppliers/dealerapi"
	"github.com/agentstation/stocksync/internal/suppliers/feedfile"
	"github.com/agentstation/stocksync/internal/suppliers/searchapi"
	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// Constructor builds a supplier from its configuration.
type Constructor func(suppliers.Config) (suppliers.Supplier, error)

// registry maps driver names to their constructors
var registry = map[string]Constructor{
	dealerapi.DriverName: dealerapi.New,
	searchapi.DriverName: searchapi.New,
	feedfile.DriverName:  feedfile.New,
}

// Get creates a NEW supplier instance for the given configuration. The driver
// defaults to the supplier name.
func Get(cfg suppliers.Config) (suppliers.Supplier, error) {
	driver := cfg.DriverName()
	newSupplier, ok := registry[driver]
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "driver",
			Value:   driver,
			Message: fmt.Sprintf("unsupported supplier driver: %s", driver),
		}
	}
	s, err := newSupplier(cfg)
	if err != nil {
		return nil, err
	}
	switch s.(type) {
	case suppliers.InventoryFetcher, suppliers.IdentifierSearcher:
		return s, nil
	}
	return nil, errors.NewConfigError("supplier "+cfg.Name, "driver "+driver+" can neither fetch nor search", errors.ErrNotImplemented)
}

// Has checks if a driver name has an implementation.
func Has(driver string) bool {
	_, ok := registry[driver]
	return ok
}

// List returns all driver names, sorted.
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory adapts Get for callers that accept a constructor.
func Factory() Constructor {
	return Get
}
