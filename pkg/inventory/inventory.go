// Package inventory defines the records that flow through a sync run: catalog
// variants read from the commerce platform, observations produced by suppliers,
// and the write batch applied back to the platform.
package inventory

import (
	"github.com/agentstation/stocksync/pkg/errors"
)

// VariantRecord is one stock unit in the commerce platform catalog. Quantity
// is the platform's value and is negative for oversold items.
type VariantRecord struct {
	ProductID       int64  `json:"product_id" yaml:"product_id"`
	VariantID       int64  `json:"variant_id" yaml:"variant_id"`
	InventoryItemID int64  `json:"inventory_item_id" yaml:"inventory_item_id"`
	LocationID      int64  `json:"location_id" yaml:"location_id"`
	SKU             string `json:"sku,omitempty" yaml:"sku,omitempty"`
	EAN             string `json:"ean,omitempty" yaml:"ean,omitempty"`
	Title           string `json:"title" yaml:"title"`
	Quantity        int    `json:"quantity" yaml:"quantity"`
}

// NotFoundOnSupplier marks a record synthesized for an identifier the supplier
// was asked about but did not return.
const NotFoundOnSupplier = "not_found_on_supplier"

// SupplierRecord is a normalized product observation from a supplier.
type SupplierRecord struct {
	EAN          string         `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU          string         `json:"sku,omitempty" yaml:"sku,omitempty"`
	Quantity     int            `json:"quantity" yaml:"quantity"`
	RawStatus    string         `json:"raw_status,omitempty" yaml:"raw_status,omitempty"`
	SupplierData map[string]any `json:"supplier_data,omitempty" yaml:"supplier_data,omitempty"`
}

// Validate requires at least one identifier and a non-negative quantity.
func (r SupplierRecord) Validate() error {
	if r.EAN == "" && r.SKU == "" {
		return errors.NewValidationError("ean/sku", nil, "record carries no identifier")
	}
	if r.Quantity < 0 {
		return errors.NewValidationError("quantity", r.Quantity, "quantity must be non-negative")
	}
	return nil
}

// Query is one catalog item a search-based supplier is asked about. Both
// identifiers are carried so SKU searches can verify the EAN they get back.
type Query struct {
	EAN string `json:"ean,omitempty"`
	SKU string `json:"sku,omitempty"`
}

// Update is one absolute-quantity write to the platform.
type Update struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Quantity        int    `json:"quantity"`
	SKU             string `json:"sku,omitempty"`
	EAN             string `json:"ean,omitempty"`
}

// UpdateError records a single failed write. The batch continues after it.
type UpdateError struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	SKU             string `json:"sku,omitempty"`
	EAN             string `json:"ean,omitempty"`
	Error           string `json:"error"`
}

// ApplyResult summarizes a write batch. Successful+Failed+Skipped always equals Total.
type ApplyResult struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Errors     []UpdateError `json:"errors,omitempty"`

	// Failures is keyed by inventory item ID so callers can mark individual entries.
	Failures map[int64]string `json:"-"`
}
