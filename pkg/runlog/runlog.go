// Package runlog is the structured record of one sync run: every classified
// item, every error and the aggregate counts, saved once at the end of the
// run as sync_<timestamp>.json.
//
// A Log is append-only and has a single writer, the orchestrator.
package runlog

import (
	"time"

	"github.com/google/uuid"
)

// Error types recorded in the log.
const (
	ErrorTypeSupplier      = "supplier_processing"
	ErrorTypeUpdate        = "update_failed"
	ErrorTypeConfiguration = "configuration"
	ErrorTypePlatform      = "platform"
)

// Context "reason" values of supplier_processing errors.
const (
	// ReasonAbortGuard marks a search supplier that found none of the
	// searched identifiers.
	ReasonAbortGuard = "abort_guard"
	// ReasonSearchFailed marks one identifier whose search failed.
	ReasonSearchFailed = "search_failed"
)

// UpdateStatus tells what happened to a safe change.
type UpdateStatus string

// Update statuses.
const (
	StatusApplied UpdateStatus = "applied"
	StatusDryRun  UpdateStatus = "dry_run"
	StatusFailed  UpdateStatus = "failed"
)

// Summary holds the aggregate counts of a run or of one supplier.
type Summary struct {
	TotalSupplierProducts int `json:"total_supplier_products" yaml:"total_supplier_products"`
	Matched               int `json:"matched_products" yaml:"matched_products"`
	Updated               int `json:"updated_in_shopify" yaml:"updated_in_shopify"`
	DryRunSkipped         int `json:"dry_run_skipped" yaml:"dry_run_skipped"`
	NoChange              int `json:"no_change" yaml:"no_change"`
	NotFound              int `json:"not_found_in_shopify" yaml:"not_found_in_shopify"`
	Duplicates            int `json:"duplicate_identifiers" yaml:"duplicate_identifiers"`
	Flagged               int `json:"flagged_for_review" yaml:"flagged_for_review"`
	Errors                int `json:"errors" yaml:"errors"`
}

// SupplierSummary is the per-supplier slice of the counts.
type SupplierSummary struct {
	Name    string  `json:"name" yaml:"name"`
	State   string  `json:"state" yaml:"state"`
	Summary Summary `json:"summary" yaml:"summary"`
}

// UpdateEntry is a quantity change, applied or not.
type UpdateEntry struct {
	EAN             string       `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU             string       `json:"sku,omitempty" yaml:"sku,omitempty"`
	Supplier        string       `json:"supplier" yaml:"supplier"`
	Title           string       `json:"title,omitempty" yaml:"title,omitempty"`
	OldQuantity     int          `json:"old_qty" yaml:"old_qty"`
	NewQuantity     int          `json:"new_qty" yaml:"new_qty"`
	Change          int          `json:"change" yaml:"change"`
	ProductID       int64        `json:"shopify_product_id" yaml:"shopify_product_id"`
	VariantID       int64        `json:"shopify_variant_id" yaml:"shopify_variant_id"`
	InventoryItemID int64        `json:"inventory_item_id" yaml:"inventory_item_id"`
	Status          UpdateStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Error           string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// NotFoundEntry is a supplier record with no catalog match.
type NotFoundEntry struct {
	EAN      string `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU      string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Supplier string `json:"supplier" yaml:"supplier"`
}

// DuplicateProduct is one of the variants sharing a duplicate identifier.
type DuplicateProduct struct {
	ProductID int64  `json:"product_id" yaml:"product_id"`
	VariantID int64  `json:"variant_id" yaml:"variant_id"`
	Title     string `json:"title" yaml:"title"`
	EAN       string `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU       string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Quantity  int    `json:"quantity" yaml:"quantity"`
}

// Duplicate sources.
const (
	SourceCatalog = "catalog"
	SourceMatch   = "match"
)

// DuplicateEntry is an ambiguous catalog identifier.
type DuplicateEntry struct {
	Identifier string             `json:"identifier" yaml:"identifier"`
	Type       string             `json:"type" yaml:"type"`
	Count      int                `json:"count" yaml:"count"`
	Supplier   string             `json:"supplier" yaml:"supplier"`
	Source     string             `json:"source" yaml:"source"`
	Products   []DuplicateProduct `json:"products,omitempty" yaml:"products,omitempty"`
}

// FlaggedEntry is a change held back by the safety policy.
type FlaggedEntry struct {
	EAN         string `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU         string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Supplier    string `json:"supplier" yaml:"supplier"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Reason      string `json:"reason" yaml:"reason"`
	OldQuantity int    `json:"old_qty" yaml:"old_qty"`
	NewQuantity int    `json:"new_qty" yaml:"new_qty"`
	ProductID   int64  `json:"shopify_product_id" yaml:"shopify_product_id"`
	VariantID   int64  `json:"shopify_variant_id" yaml:"shopify_variant_id"`
}

// ErrorEntry is a hard error.
type ErrorEntry struct {
	Type      string         `json:"type" yaml:"type"`
	Message   string         `json:"message" yaml:"message"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Context   map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
}

// Log is the run artifact.
type Log struct {
	RunID              string            `json:"run_id" yaml:"run_id"`
	Timestamp          time.Time         `json:"timestamp" yaml:"timestamp"`
	DryRun             bool              `json:"dry_run" yaml:"dry_run"`
	SuppliersProcessed []string          `json:"suppliers_processed" yaml:"suppliers_processed"`
	Summary            Summary           `json:"summary" yaml:"summary"`
	Suppliers          []SupplierSummary `json:"supplier_summaries" yaml:"supplier_summaries"`
	Updates            []UpdateEntry     `json:"updates" yaml:"updates"`
	NoChanges          []UpdateEntry     `json:"no_changes" yaml:"no_changes"`
	NotFound           []NotFoundEntry   `json:"not_found" yaml:"not_found"`
	Duplicates         []DuplicateEntry  `json:"duplicates" yaml:"duplicates"`
	Flagged            []FlaggedEntry    `json:"flagged" yaml:"flagged"`
	Errors             []ErrorEntry      `json:"errors" yaml:"errors"`

	now     func() time.Time
	current int
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithDryRun marks the run as a dry run.
func WithDryRun(dryRun bool) Option {
	return func(l *Log) {
		l.DryRun = dryRun
	}
}

// New starts a run log with a fresh run ID.
func New(opts ...Option) *Log {
	l := &Log{
		RunID:              uuid.NewString(),
		SuppliersProcessed: []string{},
		Suppliers:          []SupplierSummary{},
		Updates:            []UpdateEntry{},
		NoChanges:          []UpdateEntry{},
		NotFound:           []NotFoundEntry{},
		Duplicates:         []DuplicateEntry{},
		Flagged:            []FlaggedEntry{},
		Errors:             []ErrorEntry{},
		now:                time.Now,
		current:            -1,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.Timestamp = l.now()
	return l
}

// StartSupplier opens a supplier section; subsequent counts are attributed to it.
func (l *Log) StartSupplier(name string) {
	l.SuppliersProcessed = append(l.SuppliersProcessed, name)
	l.Suppliers = append(l.Suppliers, SupplierSummary{Name: name})
	l.current = len(l.Suppliers) - 1
}

// EndSupplier records the state the supplier finished in and closes its section.
func (l *Log) EndSupplier(state string) {
	if l.current >= 0 {
		l.Suppliers[l.current].State = state
	}
	l.current = -1
}

// count applies fn to the run summary and to the open supplier section.
func (l *Log) count(fn func(*Summary)) {
	fn(&l.Summary)
	if l.current >= 0 {
		fn(&l.Suppliers[l.current].Summary)
	}
}

// AddSupplierProducts counts records received from a supplier.
func (l *Log) AddSupplierProducts(n int) {
	l.count(func(s *Summary) { s.TotalSupplierProducts += n })
}

// AddMatched counts records resolved to a catalog variant.
func (l *Log) AddMatched(n int) {
	l.count(func(s *Summary) { s.Matched += n })
}

// LogUpdate records a change. Equal quantities are recorded as no-ops;
// otherwise the entry's status decides which count it lands in. Failed
// writes are listed but not counted; their error is logged separately.
func (l *Log) LogUpdate(e UpdateEntry) {
	e.Change = e.NewQuantity - e.OldQuantity
	if e.OldQuantity == e.NewQuantity {
		e.Status = ""
		l.NoChanges = append(l.NoChanges, e)
		l.count(func(s *Summary) { s.NoChange++ })
		return
	}
	l.Updates = append(l.Updates, e)
	switch e.Status {
	case StatusApplied:
		l.count(func(s *Summary) { s.Updated++ })
	case StatusDryRun:
		l.count(func(s *Summary) { s.DryRunSkipped++ })
	}
}

// LogNotFound records a supplier record with no catalog match.
func (l *Log) LogNotFound(e NotFoundEntry) {
	l.NotFound = append(l.NotFound, e)
	l.count(func(s *Summary) { s.NotFound++ })
}

// LogDuplicate records an ambiguous identifier.
func (l *Log) LogDuplicate(e DuplicateEntry) {
	l.Duplicates = append(l.Duplicates, e)
	l.count(func(s *Summary) { s.Duplicates++ })
}

// LogFlagged records a change held for review.
func (l *Log) LogFlagged(e FlaggedEntry) {
	l.Flagged = append(l.Flagged, e)
	l.count(func(s *Summary) { s.Flagged++ })
}

// LogError records a hard error.
func (l *Log) LogError(errType, message string, context map[string]any) {
	l.Errors = append(l.Errors, ErrorEntry{
		Type:      errType,
		Message:   message,
		Timestamp: l.now(),
		Context:   context,
	})
	l.count(func(s *Summary) { s.Errors++ })
}

// HasErrors reports whether any hard error was recorded.
func (l *Log) HasErrors() bool {
	return l.Summary.Errors > 0
}

// HasWarnings reports whether any advisory item was recorded.
func (l *Log) HasWarnings() bool {
	return l.Summary.NotFound > 0 || l.Summary.Flagged > 0 || l.Summary.Duplicates > 0
}

// ExitStatus classifies the run outcome.
type ExitStatus int

// Exit statuses.
const (
	Success ExitStatus = iota
	SuccessWithWarnings
	Failure
)

// String returns the string representation of an exit status.
func (s ExitStatus) String() string {
	switch s {
	case SuccessWithWarnings:
		return "success_with_warnings"
	case Failure:
		return "failure"
	default:
		return "success"
	}
}

// Code is the process exit code. Warnings exit 0 so schedulers do not treat
// data-quality findings as failed runs.
func (s ExitStatus) Code() int {
	if s == Failure {
		return 1
	}
	return 0
}

// ExitStatus returns the outcome of the run.
func (l *Log) ExitStatus() ExitStatus {
	switch {
	case l.HasErrors():
		return Failure
	case l.HasWarnings():
		return SuccessWithWarnings
	default:
		return Success
	}
}
