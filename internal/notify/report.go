package notify

import (
	"fmt"
	"strings"

	"github.com/agentstation/stocksync/pkg/runlog"
)

// Per-section caps that keep the message readable.
const (
	maxNotFound = 20
	maxFlagged  = 20
	maxErrors   = 10
)

const rule = "------------------------------------------------------------"

// Subject builds the subject line: prefix, outcome and run time.
func Subject(prefix string, log *runlog.Log) string {
	var status string
	switch log.ExitStatus() {
	case runlog.Failure:
		status = "ERRORS"
	case runlog.SuccessWithWarnings:
		status = "WARNINGS"
	default:
		status = "SUCCESS"
	}
	if log.DryRun {
		status += " (dry run)"
	}
	return fmt.Sprintf("%s %s - %s", prefix, status, log.Timestamp.Format("2006-01-02 15:04"))
}

// Body renders the plain-text report for a run log.
func Body(log *runlog.Log) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("Inventory Sync Report")
	line("%s", strings.Repeat("=", len(rule)))
	line("")
	line("Run:       %s", log.RunID)
	line("Timestamp: %s", log.Timestamp.Format("2006-01-02 15:04:05"))
	line("Suppliers: %s", strings.Join(log.SuppliersProcessed, ", "))
	if log.DryRun {
		line("Mode:      dry run, nothing was written")
	}
	line("")

	s := log.Summary
	line("SUMMARY")
	line(rule)
	line("Total supplier products:  %d", s.TotalSupplierProducts)
	line("Matched in Shopify:       %d", s.Matched)
	line("Updated in Shopify:       %d", s.Updated)
	line("No change needed:         %d", s.NoChange)
	line("")
	line("Not found in Shopify:     %d", s.NotFound)
	line("Duplicate identifiers:    %d", s.Duplicates)
	line("Flagged for review:       %d", s.Flagged)
	line("Errors:                   %d", s.Errors)
	line("")

	if len(log.NotFound) > 0 {
		line("PRODUCTS NOT FOUND IN SHOPIFY")
		line(rule)
		for _, e := range head(log.NotFound, maxNotFound) {
			line("  - EAN: %s / SKU: %s (from %s)", orNA(e.EAN), orNA(e.SKU), e.Supplier)
		}
		more(line, len(log.NotFound), maxNotFound)
	}

	if len(log.Flagged) > 0 {
		line("PRODUCTS FLAGGED FOR REVIEW")
		line(rule)
		for _, e := range head(log.Flagged, maxFlagged) {
			line("  - EAN: %s / SKU: %s", orNA(e.EAN), orNA(e.SKU))
			line("    Reason: %s", e.Reason)
			line("    Change: %d -> %d", e.OldQuantity, e.NewQuantity)
		}
		more(line, len(log.Flagged), maxFlagged)
	}

	if len(log.Errors) > 0 {
		line("ERRORS")
		line(rule)
		for _, e := range head(log.Errors, maxErrors) {
			line("  - %s: %s", e.Type, e.Message)
		}
		more(line, len(log.Errors), maxErrors)
	}

	line(rule)
	line("This is an automated message from stocksync.")
	line("Please review flagged items and address any errors.")
	return b.String()
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func more(line func(string, ...any), total, shown int) {
	if total > shown {
		line("  ... and %d more", total-shown)
	}
	line("")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
