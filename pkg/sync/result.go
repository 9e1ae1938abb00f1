package sync

import (
	"fmt"
	"strings"

	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/safety"
)

// Result represents the complete result of a sync run.
type Result struct {
	Log       *runlog.Log      // Run log, saved by the caller
	Suppliers []SupplierResult // Results per supplier, in processing order
	DryRun    bool             // Whether this was a dry run
}

// SupplierResult represents the outcome of one supplier's pipeline.
type SupplierResult struct {
	Name     string
	Driver   string
	State    State // Done or Failed once the pipeline has finished
	FailedAt State // Stage that was being entered when the pipeline failed
	Err      error

	// Pipeline counts
	CatalogSize int // Variants in the supplier's catalog slice
	Searched    int // Identifiers searched (search suppliers only)
	Records     int // Supplier records after validation and reconciliation
	Matched     int
	NotFound    int
	Duplicates  int
	Safe        int
	Flagged     int
	NoChange    int

	Changes      safety.Summary
	Apply        inventory.ApplyResult
	FlaggedItems []safety.Item // Changes held back for review
}

// Failed returns the suppliers whose pipeline failed.
func (r *Result) Failed() []SupplierResult {
	var out []SupplierResult
	for _, s := range r.Suppliers {
		if s.State == Failed {
			out = append(out, s)
		}
	}
	return out
}

// Flagged returns every change held back for review, across suppliers.
func (r *Result) Flagged() []safety.Item {
	var out []safety.Item
	for _, s := range r.Suppliers {
		out = append(out, s.FlaggedItems...)
	}
	return out
}

// ExitStatus returns the run outcome recorded in the log.
func (r *Result) ExitStatus() runlog.ExitStatus {
	return r.Log.ExitStatus()
}

// Summary returns a human-readable summary of the sync result.
func (r *Result) Summary() string {
	s := r.Log.Summary
	var parts []string
	if r.DryRun {
		parts = append(parts, "(Dry run)")
	}
	if failed := len(r.Failed()); failed > 0 {
		parts = append(parts, fmt.Sprintf("(%d failed)", failed))
	}

	written := s.Updated
	verb := "updated"
	if r.DryRun {
		written = s.DryRunSkipped
		verb = "would update"
	}
	summary := fmt.Sprintf("%d suppliers: %d matched, %d %s, %d flagged, %d not found",
		len(r.Suppliers), s.Matched, written, verb, s.Flagged, s.NotFound)
	if len(parts) > 0 {
		summary += " " + strings.Join(parts, " ")
	}
	return summary
}

// Summary returns a human-readable summary of the supplier result.
func (sr *SupplierResult) Summary() string {
	if sr.State == Failed {
		return fmt.Sprintf("%s: failed at %s: %v", sr.Name, sr.FailedAt, sr.Err)
	}
	return fmt.Sprintf("%s: %d matched, %d safe, %d flagged, %d unchanged, %d not found",
		sr.Name, sr.Matched, sr.Safe, sr.Flagged, sr.NoChange, sr.NotFound)
}
