// Package table provides common table formatting utilities for CLI commands.
package table

import (
	"fmt"
	"strconv"

	"github.com/agentstation/stocksync/internal/cmd/emoji"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/runlog"
	"github.com/agentstation/stocksync/pkg/suppliers"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Title           string
	Empty           string // Printed instead of the table when there are no rows
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// SummaryToTableData renders the aggregate counts of a run.
func SummaryToTableData(log *runlog.Log) Data {
	s := log.Summary
	rows := [][]string{
		{"Supplier products", FormatNumber(s.TotalSupplierProducts)},
		{"Matched", FormatNumber(s.Matched)},
		{"Updated", FormatNumber(s.Updated)},
	}
	if log.DryRun {
		rows = append(rows, []string{"Dry run (not written)", FormatNumber(s.DryRunSkipped)})
	}
	rows = append(rows,
		[]string{"No change", FormatNumber(s.NoChange)},
		[]string{"Not found", FormatNumber(s.NotFound)},
		[]string{"Duplicates", FormatNumber(s.Duplicates)},
		[]string{"Flagged", FormatNumber(s.Flagged)},
		[]string{"Errors", FormatNumber(s.Errors)},
	)

	title := fmt.Sprintf("Run %s (%s) %s", log.RunID, log.Timestamp.Format("2006-01-02 15:04:05"), StatusSymbol(log.ExitStatus()))
	return Data{
		Title:           title,
		Headers:         []string{"Metric", "Count"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// SuppliersToTableData renders the per-supplier counts of a run.
func SuppliersToTableData(summaries []runlog.SupplierSummary) Data {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Name,
			StateSymbol(s.State) + " " + s.State,
			FormatNumber(s.Summary.TotalSupplierProducts),
			FormatNumber(s.Summary.Matched),
			FormatNumber(s.Summary.Updated + s.Summary.DryRunSkipped),
			FormatNumber(s.Summary.Flagged),
			FormatNumber(s.Summary.NotFound),
			FormatNumber(s.Summary.Errors),
		})
	}
	return Data{
		Title:   "Suppliers",
		Empty:   "No suppliers processed.",
		Headers: []string{"Supplier", "State", "Products", "Matched", "Changed", "Flagged", "Not Found", "Errors"},
		Rows:    rows,
		ColumnAlignment: []Align{
			AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight, AlignRight,
		},
	}
}

// UpdatesToTableData renders quantity changes.
func UpdatesToTableData(updates []runlog.UpdateEntry) Data {
	rows := make([][]string, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, []string{
			u.Title,
			identifier.Format(u.EAN, u.SKU),
			u.Supplier,
			strconv.Itoa(u.OldQuantity),
			strconv.Itoa(u.NewQuantity),
			FormatChange(u.Change),
			string(u.Status),
		})
	}
	return Data{
		Title:           "Updates",
		Empty:           "No quantity changes.",
		Headers:         []string{"Product", "Identifier", "Supplier", "Old", "New", "Change", "Status"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight, AlignLeft},
	}
}

// FlaggedToTableData renders changes held back for review.
func FlaggedToTableData(flagged []runlog.FlaggedEntry) Data {
	rows := make([][]string, 0, len(flagged))
	for _, f := range flagged {
		rows = append(rows, []string{
			f.Title,
			identifier.Format(f.EAN, f.SKU),
			f.Supplier,
			strconv.Itoa(f.OldQuantity),
			strconv.Itoa(f.NewQuantity),
			f.Reason,
		})
	}
	return Data{
		Title:           "Flagged for review",
		Empty:           "No updates flagged for review.",
		Headers:         []string{"Product", "Identifier", "Supplier", "Old", "New", "Reason"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
}

// NotFoundToTableData renders supplier records without a catalog match.
func NotFoundToTableData(entries []runlog.NotFoundEntry) Data {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{identifier.Format(e.EAN, e.SKU), e.Supplier})
	}
	return Data{
		Title:   "Not found in catalog",
		Empty:   "Every supplier record matched.",
		Headers: []string{"Identifier", "Supplier"},
		Rows:    rows,
	}
}

// DuplicatesToTableData renders ambiguous identifiers.
func DuplicatesToTableData(entries []runlog.DuplicateEntry) Data {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		titles := ""
		for i, p := range e.Products {
			if i > 0 {
				titles += ", "
			}
			titles += p.Title
		}
		rows = append(rows, []string{e.Type + ": " + e.Identifier, strconv.Itoa(e.Count), e.Supplier, e.Source, titles})
	}
	return Data{
		Title:           "Duplicate identifiers",
		Empty:           "No duplicate identifiers.",
		Headers:         []string{"Identifier", "Count", "Supplier", "Source", "Products"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignLeft, AlignLeft, AlignLeft},
	}
}

// ErrorsToTableData renders hard errors.
func ErrorsToTableData(entries []runlog.ErrorEntry) Data {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Timestamp.Format("15:04:05"), e.Type, e.Message})
	}
	return Data{
		Title:   "Errors",
		Empty:   "No errors.",
		Headers: []string{"Time", "Type", "Message"},
		Rows:    rows,
	}
}

// SupplierConfigsToTableData renders the configured suppliers.
func SupplierConfigsToTableData(configs []suppliers.Config, known func(driver string) bool) Data {
	rows := make([][]string, 0, len(configs))
	for _, c := range configs {
		enabled := emoji.Success
		if !c.Enabled {
			enabled = emoji.Optional
		}
		driver := c.DriverName()
		if !known(driver) {
			driver += " " + emoji.Unsupported
		}
		tag := c.Tag
		if tag == "" {
			tag = "- (entire catalog)"
		}
		creds := emoji.Optional
		if c.Username != "" && c.Password != "" {
			creds = emoji.Success
		}
		rows = append(rows, []string{c.Name, driver, tag, enabled, creds})
	}
	return Data{
		Title:           "Configured suppliers",
		Empty:           "No suppliers configured.",
		Headers:         []string{"Name", "Driver", "Tag", "Enabled", "Credentials"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignCenter, AlignCenter},
	}
}

// StatusSymbol returns the symbol for a run outcome.
func StatusSymbol(s runlog.ExitStatus) string {
	switch s {
	case runlog.Success:
		return emoji.Success
	case runlog.SuccessWithWarnings:
		return emoji.Warning
	default:
		return emoji.Error
	}
}

// StateSymbol returns the symbol for a supplier's final pipeline state.
func StateSymbol(state string) string {
	switch state {
	case "done":
		return emoji.Success
	case "failed":
		return emoji.Error
	default:
		return emoji.Unknown
	}
}

// FormatChange renders a signed quantity delta.
func FormatChange(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// FormatNumber formats numbers with comma separators.
func FormatNumber(n int) string {
	str := strconv.Itoa(n)
	neg := n < 0
	if neg {
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	// Add commas every 3 digits
	result := ""
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}
	if neg {
		return "-" + result
	}
	return result
}
