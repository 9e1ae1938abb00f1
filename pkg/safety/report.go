package safety

import (
	"fmt"
	"strings"

	"github.com/agentstation/stocksync/pkg/identifier"
)

const rule = "============================================================"

// FormatFlagged renders flagged items as a plain-text review block.
func FormatFlagged(items []Item) string {
	if len(items) == 0 {
		return "No updates flagged for review."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nFLAGGED UPDATES (%d items)\n%s\n\n", rule, len(items), rule)
	for _, it := range items {
		reason := ""
		if it.Reason != nil {
			reason = it.Reason.String()
		}
		fmt.Fprintf(&b, "Product: %s\n", it.Title)
		fmt.Fprintf(&b, "  %s\n", identifier.Format(it.EAN, it.SKU))
		fmt.Fprintf(&b, "  Supplier: %s\n", it.Supplier)
		fmt.Fprintf(&b, "  Change: %d → %d\n", it.OldQuantity, it.NewQuantity)
		fmt.Fprintf(&b, "  Reason: %s\n", reason)
		fmt.Fprintf(&b, "  Product ID: %d / Variant ID: %d\n\n", it.ProductID, it.VariantID)
	}
	return b.String()
}
