package suppliers

import (
	"context"

	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/logging"
)

// FilterValid drops records that fail validation, logging each at debug level.
func FilterValid(ctx context.Context, records []inventory.SupplierRecord) []inventory.SupplierRecord {
	logger := logging.FromContext(ctx)
	out := records[:0:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			logger.Debug().Err(err).Str("ean", rec.EAN).Str("sku", rec.SKU).Msg("Dropping invalid supplier record")
			continue
		}
		out = append(out, rec)
	}
	return out
}
