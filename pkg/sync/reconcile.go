package sync

import (
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// SelectQueries narrows the catalog-derived queries for a verification run.
// Pinned identifiers keep only queries whose searched identifier is among
// them; limit then caps the count. Order is preserved.
func SelectQueries(queries []inventory.Query, key identifier.Kind, pinned []string, limit int) []inventory.Query {
	if len(pinned) > 0 {
		want := normalizedSet(key, pinned)
		kept := make([]inventory.Query, 0, len(want))
		for _, q := range queries {
			if _, ok := want[queryKey(q, key)]; ok {
				kept = append(kept, q)
			}
		}
		queries = kept
	}
	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

// SelectRecords narrows a catalog dump the same way SelectQueries narrows a
// search: pinned identifiers match either the EAN or the SKU.
func SelectRecords(records []inventory.SupplierRecord, pinned []string, limit int) []inventory.SupplierRecord {
	if len(pinned) > 0 {
		eans := normalizedSet(identifier.EAN, pinned)
		skus := normalizedSet(identifier.SKU, pinned)
		kept := make([]inventory.SupplierRecord, 0, len(pinned))
		for _, r := range records {
			ean, _ := identifier.NormalizeEAN(r.EAN)
			sku, _ := identifier.NormalizeSKU(r.SKU)
			_, hitEAN := eans[ean]
			_, hitSKU := skus[sku]
			if (ean != "" && hitEAN) || (sku != "" && hitSKU) {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Reconcile adds a zero-quantity record for every searched identifier the
// supplier did not return. Absence on the supplier side is a stock signal.
// Found records come first, in the order the supplier returned them.
//
// Callers must apply the abort guard before reconciling: when nothing was
// found, absence means the search failed, not that everything sold out.
func Reconcile(queries []inventory.Query, key identifier.Kind, found []inventory.SupplierRecord) []inventory.SupplierRecord {
	seen := make(map[string]struct{}, len(found))
	for _, r := range found {
		raw := r.EAN
		if key == identifier.SKU {
			raw = r.SKU
		}
		if id, ok := identifier.Normalize(key, raw); ok {
			seen[id] = struct{}{}
		}
	}

	out := make([]inventory.SupplierRecord, 0, len(queries))
	out = append(out, found...)
	for _, q := range queries {
		id := queryKey(q, key)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, inventory.SupplierRecord{
			EAN:       q.EAN,
			SKU:       q.SKU,
			Quantity:  0,
			RawStatus: inventory.NotFoundOnSupplier,
		})
	}
	return out
}

// ExcludeQueries drops the queries whose searched identifier appears in
// failed. A query the supplier never answered must not be reconciled.
func ExcludeQueries(queries []inventory.Query, key identifier.Kind, failed []inventory.Query) []inventory.Query {
	if len(failed) == 0 {
		return queries
	}
	drop := make(map[string]struct{}, len(failed))
	for _, q := range failed {
		if id := queryKey(q, key); id != "" {
			drop[id] = struct{}{}
		}
	}
	kept := make([]inventory.Query, 0, len(queries))
	for _, q := range queries {
		if _, ok := drop[queryKey(q, key)]; !ok {
			kept = append(kept, q)
		}
	}
	return kept
}

// FoundCount counts the distinct searched identifiers present in found.
func FoundCount(queries []inventory.Query, key identifier.Kind, found []inventory.SupplierRecord) int {
	searched := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		if id := queryKey(q, key); id != "" {
			searched[id] = struct{}{}
		}
	}
	hits := make(map[string]struct{})
	for _, r := range found {
		raw := r.EAN
		if key == identifier.SKU {
			raw = r.SKU
		}
		id, ok := identifier.Normalize(key, raw)
		if !ok {
			continue
		}
		if _, ok := searched[id]; ok {
			hits[id] = struct{}{}
		}
	}
	return len(hits)
}

func queryKey(q inventory.Query, key identifier.Kind) string {
	raw := q.EAN
	if key == identifier.SKU {
		raw = q.SKU
	}
	id, _ := identifier.Normalize(key, raw)
	return id
}

func normalizedSet(kind identifier.Kind, ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		if id, ok := identifier.Normalize(kind, raw); ok {
			set[id] = struct{}{}
		}
	}
	return set
}
