// Package catalog indexes commerce platform variants by normalized EAN and SKU.
//
// An Index is built in one pass from an immutable slice and never mutated
// afterwards; each supplier run builds a fresh one. Buckets are lists so that
// identifier collisions stay visible: a well-formed catalog has exactly one
// record per identifier, and anything more is reported as a duplicate.
package catalog

import (
	"sort"

	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// Index is a dual lookup over catalog variants.
type Index struct {
	records []inventory.VariantRecord
	byEAN   map[string][]inventory.VariantRecord
	bySKU   map[string][]inventory.VariantRecord

	// insertion order of keys, so derived identifier lists are deterministic
	eanOrder []string
	skuOrder []string
}

// Duplicate describes an identifier carried by more than one catalog variant.
type Duplicate struct {
	Identifier string                    `json:"identifier"`
	Kind       identifier.Kind           `json:"type"`
	Count      int                       `json:"count"`
	Records    []inventory.VariantRecord `json:"products"`
}

// Stats summarizes an index.
type Stats struct {
	TotalIdentifiers int `json:"total_variant_identifiers"`
	RecordsWithEAN   int `json:"products_with_ean"`
	RecordsWithSKU   int `json:"products_with_sku"`
	DuplicateEANs    int `json:"duplicate_eans"`
	DuplicateSKUs    int `json:"duplicate_skus"`
}

// Build indexes every record under every identifier it carries. Identifiers
// that fail normalization are not indexed.
func Build(records []inventory.VariantRecord) *Index {
	idx := &Index{
		records: make([]inventory.VariantRecord, len(records)),
		byEAN:   make(map[string][]inventory.VariantRecord, len(records)),
		bySKU:   make(map[string][]inventory.VariantRecord, len(records)),
	}
	copy(idx.records, records)

	for _, rec := range idx.records {
		if ean, ok := identifier.NormalizeEAN(rec.EAN); ok {
			if _, seen := idx.byEAN[ean]; !seen {
				idx.eanOrder = append(idx.eanOrder, ean)
			}
			idx.byEAN[ean] = append(idx.byEAN[ean], rec)
		}
		if sku, ok := identifier.NormalizeSKU(rec.SKU); ok {
			if _, seen := idx.bySKU[sku]; !seen {
				idx.skuOrder = append(idx.skuOrder, sku)
			}
			idx.bySKU[sku] = append(idx.bySKU[sku], rec)
		}
	}

	return idx
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Records returns a copy of the records the index was built from.
func (idx *Index) Records() []inventory.VariantRecord {
	out := make([]inventory.VariantRecord, len(idx.records))
	copy(out, idx.records)
	return out
}

// Lookup returns the bucket for an already-normalized identifier.
func (idx *Index) Lookup(kind identifier.Kind, id string) ([]inventory.VariantRecord, bool) {
	var bucket []inventory.VariantRecord
	switch kind {
	case identifier.EAN:
		bucket = idx.byEAN[id]
	case identifier.SKU:
		bucket = idx.bySKU[id]
	}
	return bucket, len(bucket) > 0
}

// Queries derives the identifier set a search-based supplier should be asked
// about: one query per distinct identifier of the given kind, in catalog order.
// Each query carries the other identifier of the first record in the bucket.
func (idx *Index) Queries(kind identifier.Kind) []inventory.Query {
	var keys []string
	switch kind {
	case identifier.EAN:
		keys = idx.eanOrder
	case identifier.SKU:
		keys = idx.skuOrder
	default:
		return nil
	}

	queries := make([]inventory.Query, 0, len(keys))
	for _, key := range keys {
		bucket, _ := idx.Lookup(kind, key)
		q := inventory.Query{}
		if kind == identifier.EAN {
			q.EAN = key
			q.SKU, _ = identifier.NormalizeSKU(bucket[0].SKU)
		} else {
			q.SKU = key
			q.EAN, _ = identifier.NormalizeEAN(bucket[0].EAN)
		}
		queries = append(queries, q)
	}
	return queries
}

// Duplicates lists every bucket holding more than one record, EANs first,
// each group sorted by identifier.
func (idx *Index) Duplicates() []Duplicate {
	var dups []Duplicate
	dups = append(dups, collectDuplicates(identifier.EAN, idx.byEAN)...)
	dups = append(dups, collectDuplicates(identifier.SKU, idx.bySKU)...)
	return dups
}

func collectDuplicates(kind identifier.Kind, buckets map[string][]inventory.VariantRecord) []Duplicate {
	var dups []Duplicate
	for id, bucket := range buckets {
		if len(bucket) > 1 {
			dups = append(dups, Duplicate{
				Identifier: id,
				Kind:       kind,
				Count:      len(bucket),
				Records:    bucket,
			})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Identifier < dups[j].Identifier })
	return dups
}

// Stats reports identifier coverage and collision counts.
func (idx *Index) Stats() Stats {
	s := Stats{TotalIdentifiers: len(idx.byEAN) + len(idx.bySKU)}
	for _, rec := range idx.records {
		if _, ok := identifier.NormalizeEAN(rec.EAN); ok {
			s.RecordsWithEAN++
		}
		if _, ok := identifier.NormalizeSKU(rec.SKU); ok {
			s.RecordsWithSKU++
		}
	}
	for _, bucket := range idx.byEAN {
		if len(bucket) > 1 {
			s.DuplicateEANs++
		}
	}
	for _, bucket := range idx.bySKU {
		if len(bucket) > 1 {
			s.DuplicateSKUs++
		}
	}
	return s
}
