// Package matcher resolves supplier records onto catalog variants.
//
// Resolution is EAN first, SKU second. A duplicate bucket at either stage is
// terminal: the catalog is ambiguous for that item and the record is never
// resolved through the other identifier.
package matcher

import (
	"github.com/agentstation/stocksync/pkg/catalog"
	"github.com/agentstation/stocksync/pkg/identifier"
	"github.com/agentstation/stocksync/pkg/inventory"
)

// Kind tags the variant of an Outcome.
type Kind int

const (
	// NotFound means neither identifier resolved.
	NotFound Kind = iota
	// Matched means exactly one variant carries the resolving identifier.
	Matched
	// Duplicate means the resolving identifier is shared by several variants.
	Duplicate
)

// String returns the string representation of a kind.
func (k Kind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Duplicate:
		return "duplicate"
	default:
		return "not_found"
	}
}

// Outcome is the result of matching one supplier record.
//
// Matched sets Variant and Via. Duplicate sets Identifier, Via and Count.
// NotFound sets EAN and SKU to the normalized inputs (empty when invalid).
type Outcome struct {
	Kind       Kind
	Variant    inventory.VariantRecord
	Via        identifier.Kind
	Identifier string
	Count      int
	EAN        string
	SKU        string
}

// Match resolves a raw EAN/SKU pair against the index.
func Match(ean, sku string, idx *catalog.Index) Outcome {
	normEAN, hasEAN := identifier.NormalizeEAN(ean)
	normSKU, hasSKU := identifier.NormalizeSKU(sku)

	if hasEAN {
		if bucket, ok := idx.Lookup(identifier.EAN, normEAN); ok {
			return resolve(identifier.EAN, normEAN, bucket)
		}
	}
	if hasSKU {
		if bucket, ok := idx.Lookup(identifier.SKU, normSKU); ok {
			return resolve(identifier.SKU, normSKU, bucket)
		}
	}
	return Outcome{Kind: NotFound, EAN: normEAN, SKU: normSKU}
}

func resolve(kind identifier.Kind, id string, bucket []inventory.VariantRecord) Outcome {
	if len(bucket) > 1 {
		return Outcome{Kind: Duplicate, Via: kind, Identifier: id, Count: len(bucket)}
	}
	return Outcome{Kind: Matched, Variant: bucket[0], Via: kind, Identifier: id, Count: 1}
}

// Entry pairs a supplier record with its outcome.
type Entry struct {
	Record  inventory.SupplierRecord
	Outcome Outcome
}

// Batch partitions a set of records by outcome. Input order is preserved
// within each partition.
type Batch struct {
	Matched    []Entry
	Duplicates []Entry
	NotFound   []Entry
}

// Total returns the number of records in the batch.
func (b Batch) Total() int {
	return len(b.Matched) + len(b.Duplicates) + len(b.NotFound)
}

// MatchBatch applies Match to every record.
func MatchBatch(records []inventory.SupplierRecord, idx *catalog.Index) Batch {
	var b Batch
	for _, rec := range records {
		out := Match(rec.EAN, rec.SKU, idx)
		entry := Entry{Record: rec, Outcome: out}
		switch out.Kind {
		case Matched:
			b.Matched = append(b.Matched, entry)
		case Duplicate:
			b.Duplicates = append(b.Duplicates, entry)
		default:
			b.NotFound = append(b.NotFound, entry)
		}
	}
	return b
}
