// Package safety decides which quantity changes may be applied automatically.
package safety

import (
	"fmt"
	"math"

	"github.com/agentstation/stocksync/pkg/constants"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/matcher"
)

// Config holds the thresholds of the policy.
type Config struct {
	MaxQuantityDropPercent  int  `mapstructure:"max_quantity_drop_percent" json:"max_quantity_drop_percent" yaml:"max_quantity_drop_percent"`
	MinQuantityForZeroCheck int  `mapstructure:"min_quantity_for_zero_check" json:"min_quantity_for_zero_check" yaml:"min_quantity_for_zero_check"`
	EnableSafetyChecks      bool `mapstructure:"enable_safety_checks" json:"enable_safety_checks" yaml:"enable_safety_checks"`
}

// DefaultConfig returns the default thresholds with checks enabled.
func DefaultConfig() Config {
	return Config{
		MaxQuantityDropPercent:  constants.DefaultMaxQuantityDropPercent,
		MinQuantityForZeroCheck: constants.DefaultMinQuantityForZeroCheck,
		EnableSafetyChecks:      true,
	}
}

// ReasonCode identifies which rule flagged a change.
type ReasonCode string

const (
	// HighQuantityToZero fires when a well-stocked item drops to exactly zero.
	HighQuantityToZero ReasonCode = "high_quantity_to_zero"
	// QuantityDropPercent fires when a non-zero drop meets the percentage threshold.
	QuantityDropPercent ReasonCode = "quantity_drop_percent"
)

// Reason explains a flagged decision.
type Reason struct {
	Code    ReasonCode `json:"code" yaml:"code"`
	Percent int        `json:"percent,omitempty" yaml:"percent,omitempty"`
	Old     int        `json:"old" yaml:"old"`
	New     int        `json:"new" yaml:"new"`
}

// String renders the reason, e.g. "quantity_drop_85% (was 20, now 3)".
func (r Reason) String() string {
	switch r.Code {
	case HighQuantityToZero:
		return fmt.Sprintf("high_quantity_to_zero (was %d, now 0)", r.Old)
	case QuantityDropPercent:
		return fmt.Sprintf("quantity_drop_%d%% (was %d, now %d)", r.Percent, r.Old, r.New)
	}
	return string(r.Code)
}

// Verdict tags a Decision.
type Verdict int

const (
	// Safe changes are written to the platform.
	Safe Verdict = iota
	// Flagged changes are held for review.
	Flagged
	// NoChange means old and new quantities are equal.
	NoChange
)

// String returns the string representation of a verdict.
func (v Verdict) String() string {
	switch v {
	case Flagged:
		return "flagged"
	case NoChange:
		return "no_change"
	default:
		return "safe"
	}
}

// Decision is the classification of one change. Reason is set only when Flagged.
type Decision struct {
	Verdict Verdict
	Old     int
	New     int
	Reason  *Reason
}

// Policy classifies quantity changes.
type Policy struct {
	cfg Config
}

// New returns a policy for cfg.
func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Config returns the thresholds in effect.
func (p *Policy) Config() Config {
	return p.cfg
}

// Classify decides whether moving from old to new is safe. Equal quantities
// are expected to be mapped to NoChange by the caller; Classify treats them
// as Safe.
func (p *Policy) Classify(old, new int) Decision {
	d := Decision{Verdict: Safe, Old: old, New: new}
	if !p.cfg.EnableSafetyChecks {
		return d
	}

	if old >= p.cfg.MinQuantityForZeroCheck && new == 0 {
		d.Verdict = Flagged
		d.Reason = &Reason{Code: HighQuantityToZero, Old: old, New: new}
		return d
	}

	// zero from a low base is an ordinary stockout
	if new == 0 {
		return d
	}

	drop := DropPercent(old, new)
	if drop >= float64(p.cfg.MaxQuantityDropPercent) {
		d.Verdict = Flagged
		d.Reason = &Reason{Code: QuantityDropPercent, Percent: int(math.Round(drop)), Old: old, New: new}
	}
	return d
}

// DropPercent returns the relative decrease from old to new in percent,
// never negative. A zero or negative base yields 0.
func DropPercent(old, new int) float64 {
	if old <= 0 {
		return 0
	}
	return math.Max(0, float64(old-new)/float64(old)*100)
}

// Item is one classified change with everything needed to write it and
// report it.
type Item struct {
	Supplier        string  `json:"supplier" yaml:"supplier"`
	Title           string  `json:"title" yaml:"title"`
	EAN             string  `json:"ean,omitempty" yaml:"ean,omitempty"`
	SKU             string  `json:"sku,omitempty" yaml:"sku,omitempty"`
	ProductID       int64   `json:"product_id" yaml:"product_id"`
	VariantID       int64   `json:"variant_id" yaml:"variant_id"`
	InventoryItemID int64   `json:"inventory_item_id" yaml:"inventory_item_id"`
	LocationID      int64   `json:"location_id" yaml:"location_id"`
	OldQuantity     int     `json:"old_quantity" yaml:"old_quantity"`
	NewQuantity     int     `json:"new_quantity" yaml:"new_quantity"`
	MatchedVia      string  `json:"matched_via,omitempty" yaml:"matched_via,omitempty"`
	Reason          *Reason `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Update converts the item into a platform write.
func (it Item) Update() inventory.Update {
	return inventory.Update{
		InventoryItemID: it.InventoryItemID,
		LocationID:      it.LocationID,
		Quantity:        it.NewQuantity,
		SKU:             it.SKU,
		EAN:             it.EAN,
	}
}

// Result partitions a batch of matched pairs.
type Result struct {
	Safe     []Item
	Flagged  []Item
	NoChange []Item
}

// Updates returns the platform writes for the safe partition.
func (r Result) Updates() []inventory.Update {
	out := make([]inventory.Update, 0, len(r.Safe))
	for _, it := range r.Safe {
		out = append(out, it.Update())
	}
	return out
}

// ProcessBatch classifies every matched entry. Entries that are not Matched
// are ignored.
func (p *Policy) ProcessBatch(matched []matcher.Entry, supplier string) Result {
	var res Result
	for _, e := range matched {
		if e.Outcome.Kind != matcher.Matched {
			continue
		}
		v := e.Outcome.Variant
		it := Item{
			Supplier:        supplier,
			Title:           v.Title,
			EAN:             e.Record.EAN,
			SKU:             e.Record.SKU,
			ProductID:       v.ProductID,
			VariantID:       v.VariantID,
			InventoryItemID: v.InventoryItemID,
			LocationID:      v.LocationID,
			OldQuantity:     v.Quantity,
			NewQuantity:     e.Record.Quantity,
			MatchedVia:      e.Outcome.Via.String(),
		}

		if it.OldQuantity == it.NewQuantity {
			res.NoChange = append(res.NoChange, it)
			continue
		}

		d := p.Classify(it.OldQuantity, it.NewQuantity)
		if d.Verdict == Flagged {
			it.Reason = d.Reason
			res.Flagged = append(res.Flagged, it)
			continue
		}
		res.Safe = append(res.Safe, it)
	}
	return res
}

// Summary counts a classified batch.
type Summary struct {
	TotalMatched int `json:"total_matched" yaml:"total_matched"`
	Safe         int `json:"safe_updates" yaml:"safe_updates"`
	Flagged      int `json:"flagged_updates" yaml:"flagged_updates"`
	NoChange     int `json:"no_change" yaml:"no_change"`
	Increases    int `json:"quantity_increases" yaml:"quantity_increases"`
	Decreases    int `json:"quantity_decreases" yaml:"quantity_decreases"`
}

// Summarize counts the partitions of r, splitting safe changes into
// increases and decreases.
func Summarize(r Result) Summary {
	s := Summary{
		TotalMatched: len(r.Safe) + len(r.Flagged) + len(r.NoChange),
		Safe:         len(r.Safe),
		Flagged:      len(r.Flagged),
		NoChange:     len(r.NoChange),
	}
	for _, it := range r.Safe {
		switch {
		case it.NewQuantity > it.OldQuantity:
			s.Increases++
		case it.NewQuantity < it.OldQuantity:
			s.Decreases++
		}
	}
	return s
}
