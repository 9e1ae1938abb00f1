package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/stocksync/pkg/catalog"
	"github.com/agentstation/stocksync/pkg/inventory"
	"github.com/agentstation/stocksync/pkg/matcher"
)

func TestClassify(t *testing.T) {
	policy := New(DefaultConfig())

	tests := []struct {
		name    string
		old     int
		new     int
		verdict Verdict
		reason  *Reason
	}{
		{name: "moderate drop is safe", old: 10, new: 4, verdict: Safe},
		{name: "zero from low base is safe", old: 10, new: 0, verdict: Safe},
		{name: "zero from high base is flagged", old: 60, new: 0, verdict: Flagged,
			reason: &Reason{Code: HighQuantityToZero, Old: 60, New: 0}},
		{name: "zero exactly at threshold is flagged", old: 50, new: 0, verdict: Flagged,
			reason: &Reason{Code: HighQuantityToZero, Old: 50, New: 0}},
		{name: "drop at threshold is flagged", old: 100, new: 20, verdict: Flagged,
			reason: &Reason{Code: QuantityDropPercent, Percent: 80, Old: 100, New: 20}},
		{name: "drop percent is rounded", old: 30, new: 5, verdict: Flagged,
			reason: &Reason{Code: QuantityDropPercent, Percent: 83, Old: 30, New: 5}},
		{name: "drop below threshold is safe", old: 100, new: 21, verdict: Safe},
		{name: "increase is safe", old: 5, new: 500, verdict: Safe},
		{name: "increase from zero is safe", old: 0, new: 3, verdict: Safe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.Classify(tt.old, tt.new)
			assert.Equal(t, tt.verdict, d.Verdict)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestClassifyDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableSafetyChecks = false
	d := New(cfg).Classify(1000, 0)
	assert.Equal(t, Safe, d.Verdict)
	assert.Nil(t, d.Reason)
}

func TestPercentRuleNeverFiresOnZeroOrIncrease(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxQuantityDropPercent = 1
	cfg.MinQuantityForZeroCheck = 1 << 30
	policy := New(cfg)

	for old := 1; old <= 120; old += 7 {
		assert.Equal(t, Safe, policy.Classify(old, 0).Verdict, "old=%d new=0", old)
		assert.Equal(t, Safe, policy.Classify(old, old+1).Verdict, "old=%d new=%d", old, old+1)
		assert.Equal(t, float64(0), DropPercent(old, old+1))
	}
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "high_quantity_to_zero (was 60, now 0)",
		Reason{Code: HighQuantityToZero, Old: 60}.String())
	assert.Equal(t, "quantity_drop_85% (was 20, now 3)",
		Reason{Code: QuantityDropPercent, Percent: 85, Old: 20, New: 3}.String())
}

func TestProcessBatch(t *testing.T) {
	idx := catalog.Build([]inventory.VariantRecord{
		{ProductID: 100, VariantID: 1, InventoryItemID: 1001, LocationID: 9, EAN: "5901234567890", SKU: "A1", Title: "Ball - Red", Quantity: 10},
		{ProductID: 100, VariantID: 2, InventoryItemID: 1002, LocationID: 9, SKU: "A2", Title: "Ball - Blue", Quantity: 60},
		{ProductID: 101, VariantID: 3, InventoryItemID: 1003, LocationID: 9, SKU: "A3", Title: "Rope", Quantity: 7},
		{ProductID: 102, VariantID: 4, InventoryItemID: 1004, LocationID: 9, SKU: "A4", Title: "Bowl", Quantity: 2},
	})
	batch := matcher.MatchBatch([]inventory.SupplierRecord{
		{EAN: "5901234567890", Quantity: 4},
		{SKU: "A2", Quantity: 0},
		{SKU: "A3", Quantity: 7},
		{SKU: "A4", Quantity: 12},
	}, idx)

	res := New(DefaultConfig()).ProcessBatch(batch.Matched, "acme")

	require.Len(t, res.Safe, 2)
	require.Len(t, res.Flagged, 1)
	require.Len(t, res.NoChange, 1)

	first := res.Safe[0]
	assert.Equal(t, "acme", first.Supplier)
	assert.Equal(t, "Ball - Red", first.Title)
	assert.Equal(t, 10, first.OldQuantity)
	assert.Equal(t, 4, first.NewQuantity)
	assert.Equal(t, "EAN", first.MatchedVia)
	assert.Equal(t, inventory.Update{InventoryItemID: 1001, LocationID: 9, Quantity: 4, EAN: "5901234567890"}, first.Update())

	assert.Equal(t, int64(1002), res.Flagged[0].InventoryItemID)
	require.NotNil(t, res.Flagged[0].Reason)
	assert.Equal(t, HighQuantityToZero, res.Flagged[0].Reason.Code)

	assert.Len(t, res.Updates(), 2)

	assert.Equal(t, Summary{TotalMatched: 4, Safe: 2, Flagged: 1, NoChange: 1, Increases: 1, Decreases: 1}, Summarize(res))
}

func TestFormatFlagged(t *testing.T) {
	assert.Equal(t, "No updates flagged for review.", FormatFlagged(nil))

	out := FormatFlagged([]Item{{
		Supplier: "acme", Title: "Ball - Blue", SKU: "A2",
		ProductID: 100, VariantID: 2, OldQuantity: 60, NewQuantity: 0,
		Reason: &Reason{Code: HighQuantityToZero, Old: 60},
	}})
	assert.Contains(t, out, "FLAGGED UPDATES (1 items)")
	assert.Contains(t, out, "Product: Ball - Blue")
	assert.Contains(t, out, "  SKU: A2\n")
	assert.Contains(t, out, "Change: 60 → 0")
	assert.Contains(t, out, "Reason: high_quantity_to_zero (was 60, now 0)")
	assert.Contains(t, out, "Product ID: 100 / Variant ID: 2")
}
