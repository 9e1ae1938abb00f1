package identifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/stocksync/pkg/identifier"
)

func TestNormalizeEAN(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain", "5901234567890", "5901234567890", true},
		{"dashes", "590-1234-567890", "5901234567890", true},
		{"spaces", " 590 1234 567890 ", "5901234567890", true},
		{"underscores", "590_1234_567890", "5901234567890", true},
		{"tab and newline", "5901234\t567890\n", "5901234567890", true},
		{"ean8", "12345678", "12345678", true},
		{"gtin14", "12345678901234", "12345678901234", true},
		{"too short", "1234567", "", false},
		{"too long", "123456789012345", "", false},
		{"letters", "59012345678AB", "", false},
		{"dot separator", "5901.234567890", "", false},
		{"empty", "", "", false},
		{"only separators", " - _ ", "", false},
		{"unicode digits", "５９０１２３４５６７８９０", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := identifier.NormalizeEAN(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEANIdempotent(t *testing.T) {
	inputs := []string{"590-1234-567890", "12345678", " 0 0 1 2 3 4 5 6 7 ", "abc", "", "1-2"}
	for _, in := range inputs {
		first, ok := identifier.NormalizeEAN(in)
		if !ok {
			continue
		}
		second, ok := identifier.NormalizeEAN(first)
		assert.True(t, ok, in)
		assert.Equal(t, first, second, in)
	}
}

func TestNormalizeSKU(t *testing.T) {
	got, ok := identifier.NormalizeSKU("  abc-123  ")
	assert.True(t, ok)
	assert.Equal(t, "ABC-123", got)

	_, ok = identifier.NormalizeSKU("   ")
	assert.False(t, ok)

	_, ok = identifier.NormalizeSKU("")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, ok := identifier.ParseKind(" ean ")
	assert.True(t, ok)
	assert.Equal(t, identifier.EAN, k)

	k, ok = identifier.ParseKind("Sku")
	assert.True(t, ok)
	assert.Equal(t, identifier.SKU, k)

	_, ok = identifier.ParseKind("upc")
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "EAN: 5901234567890 / SKU: ABC-123", identifier.Format("5901234567890", "ABC-123"))
	assert.Equal(t, "SKU: ABC-123", identifier.Format("", "ABC-123"))
	assert.Equal(t, "No identifier", identifier.Format("", ""))
}
