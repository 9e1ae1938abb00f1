// Package identifier canonicalizes product identifiers so that catalog and
// supplier values compare equal regardless of formatting noise.
package identifier

import (
	"strings"
	"unicode"
)

// Kind names the identifier family a value belongs to.
type Kind string

const (
	// EAN is a barcode (EAN-8, UPC, EAN-13, GTIN-14).
	EAN Kind = "EAN"
	// SKU is a catalog- or supplier-defined stock-keeping code.
	SKU Kind = "SKU"
)

// String returns the string representation of a kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind accepts "ean" or "sku" in any case.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EAN", "BARCODE":
		return EAN, true
	case "SKU":
		return SKU, true
	}
	return "", false
}

const (
	minEANLength = 8
	maxEANLength = 14
)

// NormalizeEAN strips whitespace, dashes and underscores and accepts the
// remainder only if it is 8 to 14 ASCII digits.
func NormalizeEAN(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			continue
		}
		if r < '0' || r > '9' {
			return "", false
		}
		b.WriteRune(r)
	}
	ean := b.String()
	if len(ean) < minEANLength || len(ean) > maxEANLength {
		return "", false
	}
	return ean, true
}

// NormalizeSKU trims and upper-cases a SKU. Blank input is rejected.
func NormalizeSKU(raw string) (string, bool) {
	sku := strings.ToUpper(strings.TrimSpace(raw))
	if sku == "" {
		return "", false
	}
	return sku, true
}

// Normalize dispatches on kind.
func Normalize(kind Kind, raw string) (string, bool) {
	switch kind {
	case EAN:
		return NormalizeEAN(raw)
	case SKU:
		return NormalizeSKU(raw)
	}
	return "", false
}

// Format renders identifiers for report lines, e.g. "EAN: 5901234567890 / SKU: ABC-123".
func Format(ean, sku string) string {
	var parts []string
	if ean != "" {
		parts = append(parts, "EAN: "+ean)
	}
	if sku != "" {
		parts = append(parts, "SKU: "+sku)
	}
	if len(parts) == 0 {
		return "No identifier"
	}
	return strings.Join(parts, " / ")
}
