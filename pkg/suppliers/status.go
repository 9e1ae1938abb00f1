package suppliers

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// StatusMapping maps supplier availability phrases to quantities. Keys are
// compared case-folded.
type StatusMapping map[string]int

// NewStatusMapping folds the keys of m.
func NewStatusMapping(m map[string]int) StatusMapping {
	out := make(StatusMapping, len(m))
	for k, v := range m {
		out[fold(k)] = v
	}
	return out
}

var (
	firstNumber = regexp.MustCompile(`\d+`)

	outOfStockWords = []string{"out", "slut", "ikke", "ej"}
	lowStockWords   = []string{"low", "lite", "låg", "få"}
	inStockWords    = []string{"in stock", "lager", "available", "tillgänglig"}
)

// Quantities assumed by the keyword fallbacks.
const (
	LowStockQuantity = 3
	InStockQuantity  = 15
)

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ParseStatus turns a supplier availability value into a quantity. Numbers
// and numeric strings are used directly; otherwise the mapping is consulted,
// then the first integer in the text, then keyword fallbacks. Anything
// unrecognized is 0. The result is never negative.
func ParseStatus(raw any, mapping StatusMapping) int {
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		return clamp(v)
	case int64:
		return clamp(int(v))
	case uint64:
		return clamp(int(min(v, math.MaxInt32)))
	case float64:
		return clamp(int(math.Trunc(v)))
	case json.Number:
		return parseStatusString(v.String(), mapping)
	case string:
		return parseStatusString(v, mapping)
	default:
		return parseStatusString(fmt.Sprint(v), mapping)
	}
}

func parseStatusString(s string, mapping StatusMapping) int {
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return clamp(int(math.Trunc(f)))
	}

	status := fold(trimmed)
	if q, ok := mapping[status]; ok {
		return clamp(q)
	}

	if m := firstNumber.FindString(status); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}

	switch {
	case containsAny(status, outOfStockWords):
		return 0
	case containsAny(status, lowStockWords):
		return LowStockQuantity
	case containsAny(status, inStockWords):
		return InStockQuantity
	}
	return 0
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
