// Package nlp resolves the numeric and temporal shorthand people type into
// chat messages: "5k", "R$50", "ontem", "15/3". Deterministic, locale-aware
// for Portuguese and English, and independent of the language model so the
// same input always parses the same way.
package nlp

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount resolves a monetary value from free text.
//
// Accepted forms: "5000", "5000.50", "5.000,50" (BR), "50,30" (BR decimal),
// "R$ 50", "$50", "5k" (=5000), "2.5k" (=2500), "1,5k" (=1500).
// Negative and non-numeric values are rejected.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	// Strip currency markers.
	for _, prefix := range []string{"r$", "us$", "$", "brl", "usd"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSpace(s)

	// Thousand shorthand: 5k, 2.5k, 1,5k
	multiplier := 1.0
	if strings.HasSuffix(s, "k") {
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	} else if strings.HasSuffix(s, "mil") {
		multiplier = 1000
		s = strings.TrimSpace(strings.TrimSuffix(s, "mil"))
	}

	s = normalizeDecimal(s)
	if s == "" {
		return 0, fmt.Errorf("not a number: %q", raw)
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	value *= multiplier

	if value < 0 {
		return 0, fmt.Errorf("amount must not be negative: %q", raw)
	}
	if value == 0 {
		return 0, fmt.Errorf("amount must be positive: %q", raw)
	}
	return value, nil
}

// normalizeDecimal converts Brazilian number formatting to the form
// strconv understands: "5.000,50" → "5000.50", "50,30" → "50.30".
func normalizeDecimal(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// Dots are thousand separators, comma is the decimal mark.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case hasComma:
		s = strings.Replace(s, ",", ".", 1)
	case hasDot:
		// A dot followed by exactly three digits is a thousand separator
		// ("5.000"); otherwise it is a decimal mark ("2.5").
		idx := strings.LastIndex(s, ".")
		if idx > 0 && len(s)-idx-1 == 3 && allDigits(s[idx+1:]) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return strings.TrimSpace(s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
