// Package vocab folds free text and resolves it against the controlled
// vocabularies used by catalog items: intensity levels, exercise types,
// body parts and equipment.
package vocab

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips combining accents and collapses whitespace.
// Folded strings are the only form used for comparisons.
func Fold(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	// transform.Chain keeps state, so it is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// splitTokens breaks a list cell on semicolons, commas and newlines.
func splitTokens(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// singularCandidates returns the folded token followed by its word-wise
// singular forms ("bandas elasticas" -> "banda elastica", "pectorales" -> "pectoral").
func singularCandidates(folded string) []string {
	words := strings.Fields(folded)
	dropS := make([]string, len(words))
	dropES := make([]string, len(words))
	for i, w := range words {
		dropS[i] = w
		dropES[i] = w
		if len(w) > 3 && strings.HasSuffix(w, "s") {
			dropS[i] = strings.TrimSuffix(w, "s")
			dropES[i] = dropS[i]
		}
		if len(w) > 4 && strings.HasSuffix(w, "es") {
			dropES[i] = strings.TrimSuffix(w, "es")
		}
	}
	return []string{folded, strings.Join(dropS, " "), strings.Join(dropES, " ")}
}
