package keys

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLocale canonicalizes a locale tag for grouping and wire parameters.
// "ES" becomes "es", "pt_br" becomes "pt-BR". Tags x/text cannot parse are
// trimmed and lower-cased. The empty string stays empty.
//
// Key derivation never calls this: keys depend only on the language letters.
func NormalizeLocale(locale string) string {
	s := strings.TrimSpace(locale)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return strings.ToLower(s)
	}
	return tag.String()
}

// ParseLocales splits a comma or whitespace separated locale list, normalizes
// each entry and drops blanks and duplicates while keeping first-seen order.
func ParseLocales(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	})
	return UniqueLocales(fields)
}

// UniqueLocales normalizes locales and removes blanks and duplicates.
func UniqueLocales(locales []string) []string {
	seen := make(map[string]bool, len(locales))
	out := make([]string, 0, len(locales))
	for _, l := range locales {
		n := NormalizeLocale(l)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
