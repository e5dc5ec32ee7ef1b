// Package lang normalises language tags used in file names and font lookup.
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Fallback is the language whose assets stand in for missing localized ones.
const Fallback = "en"

// Base reduces a BCP 47 tag ("ko-KR", "pt_BR", "EN") to its base language
// code. Unparseable input is lowercased and returned as is.
func Base(tag string) string {
	tag = strings.TrimSpace(strings.ReplaceAll(tag, "_", "-"))
	if tag == "" {
		return Fallback
	}
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	base, _ := t.Base()
	return base.String()
}

// Candidates returns the lookup order for localized assets: the language
// itself, then the fallback.
func Candidates(tag string) []string {
	b := Base(tag)
	if b == Fallback {
		return []string{Fallback}
	}
	return []string{b, Fallback}
}
