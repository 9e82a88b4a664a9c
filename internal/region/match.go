package region

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultAliases maps legal-dong names that span several administrative dongs
// to the name stems of those dongs.
var DefaultAliases = map[string][]string{
	"수유동": {"수유", "인수"},
	"미아동": {"미아", "삼각산", "송중", "송천"},
}

// Normalize returns the NFC form of s without surrounding or inner spaces.
// Datasets exported on macOS frequently carry decomposed (NFD) Hangul.
func Normalize(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "")
}

// subdistrictTail is what may follow a dong stem: an optional number
// ("수유1동", "종로1.2.3.4가동", "신당제5동") and an optional level suffix.
var subdistrictTail = regexp.MustCompile(`^(제)?[0-9.,·]*(가)?[0-9.,·]*(본)?(동|읍|면|리)?$`)

var subdistrictSuffixes = []string{"동", "읍", "면", "리"}

// stem strips a trailing level suffix: "인수동" → "인수".
func stem(name string) string {
	for _, suf := range subdistrictSuffixes {
		if strings.HasSuffix(name, suf) && utf8.RuneCountInString(name) > 1 {
			return strings.TrimSuffix(name, suf)
		}
	}
	return name
}

// SubdistrictTerms expands a sub-district query into the name stems to match,
// consulting aliases first.
func SubdistrictTerms(query string, aliases map[string][]string) []string {
	q := Normalize(query)
	if q == "" {
		return nil
	}
	if terms, ok := aliases[q]; ok && len(terms) > 0 {
		return terms
	}
	return []string{stem(q)}
}

// matchesSubdistrict reports whether a feature name belongs to one of terms:
// the name starts with the term and the rest is only numbering and a suffix.
func matchesSubdistrict(name string, terms []string) bool {
	for _, t := range terms {
		if t == "" || !strings.HasPrefix(name, t) {
			continue
		}
		if subdistrictTail.MatchString(strings.TrimPrefix(name, t)) {
			return true
		}
	}
	return false
}

// matchesDistrict is the fuzzy containment test used for 시·군·구 names.
func matchesDistrict(name, query string) bool {
	if name == "" || query == "" {
		return false
	}
	if strings.Contains(name, query) {
		return true
	}
	// "강남구청" still finds "강남구"; single-rune names are too ambiguous
	return utf8.RuneCountInString(name) >= 2 && strings.Contains(query, name)
}
