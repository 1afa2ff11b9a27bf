package services

import (
	"crypto/md5"
	"strings"
	"unicode"
)

// BrandMatcher decides whether an observed domain is a lookalike of a
// monitored brand. It is pure and stateless: safe to call from any number
// of concurrent producer workers without coordination.
type BrandMatcher struct {
	brands           []string
	threshold        float64
	emitOnExactBrand bool
}

// NewBrandMatcher creates a matcher for the given monitored-brand display
// names. threshold is the minimum similarity ratio for a fuzzy match;
// emitOnExactBrand controls whether a first label equal to the brand itself
// is reported (normally off, so the legitimate domain is not flagged).
func NewBrandMatcher(brands []string, threshold float64, emitOnExactBrand bool) *BrandMatcher {
	return &BrandMatcher{
		brands:           brands,
		threshold:        threshold,
		emitOnExactBrand: emitOnExactBrand,
	}
}

// Match returns the best-matching monitored brand (title-cased) and its
// score, or ("", 0) when nothing clears the threshold.
//
// A normalized brand appearing as a substring of a candidate token scores a
// flat 0.99; otherwise the score is an LCS similarity ratio, floored at 0.90
// when the candidate is within edit distance 1 of a brand of 4+ characters
// (the single-character typosquat case that plain ratio similarity can
// under-score).
func (m *BrandMatcher) Match(domain string) (string, float64) {
	host := strings.TrimLeft(strings.ToLower(domain), "*.")
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	firstLabel, _, _ := strings.Cut(host, ".")
	normalizedLabel := normalizeToken(firstLabel)
	if normalizedLabel == "" {
		return "", 0
	}

	candidates := []string{normalizedLabel}
	for _, token := range splitAlnum(firstLabel) {
		candidates = append(candidates, normalizeToken(token))
	}

	bestBrand := ""
	bestScore := 0.0

	for _, brand := range m.brands {
		normalizedBrand := normalizeToken(brand)
		if normalizedBrand == "" {
			continue
		}

		for _, candidate := range candidates {
			if candidate == "" {
				continue
			}
			if strings.Contains(candidate, normalizedBrand) {
				if candidate == normalizedBrand && !m.emitOnExactBrand {
					continue
				}
				return titleCase(brand), 0.99
			}

			ratio := similarityRatio(normalizedBrand, candidate)
			distance := levenshtein(normalizedBrand, candidate)
			if distance <= 1 && len(normalizedBrand) >= 4 && ratio < 0.90 {
				ratio = 0.90
			}

			if ratio >= m.threshold && ratio > bestScore {
				bestScore = ratio
				bestBrand = titleCase(brand)
			}
		}
	}

	return bestBrand, bestScore
}

// similarityRatio is 2*matching/(len(a)+len(b)) where matching is the length
// of the longest common subsequence of a and b. Returns a value in [0, 1].
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Single-row LCS table
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// levenshtein computes the edit distance between two strings
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	previous := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}
	current := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			insertCost := current[j-1] + 1
			deleteCost := previous[j] + 1
			replaceCost := previous[j-1]
			if a[i-1] != b[j-1] {
				replaceCost++
			}
			current[j] = min(insertCost, deleteCost, replaceCost)
		}
		copy(previous, current)
	}
	return previous[len(b)]
}

// splitAlnum splits a label on runs of non-alphanumeric characters
func splitAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}

// titleCase uppercases the first letter of every letter run and lowercases
// the rest ("docu-sign" -> "Docu-Sign")
func titleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			sb.WriteRune(r)
			prevLetter = false
		}
	}
	return sb.String()
}

// Country is a (name, ISO code) pair used for country attribution
type Country struct {
	Name string
	Code string
}

// Countries is the fixed attribution table shared by the TLD lookup, the
// hash-bucket fallback and the event simulator.
var Countries = []Country{
	{"United States", "US"},
	{"Russia", "RU"},
	{"India", "IN"},
	{"Germany", "DE"},
	{"Brazil", "BR"},
	{"United Kingdom", "GB"},
	{"Japan", "JP"},
	{"Australia", "AU"},
	{"South Africa", "ZA"},
	{"Canada", "CA"},
}

// tldCountries maps a domain's top-level label to its country
var tldCountries = map[string]Country{
	"ru": {"Russia", "RU"},
	"de": {"Germany", "DE"},
	"br": {"Brazil", "BR"},
	"in": {"India", "IN"},
	"jp": {"Japan", "JP"},
	"uk": {"United Kingdom", "GB"},
	"au": {"Australia", "AU"},
	"za": {"South Africa", "ZA"},
	"ca": {"Canada", "CA"},
	"us": {"United States", "US"},
}

// InferCountry maps a hostname to a country: by TLD when the TLD is in the
// fixed table, otherwise by a stable hash bucket over the hostname. The
// fallback is a deterministic placeholder, not geolocation — the same
// hostname always yields the same country.
func InferCountry(domain string) Country {
	host := strings.TrimLeft(strings.ToLower(domain), "*.")
	tld := ""
	if idx := strings.LastIndex(host, "."); idx != -1 {
		tld = host[idx+1:]
	}
	if c, ok := tldCountries[tld]; ok {
		return c
	}
	return Countries[hashBucket(host, len(Countries))]
}

// hashBucket maps a string to a stable bucket index in [0, n) using the
// first byte of its MD5 digest
func hashBucket(s string, n int) int {
	digest := md5.Sum([]byte(s))
	return int(digest[0]) % n
}
