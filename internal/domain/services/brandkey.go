package services

import (
	"net/url"
	"strings"
)

// normalizeToken lowercases a string and strips everything outside [a-z0-9]
func normalizeToken(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// BrandKeyFromValue derives a normalized brand key from an indicator value,
// a user email or a reporting domain. The host (or the email's domain part)
// is reduced to its first label and normalized; values that normalize to
// nothing yield "unknown". The same derivation is applied to every signal
// type so correlated records land in the same bucket.
func BrandKeyFromValue(value string) string {
	if value == "" {
		return "unknown"
	}
	raw := strings.ToLower(value)
	if idx := strings.LastIndex(raw, "@"); idx != -1 {
		raw = raw[idx+1:]
	}

	host := raw
	if strings.Contains(raw, "://") {
		if parsed, err := url.Parse(raw); err == nil {
			host = parsed.Host
		}
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	host = strings.TrimSpace(strings.TrimLeft(host, "*."))
	if idx := strings.Index(host, "."); idx != -1 {
		host = host[:idx]
	}

	if cleaned := normalizeToken(host); cleaned != "" {
		return cleaned
	}
	return "unknown"
}

// BrandLabel resolves a brand key back to a monitored brand's display label
// (case and punctuation insensitive); when the key matches no monitored
// brand the fallback is returned.
func BrandLabel(brandKey string, brands []string, fallback string) string {
	for _, brand := range brands {
		if normalizeToken(brand) == brandKey {
			return titleCase(strings.ReplaceAll(brand, "-", " "))
		}
	}
	return fallback
}
