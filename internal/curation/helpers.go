package curation

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// normalizeURL lowercases scheme and host and strips fragments and trailing
// slashes so identical pages compare equal.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Fragment = ""
	if u.Scheme == "" {
		u.Scheme = "https"
	} else {
		u.Scheme = strings.ToLower(u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	return u.String()
}

func trimSnippet(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	trimmed := strings.TrimSpace(string(runes[:maxRunes]))
	if strings.HasSuffix(trimmed, "…") || strings.HasSuffix(trimmed, "...") {
		return trimmed
	}
	return trimmed + "…"
}

// hostOf extracts the hostname from a URL string.
func hostOf(u string) string {
	if u == "" {
		return ""
	}
	s := u
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	// strip port
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}

// slugify lowercases a person name and collapses every non-alphanumeric run
// into a single dash.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// itemID derives a stable content id from source and URL so re-gathered
// items dedupe across runs. Items without a URL get a random id.
func itemID(source, rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return source + "-" + uuid.NewString()
	}
	sum := sha1.Sum([]byte(normalizeURL(rawURL)))
	return source + "-" + hex.EncodeToString(sum[:])[:10]
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
