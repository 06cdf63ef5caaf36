package guard

import (
	"net/url"
	"strings"
)

// SafeReturnTo returns raw if it is a same-site relative location, otherwise
// fallback. Only a path (plus query) starting with a single "/" is honored;
// anything with a scheme, host or a protocol-relative "//" prefix is not.
func SafeReturnTo(raw, fallback string) string {
	next := strings.TrimSpace(raw)
	if next == "" {
		return fallback
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}

	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" || parsed.Path == "" {
		return fallback
	}
	// Percent-encoded slashes and backslashes decode into the same
	// protocol-relative forms the raw checks reject.
	if strings.HasPrefix(parsed.Path, "//") || strings.Contains(parsed.Path, "\\") {
		return fallback
	}

	out := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		out += "?" + parsed.RawQuery
	}
	return out
}
