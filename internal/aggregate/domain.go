package aggregate

import (
	"net/url"
	"strings"
)

// Domain reduces a resource URL to its registrable-domain key: hostname
// minus a leading "www.", collapsed to the last two labels when more
// exist. Unparseable URLs fall back to the raw string so filtering still
// has a stable key (fail-open).
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		host = strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}
