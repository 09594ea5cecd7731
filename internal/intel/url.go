package intel

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL collapses equivalent company URLs to one identity so that
// http://www.x.com/ and https://x.com/a/ dedupe against their bare forms.
// It strips the www. host prefix and any trailing path slash, drops query and
// fragment, and lowercases the result. The operation is idempotent.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(u.Path, "/")

	return strings.ToLower(fmt.Sprintf("%s://%s%s", u.Scheme, host, path)), nil
}
