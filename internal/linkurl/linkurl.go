// Package linkurl canonicalizes link targets and decides whether they belong
// to the crawled site.
package linkurl

import (
	"net/url"
	"strings"
)

// Normalize resolves raw against base and returns its canonical form:
// fragment removed, scheme and host lower-cased, the scheme's default port
// dropped, trailing slashes dropped from the path. The site root is rendered without a path, so
// "https://x.test", "https://x.test/" and "https://x.test/#top" all map to
// "https://x.test".
//
// ok is false when raw or base cannot be parsed; callers skip such links.
func Normalize(raw, base string) (string, bool) {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", false
	}

	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	u := b.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = canonicalHost(u)

	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}

	return u.String(), true
}

// IsInternal reports whether target lives on the same host as base.
// Hosts are compared case-insensitively, including any non-default port;
// the scheme is ignored. Anything that fails to parse or has no host is external.
func IsInternal(target, base string) bool {
	t, err := url.Parse(target)
	if err != nil || t.Host == "" {
		return false
	}

	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return false
	}

	return canonicalHost(t) == canonicalHost(b)
}

// canonicalHost lower-cases u's host and strips :80 from http and :443 from
// https URLs.
func canonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	port := u.Port()
	if port == "" {
		return host
	}
	switch {
	case port == "80" && strings.EqualFold(u.Scheme, "http"),
		port == "443" && strings.EqualFold(u.Scheme, "https"):
		return strings.TrimSuffix(host, ":"+port)
	}
	return host
}

// Host returns the canonical host of rawURL, or "" when it cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return canonicalHost(u)
}
