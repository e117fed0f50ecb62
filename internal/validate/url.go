package validate

import (
	"net/url"
	"strings"
)

var (
	instagramHosts = []string{"instagram.com", "instagr.am"}
	twitterHosts   = []string{"twitter.com", "x.com"}

	twitterMediaHosts   = []string{"video.twimg.com", "pbs.twimg.com"}
	instagramMediaHosts = []string{"cdninstagram.com", "fbcdn.net"}
)

// IsInstagramURL reports whether raw is an http(s) URL on an Instagram domain
func IsInstagramURL(raw string) bool {
	u, ok := parseHTTP(raw)
	return ok && hostMatches(u.Hostname(), instagramHosts)
}

// IsTwitterURL reports whether raw is an http(s) URL on a Twitter or X domain
func IsTwitterURL(raw string) bool {
	u, ok := parseHTTP(raw)
	return ok && hostMatches(u.Hostname(), twitterHosts)
}

// IsHTTPURL reports whether raw is an absolute http or https URL
func IsHTTPURL(raw string) bool {
	_, ok := parseHTTP(raw)
	return ok
}

// IsMediaURL reports whether raw is an https URL on the media CDN of source.
// Unknown sources are rejected.
func IsMediaURL(raw, source string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	switch source {
	case "twitter":
		return hostMatches(u.Hostname(), twitterMediaHosts)
	case "instagram":
		return hostMatches(u.Hostname(), instagramMediaHosts)
	}
	return false
}

func parseHTTP(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// hostMatches accepts the domain itself and any subdomain of it
func hostMatches(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
