package util

import "net/url"

// IsValidURI accepts absolute http(s) URLs.
func IsValidURI(u string) bool {
	parsed, err := url.ParseRequestURI(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
