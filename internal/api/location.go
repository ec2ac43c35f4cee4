package api

import (
	"net/url"
	"strings"
)

const apiPathPrefix = "/api/v1/"

// resourceURL builds the absolute URL of an API resource from its path segments.
func resourceURL(baseURL string, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	path := apiPathPrefix + strings.Join(escaped, "/")

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return path
	}
	return baseURL + path
}
