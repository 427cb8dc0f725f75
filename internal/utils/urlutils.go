package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL canonicalises the application base URL: the scheme defaults to https,
// scheme and host are lower-cased, and query, fragment and trailing slashes are dropped.
func NormalizeBaseURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// IsLoginPage reports whether currentURL is the login screen identified by marker.
func IsLoginPage(currentURL, marker string) bool {
	return marker != "" && strings.Contains(currentURL, marker)
}

// GetHostIfURL returns the host part of input when it parses as an absolute URL,
// or input unchanged otherwise. Used to keep log lines short.
func GetHostIfURL(input string) string {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return input
	}
	return u.Host
}
