package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/falkerops/partnerload/internal/config"
)

// ParseProxyInput parses a proxy string of the form [scheme://][user:pass@]host:port.
// An empty input yields a nil entry. Only one proxy is accepted since the browser
// session takes a single proxy capability.
func ParseProxyInput(proxyInput string, logger Logger) (*config.ProxyEntry, error) {
	trimmed := strings.TrimSpace(proxyInput)
	if trimmed == "" {
		return nil, nil
	}

	urlStr := trimmed
	if !strings.Contains(urlStr, "://") {
		urlStr = "http://" + urlStr // url.Parse needs a scheme to find the host
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy %q: %w", trimmed, err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	switch scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q in %q", parsedURL.Scheme, trimmed)
	}

	host := parsedURL.Hostname()
	port := parsedURL.Port()
	if host == "" {
		return nil, fmt.Errorf("proxy %q has an empty host", trimmed)
	}
	if port == "" {
		return nil, fmt.Errorf("proxy %q has no port", trimmed)
	}

	entry := &config.ProxyEntry{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
	}
	if parsedURL.User != nil {
		entry.Username = parsedURL.User.Username()
		entry.Password, _ = parsedURL.User.Password()
	}

	logger.Debugf("Parsed proxy: Scheme: %s, Host: %s, Username: %s", entry.Scheme, entry.Host, entry.Username)
	return entry, nil
}
