package networking

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/utils"
)

// ClientConfig configures the preflight HTTP client.
type ClientConfig struct {
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	UserAgent          string
	Proxy              *config.ProxyEntry
	InsecureSkipVerify bool
}

// DefaultClientConfig mirrors what the browser will see: same proxy and TLS policy.
func DefaultClientConfig(cfg *config.Config) ClientConfig {
	return ClientConfig{
		Timeout:            cfg.Timings.PageLoad,
		MaxRetries:         2,
		RetryDelay:         2 * time.Second,
		UserAgent:          "partnerload-preflight/1.0",
		Proxy:              cfg.Browser.ParsedProxy,
		InsecureSkipVerify: cfg.App.InsecureSkipVerify,
	}
}

// Client checks that the target application answers before a browser is spent on it.
type Client struct {
	baseClient *http.Client
	config     ClientConfig
	logger     utils.Logger
}

// NewClient creates a new preflight Client.
func NewClient(cfg ClientConfig, logger utils.Logger) (*Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.Proxy != nil {
		proxyURL, err := url.Parse(cfg.Proxy.String())
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %s: %w", cfg.Proxy.Host, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	// The login page sets a session cookie before redirecting; keep it across hops.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			Jar:       jar,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// CheckReachable GETs targetURL, following redirects, and succeeds on any status below 500.
// Network errors and 5xx responses are retried up to MaxRetries times.
func (c *Client) CheckReachable(ctx context.Context, targetURL string) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debugf("[Preflight] Retrying %s in %s (attempt %d/%d)", targetURL, c.config.RetryDelay, attempt+1, c.config.MaxRetries+1)
			select {
			case <-time.After(c.config.RetryDelay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to build request for %s: %w", targetURL, err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.baseClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed (attempt %d/%d): %w", targetURL, attempt+1, c.config.MaxRetries+1, err)
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s answered %s (attempt %d/%d)", targetURL, resp.Status, attempt+1, c.config.MaxRetries+1)
			continue
		}
		c.logger.Debugf("[Preflight] %s answered %s", targetURL, resp.Status)
		return resp.StatusCode, nil
	}
	return 0, lastErr
}
