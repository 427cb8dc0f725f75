package browser

import (
	"errors"
	"fmt"
	"os"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/utils"
)

// ErrProxyCredentials rejects an http(s) proxy with user info. The WebDriver proxy
// capability only carries credentials for SOCKS.
var ErrProxyCredentials = errors.New("http(s) proxy credentials cannot be passed to the browser; use a socks5 proxy or one without credentials")

// defaultChromeArgs keep Chrome usable inside containers.
var defaultChromeArgs = []string{"--no-sandbox", "--disable-dev-shm-usage"}

// Launch starts chromedriver (unless a remote WebDriver URL is configured) and opens
// a Chrome session.
func Launch(cfg *config.Config, logger utils.Logger) (*Session, error) {
	selenium.SetDebug(cfg.Browser.Debug)
	caps := BuildCapabilities(cfg.Browser)

	var service *selenium.Service
	executor := cfg.Browser.RemoteURL
	if executor == "" {
		var opts []selenium.ServiceOption
		if cfg.Browser.Debug {
			opts = append(opts, selenium.Output(os.Stderr))
		}
		var err error
		service, err = selenium.NewChromeDriverService(cfg.Browser.ChromeDriverPath, cfg.Browser.Port, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to start chromedriver at %s: %w", cfg.Browser.ChromeDriverPath, err)
		}
		executor = fmt.Sprintf("http://localhost:%d/wd/hub", cfg.Browser.Port)
		logger.Debugf("[Browser] chromedriver listening on port %d", cfg.Browser.Port)
	}

	wd, err := selenium.NewRemote(caps, executor)
	if err != nil {
		if service != nil {
			if stopErr := service.Stop(); stopErr != nil {
				logger.Warnf("[Browser] Failed to stop chromedriver after session error: %v", stopErr)
			}
		}
		return nil, fmt.Errorf("failed to open WebDriver session at %s: %w", executor, err)
	}
	logger.Infof("Browser session started (headless: %t).", cfg.Browser.Headless)

	session := NewSession(wd, cfg.Timings.PollInterval, logger)
	session.service = service
	return session, nil
}

// BuildCapabilities assembles the Chrome capabilities for a session.
func BuildCapabilities(bc config.BrowserConfig) selenium.Capabilities {
	args := append([]string{}, defaultChromeArgs...)
	if bc.Headless {
		args = append(args, "--headless=new", "--window-size=1920,1080")
	}
	args = append(args, bc.ExtraArgs...)

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Path: bc.ChromeBinary,
		Args: args,
	})
	if bc.ParsedProxy != nil {
		caps.AddProxy(proxyCapability(bc.ParsedProxy))
	}
	return caps
}

// CheckProxy reports whether pe can be handed to the browser unchanged.
func CheckProxy(pe *config.ProxyEntry) error {
	if pe == nil || pe.Scheme == "socks5" {
		return nil
	}
	if pe.Username != "" || pe.Password != "" {
		return fmt.Errorf("%w: %s://%s", ErrProxyCredentials, pe.Scheme, pe.Host)
	}
	return nil
}

func proxyCapability(pe *config.ProxyEntry) selenium.Proxy {
	if pe.Scheme == "socks5" {
		return selenium.Proxy{
			Type:          selenium.Manual,
			SOCKS:         pe.Host,
			SOCKSVersion:  5,
			SOCKSUsername: pe.Username,
			SOCKSPassword: pe.Password,
		}
	}
	return selenium.Proxy{
		Type: selenium.Manual,
		HTTP: pe.Host,
		SSL:  pe.Host,
	}
}
