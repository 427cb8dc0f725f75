package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tebeka/selenium"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/utils"
)

// Driver is the part of selenium.WebDriver the workflow relies on.
// selenium.WebDriver satisfies it; tests use browsertest.FakeDriver.
type Driver interface {
	Get(url string) error
	CurrentURL() (string, error)
	FindElement(by, value string) (selenium.WebElement, error)
	WaitWithTimeoutAndInterval(condition selenium.Condition, timeout, interval time.Duration) error
	Quit() error
}

// ErrWaitTimeout is returned when a bounded wait expires. The last observed error,
// if any, is wrapped alongside it.
var ErrWaitTimeout = errors.New("timed out waiting")

// Session wraps a WebDriver session with bounded waits and interruptible pauses.
type Session struct {
	driver  Driver
	service *selenium.Service // nil when attached to a remote WebDriver
	logger  utils.Logger
	poll    time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSession wraps an existing driver. pollInterval is the interval handed to the
// driver's waits between condition checks.
func NewSession(driver Driver, pollInterval time.Duration, logger utils.Logger) *Session {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Session{
		driver: driver,
		logger: logger,
		poll:   pollInterval,
		sleep:  sleepContext,
	}
}

// Navigate loads url in the current window.
func (s *Session) Navigate(url string) error {
	s.logger.Debugf("[Browser] Navigating to %s", url)
	if err := s.driver.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the URL of the current page.
func (s *Session) CurrentURL() (string, error) {
	u, err := s.driver.CurrentURL()
	if err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return u, nil
}

// Pause sleeps for d unless ctx is cancelled first.
func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	s.logger.Debugf("[Browser] Pausing %s", d)
	return s.sleep(ctx, d)
}

// WaitPresent waits until an element matching loc exists in the DOM.
func (s *Session) WaitPresent(ctx context.Context, loc config.Locator, timeout time.Duration) (selenium.WebElement, error) {
	var found selenium.WebElement
	err := s.waitFor(ctx, timeout, "presence of "+loc.String(), func() (bool, error) {
		elem, err := s.driver.FindElement(loc.By, loc.Value)
		if err != nil {
			return false, err
		}
		found = elem
		return true, nil
	})
	return found, err
}

// WaitClickable waits until an element matching loc is displayed and enabled.
func (s *Session) WaitClickable(ctx context.Context, loc config.Locator, timeout time.Duration) (selenium.WebElement, error) {
	return s.waitClickable(ctx, s.driver.FindElement, loc, timeout)
}

// WaitClickableWithin is WaitClickable scoped to the children of parent.
func (s *Session) WaitClickableWithin(ctx context.Context, parent selenium.WebElement, loc config.Locator, timeout time.Duration) (selenium.WebElement, error) {
	return s.waitClickable(ctx, parent.FindElement, loc, timeout)
}

func (s *Session) waitClickable(ctx context.Context, find func(by, value string) (selenium.WebElement, error), loc config.Locator, timeout time.Duration) (selenium.WebElement, error) {
	var found selenium.WebElement
	err := s.waitFor(ctx, timeout, "clickable "+loc.String(), func() (bool, error) {
		elem, err := find(loc.By, loc.Value)
		if err != nil {
			return false, err
		}
		ready, err := isClickable(elem)
		if err != nil || !ready {
			return false, err
		}
		found = elem
		return true, nil
	})
	return found, err
}

// WaitInvisible waits until elem is hidden or no longer attached to the page.
func (s *Session) WaitInvisible(ctx context.Context, elem selenium.WebElement, timeout time.Duration) error {
	return s.waitFor(ctx, timeout, "element to disappear", func() (bool, error) {
		displayed, err := elem.IsDisplayed()
		if err != nil {
			// A stale element reference means the node is gone.
			return true, nil
		}
		return !displayed, nil
	})
}

// WaitURLChange waits until the current URL differs from from and returns the new URL.
func (s *Session) WaitURLChange(ctx context.Context, from string, timeout time.Duration) (string, error) {
	var current string
	err := s.waitFor(ctx, timeout, "URL to change from "+from, func() (bool, error) {
		u, err := s.driver.CurrentURL()
		if err != nil {
			return false, err
		}
		current = u
		return u != from, nil
	})
	return current, err
}

// waitFor runs check as a selenium.Condition on the driver's own wait loop. Errors from
// check mean "not yet" and are kept for the timeout message; only cancellation of ctx
// stops the loop early. The driver evaluates the condition at least once.
func (s *Session) waitFor(ctx context.Context, timeout time.Duration, what string, check func() (bool, error)) error {
	var lastErr error
	polls := 0
	cond := func(selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		polls++
		ok, err := check()
		if err != nil {
			lastErr = err
		}
		return ok, nil
	}

	err := s.driver.WaitWithTimeoutAndInterval(cond, timeout, s.poll)
	if err == nil {
		if polls > 1 {
			s.logger.Debugf("[Browser] Waited for %s (%d polls)", what, polls)
		}
		return nil
	}
	// The driver sleeps between polls without watching ctx, so a cancellation that
	// lands mid-interval surfaces here as a timeout.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return fmt.Errorf("%w for %s (%v): %v", ErrWaitTimeout, what, err, lastErr)
	}
	return fmt.Errorf("%w for %s (%v)", ErrWaitTimeout, what, err)
}

// Close ends the WebDriver session and stops chromedriver if this session started it.
func (s *Session) Close() error {
	var errs []error
	if err := s.driver.Quit(); err != nil {
		errs = append(errs, fmt.Errorf("failed to quit driver: %w", err))
	}
	if s.service != nil {
		if err := s.service.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop chromedriver: %w", err))
		}
	}
	return errors.Join(errs...)
}

func isClickable(elem selenium.WebElement) (bool, error) {
	displayed, err := elem.IsDisplayed()
	if err != nil || !displayed {
		return false, err
	}
	return elem.IsEnabled()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
