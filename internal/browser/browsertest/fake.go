// Package browsertest provides an in-memory WebDriver for exercising UI workflows
// without a browser. It is not safe for concurrent use.
package browsertest

import (
	"errors"
	"fmt"
	"time"

	"github.com/tebeka/selenium"
)

// ErrNoSuchElement mimics the WebDriver "no such element" error.
var ErrNoSuchElement = errors.New("no such element")

// ErrStaleElement mimics the WebDriver "stale element reference" error.
var ErrStaleElement = errors.New("stale element reference")

func key(by, value string) string { return by + "=" + value }

// FakeDriver is a scripted page: elements are registered up front or from hooks,
// and every interaction is appended to Events. Methods of selenium.WebDriver it does
// not implement panic through the nil embedded interface.
type FakeDriver struct {
	selenium.WebDriver

	URL     string
	Events  []string
	Quits   int
	GetErr  error
	QuitErr error
	OnGet   func(url string)
	// OnFind runs before every driver-level lookup, found or not.
	OnFind func(by, value string)
	// Intervals holds the polling interval of every wait, in call order.
	Intervals []time.Duration
	elements  map[string]*FakeElement
}

// NewFakeDriver returns a driver showing startURL.
func NewFakeDriver(startURL string) *FakeDriver {
	return &FakeDriver{URL: startURL, elements: map[string]*FakeElement{}}
}

// Add registers a visible, enabled element reachable with (by, value).
func (d *FakeDriver) Add(by, value string) *FakeElement {
	el := &FakeElement{driver: d, name: key(by, value), Displayed: true, Enabled: true}
	d.elements[key(by, value)] = el
	return el
}

// Remove detaches the element registered with (by, value), if any.
func (d *FakeDriver) Remove(by, value string) {
	if el, ok := d.elements[key(by, value)]; ok {
		el.Detached = true
		delete(d.elements, key(by, value))
	}
}

// Element returns the registered element or nil.
func (d *FakeDriver) Element(by, value string) *FakeElement {
	return d.elements[key(by, value)]
}

func (d *FakeDriver) record(format string, args ...interface{}) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

// Get implements browser.Driver.
func (d *FakeDriver) Get(url string) error {
	d.record("get %s", url)
	if d.GetErr != nil {
		return d.GetErr
	}
	d.URL = url
	if d.OnGet != nil {
		d.OnGet(url)
	}
	return nil
}

// CurrentURL implements browser.Driver.
func (d *FakeDriver) CurrentURL() (string, error) {
	return d.URL, nil
}

// FindElement implements browser.Driver.
func (d *FakeDriver) FindElement(by, value string) (selenium.WebElement, error) {
	if d.OnFind != nil {
		d.OnFind(by, value)
	}
	el, ok := d.elements[key(by, value)]
	if !ok || el.Detached {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, key(by, value))
	}
	return el, nil
}

// WaitWithTimeoutAndInterval implements browser.Driver with the same loop as the
// remote driver: check, give up once past timeout, sleep interval, repeat.
func (d *FakeDriver) WaitWithTimeoutAndInterval(condition selenium.Condition, timeout, interval time.Duration) error {
	d.Intervals = append(d.Intervals, interval)
	start := time.Now()
	for {
		done, err := condition(d)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if elapsed := time.Since(start); elapsed > timeout {
			return fmt.Errorf("timeout after %v", elapsed)
		}
		time.Sleep(interval)
	}
}

// Quit implements browser.Driver.
func (d *FakeDriver) Quit() error {
	d.Quits++
	return d.QuitErr
}

// FakeElement implements the parts of selenium.WebElement the workflow touches.
// Calling any other method panics through the nil embedded interface.
type FakeElement struct {
	selenium.WebElement

	Displayed bool
	Enabled   bool
	Detached  bool
	Value     string
	Clicks    int
	ClickErr  error
	OnClick   func()
	OnEnter   func() // Runs when Enter/Return is typed into the element
	// VisibleAfterPolls hides the element from IsDisplayed for the first n checks.
	VisibleAfterPolls int

	driver   *FakeDriver
	name     string
	children map[string]*FakeElement
	polls    int
}

// AddChild registers an element reachable through this element's FindElement.
func (e *FakeElement) AddChild(by, value string) *FakeElement {
	if e.children == nil {
		e.children = map[string]*FakeElement{}
	}
	child := &FakeElement{driver: e.driver, name: key(by, value), Displayed: true, Enabled: true}
	e.children[key(by, value)] = child
	return child
}

// Click implements selenium.WebElement.
func (e *FakeElement) Click() error {
	if e.Detached {
		return ErrStaleElement
	}
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.Clicks++
	e.driver.record("click %s", e.name)
	if e.OnClick != nil {
		e.OnClick()
	}
	return nil
}

// SendKeys implements selenium.WebElement.
func (e *FakeElement) SendKeys(keys string) error {
	if e.Detached {
		return ErrStaleElement
	}
	e.Value += keys
	e.driver.record("keys %s %q", e.name, keys)
	if keys == selenium.EnterKey || keys == selenium.ReturnKey {
		if e.OnEnter != nil {
			e.OnEnter()
		}
	}
	return nil
}

// Clear implements selenium.WebElement.
func (e *FakeElement) Clear() error {
	if e.Detached {
		return ErrStaleElement
	}
	e.Value = ""
	e.driver.record("clear %s", e.name)
	return nil
}

// IsDisplayed implements selenium.WebElement.
func (e *FakeElement) IsDisplayed() (bool, error) {
	if e.Detached {
		return false, ErrStaleElement
	}
	e.polls++
	if e.polls <= e.VisibleAfterPolls {
		return false, nil
	}
	return e.Displayed, nil
}

// IsEnabled implements selenium.WebElement.
func (e *FakeElement) IsEnabled() (bool, error) {
	if e.Detached {
		return false, ErrStaleElement
	}
	return e.Enabled, nil
}

// FindElement implements selenium.WebElement.
func (e *FakeElement) FindElement(by, value string) (selenium.WebElement, error) {
	if e.Detached {
		return nil, ErrStaleElement
	}
	child, ok := e.children[key(by, value)]
	if !ok || child.Detached {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, key(by, value))
	}
	return child, nil
}

// Text implements selenium.WebElement.
func (e *FakeElement) Text() (string, error) {
	if e.Detached {
		return "", ErrStaleElement
	}
	return e.Value, nil
}
