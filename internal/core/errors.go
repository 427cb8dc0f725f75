package core

import (
	"errors"

	"github.com/falkerops/partnerload/internal/browser"
)

var (
	// ErrLoginFailed aborts the whole run.
	ErrLoginFailed = errors.New("login failed")
	// ErrNotRegistered means the external tax id lookup had no data for the record.
	ErrNotRegistered = errors.New("tax id not registered")
	// ErrElementNotFound wraps a required page element that never became usable.
	ErrElementNotFound = errors.New("element not found")
	// ErrSaveFailed means the form was filled but the save button could not be clicked.
	ErrSaveFailed = errors.New("save failed")
	// ErrWaitTimeout is returned by every bounded wait on the page.
	ErrWaitTimeout = browser.ErrWaitTimeout
)
