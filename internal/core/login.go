package core

import (
	"context"
	"fmt"

	"github.com/tebeka/selenium"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/utils"
)

// Login opens the application and signs in with the configured credentials.
// An existing session (no redirect to the login page) is accepted as is.
// Every failure is wrapped with ErrLoginFailed.
func (p *Processor) Login(ctx context.Context) error {
	baseURL := p.cfg.App.BaseURL
	p.logger.Infof("[Login] Opening %s", baseURL)
	if err := p.session.Navigate(baseURL); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if _, err := p.session.WaitPresent(ctx, p.loc.Body, p.timings.PageLoad); err != nil {
		return fmt.Errorf("%w: page did not load: %w", ErrLoginFailed, err)
	}

	current, err := p.session.CurrentURL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if !utils.IsLoginPage(current, p.cfg.App.LoginMarker) {
		p.logger.Infof("[Login] Already logged in (%s)", current)
		return nil
	}

	fields := []struct {
		name  string
		loc   config.Locator
		value string
	}{
		{"login", p.loc.LoginField, p.cfg.Credentials.Email},
		{"password", p.loc.PasswordField, p.cfg.Credentials.Password},
	}
	var last selenium.WebElement
	for _, f := range fields {
		elem, err := p.session.WaitPresent(ctx, f.loc, p.timings.PageLoad)
		if err != nil {
			return fmt.Errorf("%w: %s field: %w", ErrLoginFailed, f.name, err)
		}
		if err := elem.SendKeys(f.value); err != nil {
			return fmt.Errorf("%w: typing %s: %w", ErrLoginFailed, f.name, err)
		}
		last = elem
	}
	if err := last.SendKeys(selenium.EnterKey); err != nil {
		return fmt.Errorf("%w: submitting form: %w", ErrLoginFailed, err)
	}

	landed, err := p.session.WaitURLChange(ctx, current, p.timings.LoginRedirect)
	if err != nil {
		return fmt.Errorf("%w: no redirect after submit: %w", ErrLoginFailed, err)
	}
	if utils.IsLoginPage(landed, p.cfg.App.LoginMarker) {
		return fmt.Errorf("%w: still on the login page (%s), check the credentials", ErrLoginFailed, landed)
	}
	p.logger.Infof("[Login] Logged in as %s", p.cfg.Credentials.Email)
	return nil
}
