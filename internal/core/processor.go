package core

import (
	"context"
	"fmt"
	"time"

	"github.com/falkerops/partnerload/internal/browser"
	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/input"
	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

// Failure log reasons.
const (
	reasonNotRegistered = "tax id not registered"
	reasonSaveFailed    = "save failed"
)

// Processor drives the partner form for one record at a time.
// It is bound to a single browser session and is not safe for concurrent use.
type Processor struct {
	cfg      *config.Config
	session  *browser.Session
	loc      config.Locators
	timings  config.TimingsConfig
	failures *report.FailureLog
	logger   utils.Logger
}

// NewProcessor validates the configured selectors and binds them to session.
// failures may be nil, in which case failure log entries are dropped.
func NewProcessor(cfg *config.Config, session *browser.Session, failures *report.FailureLog, logger utils.Logger) (*Processor, error) {
	loc, err := cfg.Selectors.Parse()
	if err != nil {
		return nil, err
	}
	if failures == nil {
		failures, _ = report.OpenFailureLog("")
	}
	return &Processor{
		cfg:      cfg,
		session:  session,
		loc:      loc,
		timings:  cfg.Timings,
		failures: failures,
		logger:   logger,
	}, nil
}

// Register creates one partner from rec. Only a missing "new" button or name field
// fails the record outright; the optional steps degrade to warnings on the outcome.
func (p *Processor) Register(ctx context.Context, rec input.Record) (out report.Outcome) {
	start := time.Now()
	out.Record = rec
	defer func() {
		out.Duration = time.Since(start)
		if out.Err != nil {
			out.Error = out.Err.Error()
		}
	}()

	fail := func(err error) report.Outcome {
		out.Status = report.StatusFailed
		out.Err = err
		p.logger.Errorf("[Register] %s (%s): %v", rec.Name, rec.TaxID, err)
		return out
	}
	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		out.Warnings = append(out.Warnings, msg)
		p.logger.Warnf("[Register] %s: %s", rec.TaxID, msg)
	}

	if err := p.session.Navigate(p.cfg.App.PartnersURL()); err != nil {
		return fail(err)
	}
	p.DismissModal(ctx)

	newButton, err := p.session.WaitClickable(ctx, p.loc.NewButton, p.timings.NewButton)
	if err != nil {
		return fail(notFound("new button", err))
	}
	if err := newButton.Click(); err != nil {
		return fail(fmt.Errorf("failed to click new button: %w", err))
	}

	nameField, err := p.session.WaitPresent(ctx, p.loc.NameField, p.timings.Field)
	if err != nil {
		return fail(notFound("name field", err))
	}
	if err := nameField.SendKeys(rec.Name); err != nil {
		return fail(fmt.Errorf("failed to type name: %w", err))
	}

	if taxField, err := p.session.WaitPresent(ctx, p.loc.TaxIDField, p.timings.Field); err != nil {
		warn("tax id field not found")
	} else if err := taxField.SendKeys(rec.TaxID); err != nil {
		warn("failed to type tax id: %v", err)
	}

	if lookup, err := p.session.WaitClickable(ctx, p.loc.LookupButton, p.timings.Field); err != nil {
		warn("lookup button not found")
	} else if err := lookup.Click(); err != nil {
		warn("failed to click lookup button: %v", err)
	} else {
		if err := p.session.Pause(ctx, p.timings.LookupSettle); err != nil {
			return fail(err)
		}
		// The lookup answers with a dialog only when it has no data for the tax id.
		if p.DismissModal(ctx) {
			p.failures.Record(reasonNotRegistered, rec.TaxID)
			out.Status = report.StatusNotRegistered
			out.Err = fmt.Errorf("%w: %s", ErrNotRegistered, rec.TaxID)
			p.logger.Warnf("[Register] %s (%s) is not registered, skipping save", rec.Name, rec.TaxID)
			return out
		}
	}

	if update, err := p.session.WaitClickable(ctx, p.loc.UpdateButton, p.timings.Field); err != nil {
		warn("update button not found")
	} else {
		if err := p.session.Pause(ctx, p.timings.UpdateClickDelay); err != nil {
			return fail(err)
		}
		if err := update.Click(); err != nil {
			warn("failed to click update button: %v", err)
		}
	}
	if err := p.session.Pause(ctx, p.timings.UpdateSettle); err != nil {
		return fail(err)
	}

	p.fillField(ctx, "phone", p.loc.PhoneField, rec.Phone, warn)
	p.fillField(ctx, "email", p.loc.EmailField, rec.Email, warn)

	// An interrupted form is abandoned unsaved; it is neither a dry run nor a save failure.
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if p.cfg.DryRun {
		out.Status = report.StatusDryRun
		p.logger.Infof("[Register] Dry run: form for %s (%s) filled, not saved", rec.Name, rec.TaxID)
		return out
	}

	save, err := p.session.WaitClickable(ctx, p.loc.SaveButton, p.timings.Field)
	if err == nil {
		err = save.Click()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		p.failures.Record(reasonSaveFailed, rec.TaxID)
		out.Status = report.StatusSaveFailed
		out.Err = fmt.Errorf("%w: %w", ErrSaveFailed, err)
		p.logger.Errorf("[Register] Could not save %s (%s): %v", rec.Name, rec.TaxID, err)
		return out
	}

	out.Status = report.StatusSaved
	p.logger.Infof("[Register] Saved %s (%s)", rec.Name, rec.TaxID)
	return out
}

// fillField replaces the content of an optional field. Empty values leave whatever the
// lookup filled in untouched, and nothing is typed once ctx is cancelled.
func (p *Processor) fillField(ctx context.Context, name string, loc config.Locator, value string, warn func(string, ...interface{})) {
	if value == "" || ctx.Err() != nil {
		return
	}
	elem, err := p.session.WaitPresent(ctx, loc, p.timings.Field)
	if err != nil {
		warn("%s field not found", name)
		return
	}
	if err := elem.Clear(); err != nil {
		warn("failed to clear %s: %v", name, err)
		return
	}
	if err := elem.SendKeys(value); err != nil {
		warn("failed to type %s: %v", name, err)
	}
}

func notFound(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrElementNotFound, what, err)
}
