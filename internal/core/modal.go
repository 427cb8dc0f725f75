package core

import (
	"context"
)

// DismissModal closes the interstitial dialog the application shows after navigation
// and after a tax id lookup with no result. It reports true only when a dialog was
// found and closed; "no dialog" and "could not close it" both report false.
func (p *Processor) DismissModal(ctx context.Context) bool {
	modal, err := p.session.WaitPresent(ctx, p.loc.Modal, p.timings.ModalAppear)
	if err != nil {
		p.logger.Debugf("[Modal] No dialog present")
		return false
	}

	ok, err := p.session.WaitClickableWithin(ctx, modal, p.loc.ModalOK, p.timings.ModalButton)
	if err != nil {
		p.logger.Infof("[Modal] Dialog found but its OK button is not clickable: %v", err)
		return false
	}
	if err := p.session.Pause(ctx, p.timings.ModalClickDelay); err != nil {
		return false
	}
	if err := ok.Click(); err != nil {
		p.logger.Infof("[Modal] Could not click OK: %v", err)
		return false
	}
	if err := p.session.WaitInvisible(ctx, modal, p.timings.ModalClose); err != nil {
		p.logger.Infof("[Modal] Dialog did not close: %v", err)
		return false
	}
	p.logger.Debugf("[Modal] Dialog closed")
	return true
}
