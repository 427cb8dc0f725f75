package core

import (
	"context"
	"sync"
	"time"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

// Pacer spaces records out and backs off when the application keeps failing.
// After MaxConsecutiveFailures failed records it holds the next record for a standby
// period that grows by StandbyIncrement on every repeat, up to MaxStandby.
// Any successful record clears both the failure streak and the standby growth.
type Pacer struct {
	cfg    config.PacingConfig
	logger utils.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu                  sync.Mutex
	lastFinished        time.Time
	consecutiveFailures int
	standbyUntil        time.Time
	nextStandby         time.Duration
}

// NewPacer creates a Pacer from the pacing configuration.
func NewPacer(cfg config.PacingConfig, logger utils.Logger) *Pacer {
	return &Pacer{
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepContext,
		nextStandby: cfg.InitialStandby,
	}
}

// Wait blocks until the next record may start: the record delay after the previous
// one finished, or the end of an active standby, whichever is later.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	var wait time.Duration
	if !p.lastFinished.IsZero() {
		if since := now.Sub(p.lastFinished); since < p.cfg.RecordDelay {
			wait = p.cfg.RecordDelay - since
		}
	}
	inStandby := p.standbyUntil.After(now)
	if inStandby {
		if standby := p.standbyUntil.Sub(now); standby > wait {
			wait = standby
		}
	}
	p.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	if inStandby {
		p.logger.Warnf("[Pacer] In standby for %s after repeated failures", wait.Round(time.Second))
	} else {
		p.logger.Debugf("[Pacer] Waiting %s before next record", wait)
	}
	return p.sleep(ctx, wait)
}

// RecordResult updates the failure streak with the status of a finished record.
func (p *Pacer) RecordResult(status report.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastFinished = p.now()

	if !isFailure(status) {
		if p.consecutiveFailures > 0 {
			p.logger.Debugf("[Pacer] Success after %d failures, streak reset", p.consecutiveFailures)
		}
		p.consecutiveFailures = 0
		p.nextStandby = p.cfg.InitialStandby
		return
	}

	p.consecutiveFailures++
	if p.cfg.MaxConsecutiveFailures <= 0 || p.consecutiveFailures < p.cfg.MaxConsecutiveFailures {
		return
	}

	p.standbyUntil = p.lastFinished.Add(p.nextStandby)
	p.logger.Warnf("[Pacer] %d consecutive failures, standing by for %s", p.consecutiveFailures, p.nextStandby)
	p.nextStandby += p.cfg.StandbyIncrement
	if p.cfg.MaxStandby > 0 && p.nextStandby > p.cfg.MaxStandby {
		p.nextStandby = p.cfg.MaxStandby
	}
	p.consecutiveFailures = 0
}

func isFailure(status report.Status) bool {
	return status == report.StatusFailed || status == report.StatusSaveFailed
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
