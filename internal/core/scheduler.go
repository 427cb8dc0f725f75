package core

import (
	"context"

	"github.com/falkerops/partnerload/internal/input"
	"github.com/falkerops/partnerload/internal/output"
	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

// Registrar registers a single record. *Processor is the production implementation.
type Registrar interface {
	Register(ctx context.Context, rec input.Record) report.Outcome
}

// Scheduler feeds records to a Registrar one by one, paced and resumable.
type Scheduler struct {
	registrar Registrar
	pacer     *Pacer
	state     *ResumeState
	logger    utils.Logger
	progress  *output.ProgressBar
}

// NewScheduler creates a Scheduler. state may be nil when resuming is disabled.
func NewScheduler(registrar Registrar, pacer *Pacer, state *ResumeState, logger utils.Logger) *Scheduler {
	if state == nil {
		state, _ = LoadResumeState("")
	}
	return &Scheduler{
		registrar: registrar,
		pacer:     pacer,
		state:     state,
		logger:    logger,
	}
}

// WithProgressBar draws progress over the record count on pb while Run is active.
func (s *Scheduler) WithProgressBar(pb *output.ProgressBar) *Scheduler {
	s.progress = pb
	return s
}

// Run processes records sequentially and streams one Outcome per record, in input order.
// Records already in the resume state are reported as skipped. When ctx is cancelled the
// remaining records are reported as not attempted. The channel is closed when done.
func (s *Scheduler) Run(ctx context.Context, records []input.Record) <-chan report.Outcome {
	results := make(chan report.Outcome, len(records))

	go func() {
		defer close(results)
		if s.progress != nil {
			s.progress.SetPrefix("Partners ")
			s.progress.Start()
			defer s.progress.Finalize()
		}
		emit := func(o report.Outcome) {
			results <- o
			if s.progress != nil {
				s.progress.Increment()
			}
		}

		s.logger.Infof("[Scheduler] Processing %d records", len(records))
		for i, rec := range records {
			if s.state.IsDone(rec.TaxID) {
				s.logger.Infof("[Scheduler] %s (%s) already completed, skipping", rec.Name, rec.TaxID)
				emit(report.Outcome{Record: rec, Status: report.StatusSkipped})
				continue
			}
			if err := s.pacer.Wait(ctx); err != nil {
				s.abandon(records[i:], emit, err)
				return
			}

			s.logger.Infof("[Scheduler] (%d/%d) Registering %s | tax id: %s | phone: %s | email: %s",
				i+1, len(records), rec.Name, rec.TaxID, rec.Phone, rec.Email)
			out := s.registrar.Register(ctx, rec)
			if ctx.Err() != nil && !out.Status.Done() {
				// Interrupted mid-record: nothing was saved.
				s.abandon(records[i:], emit, ctx.Err())
				return
			}

			s.pacer.RecordResult(out.Status)
			if out.Status.Done() {
				if err := s.state.MarkDone(rec.TaxID, out.Status); err != nil {
					s.logger.Warnf("[Scheduler] Could not persist resume state: %v", err)
				}
			}
			emit(out)
		}
		s.logger.Infof("[Scheduler] All records processed")
	}()

	return results
}

func (s *Scheduler) abandon(rest []input.Record, emit func(report.Outcome), cause error) {
	s.logger.Warnf("[Scheduler] Stopping: %v. %d records not attempted", cause, len(rest))
	for _, rec := range rest {
		emit(report.Outcome{Record: rec, Status: report.StatusNotAttempted, Err: cause, Error: cause.Error()})
	}
}
