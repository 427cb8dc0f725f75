package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/input"
	"github.com/falkerops/partnerload/internal/output"
	"github.com/falkerops/partnerload/internal/report"
	"github.com/falkerops/partnerload/internal/utils"
)

type registrarFunc func(ctx context.Context, rec input.Record) report.Outcome

func (f registrarFunc) Register(ctx context.Context, rec input.Record) report.Outcome {
	return f(ctx, rec)
}

// statusByTaxID answers with a fixed status per record and remembers the call order.
func statusByTaxID(statuses map[string]report.Status, calls *[]string) Registrar {
	return registrarFunc(func(_ context.Context, rec input.Record) report.Outcome {
		*calls = append(*calls, rec.TaxID)
		return report.Outcome{Record: rec, Status: statuses[rec.TaxID]}
	})
}

// fakeClock drives a Pacer without real sleeping.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) install(p *Pacer) *Pacer {
	p.now = func() time.Time { return c.now }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return ctx.Err()
	}
	return p
}

func records(taxIDs ...string) []input.Record {
	out := make([]input.Record, len(taxIDs))
	for i, id := range taxIDs {
		out[i] = input.Record{Name: "Partner " + id, TaxID: id, Line: i + 2}
	}
	return out
}

func collect(ch <-chan report.Outcome) []report.Outcome {
	var out []report.Outcome
	for o := range ch {
		out = append(out, o)
	}
	return out
}

// standbyUntil is the end of the active standby, or the zero time when none is active.
func standbyUntil(p *Pacer) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.standbyUntil.After(p.now()) {
		return time.Time{}
	}
	return p.standbyUntil
}

func noPacing() *Pacer {
	return NewPacer(config.PacingConfig{}, &utils.NoOpLogger{})
}

func TestSchedulerRunsInOrder(t *testing.T) {
	var calls []string
	reg := statusByTaxID(map[string]report.Status{
		"1": report.StatusSaved,
		"2": report.StatusFailed,
		"3": report.StatusNotRegistered,
	}, &calls)

	s := NewScheduler(reg, noPacing(), nil, &utils.NoOpLogger{})
	outcomes := collect(s.Run(context.Background(), records("1", "2", "3")))

	require.Len(t, outcomes, 3)
	assert.Equal(t, []string{"1", "2", "3"}, calls)
	assert.Equal(t, report.StatusSaved, outcomes[0].Status)
	assert.Equal(t, report.StatusFailed, outcomes[1].Status)
	assert.Equal(t, report.StatusNotRegistered, outcomes[2].Status)
}

func TestSchedulerSkipsResumedAndPersistsCompleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "resume.json")
	state, err := LoadResumeState(path)
	require.NoError(t, err)
	require.NoError(t, state.MarkDone("1", report.StatusSaved))

	var calls []string
	reg := statusByTaxID(map[string]report.Status{
		"2": report.StatusSaveFailed,
		"3": report.StatusNotRegistered,
	}, &calls)

	s := NewScheduler(reg, noPacing(), state, &utils.NoOpLogger{})
	outcomes := collect(s.Run(context.Background(), records("1", "2", "3")))

	assert.Equal(t, []string{"2", "3"}, calls)
	assert.Equal(t, report.StatusSkipped, outcomes[0].Status)

	reloaded, err := LoadResumeState(path)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDone("1"))
	assert.False(t, reloaded.IsDone("2"))
	assert.True(t, reloaded.IsDone("3"))
	assert.Equal(t, report.StatusNotRegistered, reloaded.Records["3"].Status)
}

func TestSchedulerCancellationMarksRestNotAttempted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registrarFunc(func(ctx context.Context, rec input.Record) report.Outcome {
		if rec.TaxID == "2" {
			cancel()
			return report.Outcome{Record: rec, Status: report.StatusFailed, Err: ctx.Err()}
		}
		return report.Outcome{Record: rec, Status: report.StatusSaved}
	})

	s := NewScheduler(reg, noPacing(), nil, &utils.NoOpLogger{})
	outcomes := collect(s.Run(ctx, records("1", "2", "3")))

	require.Len(t, outcomes, 3)
	assert.Equal(t, report.StatusSaved, outcomes[0].Status)
	assert.Equal(t, report.StatusNotAttempted, outcomes[1].Status)
	assert.Equal(t, report.StatusNotAttempted, outcomes[2].Status)
	assert.Equal(t, context.Canceled.Error(), outcomes[2].Error)
}

func TestSchedulerCancelledRecordIsNotASaveFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registrarFunc(func(ctx context.Context, rec input.Record) report.Outcome {
		cancel()
		return report.Outcome{Record: rec, Status: report.StatusSaveFailed, Err: ctx.Err()}
	})

	s := NewScheduler(reg, noPacing(), nil, &utils.NoOpLogger{})
	outcomes := collect(s.Run(ctx, records("1", "2")))

	require.Len(t, outcomes, 2)
	assert.Equal(t, report.StatusNotAttempted, outcomes[0].Status)
	assert.Equal(t, report.StatusNotAttempted, outcomes[1].Status)
}

func TestSchedulerInterruptedFormLeavesFailureLogEmpty(t *testing.T) {
	f := newFakeERP(t, testConfig())
	f.driver.Remove(f.loc.PhoneField.By, f.loc.PhoneField.Value)
	f.driver.Remove(f.loc.SaveButton.By, f.loc.SaveButton.Value)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.driver.OnFind = func(by, value string) {
		if by == f.loc.SaveButton.By && value == f.loc.SaveButton.Value {
			cancel()
		}
	}

	recs := []input.Record{sampleRecord(), {Name: "Second Partner", TaxID: "2", Line: 3}}
	s := NewScheduler(f.proc, noPacing(), nil, &utils.NoOpLogger{})
	outcomes := collect(s.Run(ctx, recs))

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, report.StatusNotAttempted, o.Status, o.Record.TaxID)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Empty(t, f.failures.String())
}

func TestSchedulerPacesBetweenRecords(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	pacer := clock.install(NewPacer(config.PacingConfig{RecordDelay: 5 * time.Second}, &utils.NoOpLogger{}))

	var calls []string
	reg := statusByTaxID(map[string]report.Status{"1": report.StatusSaved, "2": report.StatusSaved, "3": report.StatusSaved}, &calls)
	s := NewScheduler(reg, pacer, nil, &utils.NoOpLogger{})
	collect(s.Run(context.Background(), records("1", "2", "3")))

	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.sleeps)
}

func TestSchedulerDrivesProgressBar(t *testing.T) {
	var calls []string
	reg := statusByTaxID(map[string]report.Status{"1": report.StatusSaved, "2": report.StatusSaved}, &calls)
	pb := output.NewProgressBarWithWriter(2, 10, os.Stderr, false)

	s := NewScheduler(reg, noPacing(), nil, &utils.NoOpLogger{}).WithProgressBar(pb)
	collect(s.Run(context.Background(), records("1", "2")))

	assert.Equal(t, 2, pb.Current())
}

func TestPacerStandbyGrowsAndResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	pacer := clock.install(NewPacer(config.PacingConfig{
		RecordDelay:            5 * time.Second,
		MaxConsecutiveFailures: 3,
		InitialStandby:         time.Minute,
		StandbyIncrement:       time.Minute,
		MaxStandby:             150 * time.Second,
	}, &utils.NoOpLogger{}))
	ctx := context.Background()

	failStreak := func() {
		for i := 0; i < 3; i++ {
			pacer.RecordResult(report.StatusFailed)
		}
	}

	pacer.RecordResult(report.StatusFailed)
	pacer.RecordResult(report.StatusSaveFailed)
	assert.True(t, standbyUntil(pacer).IsZero())
	require.NoError(t, pacer.Wait(ctx))

	pacer.RecordResult(report.StatusFailed)
	assert.Equal(t, clock.now.Add(time.Minute), standbyUntil(pacer))
	require.NoError(t, pacer.Wait(ctx))

	failStreak()
	require.NoError(t, pacer.Wait(ctx))
	failStreak()
	require.NoError(t, pacer.Wait(ctx))

	pacer.RecordResult(report.StatusSaved)
	failStreak()
	require.NoError(t, pacer.Wait(ctx))

	assert.Equal(t, []time.Duration{
		5 * time.Second,
		time.Minute,
		2 * time.Minute,
		150 * time.Second,
		time.Minute,
	}, clock.sleeps)
}

func TestPacerNotRegisteredCountsAsSuccess(t *testing.T) {
	pacer := NewPacer(config.PacingConfig{MaxConsecutiveFailures: 2, InitialStandby: time.Minute}, &utils.NoOpLogger{})
	pacer.RecordResult(report.StatusFailed)
	pacer.RecordResult(report.StatusNotRegistered)
	pacer.RecordResult(report.StatusFailed)
	assert.True(t, standbyUntil(pacer).IsZero())
}

func TestPacerWaitHonoursCancellation(t *testing.T) {
	pacer := NewPacer(config.PacingConfig{RecordDelay: time.Hour}, &utils.NoOpLogger{})
	pacer.RecordResult(report.StatusSaved)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pacer.Wait(ctx), context.Canceled)
}

func TestResumeStateMissingAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	st, err := LoadResumeState(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Zero(t, st.Len())

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	_, err = LoadResumeState(corrupt)
	assert.Error(t, err)
}

func TestResumeStateInMemory(t *testing.T) {
	st, err := LoadResumeState("")
	require.NoError(t, err)
	require.NoError(t, st.MarkDone("12345678000190", report.StatusSaved))
	assert.True(t, st.IsDone("12345678000190"))
	assert.Equal(t, 1, st.Len())
}
