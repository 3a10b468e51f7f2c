package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

func newTestEngine(t *testing.T, alertSeconds int, escapes EscapeConfig, records []inmate.Inmate) (*Engine, *ManualScheduler, *events.EventLog) {
	t.Helper()
	sched := NewManualScheduler()
	el := events.NewEventLog(nil, 0)
	e := NewEngine(el, logger.Nop(), Options{
		AlertSeconds: alertSeconds,
		TickUnit:     time.Second,
		Escapes:      escapes,
		NoticeTTL:    5 * time.Second,
		Scheduler:    sched,
		Rand:         rand.New(rand.NewPCG(42, 42)),
	})
	require.NoError(t, e.LoadRoster(records))
	return e, sched, el
}

func noEscapes() EscapeConfig {
	cfg := DefaultEscapeConfig()
	cfg.Enabled = false
	return cfg
}

// forceEscape runs one escape batch with a chosen set of inmates.
func forceEscape(e *Engine, ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := make([]inmate.Inmate, 0, len(ids))
	for _, id := range ids {
		rec, _ := e.roster.Get(id)
		batch = append(batch, rec)
	}
	e.escapes.escape(batch)
}

func TestIdleSnapshot(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultAlertSeconds, noEscapes(), abc())

	s := e.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.False(t, s.Armed)
	assert.Equal(t, "2:30", s.Display)
	assert.Equal(t, 3, s.Captured)
	assert.Equal(t, OutcomeNone, s.Outcome)
	assert.Nil(t, s.Notice)
}

func TestArmStartsCycle(t *testing.T) {
	e, sched, el := newTestEngine(t, 150, DefaultEscapeConfig(), abc())

	cycle, err := e.Arm()
	require.NoError(t, err)
	assert.Equal(t, Cycle(1), cycle)

	s := e.State()
	assert.Equal(t, PhaseArmed, s.Phase)
	assert.Equal(t, 150, s.SecondsRemaining)
	require.NotNil(t, s.Notice)
	assert.Equal(t, "Game started! Inmates will escape throughout the alert...", s.Notice.Message)
	assert.True(t, e.escapes.Active())
	assert.True(t, e.clock.Running())
	assert.Len(t, el.GetByType(events.EventTypeSimulationArmed), 1)

	sched.Advance(time.Second)
	assert.Equal(t, 149, e.State().SecondsRemaining)
}

func TestArmRejectsNonPositiveDuration(t *testing.T) {
	e, sched, _ := newTestEngine(t, -5, noEscapes(), abc())

	_, err := e.Arm()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, PhaseIdle, e.State().Phase)
	assert.Equal(t, 0, sched.Pending())
}

func TestArmWhileArmedKeepsCycle(t *testing.T) {
	e, sched, _ := newTestEngine(t, 60, noEscapes(), abc())

	first, err := e.Arm()
	require.NoError(t, err)
	sched.Advance(2 * time.Second)

	again, err := e.Arm()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 58, e.State().SecondsRemaining)
}

func TestEndToEndWinWithoutEscapes(t *testing.T) {
	e, sched, _ := newTestEngine(t, 5, noEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(4 * time.Second)
	assert.Equal(t, PhaseArmed, e.State().Phase)

	sched.Advance(time.Second)
	s := e.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, OutcomeWin, s.Outcome)
	assert.Equal(t, "🎉 You caught all the criminals! 🎉", s.Result)
	assert.Equal(t, 0, s.SecondsRemaining)
}

func TestTwelveInmatesNoEscapesWins(t *testing.T) {
	e, sched, _ := newTestEngine(t, DefaultAlertSeconds, noEscapes(), twelve())
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(DefaultAlertSeconds * time.Second)
	assert.Equal(t, OutcomeWin, e.State().Outcome)
}

// lateEscapes keeps the escape system active but out of the way of a short alert.
func lateEscapes() EscapeConfig {
	cfg := DefaultEscapeConfig()
	cfg.FirstDelay = time.Hour
	return cfg
}

func TestEndToEndCaptureBeforeExpiryWins(t *testing.T) {
	e, sched, _ := newTestEngine(t, 5, lateEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)
	assert.True(t, e.escapes.Active())

	sched.Advance(2 * time.Second)
	forceEscape(e, "1")
	assert.Equal(t, 1, e.State().Escaped)

	sched.Advance(time.Second)
	assert.True(t, e.CaptureEscapee("1"))

	sched.Advance(2 * time.Second)
	s := e.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, OutcomeWin, s.Outcome)
}

func TestEndToEndUncapturedLoses(t *testing.T) {
	e, sched, el := newTestEngine(t, 5, lateEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(2 * time.Second)
	forceEscape(e, "1")
	sched.Advance(3 * time.Second)

	s := e.State()
	assert.Equal(t, PhaseResolved, s.Phase)
	assert.Equal(t, OutcomeLose, s.Outcome)
	assert.Equal(t, "You didn't capture all the inmates!", s.Result)
	assert.Equal(t, inmate.StatusEscaped, e.roster.StatusOf("1"))

	resolved := el.GetByType(events.EventTypeSimulationResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, OutcomeLose, resolved[0].Payload.(ResolvedPayload).Outcome)
}

func TestNoEscapesOnceResolved(t *testing.T) {
	e, sched, el := newTestEngine(t, 20, DefaultEscapeConfig(), twelve())
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(20 * time.Second)
	require.Equal(t, PhaseResolved, e.State().Phase)

	before := e.Inmates()
	batches := len(el.GetByType(events.EventTypeInmatesEscaped))
	staleGen := e.escapes.gen - 1

	assert.GreaterOrEqual(t, sched.RunStopped(), 1)
	e.mu.Lock()
	e.escapes.fire(staleGen)
	e.mu.Unlock()
	sched.Advance(10 * time.Minute)

	assert.Equal(t, before, e.Inmates())
	assert.Len(t, el.GetByType(events.EventTypeInmatesEscaped), batches)
	assert.Len(t, el.GetByType(events.EventTypeSimulationResolved), 1)
	assert.Equal(t, 0, sched.Pending())
}

func TestCaptureIsIdempotent(t *testing.T) {
	e, _, el := newTestEngine(t, 60, noEscapes(), abc())

	assert.False(t, e.CaptureEscapee("1"), "idle")

	_, err := e.Arm()
	require.NoError(t, err)
	forceEscape(e, "2")

	n := el.Len()
	assert.False(t, e.CaptureEscapee("1"), "already captured")
	assert.False(t, e.CaptureEscapee("nope"), "unknown")
	assert.Equal(t, n, el.Len())

	assert.True(t, e.CaptureEscapee("2"))
	assert.False(t, e.CaptureEscapee("2"))
	assert.Equal(t, 0, e.State().Escaped)
	assert.Len(t, el.GetByType(events.EventTypeInmateCaptured), 1)
}

func TestSelectCapturesEscapee(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, noEscapes(), []inmate.Inmate{
		{ID: "70", Name: "Bane", Base: "-", PowerStats: inmate.PowerStats{Strength: "38", Speed: "null"}},
		{ID: "370", Name: "Joker", Base: "Arkham Asylum"},
	})
	_, err := e.Arm()
	require.NoError(t, err)
	forceEscape(e, "70")

	d, err := e.Select("70")
	require.NoError(t, err)
	assert.True(t, d.CapturedNow)
	assert.Equal(t, "This inmate has ESCAPED! Selecting them will capture them.", d.Warning)
	assert.Equal(t, inmate.StatusCaptured, d.Status)
	assert.Equal(t, "Gotham City", d.Base)
	assert.NotEmpty(t, d.Stats)

	d, err = e.Select("370")
	require.NoError(t, err)
	assert.False(t, d.CapturedNow)
	assert.Empty(t, d.Warning)
	assert.Equal(t, inmate.StatusCaptured, d.Status)
}

func TestSelectUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, noEscapes(), abc())
	_, err := e.Select("404")
	assert.ErrorIs(t, err, ErrInmateNotFound)
}

func TestSelectAfterResolveDoesNotCapture(t *testing.T) {
	e, sched, _ := newTestEngine(t, 3, lateEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)
	forceEscape(e, "3")
	sched.Advance(3 * time.Second)

	d, err := e.Select("3")
	require.NoError(t, err)
	assert.False(t, d.CapturedNow)
	assert.Equal(t, inmate.StatusEscaped, d.Status)
	assert.Equal(t, OutcomeLose, e.State().Outcome)
}

func TestRearmResetsCleanly(t *testing.T) {
	e, sched, _ := newTestEngine(t, 5, lateEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)
	forceEscape(e, "1", "3")
	sched.Advance(5 * time.Second)
	require.Equal(t, OutcomeLose, e.State().Outcome)

	cycle, err := e.Arm()
	require.NoError(t, err)
	assert.Equal(t, Cycle(2), cycle)

	s := e.State()
	assert.Equal(t, PhaseArmed, s.Phase)
	assert.Equal(t, OutcomeNone, s.Outcome)
	assert.Empty(t, s.Result)
	assert.Equal(t, 0, s.Escaped)
	assert.Equal(t, 3, s.Captured)
	assert.Equal(t, 5, s.SecondsRemaining)
}

func TestStopDisarms(t *testing.T) {
	e, sched, el := newTestEngine(t, 60, DefaultEscapeConfig(), twelve())
	cycle, err := e.Arm()
	require.NoError(t, err)
	sched.Advance(time.Second)

	assert.False(t, e.Disarm(cycle+1), "stale cycle")
	assert.True(t, e.Stop())
	assert.False(t, e.Stop())

	s := e.State()
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, OutcomeNone, s.Outcome)
	assert.False(t, e.clock.Running())
	assert.False(t, e.escapes.Active())

	ticks := len(el.GetByType(events.EventTypeCountdownTick))
	sched.RunStopped()
	sched.Advance(time.Minute)
	assert.Len(t, el.GetByType(events.EventTypeCountdownTick), ticks)
	assert.Equal(t, 0, e.State().Escaped)
	assert.Len(t, el.GetByType(events.EventTypeSimulationStopped), 1)
}

func TestNoticeClearsOnlyItsOwnMessage(t *testing.T) {
	e, sched, el := newTestEngine(t, 60, noEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)
	first := e.State().Notice.Token

	sched.Advance(3 * time.Second)
	require.True(t, e.Stop())
	_, err = e.Arm()
	require.NoError(t, err)
	second := e.State().Notice.Token
	assert.Greater(t, second, first)

	// The first notice's clear would have fired here.
	sched.Advance(2 * time.Second)
	sched.RunStopped()
	require.NotNil(t, e.State().Notice)
	assert.Equal(t, second, e.State().Notice.Token)

	sched.Advance(3 * time.Second)
	assert.Nil(t, e.State().Notice)
	assert.Len(t, el.GetByType(events.EventTypeNoticeCleared), 1)
}

func TestLowTimeWarning(t *testing.T) {
	e, sched, _ := newTestEngine(t, 35, noEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(4 * time.Second)
	assert.False(t, e.State().LowTime)

	sched.Advance(time.Second)
	s := e.State()
	assert.True(t, s.LowTime)
	assert.Equal(t, "0:30", s.Display)
}

func TestLoadRosterRejectsDuplicates(t *testing.T) {
	e, _, _ := newTestEngine(t, 60, noEscapes(), abc())

	err := e.LoadRoster([]inmate.Inmate{{ID: "1", Name: "A"}, {ID: "1", Name: "B"}})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Len(t, e.Inmates(), 3)
}

func TestArmWithEmptyRoster(t *testing.T) {
	e, sched, _ := newTestEngine(t, 10, DefaultEscapeConfig(), nil)
	_, err := e.Arm()
	require.NoError(t, err)

	sched.Advance(10 * time.Second)
	assert.Equal(t, OutcomeWin, e.State().Outcome)
}

func TestLoadRosterRefusedWhileArmed(t *testing.T) {
	e, sched, _ := newTestEngine(t, 5, noEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)

	assert.ErrorIs(t, e.LoadRoster(twelve()), ErrAlertInProgress)
	assert.Len(t, e.Inmates(), 3)

	sched.Advance(5 * time.Second)
	require.NoError(t, e.LoadRoster(twelve()))
	assert.Len(t, e.Inmates(), 12)
}

type stalledJournal struct {
	release chan struct{}
}

func (j stalledJournal) Append(events.GameEvent) error {
	<-j.release
	return nil
}

func TestAlertRunsWhileJournalStalled(t *testing.T) {
	journal := stalledJournal{release: make(chan struct{})}
	el := events.NewEventLog(journal, 2)
	defer el.Close()
	defer close(journal.release)

	sched := NewManualScheduler()
	e := NewEngine(el, logger.Nop(), Options{
		AlertSeconds: 10,
		TickUnit:     time.Second,
		Escapes:      DefaultEscapeConfig(),
		NoticeTTL:    5 * time.Second,
		Scheduler:    sched,
		Rand:         rand.New(rand.NewPCG(3, 3)),
	})
	require.NoError(t, e.LoadRoster(abc()))

	done := make(chan Snapshot)
	go func() {
		_, _ = e.Arm()
		sched.Advance(5 * time.Second)
		done <- e.State()
	}()

	select {
	case s := <-done:
		assert.Equal(t, 5, s.SecondsRemaining)
		assert.Greater(t, el.Len(), 5)
	case <-time.After(2 * time.Second):
		t.Fatal("alert stalled behind the journal")
	}
}

func TestInspectNeverCaptures(t *testing.T) {
	e, _, el := newTestEngine(t, 150, noEscapes(), abc())
	_, err := e.Arm()
	require.NoError(t, err)
	forceEscape(e, "2")

	d, err := e.Inspect("2")
	require.NoError(t, err)
	assert.Equal(t, inmate.StatusEscaped, d.Status)
	assert.False(t, d.CapturedNow)
	assert.Empty(t, d.Warning)
	assert.Equal(t, 1, e.State().Escaped)
	assert.Empty(t, el.GetByType(events.EventTypeInmateCaptured))

	_, err = e.Inspect("nobody")
	assert.ErrorIs(t, err, ErrInmateNotFound)
}
