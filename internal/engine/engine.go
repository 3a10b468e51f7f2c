package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

var (
	// ErrInmateNotFound is returned when selecting an id that is not on the roster.
	ErrInmateNotFound = errors.New("inmate not found")
	// ErrAlertInProgress is returned when the roster is replaced while armed.
	ErrAlertInProgress = errors.New("alert in progress")
)

// Phase of the alert state machine.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseArmed    Phase = "ARMED"
	PhaseResolved Phase = "RESOLVED"
)

// Outcome of a resolved alert.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWin  Outcome = "WIN"
	OutcomeLose Outcome = "LOSE"
)

// Message is the result banner shown to the guard.
func (o Outcome) Message() string {
	switch o {
	case OutcomeWin:
		return "🎉 You caught all the criminals! 🎉"
	case OutcomeLose:
		return "You didn't capture all the inmates!"
	}
	return ""
}

// Cycle identifies one arm-to-resolve run.
type Cycle uint64

const (
	// DefaultAlertSeconds is 2.5 minutes.
	DefaultAlertSeconds = 150
	// LowTimeThreshold is when the countdown display turns into a warning.
	LowTimeThreshold = 30

	startNotice    = "Game started! Inmates will escape throughout the alert..."
	escapedWarning = "This inmate has ESCAPED! Selecting them will capture them."
)

// Options configures an Engine. Zero values fall back to the reference behavior.
type Options struct {
	AlertSeconds int
	TickUnit     time.Duration
	Escapes      EscapeConfig
	NoticeTTL    time.Duration
	Scheduler    Scheduler
	Rand         *rand.Rand
}

// DefaultOptions returns the reference tuning on the wall clock.
func DefaultOptions() Options {
	return Options{
		AlertSeconds: DefaultAlertSeconds,
		TickUnit:     DefaultTickUnit,
		Escapes:      DefaultEscapeConfig(),
		NoticeTTL:    5 * time.Second,
		Scheduler:    RealScheduler{},
	}
}

// Notice is a transient advisory message. Token increases with every notice posted.
type Notice struct {
	Token    uint64    `json:"token"`
	Message  string    `json:"message"`
	PostedAt time.Time `json:"posted_at"`
}

// Snapshot is what the guard's display needs.
type Snapshot struct {
	Phase            Phase   `json:"phase"`
	Armed            bool    `json:"armed"`
	Cycle            Cycle   `json:"cycle"`
	SecondsRemaining int     `json:"seconds_remaining"`
	Display          string  `json:"display"`
	LowTime          bool    `json:"low_time"`
	Escaped          int     `json:"escaped"`
	Captured         int     `json:"captured"`
	Outcome          Outcome `json:"outcome,omitempty"`
	Result           string  `json:"result,omitempty"`
	Notice           *Notice `json:"notice,omitempty"`
	// EventSeq is the last event-log entry this snapshot already reflects.
	EventSeq int64 `json:"event_seq"`
}

// Detail is the stat sheet returned when an inmate is selected.
type Detail struct {
	Inmate      inmate.Inmate `json:"inmate"`
	Status      inmate.Status `json:"status"`
	FullName    string        `json:"full_name"`
	Base        string        `json:"base"`
	Stats       []inmate.Stat `json:"stats"`
	CapturedNow bool          `json:"captured_now"`
	Warning     string        `json:"warning,omitempty"`
}

// TickPayload is attached to COUNTDOWN_TICK events.
type TickPayload struct {
	SecondsRemaining int    `json:"seconds_remaining"`
	Display          string `json:"display"`
}

// ArmedPayload is attached to SIMULATION_ARMED events.
type ArmedPayload struct {
	AlertSeconds int `json:"alert_seconds"`
	Inmates      int `json:"inmates"`
}

// ResolvedPayload is attached to SIMULATION_RESOLVED events.
type ResolvedPayload struct {
	Outcome  Outcome `json:"outcome"`
	Message  string  `json:"message"`
	Escaped  int     `json:"escaped"`
	Captured int     `json:"captured"`
}

// CapturedPayload is attached to INMATE_CAPTURED events.
type CapturedPayload struct {
	InmateID string `json:"inmate_id"`
	Name     string `json:"name"`
	Escaped  int    `json:"escaped"`
}

// Engine is the alert state machine. It owns the roster, the countdown and the escape
// system; every public call and every timer callback runs under mu.
type Engine struct {
	mu       sync.Mutex
	eventLog *events.EventLog
	logger   *logger.Logger
	opts     Options
	sched    Scheduler

	// Sub-systems
	roster  *Roster
	clock   *Countdown
	escapes *EscapeSystem

	// State
	phase   Phase
	outcome Outcome
	cycle   Cycle

	notice      Notice
	noticeSeq   uint64
	noticeTimer Timer
}

// NewEngine wires the sub-systems. The engine starts idle with an empty roster.
func NewEngine(eventLog *events.EventLog, log *logger.Logger, opts Options) *Engine {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x41524b48414d))
	}
	if opts.AlertSeconds == 0 {
		opts.AlertSeconds = DefaultAlertSeconds
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 5 * time.Second
	}

	e := &Engine{
		eventLog: eventLog,
		logger:   log,
		opts:     opts,
		roster:   NewRoster(),
		phase:    PhaseIdle,
	}
	e.sched = serialScheduler{inner: opts.Scheduler, mu: &e.mu}
	e.clock = NewCountdown(e.sched, opts.TickUnit)
	e.clock.OnTick(e.onTick)
	e.clock.OnExpire(e.resolve)
	e.escapes = NewEscapeSystem(e.roster, eventLog, log, e.sched, opts.Rand, opts.Escapes)
	return e
}

// LoadRoster replaces the roster; every inmate starts captured. It is refused while armed.
func (e *Engine) LoadRoster(records []inmate.Inmate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseArmed {
		return ErrAlertInProgress
	}
	if err := e.roster.Load(records); err != nil {
		e.logger.Err(err, "Roster load rejected; keeping previous roster.")
		return err
	}
	metrics.SetEscaped(0)
	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeRosterLoaded,
		ActorID: "SYSTEM_INTAKE",
		Payload: map[string]int{"inmates": len(records)},
		Cycle:   uint64(e.cycle),
	})
	e.logger.Info(fmt.Sprintf("Roster loaded with %d inmates.", len(records)))
	return nil
}

// Arm starts a fresh alert: everyone captured, outcome cleared, countdown and escapes running.
// Arming an already armed engine returns the running cycle.
func (e *Engine) Arm() (Cycle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseArmed {
		return e.cycle, nil
	}
	if err := e.clock.Start(e.opts.AlertSeconds); err != nil {
		return 0, err
	}

	e.cycle++
	e.roster.ResetAll()
	e.outcome = OutcomeNone
	e.phase = PhaseArmed
	e.escapes.Activate(uint64(e.cycle))

	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeSimulationArmed,
		ActorID: "GUARD",
		Payload: ArmedPayload{AlertSeconds: e.opts.AlertSeconds, Inmates: e.roster.Len()},
		Cycle:   uint64(e.cycle),
	})
	e.logger.Event("SIMULATION_ARMED", "GUARD", fmt.Sprintf("Cycle %d armed for %d seconds.", e.cycle, e.opts.AlertSeconds))
	metrics.RecordArmed()
	metrics.SetCountdown(e.opts.AlertSeconds)
	metrics.SetEscaped(0)

	e.postNotice(startNotice)
	return e.cycle, nil
}

// Disarm stops the given cycle without an outcome. Stale cycle ids are ignored.
func (e *Engine) Disarm(c Cycle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseArmed || c != e.cycle {
		return false
	}
	e.disarm()
	e.phase = PhaseIdle
	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeSimulationStopped,
		ActorID: "GUARD",
		Payload: map[string]int{"seconds_remaining": e.clock.Remaining()},
		Cycle:   uint64(e.cycle),
	})
	e.logger.Event("SIMULATION_STOPPED", "GUARD", fmt.Sprintf("Cycle %d stopped early.", e.cycle))
	return true
}

// Stop disarms whatever cycle is running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	c := e.cycle
	e.mu.Unlock()
	return e.Disarm(c)
}

// CaptureEscapee brings an escaped inmate back. Anything else is a no-op.
func (e *Engine) CaptureEscapee(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capture(id)
}

// Select returns the inmate's stat sheet. Selecting an escaped inmate during an alert
// captures it.
func (e *Engine) Select(id string) (Detail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.detail(id)
	if err != nil {
		return Detail{}, err
	}
	if e.capture(id) {
		d.CapturedNow = true
		d.Warning = escapedWarning
		d.Status = e.roster.StatusOf(id)
	}
	return d, nil
}

// Inspect returns the stat sheet without capturing anyone.
func (e *Engine) Inspect(id string) (Detail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detail(id)
}

// detail requires mu.
func (e *Engine) detail(id string) (Detail, error) {
	rec, ok := e.roster.Get(id)
	if !ok {
		return Detail{}, fmt.Errorf("%w: %s", ErrInmateNotFound, id)
	}
	return Detail{
		Inmate:   rec,
		Status:   e.roster.StatusOf(id),
		FullName: rec.DisplayFullName(),
		Base:     rec.DisplayBase(),
		Stats:    rec.PowerStats.Sheet(),
	}, nil
}

// State returns the current display snapshot.
func (e *Engine) State() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.clock.Remaining()
	if e.phase == PhaseIdle {
		remaining = e.opts.AlertSeconds
	}
	s := Snapshot{
		Phase:            e.phase,
		Armed:            e.phase == PhaseArmed,
		Cycle:            e.cycle,
		SecondsRemaining: remaining,
		Display:          FormatCountdown(remaining),
		LowTime:          e.phase == PhaseArmed && remaining <= LowTimeThreshold,
		Escaped:          e.roster.CountByStatus(inmate.StatusEscaped),
		Captured:         e.roster.CountByStatus(inmate.StatusCaptured),
		Outcome:          e.outcome,
		Result:           e.outcome.Message(),
		EventSeq:         int64(e.eventLog.Len()),
	}
	if e.notice.Message != "" {
		n := e.notice
		s.Notice = &n
	}
	return s
}

// Inmates returns the roster in display order.
func (e *Engine) Inmates() []RosterEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roster.Entries()
}

// capture requires mu.
func (e *Engine) capture(id string) bool {
	if e.phase != PhaseArmed || e.roster.StatusOf(id) != inmate.StatusEscaped {
		return false
	}
	e.roster.SetStatus(id, inmate.StatusCaptured)
	rec, _ := e.roster.Get(id)
	escaped := e.roster.CountByStatus(inmate.StatusEscaped)

	e.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeInmateCaptured,
		ActorID:  "GUARD",
		TargetID: id,
		Payload:  CapturedPayload{InmateID: id, Name: rec.Name, Escaped: escaped},
		Cycle:    uint64(e.cycle),
	})
	e.logger.Event("INMATE_CAPTURED", "GUARD", rec.Name+" is back in their cell.")
	metrics.RecordCapture()
	metrics.SetEscaped(escaped)
	return true
}

// onTick runs under mu (countdown callback).
func (e *Engine) onTick(remaining int) {
	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeCountdownTick,
		ActorID: "SYSTEM_CLOCK",
		Payload: TickPayload{SecondsRemaining: remaining, Display: FormatCountdown(remaining)},
		Cycle:   uint64(e.cycle),
	})
	metrics.SetCountdown(remaining)
}

// resolve runs under mu when the countdown expires. Escapes stop before the outcome is
// counted, so nothing can escape after expiry.
func (e *Engine) resolve() {
	if e.phase != PhaseArmed {
		return
	}
	e.disarm()

	escaped := e.roster.CountByStatus(inmate.StatusEscaped)
	e.outcome = OutcomeLose
	if escaped == 0 {
		e.outcome = OutcomeWin
	}
	e.phase = PhaseResolved

	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeSimulationResolved,
		ActorID: "SYSTEM_CLOCK",
		Payload: ResolvedPayload{
			Outcome:  e.outcome,
			Message:  e.outcome.Message(),
			Escaped:  escaped,
			Captured: e.roster.CountByStatus(inmate.StatusCaptured),
		},
		Cycle: uint64(e.cycle),
	})
	e.logger.Event("SIMULATION_RESOLVED", "SYSTEM_CLOCK",
		fmt.Sprintf("Cycle %d resolved: %s (%d still escaped).", e.cycle, e.outcome, escaped))
	metrics.RecordOutcome(string(e.outcome))
}

// disarm cancels every simulation timer. Requires mu.
func (e *Engine) disarm() {
	e.escapes.Deactivate()
	e.clock.Stop()
}

// postNotice replaces the current notice and schedules its removal. Requires mu.
func (e *Engine) postNotice(msg string) {
	e.noticeSeq++
	token := e.noticeSeq
	e.notice = Notice{Token: token, Message: msg, PostedAt: time.Now()}

	if e.noticeTimer != nil {
		e.noticeTimer.Stop()
	}
	e.noticeTimer = e.sched.AfterFunc(e.opts.NoticeTTL, func() { e.clearNotice(token) })

	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeNoticePosted,
		ActorID: "SYSTEM",
		Payload: e.notice,
		Cycle:   uint64(e.cycle),
	})
}

// clearNotice removes the notice only if it is still the one identified by token.
func (e *Engine) clearNotice(token uint64) {
	if e.notice.Token != token || e.notice.Message == "" {
		return
	}
	e.notice = Notice{}
	e.noticeTimer = nil
	e.eventLog.Append(events.GameEvent{
		Type:    events.EventTypeNoticeCleared,
		ActorID: "SYSTEM",
		Payload: map[string]uint64{"token": token},
		Cycle:   uint64(e.cycle),
	})
}
