package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument is returned for settings the simulation cannot run with.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultTickUnit is one countdown step.
const DefaultTickUnit = 1 * time.Second

// Countdown decrements once per tick unit and signals expiry exactly once.
// It does not know about inmates; the Engine reacts to its callbacks.
type Countdown struct {
	sched Scheduler
	unit  time.Duration

	remaining int
	running   bool
	gen       uint64 // bumped on Start and Stop; stale callbacks compare against it
	timer     Timer

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdown creates a stopped countdown.
func NewCountdown(sched Scheduler, unit time.Duration) *Countdown {
	if unit <= 0 {
		unit = DefaultTickUnit
	}
	return &Countdown{sched: sched, unit: unit}
}

// OnTick sets the callback run after every decrement, including the last one.
func (c *Countdown) OnTick(f func(remaining int)) {
	c.onTick = f
}

// OnExpire sets the callback run once when the countdown reaches zero.
func (c *Countdown) OnExpire(f func()) {
	c.onExpire = f
}

// Start begins counting down from initialSeconds, replacing any running count.
func (c *Countdown) Start(initialSeconds int) error {
	if initialSeconds <= 0 {
		return fmt.Errorf("%w: countdown must start above zero, got %d", ErrInvalidArgument, initialSeconds)
	}
	c.Stop()
	c.remaining = initialSeconds
	c.running = true
	c.schedule(c.gen)
	return nil
}

// Stop cancels ticking. Safe before Start, after expiry, and more than once.
func (c *Countdown) Stop() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.running = false
	c.gen++
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	return c.remaining
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	return c.running
}

func (c *Countdown) schedule(gen uint64) {
	c.timer = c.sched.AfterFunc(c.unit, func() { c.tick(gen) })
}

// tick processes a single countdown step.
func (c *Countdown) tick(gen uint64) {
	if gen != c.gen || !c.running {
		return
	}
	c.remaining--

	if c.remaining <= 0 {
		c.remaining = 0
		c.running = false
		c.timer = nil
		if c.onTick != nil {
			c.onTick(0)
		}
		if c.onExpire != nil {
			c.onExpire()
		}
		return
	}

	c.schedule(gen)
	if c.onTick != nil {
		c.onTick(c.remaining)
	}
}

// FormatCountdown renders seconds as M:SS.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
