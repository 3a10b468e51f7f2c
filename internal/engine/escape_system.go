package engine

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// EscapeConfig controls the escape cadence.
type EscapeConfig struct {
	Enabled    bool
	FirstDelay time.Duration // guarantees an early escape
	MinDelay   time.Duration
	DelayRange time.Duration // next event after MinDelay + U[0, DelayRange)
	MaxBatch   int
}

// DefaultEscapeConfig matches the reference cadence: first escape at 3s, then every 5-10s,
// 1-4 inmates at a time.
func DefaultEscapeConfig() EscapeConfig {
	return EscapeConfig{
		Enabled:    true,
		FirstDelay: 3 * time.Second,
		MinDelay:   5 * time.Second,
		DelayRange: 5 * time.Second,
		MaxBatch:   4,
	}
}

// EscapeBatchPayload is attached to INMATES_ESCAPED events.
type EscapeBatchPayload struct {
	InmateIDs []string `json:"inmate_ids"`
	Names     []string `json:"names"`
	Escaped   int      `json:"escaped"`
	Captured  int      `json:"captured"`
}

// EscapeSystem lets captured inmates out on an unpredictable schedule while active.
// At most one escape timer is outstanding at a time.
type EscapeSystem struct {
	roster   *Roster
	eventLog *events.EventLog
	logger   *logger.Logger
	sched    Scheduler
	rng      *rand.Rand
	cfg      EscapeConfig

	active bool
	cycle  uint64
	gen    uint64
	timer  Timer
}

// NewEscapeSystem creates an inactive escape system.
func NewEscapeSystem(roster *Roster, eventLog *events.EventLog, log *logger.Logger, sched Scheduler, rng *rand.Rand, cfg EscapeConfig) *EscapeSystem {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 1
	}
	return &EscapeSystem{
		roster:   roster,
		eventLog: eventLog,
		logger:   log,
		sched:    sched,
		rng:      rng,
		cfg:      cfg,
	}
}

// Activate starts the cadence for an alert cycle. A disabled system stays inactive.
func (es *EscapeSystem) Activate(cycle uint64) {
	es.Deactivate()
	if !es.cfg.Enabled {
		return
	}
	es.active = true
	es.cycle = cycle
	es.schedule(es.gen, es.cfg.FirstDelay)
}

// Deactivate cancels the pending escape. Callbacks already in flight see a new generation
// and do nothing.
func (es *EscapeSystem) Deactivate() {
	if es.timer != nil {
		es.timer.Stop()
		es.timer = nil
	}
	es.active = false
	es.gen++
}

// Active reports whether escapes are being scheduled.
func (es *EscapeSystem) Active() bool {
	return es.active
}

func (es *EscapeSystem) schedule(gen uint64, d time.Duration) {
	es.timer = es.sched.AfterFunc(d, func() { es.fire(gen) })
}

func (es *EscapeSystem) fire(gen uint64) {
	if gen != es.gen || !es.active {
		return
	}
	es.timer = nil
	es.runBatch()
	es.schedule(gen, es.nextDelay())
}

func (es *EscapeSystem) nextDelay() time.Duration {
	if es.cfg.DelayRange <= 0 {
		return es.cfg.MinDelay
	}
	return es.cfg.MinDelay + time.Duration(es.rng.Int64N(int64(es.cfg.DelayRange)))
}

// runBatch lets 1..MaxBatch captured inmates out. An empty captured set is a no-op.
func (es *EscapeSystem) runBatch() []inmate.Inmate {
	captured := es.roster.ListByStatus(inmate.StatusCaptured)
	if len(captured) == 0 {
		es.logger.Debug("Escape event skipped: nobody left to escape.")
		return nil
	}

	k := 1 + es.rng.IntN(es.cfg.MaxBatch)
	if k > len(captured) {
		k = len(captured)
	}
	// Partial Fisher-Yates: the first k slots end up a uniform sample without replacement.
	for i := 0; i < k; i++ {
		j := i + es.rng.IntN(len(captured)-i)
		captured[i], captured[j] = captured[j], captured[i]
	}
	escapees := captured[:k]
	es.escape(escapees)
	return escapees
}

func (es *EscapeSystem) escape(escapees []inmate.Inmate) {
	ids := make([]string, 0, len(escapees))
	names := make([]string, 0, len(escapees))
	for _, e := range escapees {
		if es.roster.SetStatus(e.ID, inmate.StatusEscaped) {
			ids = append(ids, e.ID)
			names = append(names, e.Name)
		}
	}
	if len(ids) == 0 {
		return
	}

	escaped := es.roster.CountByStatus(inmate.StatusEscaped)
	es.eventLog.Append(events.GameEvent{
		Type:     events.EventTypeInmatesEscaped,
		ActorID:  "SYSTEM_ESCAPES",
		TargetID: strings.Join(ids, ","),
		Payload: EscapeBatchPayload{
			InmateIDs: ids,
			Names:     names,
			Escaped:   escaped,
			Captured:  es.roster.CountByStatus(inmate.StatusCaptured),
		},
		Cycle: es.cycle,
	})
	es.logger.Event("INMATES_ESCAPED", "SYSTEM_ESCAPES",
		fmt.Sprintf("%d inmates have escaped: %s", len(ids), strings.Join(names, ", ")))
	metrics.RecordEscapes(len(ids))
	metrics.SetEscaped(escaped)
}
