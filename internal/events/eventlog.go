// Package events provides the append-only log of everything that happens during an alert.
// The WebSocket hub streams it to guards and the journal persists it for the history API.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeRosterLoaded       EventType = "ROSTER_LOADED"
	EventTypeSimulationArmed    EventType = "SIMULATION_ARMED"
	EventTypeSimulationStopped  EventType = "SIMULATION_STOPPED"
	EventTypeSimulationResolved EventType = "SIMULATION_RESOLVED"
	EventTypeCountdownTick      EventType = "COUNTDOWN_TICK"
	EventTypeInmatesEscaped     EventType = "INMATES_ESCAPED"
	EventTypeInmateCaptured     EventType = "INMATE_CAPTURED"
	EventTypeNoticePosted       EventType = "NOTICE_POSTED"
	EventTypeNoticeCleared      EventType = "NOTICE_CLEARED"
)

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID        string      `json:"id"`
	Seq       int64       `json:"seq"` // position in the log, assigned on Append
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`  // Who performed the action
	TargetID  string      `json:"target_id"` // Who was affected (optional)
	Payload   interface{} `json:"payload"`   // Event-specific data
	Cycle     uint64      `json:"cycle"`     // Alert cycle, 0 outside any cycle
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of simulation events.
// When a persister is set, a single writer goroutine copies events to it in Seq order.
// Append never waits on the persister.
type EventLog struct {
	mu     sync.RWMutex
	events []GameEvent

	persister EventPersister
	batch     int
	wake      chan struct{}
	done      chan struct{}
	written   int // events handed to the persister; only the writer advances it
	closed    bool
	closeOnce sync.Once
}

// NewEventLog creates a new event log. persister may be nil. batch caps how many events the
// writer hands to the persister per pass; zero or less means everything pending.
func NewEventLog(persister EventPersister, batch int) *EventLog {
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
		batch:     batch,
	}
	if persister != nil {
		el.wake = make(chan struct{}, 1)
		el.done = make(chan struct{})
		go el.writeThrough()
	}
	return el
}

// Append adds a new event to the log and returns it with ID, Seq and Timestamp filled in.
func (el *EventLog) Append(event GameEvent) GameEvent {
	el.mu.Lock()
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Seq = int64(len(el.events)) + 1
	el.events = append(el.events, event)
	if el.wake != nil && !el.closed {
		select {
		case el.wake <- struct{}{}:
		default: // writer already signalled
		}
	}
	el.mu.Unlock()
	return event
}

// Close stops the writer after it has persisted every appended event.
func (el *EventLog) Close() {
	if el.wake == nil {
		return
	}
	el.closeOnce.Do(func() {
		el.mu.Lock()
		el.closed = true
		close(el.wake)
		el.mu.Unlock()
		<-el.done
	})
}

func (el *EventLog) writeThrough() {
	defer close(el.done)
	for {
		_, open := <-el.wake
		for {
			pending := el.pending()
			if len(pending) == 0 {
				break
			}
			for _, e := range pending {
				_ = el.persister.Append(e)
			}
			el.mu.Lock()
			el.written += len(pending)
			backlog := len(el.events) - el.written
			el.mu.Unlock()
			metrics.SetJournalBacklog(backlog)
		}
		if !open {
			return
		}
	}
}

// pending copies the next batch of events the persister has not seen.
func (el *EventLog) pending() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	end := len(el.events)
	if el.batch > 0 && end-el.written > el.batch {
		end = el.written + el.batch
	}
	if end <= el.written {
		return nil
	}
	out := make([]GameEvent, end-el.written)
	copy(out, el.events[el.written:end])
	return out
}

// Len returns the number of events appended so far.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Since returns a copy of the events after the first n.
func (el *EventLog) Since(n int) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(el.events) {
		return nil
	}
	out := make([]GameEvent, len(el.events)-n)
	copy(out, el.events[n:])
	return out
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
