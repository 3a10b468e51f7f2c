package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

// ErrCycleNotFound is returned when the journal has nothing for a cycle.
var ErrCycleNotFound = errors.New("cycle not found")

// Recapper rebuilds what happened in an alert cycle from the journal.
type Recapper struct {
	repo   JournalRepository
	logger *logger.Logger
}

// NewRecapper creates a new cycle recapper.
func NewRecapper(repo JournalRepository, log *logger.Logger) *Recapper {
	return &Recapper{repo: repo, logger: log}
}

// RecapEvent is a simplified event for the history screen.
type RecapEvent struct {
	Timestamp string `json:"timestamp"`
	EventType string `json:"event_type"`
	Summary   string `json:"summary"` // Human-readable description
	Impact    string `json:"impact"`  // "POSITIVE", "NEGATIVE", "NEUTRAL"
}

// Recap is the rebuilt story of one cycle.
type Recap struct {
	Cycle        uint64       `json:"cycle"`
	Outcome      string       `json:"outcome,omitempty"`
	Message      string       `json:"message,omitempty"`
	Stopped      bool         `json:"stopped"`
	AlertSeconds int          `json:"alert_seconds"`
	Inmates      int          `json:"inmates"`
	Batches      int          `json:"batches"`
	Escapes      int          `json:"escapes"`
	Captures     int          `json:"captures"`
	StillEscaped int          `json:"still_escaped"`
	Skipped      int          `json:"skipped,omitempty"` // entries with unreadable payloads
	ArmedAt      time.Time    `json:"armed_at"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	Timeline     []RecapEvent `json:"timeline"`
}

type recapPayload struct {
	AlertSeconds int      `json:"alert_seconds"`
	Inmates      int      `json:"inmates"`
	InmateIDs    []string `json:"inmate_ids"`
	Names        []string `json:"names"`
	Name         string   `json:"name"`
	Escaped      int      `json:"escaped"`
	Outcome      string   `json:"outcome"`
	Message      string   `json:"message"`
	Remaining    int      `json:"seconds_remaining"`
}

// CycleRecap replays the journal for one cycle.
func (r *Recapper) CycleRecap(ctx context.Context, cycle uint64) (*Recap, error) {
	entries, err := r.repo.ListByCycle(ctx, cycle)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for cycle %d: %w", cycle, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrCycleNotFound, cycle)
	}

	recap := &Recap{Cycle: cycle, Timeline: []RecapEvent{}}
	for _, e := range entries {
		var p recapPayload
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				r.logger.Debug(fmt.Sprintf("Skipping journal entry %s (seq %d): %v", e.ID, e.Seq, err))
				recap.Skipped++
				continue
			}
		}
		r.apply(recap, e, p)

		summary, ok := summarizeEvent(e, p)
		if !ok {
			continue
		}
		recap.Timeline = append(recap.Timeline, RecapEvent{
			Timestamp: e.Timestamp.Format("15:04:05"),
			EventType: e.EventType,
			Summary:   summary,
			Impact:    determineImpact(e, p),
		})
	}
	return recap, nil
}

// EscapeBatch is one INMATES_ESCAPED entry of a cycle.
type EscapeBatch struct {
	Seq       int64     `json:"seq"`
	At        time.Time `json:"at"`
	InmateIDs []string  `json:"inmate_ids"`
	Names     []string  `json:"names"`
}

// EscapeBatches lists the escape batches of one cycle in order.
func (r *Recapper) EscapeBatches(ctx context.Context, cycle uint64) ([]EscapeBatch, error) {
	entries, err := r.repo.ListByType(ctx, cycle, string(events.EventTypeInmatesEscaped))
	if err != nil {
		return nil, fmt.Errorf("failed to get escapes for cycle %d: %w", cycle, err)
	}
	batches := make([]EscapeBatch, 0, len(entries))
	for _, e := range entries {
		var p recapPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			r.logger.Debug(fmt.Sprintf("Skipping escape entry %s (seq %d): %v", e.ID, e.Seq, err))
			continue
		}
		batches = append(batches, EscapeBatch{Seq: e.Seq, At: e.Timestamp, InmateIDs: p.InmateIDs, Names: p.Names})
	}
	return batches, nil
}

// apply folds one entry into the recap counters.
func (r *Recapper) apply(recap *Recap, e JournalEntry, p recapPayload) {
	switch events.EventType(e.EventType) {
	case events.EventTypeSimulationArmed:
		recap.ArmedAt = e.Timestamp
		recap.AlertSeconds = p.AlertSeconds
		recap.Inmates = p.Inmates
	case events.EventTypeInmatesEscaped:
		recap.Batches++
		recap.Escapes += len(p.InmateIDs)
		recap.StillEscaped = p.Escaped
	case events.EventTypeInmateCaptured:
		recap.Captures++
		recap.StillEscaped = p.Escaped
	case events.EventTypeSimulationResolved:
		recap.Outcome = p.Outcome
		recap.Message = p.Message
		recap.StillEscaped = p.Escaped
		ts := e.Timestamp
		recap.EndedAt = &ts
	case events.EventTypeSimulationStopped:
		recap.Stopped = true
		ts := e.Timestamp
		recap.EndedAt = &ts
	}
}

// summarizeEvent creates a human-readable summary. Ticks and notices are left out.
func summarizeEvent(e JournalEntry, p recapPayload) (string, bool) {
	switch events.EventType(e.EventType) {
	case events.EventTypeSimulationArmed:
		return fmt.Sprintf("Alert armed: %d inmates, %d seconds on the clock.", p.Inmates, p.AlertSeconds), true
	case events.EventTypeInmatesEscaped:
		return fmt.Sprintf("%d inmates have escaped: %s", len(p.InmateIDs), strings.Join(p.Names, ", ")), true
	case events.EventTypeInmateCaptured:
		return p.Name + " was captured.", true
	case events.EventTypeSimulationResolved:
		return p.Message, true
	case events.EventTypeSimulationStopped:
		return fmt.Sprintf("Alert stopped with %d seconds left.", p.Remaining), true
	default:
		return "", false
	}
}

// determineImpact classifies the event impact for the guard.
func determineImpact(e JournalEntry, p recapPayload) string {
	switch events.EventType(e.EventType) {
	case events.EventTypeInmatesEscaped:
		return "NEGATIVE"
	case events.EventTypeInmateCaptured:
		return "POSITIVE"
	case events.EventTypeSimulationResolved:
		if p.Outcome == "WIN" {
			return "POSITIVE"
		}
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}
