// Package storage provides the event journal behind the history API.
// The journal is an audit trail of the running server; the simulation never reads it back.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// JournalEntry mirrors events.GameEvent for persistence.
type JournalEntry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Cycle     uint64          `json:"cycle"`
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	ActorID   string          `json:"actor_id"`
	TargetID  string          `json:"target_id"`
	Payload   json.RawMessage `json:"payload"`
}

// CycleSummary is one row of the history index.
type CycleSummary struct {
	Cycle   uint64    `json:"cycle"`
	Events  int       `json:"events"`
	FirstAt time.Time `json:"first_at"`
	LastAt  time.Time `json:"last_at"`
}

// JournalRepository defines the interface for journal persistence.
// Reads are scoped to the repository's session.
type JournalRepository interface {
	// Append adds a new entry to the journal.
	Append(ctx context.Context, entry JournalEntry) error

	// ListByCycle retrieves all entries of one alert cycle in Seq order.
	ListByCycle(ctx context.Context, cycle uint64) ([]JournalEntry, error)

	// ListByType retrieves the entries of one type within a cycle.
	ListByType(ctx context.Context, cycle uint64, eventType string) ([]JournalEntry, error)

	// Cycles lists every cycle that has entries, oldest first.
	Cycles(ctx context.Context) ([]CycleSummary, error)
}
