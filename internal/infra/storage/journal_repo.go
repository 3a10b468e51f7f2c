package storage

import (
	"context"
	"fmt"
	"time"
)

const journalColumns = `id, session_id, seq, cycle, ts_ms, event_type, actor_id, target_id, payload`

// SQLJournalRepository implements JournalRepository for SQLite and PostgreSQL.
type SQLJournalRepository struct {
	db        *DB
	sessionID string
}

// NewJournalRepository scopes a repository to one server session.
func NewJournalRepository(db *DB, sessionID string) *SQLJournalRepository {
	return &SQLJournalRepository{db: db, sessionID: sessionID}
}

// SessionID returns the session this repository reads and writes.
func (r *SQLJournalRepository) SessionID() string {
	return r.sessionID
}

func (r *SQLJournalRepository) Append(ctx context.Context, e JournalEntry) error {
	payload := string(e.Payload)
	if payload == "" {
		payload = "null"
	}
	query := r.db.Rebind(`INSERT INTO journal (` + journalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, r.sessionID, e.Seq, int64(e.Cycle), e.Timestamp.UnixMilli(),
		e.EventType, e.ActorID, e.TargetID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

func (r *SQLJournalRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e       JournalEntry
			cycle   int64
			tsMs    int64
			payload string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &cycle, &tsMs, &e.EventType, &e.ActorID, &e.TargetID, &payload); err != nil {
			return nil, err
		}
		e.Cycle = uint64(cycle)
		e.Timestamp = time.UnixMilli(tsMs).UTC()
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SQLJournalRepository) ListByCycle(ctx context.Context, cycle uint64) ([]JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal WHERE session_id = ? AND cycle = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, r.sessionID, int64(cycle))
}

func (r *SQLJournalRepository) ListByType(ctx context.Context, cycle uint64, eventType string) ([]JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal WHERE session_id = ? AND cycle = ? AND event_type = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, r.sessionID, int64(cycle), eventType)
}

func (r *SQLJournalRepository) Cycles(ctx context.Context) ([]CycleSummary, error) {
	query := r.db.Rebind(`SELECT cycle, COUNT(*), MIN(ts_ms), MAX(ts_ms) FROM journal WHERE session_id = ? AND cycle > 0 GROUP BY cycle ORDER BY cycle ASC`)
	rows, err := r.db.QueryContext(ctx, query, r.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var (
			cycle, first, last int64
			n                  int
		)
		if err := rows.Scan(&cycle, &n, &first, &last); err != nil {
			return nil, err
		}
		out = append(out, CycleSummary{
			Cycle:   uint64(cycle),
			Events:  n,
			FirstAt: time.UnixMilli(first).UTC(),
			LastAt:  time.UnixMilli(last).UTC(),
		})
	}
	return out, rows.Err()
}

var _ JournalRepository = (*SQLJournalRepository)(nil)
