package engine

import (
	"fmt"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
)

// ValidationError rejects a roster load that would break identity uniqueness.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid roster: inmate %q: %s", e.ID, e.Reason)
}

// RosterEntry is an inmate together with its current status.
type RosterEntry struct {
	inmate.Inmate
	Status inmate.Status `json:"status"`
}

// Roster holds the inmates in display order and their statuses.
// It does no locking: the Engine serializes all access.
type Roster struct {
	order  []inmate.Inmate
	index  map[string]int
	status map[string]inmate.Status
	counts map[inmate.Status]int
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{
		index:  make(map[string]int),
		status: make(map[string]inmate.Status),
		counts: make(map[inmate.Status]int),
	}
}

// Load replaces the roster. Every inmate starts captured. On a duplicate or empty id the
// previous roster is kept.
func (r *Roster) Load(records []inmate.Inmate) error {
	index := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return &ValidationError{ID: rec.Name, Reason: "empty id"}
		}
		if _, dup := index[rec.ID]; dup {
			return &ValidationError{ID: rec.ID, Reason: "duplicate id"}
		}
		index[rec.ID] = i
	}

	r.order = append([]inmate.Inmate(nil), records...)
	r.index = index
	r.status = make(map[string]inmate.Status, len(records))
	for _, rec := range records {
		r.status[rec.ID] = inmate.StatusCaptured
	}
	r.counts = map[inmate.Status]int{
		inmate.StatusCaptured: len(records),
		inmate.StatusEscaped:  0,
	}
	return nil
}

// Len returns the roster size.
func (r *Roster) Len() int {
	return len(r.order)
}

// SetStatus moves one inmate to s and reports whether anything changed.
// Unknown ids and invalid statuses are ignored.
func (r *Roster) SetStatus(id string, s inmate.Status) bool {
	if !s.Valid() {
		return false
	}
	cur, ok := r.status[id]
	if !ok || cur == s {
		return false
	}
	r.status[id] = s
	r.counts[cur]--
	r.counts[s]++
	return true
}

// StatusOf returns the inmate's status, or StatusUnknown.
func (r *Roster) StatusOf(id string) inmate.Status {
	return r.status[id]
}

// Get looks up an inmate by id.
func (r *Roster) Get(id string) (inmate.Inmate, bool) {
	i, ok := r.index[id]
	if !ok {
		return inmate.Inmate{}, false
	}
	return r.order[i], true
}

// ListByStatus returns the inmates in s, in display order. The slice is the caller's.
func (r *Roster) ListByStatus(s inmate.Status) []inmate.Inmate {
	out := make([]inmate.Inmate, 0, r.counts[s])
	for _, rec := range r.order {
		if r.status[rec.ID] == s {
			out = append(out, rec)
		}
	}
	return out
}

// CountByStatus is O(1).
func (r *Roster) CountByStatus(s inmate.Status) int {
	return r.counts[s]
}

// ResetAll marks everyone captured.
func (r *Roster) ResetAll() {
	for id := range r.status {
		r.status[id] = inmate.StatusCaptured
	}
	r.counts[inmate.StatusCaptured] = len(r.order)
	r.counts[inmate.StatusEscaped] = 0
}

// Entries returns the roster in display order with statuses.
func (r *Roster) Entries() []RosterEntry {
	out := make([]RosterEntry, len(r.order))
	for i, rec := range r.order {
		out[i] = RosterEntry{Inmate: rec, Status: r.status[rec.ID]}
	}
	return out
}
