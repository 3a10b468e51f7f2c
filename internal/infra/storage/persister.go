package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// JournalPersister writes event-log entries to a JournalRepository.
// It implements events.EventPersister.
type JournalPersister struct {
	repo    JournalRepository
	timeout time.Duration
	logger  *logger.Logger
}

// NewJournalPersister creates a persister. timeout bounds each write.
func NewJournalPersister(repo JournalRepository, timeout time.Duration, log *logger.Logger) *JournalPersister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &JournalPersister{repo: repo, timeout: timeout, logger: log}
}

// Append persists one event. Failures are logged and counted, never fatal.
func (p *JournalPersister) Append(e events.GameEvent) error {
	err := p.append(e)
	metrics.RecordJournalWrite(err)
	if err != nil {
		p.logger.Err(err, fmt.Sprintf("Journal write failed for %s #%d", e.Type, e.Seq))
	}
	return err
}

func (p *JournalPersister) append(e events.GameEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	return p.repo.Append(ctx, JournalEntry{
		ID:        e.ID,
		Seq:       e.Seq,
		Cycle:     e.Cycle,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Payload:   payload,
	})
}

var _ events.EventPersister = (*JournalPersister)(nil)
