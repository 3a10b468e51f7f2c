package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
)

// ErrSourceUnavailable is returned when every search failed.
var ErrSourceUnavailable = errors.New("roster source unavailable")

// RosterSink receives a finished roster.
type RosterSink interface {
	LoadRoster(records []inmate.Inmate) error
}

// Loader builds a roster and hands it to the simulation.
type Loader struct {
	builder *Builder
	sink    RosterSink
}

// NewLoader wires a builder to a sink.
func NewLoader(b *Builder, sink RosterSink) *Loader {
	return &Loader{builder: b, sink: sink}
}

// Reload rebuilds the roster. When no search succeeded the previous roster is kept.
func (l *Loader) Reload(ctx context.Context) (Report, error) {
	roster, rep, err := l.builder.Build(ctx)
	if err != nil {
		return rep, err
	}
	if rep.Searched > 0 && len(rep.Failed) == rep.Searched {
		return rep, fmt.Errorf("%w: all %d searches failed", ErrSourceUnavailable, rep.Searched)
	}
	if err := l.sink.LoadRoster(roster); err != nil {
		return rep, fmt.Errorf("load roster: %w", err)
	}
	return rep, nil
}
