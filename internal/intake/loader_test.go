package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/superhero"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

type recordingSink struct {
	loads [][]inmate.Inmate
	err   error
}

func (s *recordingSink) LoadRoster(records []inmate.Inmate) error {
	if s.err != nil {
		return s.err
	}
	s.loads = append(s.loads, records)
	return nil
}

func TestReloadLoadsRoster(t *testing.T) {
	src := &fakeSource{results: map[string][]superhero.Character{
		"bane": {villain("70", "Bane", "bad", "Santa Prisca")},
	}}
	sink := &recordingSink{}
	rep, err := NewLoader(NewBuilder(src, []string{"bane"}, 1, logger.Nop()), sink).Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Kept)
	require.Len(t, sink.loads, 1)
	assert.Equal(t, "70", sink.loads[0][0].ID)
}

func TestReloadKeepsRosterWhenSourceDown(t *testing.T) {
	down := errors.New("connection refused")
	src := &fakeSource{failures: map[string]error{"a": down, "b": down}}
	sink := &recordingSink{}

	_, err := NewLoader(NewBuilder(src, []string{"a", "b"}, 2, logger.Nop()), sink).Reload(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Empty(t, sink.loads)
}

func TestReloadSurfacesSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("alert in progress")}
	_, err := NewLoader(NewBuilder(&fakeSource{}, []string{"a"}, 1, logger.Nop()), sink).Reload(context.Background())
	assert.ErrorContains(t, err, "alert in progress")
}
