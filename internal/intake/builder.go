// Package intake builds the asylum roster from the superhero source.
package intake

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/superhero"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

// DefaultVillains is the curated search list.
var DefaultVillains = []string{
	"joker", "riddler", "two-face", "scarecrow", "poison ivy",
	"mr freeze", "penguin", "harley quinn", "clayface", "killer croc",
	"bane", "mister zsasz",
}

// Searcher finds candidate characters by name.
type Searcher interface {
	Search(ctx context.Context, name string) ([]superhero.Character, error)
}

// Report summarizes one build.
type Report struct {
	Searched   int
	Candidates int
	Kept       int
	Failed     []string
}

// Builder turns the curated names into a filtered, deduplicated, name-sorted roster.
type Builder struct {
	source  Searcher
	names   []string
	workers int
	logger  *logger.Logger
}

// NewBuilder creates a builder. workers bounds concurrent searches.
func NewBuilder(source Searcher, names []string, workers int, log *logger.Logger) *Builder {
	if len(names) == 0 {
		names = DefaultVillains
	}
	if workers <= 0 {
		workers = 1
	}
	return &Builder{source: source, names: names, workers: workers, logger: log}
}

// Build searches every name. A failing name is logged and skipped; only cancellation of ctx
// fails the build.
func (b *Builder) Build(ctx context.Context) ([]inmate.Inmate, Report, error) {
	perName := make([][]superhero.Character, len(b.names))
	failed := make([]bool, len(b.names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, name := range b.names {
		g.Go(func() error {
			found, err := b.source.Search(gctx, name)
			if err != nil {
				var fe *superhero.FetchError
				if errors.As(err, &fe) {
					b.logger.Warn(fmt.Sprintf("Error searching for %s: %v", name, fe))
				} else {
					b.logger.Err(err, "Error searching for "+name)
				}
				failed[i] = true
				return nil
			}
			perName[i] = found
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, Report{}, fmt.Errorf("roster build: %w", err)
	}

	rep := Report{Searched: len(b.names)}
	seen := make(map[string]bool)
	var roster []inmate.Inmate
	for i, found := range perName {
		if failed[i] {
			rep.Failed = append(rep.Failed, b.names[i])
			continue
		}
		rep.Candidates += len(found)
		for _, ch := range found {
			if ch.ID == "" || seen[ch.ID] || !ch.Qualifies() {
				continue
			}
			seen[ch.ID] = true
			roster = append(roster, ch.Inmate())
		}
	}

	slices.SortStableFunc(roster, func(a, c inmate.Inmate) int {
		if n := strings.Compare(strings.ToLower(a.Name), strings.ToLower(c.Name)); n != 0 {
			return n
		}
		return strings.Compare(a.Name, c.Name)
	})
	rep.Kept = len(roster)

	b.logger.Info(fmt.Sprintf("Roster built: %d inmates from %d names (%d failed).", rep.Kept, rep.Searched, len(rep.Failed)))
	return roster, rep, nil
}
