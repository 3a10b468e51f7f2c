package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	lookups  map[string]int
	searches []string
	fail     bool
}

func newCountingSource() *countingSource {
	return &countingSource{lookups: map[string]int{}}
}

func (s *countingSource) LookupRaw(_ context.Context, id string) ([]byte, error) {
	s.lookups[id]++
	if s.fail {
		return nil, errors.New("upstream down")
	}
	return []byte(`{"id":"` + id + `"}`), nil
}

func (s *countingSource) SearchRaw(_ context.Context, name string) ([]byte, error) {
	s.searches = append(s.searches, name)
	if s.fail {
		return nil, errors.New("upstream down")
	}
	return []byte(`{"results-for":"` + name + `"}`), nil
}

func TestLookupServedFromCache(t *testing.T) {
	src := newCountingSource()
	c := NewUpstreamCache(src, 8, time.Minute)

	first, err := c.LookupRaw(context.Background(), "370")
	require.NoError(t, err)
	second, err := c.LookupRaw(context.Background(), "370")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.lookups["370"])
	assert.Equal(t, 1, c.Len())
}

func TestSearchKeyIgnoresCase(t *testing.T) {
	src := newCountingSource()
	c := NewUpstreamCache(src, 8, time.Minute)

	_, err := c.SearchRaw(context.Background(), "Poison Ivy")
	require.NoError(t, err)
	_, err = c.SearchRaw(context.Background(), "poison ivy ")
	require.NoError(t, err)

	// The upstream sees the name as the caller wrote it.
	assert.Equal(t, []string{"Poison Ivy"}, src.searches)
}

func TestFailuresAreNotCached(t *testing.T) {
	src := newCountingSource()
	src.fail = true
	c := NewUpstreamCache(src, 8, time.Minute)

	_, err := c.LookupRaw(context.Background(), "70")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	src.fail = false
	_, err = c.LookupRaw(context.Background(), "70")
	require.NoError(t, err)
	assert.Equal(t, 2, src.lookups["70"])
}

func TestEntriesExpire(t *testing.T) {
	src := newCountingSource()
	c := NewUpstreamCache(src, 8, 20*time.Millisecond)

	_, err := c.LookupRaw(context.Background(), "1")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.LookupRaw(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, 2, src.lookups["1"])
}

func TestDisabledCachePassesThrough(t *testing.T) {
	src := newCountingSource()
	c := NewUpstreamCache(src, 0, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := c.LookupRaw(context.Background(), "5")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, src.lookups["5"])
	assert.Equal(t, 0, c.Len())
}
