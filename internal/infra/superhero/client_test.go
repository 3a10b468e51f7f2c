package superhero

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jokerSearch = `{
  "response": "success",
  "results-for": "joker",
  "results": [
    {
      "id": "370",
      "name": "Joker",
      "powerstats": {"intelligence": "100", "strength": "10", "speed": "12", "durability": "60", "power": "43", "combat": "70"},
      "biography": {"full-name": "Jack Napier", "alignment": "bad"},
      "work": {"base": "Arkham Asylum"},
      "image": {"url": "https://example.test/370.jpg"}
    },
    {
      "id": "999",
      "name": "Joker (Clown Prince)",
      "powerstats": {"intelligence": "null"},
      "biography": {"full-name": "", "alignment": "good"},
      "work": {"base": "Metropolis"},
      "image": {"url": ""}
    }
  ]
}`

func TestSearchParsesResults(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(jokerSearch))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	res, err := c.Search(context.Background(), "poison ivy")
	require.NoError(t, err)
	assert.Equal(t, "/secret/search/poison%20ivy", gotPath)

	require.Len(t, res, 2)
	assert.True(t, res[0].Qualifies())
	assert.False(t, res[1].Qualifies())

	in := res[0].Inmate()
	assert.Equal(t, "370", in.ID)
	assert.Equal(t, "Jack Napier", in.FullName)
	assert.Equal(t, "Arkham Asylum", in.Base)
	assert.Equal(t, "https://example.test/370.jpg", in.ImageURL)
	assert.Equal(t, "100", in.PowerStats.Intelligence)
}

func TestSearchNoMatchIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"error","error":"character with given name not found"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "k", time.Second).Search(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", time.Second).LookupRaw(context.Background(), "70")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, EndpointLookup, fe.Endpoint)
	assert.Equal(t, "70", fe.Target)
	assert.Equal(t, http.StatusBadGateway, fe.Status)
}

func TestMissingKey(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", "", time.Second).Search(context.Background(), "bane")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewClient(base, "topsecretkey", time.Second).LookupRaw(context.Background(), "1")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "topsecretkey")
}

func TestProxyClientPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/superhero/370" {
			_, _ = w.Write([]byte(`{"id":"370","name":"Joker"}`))
			return
		}
		_, _ = w.Write([]byte(jokerSearch))
	}))
	defer srv.Close()

	c := NewProxyClient(srv.URL+"/", time.Second)
	assert.True(t, c.IsAvailable())

	body, err := c.LookupRaw(context.Background(), "370")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"370","name":"Joker"}`, string(body))

	_, err = c.Search(context.Background(), "joker")
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/superhero/370", "/api/search/joker"}, paths)
}

func TestLookupRawPassesBodyThrough(t *testing.T) {
	body := `{"response":"success","id":"70","name":"Bane","extra":{"kept":true}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "k", time.Second).LookupRaw(context.Background(), "70")
	require.NoError(t, err)
	assert.JSONEq(t, body, string(got))
}
