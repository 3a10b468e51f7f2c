// Package superhero is the adapter for the public Superhero API.
// It holds the API key so nothing else in the process (or in a browser) has to.
package superhero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/domain/inmate"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// DefaultBaseURL is the public upstream.
const DefaultBaseURL = "https://superheroapi.com/api"

const (
	EndpointLookup = "lookup"
	EndpointSearch = "search"
)

// ErrNotConfigured is returned when talking to the upstream without an API key.
var ErrNotConfigured = errors.New("superhero API key not configured")

// FetchError reports a failed call for one id or name.
type FetchError struct {
	Endpoint string
	Target   string
	Status   int // 0 when no response was received
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("superhero %s %q: HTTP error! status: %d", e.Endpoint, e.Target, e.Status)
	}
	return fmt.Sprintf("superhero %s %q: %v", e.Endpoint, e.Target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Character is the subset of the upstream character record the asylum uses.
type Character struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	PowerStats inmate.PowerStats `json:"powerstats"`
	Biography  struct {
		FullName  string `json:"full-name"`
		Alignment string `json:"alignment"`
	} `json:"biography"`
	Work struct {
		Base string `json:"base"`
	} `json:"work"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
}

// Qualifies reports whether the character belongs in the asylum.
func (c Character) Qualifies() bool {
	return inmate.Qualifies(c.Biography.Alignment, c.Work.Base)
}

// Inmate converts the record to the roster entity.
func (c Character) Inmate() inmate.Inmate {
	return inmate.Inmate{
		ID:         c.ID,
		Name:       c.Name,
		FullName:   c.Biography.FullName,
		Alignment:  c.Biography.Alignment,
		Base:       c.Work.Base,
		ImageURL:   c.Image.URL,
		PowerStats: c.PowerStats,
	}
}

// SearchResult is the upstream search envelope. Response is "error" when nothing matched.
type SearchResult struct {
	Response   string      `json:"response"`
	ResultsFor string      `json:"results-for"`
	Results    []Character `json:"results"`
	Error      string      `json:"error,omitempty"`
}

// Client talks either to the upstream directly (key in the path) or to another asylum
// server's pass-through proxy (no key).
type Client struct {
	baseURL    string
	apiKey     string
	proxied    bool
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient creates an upstream client. The key is never logged.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/superhero"),
	}
}

// NewProxyClient reads through another server's /api/superhero and /api/search routes.
func NewProxyClient(proxyURL string, timeout time.Duration) *Client {
	c := NewClient(proxyURL, "", timeout)
	c.proxied = true
	return c
}

// IsAvailable checks if the client can reach a source at all.
func (c *Client) IsAvailable() bool {
	return c.proxied || c.apiKey != ""
}

// LookupRaw returns the upstream JSON for one character id, unchanged.
func (c *Client) LookupRaw(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, EndpointLookup, id, c.lookupURL(id))
}

// SearchRaw returns the upstream JSON for a name search, unchanged.
func (c *Client) SearchRaw(ctx context.Context, name string) ([]byte, error) {
	return c.get(ctx, EndpointSearch, name, c.searchURL(name))
}

// Search returns every character matching name. A search with no match is not an error.
func (c *Client) Search(ctx context.Context, name string) ([]Character, error) {
	body, err := c.SearchRaw(ctx, name)
	if err != nil {
		return nil, err
	}
	var res SearchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &FetchError{Endpoint: EndpointSearch, Target: name, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return res.Results, nil
}

func (c *Client) lookupURL(id string) string {
	if c.proxied {
		return c.baseURL + "/api/superhero/" + url.PathEscape(id)
	}
	return c.baseURL + "/" + c.apiKey + "/" + url.PathEscape(id)
}

func (c *Client) searchURL(name string) string {
	if c.proxied {
		return c.baseURL + "/api/search/" + url.PathEscape(name)
	}
	return c.baseURL + "/" + c.apiKey + "/search/" + url.PathEscape(name)
}

func (c *Client) get(ctx context.Context, endpoint, target, u string) (body []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "superhero."+endpoint, trace.WithAttributes(
		attribute.String("superhero.endpoint", endpoint),
		attribute.String("superhero.target", target),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.RecordUpstream(endpoint, err)
	}()

	if !c.IsAvailable() {
		return nil, &FetchError{Endpoint: endpoint, Target: target, Err: ErrNotConfigured}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Target: target, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Target: target, Err: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Endpoint: endpoint, Target: target, Status: resp.StatusCode}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, Target: target, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

// redact keeps the key out of transport errors, which embed the request URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "<redacted>"))
}
