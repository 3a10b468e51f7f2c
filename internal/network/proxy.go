package network

import (
	"context"
	"net/http"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

// RawSource returns upstream JSON unchanged.
type RawSource interface {
	LookupRaw(ctx context.Context, id string) ([]byte, error)
	SearchRaw(ctx context.Context, name string) ([]byte, error)
}

// ProxyHandler forwards lookups to the superhero API so the key never leaves the server.
type ProxyHandler struct {
	source RawSource
	logger *logger.Logger
}

// NewProxyHandler creates the pass-through routes.
func NewProxyHandler(source RawSource, log *logger.Logger) *ProxyHandler {
	return &ProxyHandler{source: source, logger: log}
}

// RegisterRoutes sets up the proxy routes and the health check.
func (p *ProxyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/superhero/{id}", p.HandleLookup)
	mux.HandleFunc("GET /api/search/{name}", p.HandleSearch)
	mux.HandleFunc("GET /{$}", p.HandleHealth)
}

// HandleLookup gets one character by id.
// GET /api/superhero/{id}
func (p *ProxyHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p.logger.Info("Fetching superhero " + id)
	body, err := p.source.LookupRaw(r.Context(), id)
	if err != nil {
		p.logger.Err(err, "Error fetching superhero")
		jsonError(w, "Failed to fetch superhero data", http.StatusInternalServerError)
		return
	}
	writeRaw(w, body)
}

// HandleSearch searches characters by name.
// GET /api/search/{name}
func (p *ProxyHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p.logger.Info("Searching superhero " + name)
	body, err := p.source.SearchRaw(r.Context(), name)
	if err != nil {
		p.logger.Err(err, "Error searching superhero")
		jsonError(w, "Failed to search superhero data", http.StatusInternalServerError)
		return
	}
	writeRaw(w, body)
}

// HandleHealth answers the liveness check.
// GET /
func (p *ProxyHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, map[string]string{"message": "SuperHero API Proxy Server is running!"})
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// WithCORS allows any origin, like the browser console expects.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
