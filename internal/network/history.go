package network

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/storage"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

// CycleLister lists the journaled cycles of one session.
type CycleLister interface {
	SessionID() string
	Cycles(ctx context.Context) ([]storage.CycleSummary, error)
}

// CycleRecapper rebuilds one cycle from the journal.
type CycleRecapper interface {
	CycleRecap(ctx context.Context, cycle uint64) (*storage.Recap, error)
	EscapeBatches(ctx context.Context, cycle uint64) ([]storage.EscapeBatch, error)
}

// HistoryHandler provides the alert history API.
type HistoryHandler struct {
	cycles CycleLister
	recaps CycleRecapper
	logger *logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(cycles CycleLister, recaps CycleRecapper, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{cycles: cycles, recaps: recaps, logger: log}
}

// HistoryResponse is the API response for the cycle index.
type HistoryResponse struct {
	Session     string                 `json:"session"`
	TotalCycles int                    `json:"total_cycles"`
	GeneratedAt string                 `json:"generated_at"`
	Cycles      []storage.CycleSummary `json:"cycles"`
}

// RegisterRoutes sets up the history API routes.
func (hh *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", hh.HandleHistory)
	mux.HandleFunc("GET /api/history/{cycle}", hh.HandleCycle)
	mux.HandleFunc("GET /api/history/{cycle}/escapes", hh.HandleEscapes)
}

// HandleHistory lists every cycle of this session.
// GET /api/history
func (hh *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	cycles, err := hh.cycles.Cycles(r.Context())
	if err != nil {
		hh.logger.Err(err, "Failed to list cycles")
		jsonError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if cycles == nil {
		cycles = []storage.CycleSummary{}
	}
	jsonSuccess(w, HistoryResponse{
		Session:     hh.cycles.SessionID(),
		TotalCycles: len(cycles),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Cycles:      cycles,
	})
}

// HandleCycle returns the recap of one cycle.
// GET /api/history/{cycle}
func (hh *HistoryHandler) HandleCycle(w http.ResponseWriter, r *http.Request) {
	cycle, ok := parseCycle(w, r)
	if !ok {
		return
	}

	recap, err := hh.recaps.CycleRecap(r.Context(), cycle)
	if errors.Is(err, storage.ErrCycleNotFound) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		hh.logger.Err(err, "Failed to build recap")
		jsonError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}

	hh.logger.Event("HISTORY_RECAP", "GUARD", "Cycle:"+strconv.FormatUint(cycle, 10)+" Events:"+strconv.Itoa(len(recap.Timeline)))
	jsonSuccess(w, recap)
}

// HandleEscapes lists the escape batches of one cycle.
// GET /api/history/{cycle}/escapes
func (hh *HistoryHandler) HandleEscapes(w http.ResponseWriter, r *http.Request) {
	cycle, ok := parseCycle(w, r)
	if !ok {
		return
	}
	batches, err := hh.recaps.EscapeBatches(r.Context(), cycle)
	if err != nil {
		hh.logger.Err(err, "Failed to list escapes")
		jsonError(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"cycle":   cycle,
		"batches": batches,
	})
}

func parseCycle(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	cycle, err := strconv.ParseUint(r.PathValue("cycle"), 10, 64)
	if err != nil || cycle == 0 {
		jsonError(w, "Invalid cycle", http.StatusBadRequest)
		return 0, false
	}
	return cycle, true
}
