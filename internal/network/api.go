package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/engine"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/intake"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
)

// RosterReloader rebuilds the roster from the source.
type RosterReloader interface {
	Reload(ctx context.Context) (intake.Report, error)
}

// SimulationAPI is the REST surface of the guard console.
type SimulationAPI struct {
	ctrl     Controller
	reloader RosterReloader
	logger   *logger.Logger
}

// NewSimulationAPI creates the REST handlers. reloader may be nil.
func NewSimulationAPI(ctrl Controller, reloader RosterReloader, log *logger.Logger) *SimulationAPI {
	return &SimulationAPI{ctrl: ctrl, reloader: reloader, logger: log}
}

// RegisterRoutes sets up the simulation API routes.
func (a *SimulationAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/inmates", a.HandleInmates)
	mux.HandleFunc("GET /api/inmates/{id}", a.HandleInspect)
	mux.HandleFunc("POST /api/inmates/{id}/select", a.HandleSelect)
	mux.HandleFunc("POST /api/inmates/{id}/capture", a.HandleCapture)
	mux.HandleFunc("GET /api/simulation", a.HandleState)
	mux.HandleFunc("POST /api/simulation/arm", a.HandleArm)
	mux.HandleFunc("POST /api/simulation/stop", a.HandleStop)
	mux.HandleFunc("POST /api/roster/reload", a.HandleReload)
}

// HandleInmates lists the roster in display order.
// GET /api/inmates
func (a *SimulationAPI) HandleInmates(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, map[string]interface{}{
		"inmates": a.ctrl.Inmates(),
		"state":   a.ctrl.State(),
	})
}

// HandleInspect returns an inmate's stat sheet. It never changes state.
// GET /api/inmates/{id}
func (a *SimulationAPI) HandleInspect(w http.ResponseWriter, r *http.Request) {
	detail, err := a.ctrl.Inspect(r.PathValue("id"))
	writeDetail(w, detail, err)
}

// HandleSelect returns an inmate's stat sheet, capturing it if it escaped.
// POST /api/inmates/{id}/select
func (a *SimulationAPI) HandleSelect(w http.ResponseWriter, r *http.Request) {
	detail, err := a.ctrl.Select(r.PathValue("id"))
	writeDetail(w, detail, err)
}

func writeDetail(w http.ResponseWriter, detail engine.Detail, err error) {
	if errors.Is(err, engine.ErrInmateNotFound) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, detail)
}

// HandleCapture brings one escapee back. Capturing anyone else is a no-op.
// POST /api/inmates/{id}/capture
func (a *SimulationAPI) HandleCapture(w http.ResponseWriter, r *http.Request) {
	captured := a.ctrl.CaptureEscapee(r.PathValue("id"))
	jsonSuccess(w, map[string]interface{}{
		"captured": captured,
		"state":    a.ctrl.State(),
	})
}

// HandleState returns the countdown display.
// GET /api/simulation
func (a *SimulationAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	jsonSuccess(w, a.ctrl.State())
}

// HandleArm starts an alert, or reports the running one.
// POST /api/simulation/arm
func (a *SimulationAPI) HandleArm(w http.ResponseWriter, r *http.Request) {
	cycle, err := a.ctrl.Arm()
	if errors.Is(err, engine.ErrInvalidArgument) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.logger.Event("GUARD_ARM", "REST", "Alert armed via API")
	jsonSuccess(w, map[string]interface{}{
		"cycle": cycle,
		"state": a.ctrl.State(),
	})
}

// HandleStop disarms the running alert without an outcome.
// POST /api/simulation/stop
func (a *SimulationAPI) HandleStop(w http.ResponseWriter, r *http.Request) {
	stopped := a.ctrl.Stop()
	jsonSuccess(w, map[string]interface{}{
		"stopped": stopped,
		"state":   a.ctrl.State(),
	})
}

// HandleReload rebuilds the roster from the source.
// POST /api/roster/reload
func (a *SimulationAPI) HandleReload(w http.ResponseWriter, r *http.Request) {
	if a.reloader == nil {
		jsonError(w, "Roster source not configured", http.StatusServiceUnavailable)
		return
	}
	rep, err := a.reloader.Reload(r.Context())
	switch {
	case errors.Is(err, engine.ErrAlertInProgress):
		jsonError(w, "Cannot reload the roster during an alert", http.StatusConflict)
		return
	case errors.Is(err, intake.ErrSourceUnavailable):
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	case err != nil:
		a.logger.Err(err, "Roster reload failed")
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]interface{}{
		"report":  rep,
		"inmates": a.ctrl.Inmates(),
	})
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
