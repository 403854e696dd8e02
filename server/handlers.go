package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/model"
)

// JSON body of all error responses. Never carries internal details.
type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	q Queries
}

func NewHandler(q Queries) *Handler {
	return &Handler{q: q}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: encoding response: %v", err)
	}
}

// Maps query errors to responses: missing resources are 404, missing
// reference data 503 and everything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, delyzer.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
	case errors.Is(err, delyzer.ErrNoCatalog):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Station data unavailable"})
	default:
		log.Printf("Error: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}

// URL parameter, unescaped. Directions often contain spaces, slashes
// and parentheses. chi matches on RawPath when the request has one, and
// on the already decoded Path otherwise.
func param(r *http.Request, name string) string {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value
	}
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return unescaped
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.q.Ping(); err != nil {
		log.Printf("Warning: health check: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

// GET /departures
func (h *Handler) GetDepartures(w http.ResponseWriter, r *http.Request) {
	departures, err := h.q.Departures()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"departures": departures})
}

// GET /departures/{id}
func (h *Handler) GetDeparture(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.NotFound(w, r)
		return
	}

	departure, err := h.q.Departure(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"departure": departure})
}

// GET /lines
func (h *Handler) GetLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.q.Lines()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": lines})
}

// GET /stations
func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.q.Stations()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

// GET /delay/lines
func (h *Handler) GetLineDelays(w http.ResponseWriter, r *http.Request) {
	delays, err := h.q.LineDelays()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"delays": delays})
}

// GET /delay/line/{line}/{direction}
func (h *Handler) GetLineDelay(w http.ResponseWriter, r *http.Request) {
	delays, err := h.q.LineDelay(param(r, "line"), param(r, "direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"delays": delays})
}

// GET /delay/times[/{line}/{direction}]
func (h *Handler) GetTimeDelays(w http.ResponseWriter, r *http.Request) {
	times, err := h.q.TimeDelays(param(r, "line"), param(r, "direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"times": [][]model.TimeslotDelay{times}})
}

// GET /delay/stations[/{line}/{direction}]
func (h *Handler) GetStationDelays(w http.ResponseWriter, r *http.Request) {
	delays, err := h.q.StationDelays(param(r, "line"), param(r, "direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"delays": delays})
}

// GET /propability/stations[/{line}/{direction}]
func (h *Handler) GetStationRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := h.q.StationRisks(param(r, "line"), param(r, "direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"propability": risks})
}

// GET /propability/station/{name}
func (h *Handler) GetStationRisk(w http.ResponseWriter, r *http.Request) {
	risks, err := h.q.StationRisk(param(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"propability": risks})
}

// GET /propability/lines
func (h *Handler) GetLineRisks(w http.ResponseWriter, r *http.Request) {
	risks, err := h.q.LineRisks()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"propability": risks})
}

// GET /propability/line/{line}/{direction}
func (h *Handler) GetLineRisk(w http.ResponseWriter, r *http.Request) {
	risks, err := h.q.LineRisk(param(r, "line"), param(r, "direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"propability": risks})
}
