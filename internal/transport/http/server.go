// Package http is the thin gorilla/mux binding over the readapi and
// health packages: query-param parsing, status codes, JSON encoding.
// It carries no aggregation logic of its own.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/health"
	"github.com/sawpanic/aggrun/internal/readapi"
	"github.com/sawpanic/aggrun/internal/store"
)

// Server holds the dependencies the Read API and health handlers need.
type Server struct {
	store       *store.Store
	health      *health.Tracker
	subscribers func() int
	logger      zerolog.Logger
}

// New builds a Server. subscribers reports the current subscriber count
// for the health report.
func New(snapshotStore *store.Store, healthTracker *health.Tracker, subscribers func() int, logger zerolog.Logger) *Server {
	return &Server{store: snapshotStore, health: healthTracker, subscribers: subscribers, logger: logger}
}

// Router builds the mux.Router exposing the Read API and health
// surfaces. /metrics and /ws are not registered here; the caller mounts
// them on the returned router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tokens", s.handleGetAll).Methods(http.MethodGet)
	r.HandleFunc("/tokens/{address}", s.handleGetByAddress).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) handleGetAll(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.store.Get(r.Context())
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot unavailable"})
		return
	}

	filters := parseFilters(r)
	page := readapi.GetAll(*snapshot, filters)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetByAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	tok, ok := readapi.GetByAddress(r.Context(), s.store, address)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "token not found"})
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count := 0
	if s.subscribers != nil {
		count = s.subscribers()
	}
	report := s.health.Snapshot(count)

	status := http.StatusOK
	if report.Status == health.StatusDown {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func parseFilters(r *http.Request) readapi.Filters {
	q := r.URL.Query()
	return readapi.Filters{
		MinLiquidity: parseFloat(q.Get("min_liquidity")),
		MinVolume:    parseFloat(q.Get("min_volume")),
		Protocol:     q.Get("protocol"),
		TimePeriod:   readapi.TimePeriod(q.Get("time_period")),
		SortBy:       readapi.SortField(q.Get("sort_by")),
		SortOrder:    readapi.SortOrder(q.Get("sort_order")),
		Limit:        parseInt(q.Get("limit")),
		Cursor:       parseInt(q.Get("cursor")),
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}
