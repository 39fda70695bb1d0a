// Package api serves a read-only JSON view of the rewrite history.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"glyphsweep/internal/config"
	"glyphsweep/internal/database"
)

// HistoryReader is the query side of database.HistoryDB
type HistoryReader interface {
	GetRecentRewrites(limit int) ([]database.RewriteRecord, error)
	GetRewritesByAction(action string, limit int) ([]database.RewriteRecord, error)
	GetRewritesByPath(pathPattern string, limit int) ([]database.RewriteRecord, error)
	GetRecentRuns(limit int) ([]database.RunRecord, error)
	GetStats(days int) (*database.HistoryStats, error)
}

// ErrorResponse represents error message
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RewritesResponse wraps a page of rewrite events
type RewritesResponse struct {
	Entries []database.RewriteRecord `json:"entries"`
	Count   int                      `json:"count"`
	Limit   int                      `json:"limit"`
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// NewRouter builds the /api/v1 routes. db may be nil when history is disabled.
func NewRouter(db HistoryReader, cfg *config.Config, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &handlers{db: db, cfg: cfg}

	router := mux.NewRouter()
	router.Use(requestLogger(logger))
	router.Use(securityHeaders)
	router.Use(bodyLimit(1 << 20))
	router.Use(NewRateLimiter(rate.Limit(20), 40).Middleware)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/rewrites", h.getRewrites).Methods(http.MethodGet)
	v1.HandleFunc("/runs", h.getRuns).Methods(http.MethodGet)
	v1.HandleFunc("/stats", h.getStats).Methods(http.MethodGet)
	v1.HandleFunc("/config", h.getConfig).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "no such endpoint", http.StatusNotFound)
	})
	return router
}

type handlers struct {
	db  HistoryReader
	cfg *config.Config
}

// getRewrites handles GET /api/v1/rewrites?limit=&action=&path=
func (h *handlers) getRewrites(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}

	q := r.URL.Query()
	limit := intParam(q.Get("limit"), defaultLimit, maxLimit)

	var records []database.RewriteRecord
	var err error
	switch {
	case q.Get("action") != "":
		records, err = h.db.GetRewritesByAction(q.Get("action"), limit)
	case q.Get("path") != "":
		records, err = h.db.GetRewritesByPath(q.Get("path"), limit)
	default:
		records, err = h.db.GetRecentRewrites(limit)
	}
	if err != nil {
		respondError(w, "failed to query database: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []database.RewriteRecord{}
	}

	respondJSON(w, RewritesResponse{Entries: records, Count: len(records), Limit: limit}, http.StatusOK)
}

// getRuns handles GET /api/v1/runs?limit=
func (h *handlers) getRuns(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	runs, err := h.db.GetRecentRuns(intParam(r.URL.Query().Get("limit"), 20, maxLimit))
	if err != nil {
		respondError(w, "failed to query database: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []database.RunRecord{}
	}
	respondJSON(w, runs, http.StatusOK)
}

// getStats handles GET /api/v1/stats?days=
func (h *handlers) getStats(w http.ResponseWriter, r *http.Request) {
	if !h.historyEnabled(w) {
		return
	}
	stats, err := h.db.GetStats(intParam(r.URL.Query().Get("days"), 30, 3650))
	if err != nil {
		respondError(w, "failed to query database: "+err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// getConfig handles GET /api/v1/config
func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg == nil {
		respondError(w, "configuration unavailable", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, h.cfg, http.StatusOK)
}

func (h *handlers) historyEnabled(w http.ResponseWriter) bool {
	if h.db == nil {
		respondError(w, "rewrite history is disabled (set database_path)", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func intParam(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	}, status)
}
