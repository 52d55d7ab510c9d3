// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/scalefilter/internal/domain/model"
	"github.com/okian/scalefilter/internal/filter"
)

// Default limits.
const (
	DefaultMaxLimit     = 1000
	defaultReadingLimit = 100
	maxBodyBytes        = 8 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest submits a batch under batchID. duplicate is true when the id
	// was already accepted.
	Ingest(ctx context.Context, batchID string, batch model.Batch) (duplicate bool, err error)

	// Latest returns up to n delivered readings, newest first.
	Latest(ctx context.Context, n int) ([]*model.Reading, error)

	FilterSettings(ctx context.Context) (filter.Settings, error)
	Reconfigure(ctx context.Context, enable *bool, factor *string) (filter.Settings, error)

	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	ingestHandler   *IngestHandler
	readingsHandler *ReadingsHandler
	filterHandler   *FilterHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// limit accepted by GET /readings.
func NewServer(deps Dependencies, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = DefaultMaxLimit
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		ingestHandler:   NewIngestHandler(deps),
		readingsHandler: NewReadingsHandler(deps, maxLimit),
		filterHandler:   NewFilterHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ingest", MetricsMiddleware(s.ingestHandler.HandleIngest, "ingest"))
	mux.HandleFunc("/readings", MetricsMiddleware(s.readingsHandler.HandleGetReadings, "readings"))
	mux.HandleFunc("/filter", MetricsMiddleware(s.filterHandler.HandleFilter, "filter"))
	mux.HandleFunc("/info", MetricsMiddleware(s.filterHandler.HandleInfo, "info"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
