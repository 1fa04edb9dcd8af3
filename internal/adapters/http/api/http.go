// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/internal/domain/record"
)

// Dependencies bundles what the HTTP handlers need from the service layer.
// Using an interface keeps the handler layer loosely coupled to the
// implementations in other packages.
type Dependencies interface {
	// Idempotency tracking for ingest.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)

	// Ingest enqueues a dataset for async normalization. Returns the
	// assigned ID and false on backpressure.
	Ingest(ctx context.Context, ds model.Dataset) (string, bool)

	// Synchronous normalization.
	NormalizeComp(ctx context.Context, rec record.Comp, tag string) (record.Comp, error)
	NormalizeRaw(ctx context.Context, rec record.Raw, tag string) (record.Raw, error)

	// Reads over the normalized dataset store.
	Dataset(ctx context.Context, id string) (model.Dataset, error)
	Datasets(ctx context.Context, limit int) ([]model.Dataset, error)
}

// Server wires HTTP routes for the normalization API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	normalizeHandler *NormalizeHandler
	datasetsHandler  *DatasetsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		normalizeHandler: NewNormalizeHandler(deps),
		datasetsHandler:  NewDatasetsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/normalize", MetricsMiddleware(s.normalizeHandler.HandleNormalize, "normalize"))
	mux.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandleDatasets, "datasets"))
	mux.HandleFunc("/datasets/", MetricsMiddleware(s.datasetsHandler.HandleGetDataset, "dataset"))
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
