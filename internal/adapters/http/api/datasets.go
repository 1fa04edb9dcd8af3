// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/internal/domain/record"
)

// ingestRequest is the body of POST /datasets.
type ingestRequest struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Kind    string          `json:"kind"`
	Version string          `json:"version,omitempty"`
	Record  json.RawMessage `json:"record"`
}

func (r ingestRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Kind) == "":
		return errors.New("missing kind")
	case len(r.Record) == 0:
		return errors.New("missing record")
	}
	if !model.Kind(r.Kind).Valid() {
		return errors.New("kind must be raw or comp")
	}
	return nil
}

type ackResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// datasetSummary is the list shape; full records are only returned by the
// per-dataset endpoint.
type datasetSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Kind       string    `json:"kind"`
	Version    string    `json:"version"`
	ReceivedAt time.Time `json:"received_at"`
}

// datasetResponse is the full per-dataset shape.
type datasetResponse struct {
	datasetSummary
	Record any `json:"record"`
}

// DatasetsHandler handles dataset ingest and reads.
type DatasetsHandler struct {
	deps Dependencies
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps Dependencies) *DatasetsHandler {
	return &DatasetsHandler{deps: deps}
}

// HandleDatasets handles POST /datasets (ingest) and GET /datasets (list).
func (h *DatasetsHandler) HandleDatasets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleIngest(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *DatasetsHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest_dataset"

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ds := model.Dataset{
		ID:      req.ID,
		Name:    req.Name,
		Kind:    model.Kind(req.Kind),
		Version: req.Version,
	}
	switch ds.Kind {
	case model.KindComp:
		var rec record.Comp
		if err := json.Unmarshal(req.Record, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		ds.Comp = &rec
	case model.KindRaw:
		var rec record.Raw
		if err := json.Unmarshal(req.Record, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		ds.Raw = &rec
	}

	// Idempotency applies to client-supplied IDs; generated IDs are
	// unique by construction.
	if req.ID != "" && h.deps.SeenAndRecord(r.Context(), req.ID) {
		writeJSON(w, http.StatusOK, ackResponse{ID: req.ID, Status: "duplicate", Duplicate: true})
		return
	}

	id, ok := h.deps.Ingest(r.Context(), ds)
	if !ok {
		if req.ID != "" {
			// Roll back the seen mark so the client can retry.
			h.deps.Unrecord(r.Context(), req.ID)
		}
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{ID: id, Status: "accepted"})
}

func (h *DatasetsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_datasets"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	datasets, err := h.deps.Datasets(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	out := make([]datasetSummary, len(datasets))
	for i, ds := range datasets {
		out[i] = summarize(ds)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetDataset handles GET /datasets/{id} requests.
func (h *DatasetsHandler) HandleGetDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/datasets/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	ds, err := h.deps.Dataset(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := datasetResponse{datasetSummary: summarize(ds)}
	switch ds.Kind {
	case model.KindComp:
		resp.Record = ds.Comp
	case model.KindRaw:
		resp.Record = ds.Raw
	}
	writeJSON(w, http.StatusOK, resp)
}

func summarize(ds model.Dataset) datasetSummary {
	return datasetSummary{
		ID:         ds.ID,
		Name:       ds.Name,
		Kind:       string(ds.Kind),
		Version:    ds.Version,
		ReceivedAt: ds.ReceivedAt,
	}
}

// isNotFound translates upstream not-found errors without coupling the
// handler layer to the repository package.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
