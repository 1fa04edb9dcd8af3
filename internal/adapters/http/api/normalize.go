// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/senselab/datakit/internal/domain/model"
	"github.com/senselab/datakit/internal/domain/record"
	"github.com/senselab/datakit/internal/domain/version"
)

// normalizeRequest is the body of POST /normalize. Record is decoded as a
// raw or comp record depending on Kind.
type normalizeRequest struct {
	Kind    string          `json:"kind"`
	Version string          `json:"version,omitempty"`
	Record  json.RawMessage `json:"record"`
}

func (r normalizeRequest) validate() error {
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

// normalizeResponse echoes the kind and the normalized record.
type normalizeResponse struct {
	Kind    string `json:"kind"`
	Version string `json:"version"`
	Record  any    `json:"record"`
}

// NormalizeHandler handles synchronous normalization requests.
type NormalizeHandler struct {
	deps Dependencies
}

// NewNormalizeHandler creates a new normalize handler.
func NewNormalizeHandler(deps Dependencies) *NormalizeHandler {
	return &NormalizeHandler{deps: deps}
}

// HandleNormalize handles POST /normalize requests.
func (h *NormalizeHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.normalize"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req normalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var (
		normalized any
		err        error
	)
	switch model.Kind(req.Kind) {
	case model.KindComp:
		var rec record.Comp
		if err := json.Unmarshal(req.Record, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		normalized, err = h.deps.NormalizeComp(r.Context(), rec, req.Version)
	case model.KindRaw:
		var rec record.Raw
		if err := json.Unmarshal(req.Record, &rec); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		normalized, err = h.deps.NormalizeRaw(r.Context(), rec, req.Version)
	}
	if err != nil {
		status, code := normalizationStatus(err)
		writeError(w, status, code, err)
		return
	}

	tag := req.Version
	if tag == "" {
		tag = version.LatestTag
	}
	writeJSON(w, http.StatusOK, normalizeResponse{
		Kind:    req.Kind,
		Version: tag,
		Record:  normalized,
	})
}

// normalizationStatus maps domain errors onto HTTP status codes.
func normalizationStatus(err error) (int, string) {
	switch {
	case errors.Is(err, version.ErrUnsupported):
		return http.StatusBadRequest, "unsupported_version"
	case errors.Is(err, record.ErrMissingField):
		return http.StatusBadRequest, "missing_field"
	case errors.Is(err, record.ErrMalformed):
		return http.StatusBadRequest, "malformed_record"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
