package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	service "github.com/okian/scalefilter/internal/app"
	"github.com/okian/scalefilter/internal/domain/model"
)

// IngestDependencies defines what POST /ingest needs.
type IngestDependencies interface {
	Ingest(ctx context.Context, batchID string, batch model.Batch) (bool, error)
}

// IngestHandler handles batch submissions.
type IngestHandler struct {
	deps IngestDependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

type ingestRequest struct {
	BatchID  string           `json:"batch_id"`
	Readings []*model.Reading `json:"readings"`
}

type ingestResponse struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	Readings  int    `json:"readings"`
	Duplicate bool   `json:"duplicate"`
}

// HandleIngest handles POST /ingest requests. A request without batch_id
// gets a generated one, which makes it non-idempotent.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "api.ingest"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req ingestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	for i, rd := range req.Readings {
		if rd == nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				WrapKind(op, ErrBadRequest, fmt.Errorf("readings[%d] is null", i)))
			return
		}
	}

	id := strings.TrimSpace(req.BatchID)
	if id == "" {
		id = uuid.NewString()
	}

	batch := model.Batch(req.Readings)
	duplicate, err := h.deps.Ingest(r.Context(), id, batch)
	switch {
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	if duplicate {
		writeJSON(w, http.StatusOK, ingestResponse{Status: "duplicate", BatchID: id, Readings: len(batch), Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Status: "accepted", BatchID: id, Readings: len(batch)})
}
