package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/scalefilter/internal/app"
	"github.com/okian/scalefilter/internal/domain/model"
)

// ReadingsDependencies defines the interface for reading queries.
type ReadingsDependencies interface {
	Latest(ctx context.Context, n int) ([]*model.Reading, error)
}

// ReadingsHandler handles reading queries.
type ReadingsHandler struct {
	deps     ReadingsDependencies
	maxLimit int
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(deps ReadingsDependencies, maxLimit int) *ReadingsHandler {
	return &ReadingsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetReadings handles GET /readings?limit=N requests.
func (h *ReadingsHandler) HandleGetReadings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_readings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	n := defaultReadingLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	readings, err := h.deps.Latest(r.Context(), n)
	switch {
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if readings == nil {
		readings = []*model.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}
