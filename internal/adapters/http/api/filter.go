package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/scalefilter/internal/app"
	"github.com/okian/scalefilter/internal/filter"
)

// FilterDependencies reads and updates the filter configuration.
type FilterDependencies interface {
	FilterSettings(ctx context.Context) (filter.Settings, error)
	Reconfigure(ctx context.Context, enable *bool, factor *string) (filter.Settings, error)
}

// FilterHandler serves the filter configuration.
type FilterHandler struct {
	deps FilterDependencies
}

// NewFilterHandler creates a new filter handler.
func NewFilterHandler(deps FilterDependencies) *FilterHandler {
	return &FilterHandler{deps: deps}
}

// filterUpdate is the PUT /filter body. factor may be sent as a JSON string
// or number; either way its text is handed to the filter unchanged.
type filterUpdate struct {
	Enable *bool           `json:"enable"`
	Factor json.RawMessage `json:"factor"`
}

func (u filterUpdate) factorText() (*string, error) {
	raw := bytes.TrimSpace(u.Factor)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, errors.New("factor must be a string or a number")
	}
	s = n.String()
	return &s, nil
}

// HandleFilter handles GET and PUT /filter.
func (h *FilterHandler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *FilterHandler) get(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_filter"
	s, err := h.deps.FilterSettings(r.Context())
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *FilterHandler) put(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_filter"
	var req filterUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	factor, err := req.factorText()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	s, err := h.deps.Reconfigure(r.Context(), req.Enable, factor)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleInfo handles GET /info with the plugin information.
func (h *FilterHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, filter.PluginInfo())
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, filter.ErrShutdown):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	case errors.Is(err, filter.ErrInvalidValue), errors.Is(err, filter.ErrUnknownItem):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
