package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shpitdev/crm-enricher/internal/enrich"
)

// Enrichment is the caller-facing service; *enrich.Service implements it.
type Enrichment interface {
	Start(ctx context.Context, id int64, opts enrich.StartOptions) (enrich.Result, error)
	Status(ctx context.Context, id int64) (enrich.Result, error)
}

// Dispatcher hands a started company to a background run.
type Dispatcher interface {
	Dispatch(ctx context.Context, id int64)
}

// Response is the body of every enrichment endpoint.
type Response struct {
	Success bool         `json:"success"`
	Status  string       `json:"status,omitempty"`
	Data    *enrich.Data `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type enrichmentHandler struct {
	svc        Enrichment
	dispatcher Dispatcher
	logger     *slog.Logger
}

// Routes mounts the enrichment endpoints:
//
//	POST /companies/{id}/enrichment[?force=true]
//	GET  /companies/{id}/enrichment
func Routes(svc Enrichment, dispatcher Dispatcher, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := enrichmentHandler{svc: svc, dispatcher: dispatcher, logger: logger}

	r := chi.NewRouter()
	r.Post("/companies/{id}/enrichment", h.start)
	r.Get("/companies/{id}/enrichment", h.status)
	return r
}

func (h enrichmentHandler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Error: "invalid_force"})
			return
		}
		force = b
	}

	res, err := h.svc.Start(r.Context(), id, enrich.StartOptions{Force: force})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Started {
		h.dispatcher.Dispatch(r.Context(), id)
		writeJSON(w, http.StatusAccepted, toResponse(res))
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (h enrichmentHandler) status(w http.ResponseWriter, r *http.Request) {
	id, ok := companyID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Status(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func companyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid_id"})
		return 0, false
	}
	return id, true
}

func toResponse(res enrich.Result) Response {
	return Response{Success: true, Status: string(res.Status), Data: res.Data}
}

func (h enrichmentHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, enrich.ErrNotFound):
		code, msg = http.StatusNotFound, "not_found"
	case errors.Is(err, enrich.ErrCredentialMissing):
		code, msg = http.StatusServiceUnavailable, "credential_missing"
	case errors.Is(err, enrich.ErrAlreadyProcessing):
		code, msg = http.StatusConflict, "already_processing"
	default:
		h.logger.ErrorContext(r.Context(), "enrichment request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, Response{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
