package api

import (
	"log/slog"
	"net/http"
	"strconv"
)

// Handler holds API route handlers.
type Handler struct {
	svc Service
}

// NewHandler creates a new Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent scheduler and manual runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	runs, err := h.svc.Runs(limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// Check handles GET /api/check.
//
//	@Summary		Run the read-only consistency check for today
//	@Tags			check
//	@Produce		json
//	@Success		200	{object}	CheckReport
//	@Security		BearerAuth
//	@Router			/check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CheckNow(r.Context()))
}

// Schema handles GET /api/schema.
//
//	@Summary		Show the task database columns and their resolved roles
//	@Tags			schema
//	@Produce		json
//	@Success		200	{object}	SchemaReport
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/schema [get]
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Schema(r.Context())
	if err != nil {
		slog.Error("schema lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
