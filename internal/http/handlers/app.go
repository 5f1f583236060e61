package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"plantshot/internal/domain"
	"plantshot/internal/events"
	"plantshot/internal/infra"
	"plantshot/internal/pipeline"
)

// JobReader loads batch records for status polling.
type JobReader interface {
	GetJob(ctx context.Context, organizationID, jobID string) (*domain.GenerationJob, error)
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Generation *pipeline.Service
	Jobs       JobReader
	DB         Pinger
	// Mirror receives every pipeline event in addition to the requesting
	// client. Optional.
	Mirror events.Handler
	Logger *infra.Logger
}

func NewApp(generation *pipeline.Service, jobs JobReader, db Pinger, mirror events.Handler, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Generation: generation, Jobs: jobs, DB: db, Mirror: mirror, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps domain errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrBatchActive):
		a.error(w, http.StatusConflict, "batch_active", "a generation batch is already running for this organization")
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "quota_exceeded", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		a.Logger.Error().Err(err).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
