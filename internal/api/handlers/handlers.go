// Package handlers exposes the import pipeline's RPC operations over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bankfeed-dev/bankfeed/internal/api/middleware"
	"github.com/bankfeed-dev/bankfeed/internal/domain"
	"github.com/bankfeed-dev/bankfeed/internal/progress"
)

// ImportService is the orchestrator surface the handlers depend on.
type ImportService interface {
	ProcessImport(ctx context.Context, txs []domain.ParsedTransaction, account string) (string, error)
	ExecuteImport(ctx context.Context, txs []domain.ConfirmedTransaction) (string, error)
	GetProgress(sessionID string) *progress.Session
}

// EntityService creates entities in the record store and refreshes the local
// lookup cache.
type EntityService interface {
	CreateEntity(ctx context.Context, name string) (domain.EntityRef, error)
}

// ImportHandler handles import-related endpoints.
type ImportHandler struct {
	svc ImportService
	log zerolog.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc ImportService, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{svc: svc, log: log}
}

// ProcessImport handles POST /api/import/process
func (h *ImportHandler) ProcessImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []domain.ParsedTransaction `json:"transactions"`
		Account      string                     `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID, err := h.svc.ProcessImport(r.Context(), req.Transactions, req.Account)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
	})
}

// ExecuteImport handles POST /api/import/execute
func (h *ImportHandler) ExecuteImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transactions []domain.ConfirmedTransaction `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sessionID, err := h.svc.ExecuteImport(r.Context(), req.Transactions)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
	})
}

// GetProgress handles GET /api/import/progress/:sessionId
func (h *ImportHandler) GetProgress(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess := h.svc.GetProgress(sessionID)
	if sess == nil {
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, sess)
}

// EntitiesHandler handles entity-related endpoints.
type EntitiesHandler struct {
	svc EntityService
	log zerolog.Logger
}

// NewEntitiesHandler creates a new entities handler.
func NewEntitiesHandler(svc EntityService, log zerolog.Logger) *EntitiesHandler {
	return &EntitiesHandler{svc: svc, log: log}
}

// CreateEntity handles POST /api/entities
func (h *EntitiesHandler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	ref, err := h.svc.CreateEntity(r.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("Failed to create entity")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create entity")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, ref)
}
