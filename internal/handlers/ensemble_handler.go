package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/services/ensemble"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 200
)

type EnsembleHandler struct {
	service interfaces.EnsembleService
	logger  arbor.ILogger
}

func NewEnsembleHandler(service interfaces.EnsembleService, logger arbor.ILogger) *EnsembleHandler {
	return &EnsembleHandler{
		service: service,
		logger:  logger,
	}
}

// EnsemblesHandler handles /api/ensembles
// GET lists ensembles, POST creates one
func (h *EnsembleHandler) EnsemblesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listEnsembles(w, r)
	case http.MethodPost:
		h.createEnsemble(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// EnsembleRoutesHandler dispatches /api/ensembles/{id}[/analyze|/results]
func (h *EnsembleHandler) EnsembleRoutesHandler(w http.ResponseWriter, r *http.Request) {
	parts := SplitPath(r.URL.Path, "/api/ensembles/")
	if len(parts) == 0 {
		WriteError(w, http.StatusBadRequest, "Ensemble ID is required")
		return
	}
	ensembleID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getEnsemble(w, r, ensembleID)
		case http.MethodDelete:
			h.deleteEnsemble(w, r, ensembleID)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "analyze":
			if RequireMethod(w, r, http.MethodPost) {
				h.analyze(w, r, ensembleID)
			}
			return
		case "results":
			if RequireMethod(w, r, http.MethodGet) {
				h.listResults(w, r, ensembleID)
			}
			return
		}
	}

	WriteError(w, http.StatusNotFound, "Not found")
}

// ResultHandler handles GET /api/results/{id}
func (h *EnsembleHandler) ResultHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	parts := SplitPath(r.URL.Path, "/api/results/")
	if len(parts) != 1 {
		WriteError(w, http.StatusBadRequest, "Result ID is required")
		return
	}

	result, err := h.service.GetResult(r.Context(), parts[0])
	if err != nil {
		h.writeServiceError(w, err, "Failed to get result")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (h *EnsembleHandler) listEnsembles(w http.ResponseWriter, r *http.Request) {
	ensembles, err := h.service.ListEnsembles(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Failed to list ensembles")
		return
	}
	if ensembles == nil {
		ensembles = []*models.EnsembleConfiguration{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ensembles": ensembles,
		"count":     len(ensembles),
	})
}

func (h *EnsembleHandler) createEnsemble(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEnsembleRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.service.CreateEnsemble(r.Context(), &req)
	if err != nil {
		WriteJSON(w, statusFor(err), resp)
		return
	}

	h.logger.Info().Str("ensemble_id", resp.EnsembleID).Int("agents", resp.AgentsCreated).Msg("Ensemble created via API")
	WriteJSON(w, http.StatusCreated, resp)
}

func (h *EnsembleHandler) getEnsemble(w http.ResponseWriter, r *http.Request, ensembleID string) {
	config, err := h.service.GetEnsemble(r.Context(), ensembleID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to get ensemble")
		return
	}
	WriteJSON(w, http.StatusOK, config)
}

func (h *EnsembleHandler) deleteEnsemble(w http.ResponseWriter, r *http.Request, ensembleID string) {
	if err := h.service.DeleteEnsemble(r.Context(), ensembleID); err != nil {
		h.writeServiceError(w, err, "Failed to delete ensemble")
		return
	}
	WriteSuccess(w, "Ensemble deleted")
}

func (h *EnsembleHandler) analyze(w http.ResponseWriter, r *http.Request, ensembleID string) {
	var req models.AnalyzeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteJSON(w, http.StatusBadRequest, models.AnalyzeResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.AnalyzePortfolio(r.Context(), ensembleID, &req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("ensemble_id", ensembleID).Msg("Analysis failed")
		}
		WriteJSON(w, status, models.AnalyzeResponse{Error: err.Error()})
		return
	}

	WriteJSON(w, http.StatusOK, models.AnalyzeResponse{Success: true, Result: result})
}

func (h *EnsembleHandler) listResults(w http.ResponseWriter, r *http.Request, ensembleID string) {
	if _, err := h.service.GetEnsemble(r.Context(), ensembleID); err != nil {
		h.writeServiceError(w, err, "Failed to get ensemble")
		return
	}

	limit := GetLimitParam(r, defaultResultLimit, maxResultLimit)
	results, err := h.service.ListResults(r.Context(), ensembleID, limit)
	if err != nil {
		h.writeServiceError(w, err, "Failed to list results")
		return
	}
	if results == nil {
		results = []*models.EnsembleResult{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ensemble_id": ensembleID,
		"results":     results,
		"count":       len(results),
	})
}

func (h *EnsembleHandler) writeServiceError(w http.ResponseWriter, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg(message)
		WriteError(w, status, message)
		return
	}
	WriteError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ensemble.ErrInvalidRequest), errors.Is(err, ensemble.ErrNoAgents):
		return http.StatusBadRequest
	case errors.Is(err, ensemble.ErrEnsembleNotFound), errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ensemble.ErrEnsembleNotReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
