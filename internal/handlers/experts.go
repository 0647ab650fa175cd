package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/medexperts/internal/app"
	"github.com/shrimpsizemoose/medexperts/internal/models"
	"github.com/shrimpsizemoose/medexperts/internal/zoho"
)

type ExpertHandler struct {
	service *app.Service
}

func NewExpertHandler(service *app.Service) *ExpertHandler {
	return &ExpertHandler{
		service: service,
	}
}

func (h *ExpertHandler) HandleExpertFromDatabase(w http.ResponseWriter, r *http.Request) {
	aphraNumber, ok := h.authorizeLookup(w, r)
	if !ok {
		return
	}

	expert, err := h.service.ExpertFromDatabase(r.Context(), aphraNumber)
	if errors.Is(err, app.ErrExpertNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error.Printf("Database lookup for %s failed: %v", aphraNumber, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, expert)
}

func (h *ExpertHandler) HandleExpertFromCRM(w http.ResponseWriter, r *http.Request) {
	aphraNumber, ok := h.authorizeLookup(w, r)
	if !ok {
		return
	}

	expert, err := h.service.ExpertFromCRM(r.Context(), aphraNumber)
	if errors.Is(err, app.ErrExpertNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Error.Printf("CRM lookup for %s failed: %v", aphraNumber, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Zoho API error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, expert)
}

func (h *ExpertHandler) HandleCRMModules(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Auth.ValidateRequest(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	modules, err := h.service.CRMModules(r.Context())
	if err != nil {
		logger.Error.Printf("Failed to list CRM modules: %v", err)
		var crmErr *zoho.CrmRequestError
		if errors.As(err, &crmErr) {
			writeError(w, http.StatusInternalServerError, "Failed to fetch modules: "+crmErr.Body)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modules": modules,
	})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// authorizeLookup checks the bearer token and the aphra_number parameter,
// writing the error response itself when either is wrong.
func (h *ExpertHandler) authorizeLookup(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := h.service.Auth.ValidateRequest(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}

	lookup := models.ExpertLookup{APHRANumber: r.URL.Query().Get("aphra_number")}
	if lookup.APHRANumber == "" {
		writeError(w, http.StatusBadRequest, "aphra_number parameter is required")
		return "", false
	}
	if err := lookup.Validate(); err != nil {
		logger.Debug.Printf("Rejected aphra_number %q: %v", lookup.APHRANumber, err)
		writeError(w, http.StatusBadRequest, "aphra_number parameter is invalid")
		return "", false
	}

	return lookup.APHRANumber, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
