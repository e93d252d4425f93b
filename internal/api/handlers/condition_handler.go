package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/careloop/conditiontrack/internal/application/services"
	"github.com/careloop/conditiontrack/internal/domain/entities"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
)

// ConditionHandler handles condition record CRUD, including the nested
// medication and treatment routes.
type ConditionHandler struct {
	service *services.RecordService
}

// NewConditionHandler creates a new condition handler
func NewConditionHandler(service *services.RecordService) *ConditionHandler {
	return &ConditionHandler{
		service: service,
	}
}

type conditionRequest struct {
	Name string `json:"name"`
}

type treatmentRequest struct {
	Name string `json:"name"`
}

type examResultsRequest struct {
	Results string `json:"results"`
}

// ListConditions handles GET /api/conditions
func (h *ConditionHandler) ListConditions(w http.ResponseWriter, r *http.Request) {
	conditions, err := h.service.ListConditions(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conditions)
}

// GetCondition handles GET /api/conditions/{id}
func (h *ConditionHandler) GetCondition(w http.ResponseWriter, r *http.Request) {
	condition, err := h.service.GetCondition(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, condition)
}

// CreateCondition handles POST /api/conditions
func (h *ConditionHandler) CreateCondition(w http.ResponseWriter, r *http.Request) {
	var payload conditionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	condition, err := h.service.CreateCondition(r.Context(), payload.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, condition)
}

// RenameCondition handles PUT /api/conditions/{id}
func (h *ConditionHandler) RenameCondition(w http.ResponseWriter, r *http.Request) {
	var payload conditionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	condition, err := h.service.RenameCondition(r.Context(), r.PathValue("id"), payload.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, condition)
}

// DeleteCondition handles DELETE /api/conditions/{id}
func (h *ConditionHandler) DeleteCondition(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCondition(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMedication handles POST /api/conditions/{id}/medications
func (h *ConditionHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	var payload services.MedicationInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	medication, err := h.service.AddMedication(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, medication)
}

// UpdateMedication handles PUT /api/conditions/{id}/medications/{medicationID}
func (h *ConditionHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	var payload entities.Medication
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	payload.ID = r.PathValue("medicationID")

	medication, err := h.service.UpdateMedication(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, medication)
}

// AttachExamResults handles PUT /api/conditions/{id}/medications/{medicationID}/exam-results
func (h *ConditionHandler) AttachExamResults(w http.ResponseWriter, r *http.Request) {
	var payload examResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	medication, err := h.service.AttachExamResults(r.Context(), r.PathValue("id"), r.PathValue("medicationID"), payload.Results)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, medication)
}

// RemoveMedication handles DELETE /api/conditions/{id}/medications/{medicationID}
func (h *ConditionHandler) RemoveMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveMedication(r.Context(), r.PathValue("id"), r.PathValue("medicationID")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTreatment handles POST /api/conditions/{id}/treatments
func (h *ConditionHandler) AddTreatment(w http.ResponseWriter, r *http.Request) {
	var payload treatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	treatment, err := h.service.AddTreatment(r.Context(), r.PathValue("id"), payload.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, treatment)
}

// RemoveTreatment handles DELETE /api/conditions/{id}/treatments/{treatmentID}
func (h *ConditionHandler) RemoveTreatment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveTreatment(r.Context(), r.PathValue("id"), r.PathValue("treatmentID")); err != nil {
		respondWithAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the error taxonomy onto HTTP status codes.
func respondWithAppError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case apperrors.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case apperrors.IsExternal(err):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
