package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/careloop/conditiontrack/internal/application/services"
	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/rs/zerolog/log"
)

// SuggestionHandler exposes the autocomplete pipeline over HTTP. Remote
// failures never fail the request: the response degrades to local results
// with an inline notice.
type SuggestionHandler struct {
	coordinator *services.SuggestionCoordinator
	index       *services.SuggestionIndex
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(coordinator *services.SuggestionCoordinator, index *services.SuggestionIndex) *SuggestionHandler {
	return &SuggestionHandler{
		coordinator: coordinator,
		index:       index,
	}
}

type suggestionsResponse struct {
	Suggestions []entities.Suggestion `json:"suggestions"`
	Notice      string                `json:"notice,omitempty"`
}

// SuggestConditions handles GET /api/suggest/conditions?q=
func (h *SuggestionHandler) SuggestConditions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	suggestions, err := h.coordinator.Query(r.Context(), query)
	response := suggestionsResponse{Suggestions: suggestions}
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("remote suggestions unavailable")
		response.Notice = "remote suggestions unavailable"
	}
	respondWithJSON(w, http.StatusOK, response)
}

// SuggestMedications handles GET /api/suggest/medications?q=&condition=
// With a condition parameter the known medications for that condition are
// returned; otherwise the flat medication list is filtered by q.
func (h *SuggestionHandler) SuggestMedications(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var names []string
	if condition := params.Get("condition"); condition != "" {
		names = h.index.MedicationsForCondition(condition)
	} else {
		names = h.index.FilterMedications(params.Get("q"), 5)
	}

	suggestions := make([]entities.Suggestion, 0, len(names))
	for _, name := range names {
		suggestions = append(suggestions, entities.Suggestion{
			Text:   name,
			Source: entities.SuggestionSourceLocal,
		})
	}
	respondWithJSON(w, http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}

type analyzeMedicationRequest struct {
	Name string `json:"name"`
}

// AnalyzeMedication handles POST /api/suggest/analyze-medication
func (h *SuggestionHandler) AnalyzeMedication(w http.ResponseWriter, r *http.Request) {
	var payload analyzeMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Name == "" {
		respondWithError(w, http.StatusBadRequest, "medication name is required")
		return
	}

	analysis, err := h.coordinator.AnalyzeMedication(r.Context(), payload.Name)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if analysis == nil {
		respondWithError(w, http.StatusServiceUnavailable, "medication analysis is not configured")
		return
	}
	respondWithJSON(w, http.StatusOK, analysis)
}

type suggestTreatmentsRequest struct {
	Condition string `json:"condition"`
}

// SuggestTreatments handles POST /api/suggest/treatments
func (h *SuggestionHandler) SuggestTreatments(w http.ResponseWriter, r *http.Request) {
	var payload suggestTreatmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Condition == "" {
		respondWithError(w, http.StatusBadRequest, "condition name is required")
		return
	}

	treatments, err := h.coordinator.SuggestTreatments(r.Context(), payload.Condition)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{
		"treatments": treatments,
	})
}
