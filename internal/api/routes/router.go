package routes

import (
	"net/http"

	"github.com/careloop/conditiontrack/internal/api/handlers"
	"github.com/careloop/conditiontrack/internal/api/middleware"
	"github.com/careloop/conditiontrack/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	conditionHandler  *handlers.ConditionHandler
	suggestionHandler *handlers.SuggestionHandler
	sseHandler        *handlers.SSEHandler
	metrics           *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	conditionHandler *handlers.ConditionHandler,
	suggestionHandler *handlers.SuggestionHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		conditionHandler:  conditionHandler,
		suggestionHandler: suggestionHandler,
		sseHandler:        sseHandler,
		metrics:           metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Condition record endpoints
	r.mux.HandleFunc("GET /api/conditions", r.conditionHandler.ListConditions)
	r.mux.HandleFunc("POST /api/conditions", r.conditionHandler.CreateCondition)
	r.mux.HandleFunc("GET /api/conditions/{id}", r.conditionHandler.GetCondition)
	r.mux.HandleFunc("PUT /api/conditions/{id}", r.conditionHandler.RenameCondition)
	r.mux.HandleFunc("DELETE /api/conditions/{id}", r.conditionHandler.DeleteCondition)

	// Nested medication endpoints
	r.mux.HandleFunc("POST /api/conditions/{id}/medications", r.conditionHandler.AddMedication)
	r.mux.HandleFunc("PUT /api/conditions/{id}/medications/{medicationID}", r.conditionHandler.UpdateMedication)
	r.mux.HandleFunc("PUT /api/conditions/{id}/medications/{medicationID}/exam-results", r.conditionHandler.AttachExamResults)
	r.mux.HandleFunc("DELETE /api/conditions/{id}/medications/{medicationID}", r.conditionHandler.RemoveMedication)

	// Nested treatment endpoints
	r.mux.HandleFunc("POST /api/conditions/{id}/treatments", r.conditionHandler.AddTreatment)
	r.mux.HandleFunc("DELETE /api/conditions/{id}/treatments/{treatmentID}", r.conditionHandler.RemoveTreatment)

	// Suggestion endpoints
	r.mux.HandleFunc("GET /api/suggest/conditions", r.suggestionHandler.SuggestConditions)
	r.mux.HandleFunc("GET /api/suggest/medications", r.suggestionHandler.SuggestMedications)
	r.mux.HandleFunc("POST /api/suggest/analyze-medication", r.suggestionHandler.AnalyzeMedication)
	r.mux.HandleFunc("POST /api/suggest/treatments", r.suggestionHandler.SuggestTreatments)

	// Record event stream
	r.mux.HandleFunc("GET /api/stream/records", r.sseHandler.StreamRecordUpdates)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so every response gets the headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
