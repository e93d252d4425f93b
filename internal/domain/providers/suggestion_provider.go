package providers

import (
	"context"

	"github.com/careloop/conditiontrack/internal/domain/entities"
)

// SuggestionProvider defines the remote language-model capability used for
// autocomplete and analysis. Implementations issue exactly one outbound call
// per invocation, never retry, and never cache; retry is the caller's choice
// and caching belongs to the suggestion coordinator.
type SuggestionProvider interface {
	// CompleteConditionName returns condition-name completions for a partial
	// input. A reply the model formats badly yields zero suggestions, not an
	// error; errors are reserved for transport and status failures.
	CompleteConditionName(ctx context.Context, partial string) ([]string, error)

	// AnalyzeMedication returns a side-effect analysis for a medication name
	AnalyzeMedication(ctx context.Context, name string) (*entities.MedicationAnalysis, error)

	// SuggestTreatments returns treatment suggestions for a condition name
	SuggestTreatments(ctx context.Context, conditionName string) ([]string, error)
}
