package entities

// SuggestionSource identifies where a suggestion came from
type SuggestionSource string

const (
	// SuggestionSourceLocal marks suggestions from the in-memory reference dataset
	SuggestionSourceLocal SuggestionSource = "local"

	// SuggestionSourceRemote marks suggestions from the language-model endpoint
	SuggestionSourceRemote SuggestionSource = "remote"
)

// Suggestion is an ephemeral autocomplete candidate. Suggestions are never
// persisted; they live only for the duration of an input session.
type Suggestion struct {
	Text   string           `json:"text"`
	Source SuggestionSource `json:"source"`
}

// MedicationAnalysis holds the side-effect analysis returned by the remote
// endpoint for a medication. When the model reply is not valid JSON the raw
// text is preserved instead of being discarded.
type MedicationAnalysis struct {
	Medication string   `json:"medication"`
	Common     []string `json:"common"`
	Rare       []string `json:"rare"`
	Raw        string   `json:"raw,omitempty"`
}
