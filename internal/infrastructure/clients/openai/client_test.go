package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careloop/conditiontrack/pkg/config"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL,
		// Disable the limiter so tests never wait on the refill ticker
		RateLimitRPM: -1,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, server
}

func chatReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func TestCompleteConditionName_ParsesArray(t *testing.T) {
	client, _ := newTestClient(t, chatReply(`["Diabetes", "Diabetes insipidus"]`))

	names, err := client.CompleteConditionName(context.Background(), "Diab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "Diabetes" {
		t.Errorf("unexpected completions: %v", names)
	}
}

func TestCompleteConditionName_StripsCodeFences(t *testing.T) {
	client, _ := newTestClient(t, chatReply("```json\n[\"Gripe\"]\n```"))

	names, err := client.CompleteConditionName(context.Background(), "Gri")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "Gripe" {
		t.Errorf("unexpected completions: %v", names)
	}
}

func TestCompleteConditionName_UnparseableReplyYieldsZeroSuggestions(t *testing.T) {
	client, _ := newTestClient(t, chatReply("I could not think of any conditions."))

	names, err := client.CompleteConditionName(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("a parse failure must not be an error, got: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected zero suggestions, got %v", names)
	}
}

func TestCompleteConditionName_WrapsStatusFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.CompleteConditionName(context.Background(), "Diab")
	if !apperrors.IsExternal(err) {
		t.Fatalf("expected an external error, got: %v", err)
	}
}

func TestCompleteConditionName_SendsChatCompletionShape(t *testing.T) {
	var got chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		chatReply(`[]`)(w, r)
	})

	if _, err := client.CompleteConditionName(context.Background(), "Asm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %s", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestAnalyzeMedication_ParsesSchema(t *testing.T) {
	client, _ := newTestClient(t, chatReply(`{"common":["nausea","headache"],"rare":["rash"]}`))

	analysis, err := client.AnalyzeMedication(context.Background(), "Salbutamol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Medication != "Salbutamol" {
		t.Errorf("unexpected medication: %s", analysis.Medication)
	}
	if len(analysis.Common) != 2 || len(analysis.Rare) != 1 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if analysis.Raw != "" {
		t.Errorf("expected empty raw text, got %q", analysis.Raw)
	}
}

func TestAnalyzeMedication_FreeTextKeptAsRaw(t *testing.T) {
	client, _ := newTestClient(t, chatReply("Salbutamol may cause tremor and palpitations."))

	analysis, err := client.AnalyzeMedication(context.Background(), "Salbutamol")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(analysis.Common) != 0 || len(analysis.Rare) != 0 {
		t.Errorf("expected no structured side effects, got %+v", analysis)
	}
	if analysis.Raw == "" {
		t.Error("expected the free-text reply preserved as raw")
	}
}

func TestSuggestTreatments_ParsesArray(t *testing.T) {
	client, _ := newTestClient(t, chatReply(`["Inhaled corticosteroids", "Bronchodilators"]`))

	treatments, err := client.SuggestTreatments(context.Background(), "Asma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(treatments) != 2 {
		t.Errorf("unexpected treatments: %v", treatments)
	}
}

func TestParseStringArray_BracketedSubstring(t *testing.T) {
	names, ok := parseStringArray(`Here you go: ["Asma", "Asbestosis"] hope that helps`)
	if !ok {
		t.Fatal("expected the bracketed substring to parse")
	}
	if len(names) != 2 || names[1] != "Asbestosis" {
		t.Errorf("unexpected result: %v", names)
	}
}

func TestParseStringArray_DropsBlankEntries(t *testing.T) {
	names, ok := parseStringArray(`["Asma", "  ", ""]`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(names) != 1 {
		t.Errorf("expected blank entries dropped, got %v", names)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(&config.OpenAIConfig{}); err == nil {
		t.Fatal("expected an error without an api key")
	}
}
