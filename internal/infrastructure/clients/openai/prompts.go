package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careloop/conditiontrack/internal/domain/entities"
)

const completeConditionSystemPrompt = `You are an autocomplete assistant for a personal medical condition tracker. The user is typing the name of a medical condition. Return ONLY a valid JSON array of strings with up to 5 likely completions of what they are typing, most common conditions first. Use plain condition names in the user's language, no codes, no explanations.`

const analyzeMedicationSystemPrompt = `You are a clinical content assistant for a personal medical condition tracker. Given a medication name, return ONLY valid JSON with this schema:
{
  "common": string[] (2-6 frequent side effects, simple language),
  "rare": string[] (2-6 rare but notable side effects)
}
Keep language simple and non-alarmist. Do not include medical advice or dosage instructions.`

const suggestTreatmentsSystemPrompt = `You are a clinical content assistant for a personal medical condition tracker. Given a condition name, return ONLY a valid JSON array of strings with 3-6 commonly used treatments or medication classes for it, simple language, no explanations. Do not include medical advice.`

func buildCompleteConditionUserPrompt(partial string) string {
	return fmt.Sprintf("Partial condition name: %s", partial)
}

func buildAnalyzeMedicationUserPrompt(name string) string {
	return fmt.Sprintf("Medication name: %s", name)
}

func buildSuggestTreatmentsUserPrompt(conditionName string) string {
	return fmt.Sprintf("Condition name: %s", conditionName)
}

// parseStringArray extracts a JSON string array from model output. Models
// occasionally wrap the array in prose, so a bracketed substring is tried
// before giving up. Empty and duplicate-whitespace entries are dropped.
func parseStringArray(content string) ([]string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, false
	}

	var items []string
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		start := strings.Index(trimmed, "[")
		end := strings.LastIndex(trimmed, "]")
		if start < 0 || end <= start {
			return nil, false
		}
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &items); err != nil {
			return nil, false
		}
	}

	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned, true
}

type analysisPayload struct {
	Common []string `json:"common"`
	Rare   []string `json:"rare"`
}

// parseAnalysisPayload decodes the side-effect schema. Free-text replies are
// kept in the Raw field instead of being treated as failures.
func parseAnalysisPayload(content string) *entities.MedicationAnalysis {
	trimmed := strings.TrimSpace(content)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && (len(payload.Common) > 0 || len(payload.Rare) > 0) {
		return &entities.MedicationAnalysis{
			Common: payload.Common,
			Rare:   payload.Rare,
		}
	}

	return &entities.MedicationAnalysis{Raw: trimmed}
}
