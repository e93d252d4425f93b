package services

import (
	"encoding/json"
	"os"
	"strings"
)

// DatasetEntry is one row of the static condition→medications reference
// table the local index is built from.
type DatasetEntry struct {
	Condition   string   `json:"condition"`
	Medications []string `json:"medications"`
}

// SuggestionIndex is the local suggestion source: a static reference dataset
// filtered synchronously while the user types. It never does fuzzy matching
// and never fails a lookup; a miss is an empty result.
type SuggestionIndex struct {
	conditionNames  []string            // source order
	medicationNames []string            // flat, deduplicated, source order
	medsByCondition map[string][]string // lowercase condition → medications
}

// NewSuggestionIndex loads the reference dataset from a JSON file.
func NewSuggestionIndex(path string) (*SuggestionIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []DatasetEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return NewSuggestionIndexFromEntries(entries), nil
}

// NewSuggestionIndexFromEntries builds the index from an in-memory dataset.
func NewSuggestionIndexFromEntries(entries []DatasetEntry) *SuggestionIndex {
	idx := &SuggestionIndex{
		medsByCondition: make(map[string][]string, len(entries)),
	}

	seenMeds := make(map[string]struct{})
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Condition)
		if name == "" {
			continue
		}
		idx.conditionNames = append(idx.conditionNames, name)
		idx.medsByCondition[strings.ToLower(name)] = entry.Medications

		for _, med := range entry.Medications {
			med = strings.TrimSpace(med)
			if med == "" {
				continue
			}
			key := strings.ToLower(med)
			if _, ok := seenMeds[key]; ok {
				continue
			}
			seenMeds[key] = struct{}{}
			idx.medicationNames = append(idx.medicationNames, med)
		}
	}
	return idx
}

// FilterConditions returns up to limit condition names containing the query,
// case-insensitively, in source-list order.
func (idx *SuggestionIndex) FilterConditions(query string, limit int) []string {
	return filterNames(idx.conditionNames, query, limit)
}

// FilterMedications returns up to limit medication names containing the
// query, case-insensitively, in source-list order.
func (idx *SuggestionIndex) FilterMedications(query string, limit int) []string {
	return filterNames(idx.medicationNames, query, limit)
}

// MedicationsForCondition looks up the medications known for a condition by
// exact case-insensitive name. A miss returns an empty slice.
func (idx *SuggestionIndex) MedicationsForCondition(conditionName string) []string {
	meds := idx.medsByCondition[strings.ToLower(strings.TrimSpace(conditionName))]
	out := make([]string, len(meds))
	copy(out, meds)
	return out
}

func filterNames(names []string, query string, limit int) []string {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return []string{}
	}

	matches := []string{}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			matches = append(matches, name)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches
}
