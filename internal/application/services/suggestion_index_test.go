package services

import (
	"path/filepath"
	"runtime"
	"testing"
)

func testDataset() []DatasetEntry {
	return []DatasetEntry{
		{Condition: "Diabetes", Medications: []string{"Metformina", "Insulina"}},
		{Condition: "Diabrotica", Medications: []string{}},
		{Condition: "Gripe", Medications: []string{"Paracetamol", "Ibuprofeno"}},
		{Condition: "Asma", Medications: []string{"Salbutamol", "Budesonida"}},
		{Condition: "Hipertensión", Medications: []string{"Losartán", "Enalapril"}},
	}
}

func TestFilterConditions_SubstringCaseInsensitive(t *testing.T) {
	idx := NewSuggestionIndexFromEntries(testDataset())

	got := idx.FilterConditions("Diab", 5)
	if len(got) != 2 || got[0] != "Diabetes" || got[1] != "Diabrotica" {
		t.Errorf("unexpected matches: %v", got)
	}

	if got := idx.FilterConditions("diab", 5); len(got) != 2 {
		t.Errorf("lowercase query should match, got %v", got)
	}
	if got := idx.FilterConditions("IPE", 5); len(got) != 1 || got[0] != "Gripe" {
		t.Errorf("inner substring should match, got %v", got)
	}
}

func TestFilterConditions_RespectsLimitAndSourceOrder(t *testing.T) {
	idx := NewSuggestionIndexFromEntries(testDataset())

	got := idx.FilterConditions("Diab", 1)
	if len(got) != 1 || got[0] != "Diabetes" {
		t.Errorf("expected first source-order match only, got %v", got)
	}
}

func TestFilterConditions_EmptyQueryReturnsNothing(t *testing.T) {
	idx := NewSuggestionIndexFromEntries(testDataset())

	if got := idx.FilterConditions("   ", 5); len(got) != 0 {
		t.Errorf("expected no matches for blank query, got %v", got)
	}
}

func TestFilterMedications_FlatListDeduplicated(t *testing.T) {
	entries := append(testDataset(), DatasetEntry{
		Condition:   "Resfriado",
		Medications: []string{"Paracetamol"},
	})
	idx := NewSuggestionIndexFromEntries(entries)

	got := idx.FilterMedications("paracetamol", 5)
	if len(got) != 1 {
		t.Errorf("expected deduplicated medication list, got %v", got)
	}
}

func TestMedicationsForCondition_ExactLookup(t *testing.T) {
	idx := NewSuggestionIndexFromEntries(testDataset())

	got := idx.MedicationsForCondition("asma")
	if len(got) != 2 || got[0] != "Salbutamol" {
		t.Errorf("unexpected medications: %v", got)
	}
}

func TestMedicationsForCondition_MissIsEmptyNotError(t *testing.T) {
	idx := NewSuggestionIndexFromEntries(testDataset())

	if got := idx.MedicationsForCondition("Asm"); len(got) != 0 {
		t.Errorf("prefix must not fuzzy-match, got %v", got)
	}
	if got := idx.MedicationsForCondition("unknown"); got == nil || len(got) != 0 {
		t.Errorf("miss should be an empty slice, got %v", got)
	}
}

func TestNewSuggestionIndex_LoadsShippedDataset(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(file), "..", "..", "..", "config", "condition_medications.json")

	idx, err := NewSuggestionIndex(path)
	if err != nil {
		t.Fatalf("failed to load dataset: %v", err)
	}
	if len(idx.FilterConditions("Gri", 5)) == 0 {
		t.Error("shipped dataset should contain Gripe")
	}
	if len(idx.MedicationsForCondition("Asma")) == 0 {
		t.Error("shipped dataset should map Asma to medications")
	}
}
