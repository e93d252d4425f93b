package entities

import "time"

// Condition represents a recorded medical condition with the medications and
// treatments attached to it. Medications and treatments are owned exclusively
// by their condition; deleting the condition deletes them.
type Condition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Medications []Medication `json:"medications"`
	Treatments  []Treatment  `json:"treatments"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Medication represents a medication attached to a condition
type Medication struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Dosage      string `json:"dosage,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	ExamResults string `json:"exam_results,omitempty"`
}

// Treatment represents a non-medication treatment attached to a condition
type Treatment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clone returns a deep copy of the condition. Store adapters hand out clones
// so callers can never alias the backing document.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Medications = make([]Medication, len(c.Medications))
	copy(clone.Medications, c.Medications)
	clone.Treatments = make([]Treatment, len(c.Treatments))
	copy(clone.Treatments, c.Treatments)
	return &clone
}

// FindMedication returns the index of the medication with the given id, or -1.
func (c *Condition) FindMedication(id string) int {
	for i := range c.Medications {
		if c.Medications[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTreatment returns the index of the treatment with the given id, or -1.
func (c *Condition) FindTreatment(id string) int {
	for i := range c.Treatments {
		if c.Treatments[i].ID == id {
			return i
		}
	}
	return -1
}
