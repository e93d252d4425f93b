package store

import (
	"context"
	"sync"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
)

// MemoryAdapter implements ConditionRepository entirely in memory. Used for
// tests and for running the service without persistence.
type MemoryAdapter struct {
	mu         sync.RWMutex
	conditions []*entities.Condition
}

// NewMemoryAdapter creates an empty in-memory condition store
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

func (a *MemoryAdapter) find(id string) (int, *entities.Condition) {
	for i, c := range a.conditions {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

// List retrieves every condition in creation order
func (a *MemoryAdapter) List(ctx context.Context) ([]*entities.Condition, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	conditions := make([]*entities.Condition, 0, len(a.conditions))
	for _, c := range a.conditions {
		conditions = append(conditions, c.Clone())
	}
	return conditions, nil
}

// GetByID retrieves a condition by ID
func (a *MemoryAdapter) GetByID(ctx context.Context, id string) (*entities.Condition, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, c := a.find(id); c != nil {
		return c.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError("condition not found: " + id)
}

// Create creates a new condition
func (a *MemoryAdapter) Create(ctx context.Context, condition *entities.Condition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conditions = append(a.conditions, condition.Clone())
	return nil
}

// Update replaces a condition's own fields, keeping its nested entities
func (a *MemoryAdapter) Update(ctx context.Context, condition *entities.Condition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, existing := a.find(condition.ID)
	if existing == nil {
		return apperrors.NewNotFoundError("condition not found: " + condition.ID)
	}

	updated := existing.Clone()
	updated.Name = condition.Name
	a.conditions[i] = updated
	return nil
}

// Delete deletes a condition and everything it owns. Unknown ids are a no-op.
func (a *MemoryAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, existing := a.find(id)
	if existing == nil {
		return nil
	}
	a.conditions = append(a.conditions[:i], a.conditions[i+1:]...)
	return nil
}

// AddMedication attaches a medication to a condition
func (a *MemoryAdapter) AddMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		c.Medications = append(c.Medications, *medication)
		return nil
	})
}

// UpdateMedication replaces a medication attached to a condition
func (a *MemoryAdapter) UpdateMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		i := c.FindMedication(medication.ID)
		if i < 0 {
			return apperrors.NewNotFoundError("medication not found: " + medication.ID)
		}
		c.Medications[i] = *medication
		return nil
	})
}

// RemoveMedication detaches and deletes a medication
func (a *MemoryAdapter) RemoveMedication(ctx context.Context, conditionID, medicationID string) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		i := c.FindMedication(medicationID)
		if i < 0 {
			return apperrors.NewNotFoundError("medication not found: " + medicationID)
		}
		c.Medications = append(c.Medications[:i], c.Medications[i+1:]...)
		return nil
	})
}

// AddTreatment attaches a treatment to a condition
func (a *MemoryAdapter) AddTreatment(ctx context.Context, conditionID string, treatment *entities.Treatment) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		c.Treatments = append(c.Treatments, *treatment)
		return nil
	})
}

// RemoveTreatment detaches and deletes a treatment
func (a *MemoryAdapter) RemoveTreatment(ctx context.Context, conditionID, treatmentID string) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		i := c.FindTreatment(treatmentID)
		if i < 0 {
			return apperrors.NewNotFoundError("treatment not found: " + treatmentID)
		}
		c.Treatments = append(c.Treatments[:i], c.Treatments[i+1:]...)
		return nil
	})
}

func (a *MemoryAdapter) mutateCondition(conditionID string, fn func(*entities.Condition) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, existing := a.find(conditionID)
	if existing == nil {
		return apperrors.NewNotFoundError("condition not found: " + conditionID)
	}

	updated := existing.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	a.conditions[i] = updated
	return nil
}

// Compile-time interface check
var _ repositories.ConditionRepository = (*MemoryAdapter)(nil)
