package repositories

import (
	"context"

	"github.com/careloop/conditiontrack/internal/domain/entities"
)

// ConditionRepository defines the record store for conditions and their owned
// medications and treatments. Every mutation is atomic from the caller's
// perspective: it either fully succeeds and is visible to subsequent reads,
// or fails and leaves the store unchanged.
//
// Delete is idempotent: deleting an id that does not exist is a no-op.
// Nested operations on a missing condition return a not found error.
type ConditionRepository interface {
	// List retrieves every condition in creation order
	List(ctx context.Context) ([]*entities.Condition, error)

	// GetByID retrieves a condition by ID
	GetByID(ctx context.Context, id string) (*entities.Condition, error)

	// Create creates a new condition
	Create(ctx context.Context, condition *entities.Condition) error

	// Update replaces a condition's own fields (not its nested entities)
	Update(ctx context.Context, condition *entities.Condition) error

	// Delete deletes a condition and cascades to its medications and treatments
	Delete(ctx context.Context, id string) error

	// AddMedication attaches a medication to a condition
	AddMedication(ctx context.Context, conditionID string, medication *entities.Medication) error

	// UpdateMedication replaces a medication attached to a condition
	UpdateMedication(ctx context.Context, conditionID string, medication *entities.Medication) error

	// RemoveMedication detaches and deletes a medication
	RemoveMedication(ctx context.Context, conditionID, medicationID string) error

	// AddTreatment attaches a treatment to a condition
	AddTreatment(ctx context.Context, conditionID string, treatment *entities.Treatment) error

	// RemoveTreatment detaches and deletes a treatment
	RemoveTreatment(ctx context.Context, conditionID, treatmentID string) error
}
