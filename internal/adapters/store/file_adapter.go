package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
)

// document is the single serialized collection the whole store lives under.
type document struct {
	Conditions []*entities.Condition `json:"conditions"`
}

// FileAdapter implements ConditionRepository on a single JSON document on
// disk. The document is read once on construction and rewritten after every
// mutation via a temp-file rename, so a crash mid-write leaves the previous
// document intact.
type FileAdapter struct {
	path string

	mu  sync.RWMutex
	doc document
}

// NewFileAdapter creates a file-backed condition store at the given path.
// A missing file starts an empty store; a corrupt one is a storage error.
func NewFileAdapter(path string) (*FileAdapter, error) {
	a := &FileAdapter{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return a, nil
		}
		return nil, apperrors.NewStorageError("failed to read store file", err)
	}

	if err := json.Unmarshal(data, &a.doc); err != nil {
		return nil, apperrors.NewStorageError("failed to decode store file", err)
	}
	return a, nil
}

// persist writes the document atomically. Must be called with the lock held.
func (a *FileAdapter) persist() error {
	data, err := json.MarshalIndent(a.doc, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode store document", err)
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageError("failed to create store directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".conditions-*.json")
	if err != nil {
		return apperrors.NewStorageError("failed to create temp store file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write store file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close store file", err)
	}

	if err := os.Rename(tmpName, a.path); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace store file", err)
	}
	return nil
}

func (a *FileAdapter) find(id string) (int, *entities.Condition) {
	for i, c := range a.doc.Conditions {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

// List retrieves every condition in creation order
func (a *FileAdapter) List(ctx context.Context) ([]*entities.Condition, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	conditions := make([]*entities.Condition, 0, len(a.doc.Conditions))
	for _, c := range a.doc.Conditions {
		conditions = append(conditions, c.Clone())
	}
	return conditions, nil
}

// GetByID retrieves a condition by ID
func (a *FileAdapter) GetByID(ctx context.Context, id string) (*entities.Condition, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, c := a.find(id); c != nil {
		return c.Clone(), nil
	}
	return nil, apperrors.NewNotFoundError("condition not found: " + id)
}

// Create creates a new condition
func (a *FileAdapter) Create(ctx context.Context, condition *entities.Condition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.doc.Conditions = append(a.doc.Conditions, condition.Clone())
	if err := a.persist(); err != nil {
		a.doc.Conditions = a.doc.Conditions[:len(a.doc.Conditions)-1]
		return err
	}
	return nil
}

// Update replaces a condition's own fields, keeping its nested entities
func (a *FileAdapter) Update(ctx context.Context, condition *entities.Condition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, existing := a.find(condition.ID)
	if existing == nil {
		return apperrors.NewNotFoundError("condition not found: " + condition.ID)
	}

	updated := existing.Clone()
	updated.Name = condition.Name

	prev := a.doc.Conditions[i]
	a.doc.Conditions[i] = updated
	if err := a.persist(); err != nil {
		a.doc.Conditions[i] = prev
		return err
	}
	return nil
}

// Delete deletes a condition and everything it owns. Unknown ids are a no-op.
func (a *FileAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, existing := a.find(id)
	if existing == nil {
		return nil
	}

	prev := a.doc.Conditions
	a.doc.Conditions = append(append([]*entities.Condition{}, prev[:i]...), prev[i+1:]...)
	if err := a.persist(); err != nil {
		a.doc.Conditions = prev
		return err
	}
	return nil
}

// AddMedication attaches a medication to a condition
func (a *FileAdapter) AddMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		c.Medications = append(c.Medications, *medication)
		return nil
	})
}

// UpdateMedication replaces a medication attached to a condition
func (a *FileAdapter) UpdateMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
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
func (a *FileAdapter) RemoveMedication(ctx context.Context, conditionID, medicationID string) error {
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
func (a *FileAdapter) AddTreatment(ctx context.Context, conditionID string, treatment *entities.Treatment) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		c.Treatments = append(c.Treatments, *treatment)
		return nil
	})
}

// RemoveTreatment detaches and deletes a treatment
func (a *FileAdapter) RemoveTreatment(ctx context.Context, conditionID, treatmentID string) error {
	return a.mutateCondition(conditionID, func(c *entities.Condition) error {
		i := c.FindTreatment(treatmentID)
		if i < 0 {
			return apperrors.NewNotFoundError("treatment not found: " + treatmentID)
		}
		c.Treatments = append(c.Treatments[:i], c.Treatments[i+1:]...)
		return nil
	})
}

// mutateCondition applies fn to a clone of the condition and swaps it in only
// if both fn and the disk write succeed.
func (a *FileAdapter) mutateCondition(conditionID string, fn func(*entities.Condition) error) error {
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

	a.doc.Conditions[i] = updated
	if err := a.persist(); err != nil {
		a.doc.Conditions[i] = existing
		return err
	}
	return nil
}

// Compile-time interface check
var _ repositories.ConditionRepository = (*FileAdapter)(nil)
