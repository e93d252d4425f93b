package services

import (
	"context"
	"strings"
	"time"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/providers"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MedicationInput carries the caller-supplied fields for a new medication.
type MedicationInput struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// RecordService is the single write path to the condition store. Every
// successful mutation is followed by a RecordEvent broadcast so consumers
// re-read the store. The broadcast is best effort: a publish failure is
// logged, never surfaced, because the mutation itself already committed.
type RecordService struct {
	repo repositories.ConditionRepository
	bus  providers.EventBus
}

// NewRecordService creates a new record service
func NewRecordService(repo repositories.ConditionRepository, bus providers.EventBus) *RecordService {
	return &RecordService{
		repo: repo,
		bus:  bus,
	}
}

// ListConditions retrieves every condition in creation order.
func (s *RecordService) ListConditions(ctx context.Context) ([]*entities.Condition, error) {
	return s.repo.List(ctx)
}

// GetCondition retrieves a single condition by id.
func (s *RecordService) GetCondition(ctx context.Context, id string) (*entities.Condition, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("condition id is required")
	}
	return s.repo.GetByID(ctx, id)
}

// CreateCondition records a new condition with the given name.
func (s *RecordService) CreateCondition(ctx context.Context, name string) (*entities.Condition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("condition name is required")
	}

	condition := &entities.Condition{
		ID:          uuid.New().String(),
		Name:        name,
		Medications: []entities.Medication{},
		Treatments:  []entities.Treatment{},
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, condition); err != nil {
		return nil, err
	}

	s.publish(ctx, condition.ID, entities.RecordEntityCondition, entities.RecordActionCreated)
	return condition, nil
}

// RenameCondition updates a condition's name.
func (s *RecordService) RenameCondition(ctx context.Context, id, name string) (*entities.Condition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("condition name is required")
	}

	condition, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	condition.Name = name
	if err := s.repo.Update(ctx, condition); err != nil {
		return nil, err
	}

	s.publish(ctx, id, entities.RecordEntityCondition, entities.RecordActionUpdated)
	return condition, nil
}

// DeleteCondition deletes a condition and everything attached to it. Deleting
// an id that does not exist is a silent no-op and broadcasts nothing.
func (s *RecordService) DeleteCondition(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidationError("condition id is required")
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, id, entities.RecordEntityCondition, entities.RecordActionDeleted)
	return nil
}

// AddMedication attaches a new medication to a condition.
func (s *RecordService) AddMedication(ctx context.Context, conditionID string, input MedicationInput) (*entities.Medication, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, apperrors.NewValidationError("medication name is required")
	}

	medication := &entities.Medication{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Dosage:    strings.TrimSpace(input.Dosage),
		Frequency: strings.TrimSpace(input.Frequency),
	}
	if err := s.repo.AddMedication(ctx, conditionID, medication); err != nil {
		return nil, err
	}

	s.publish(ctx, conditionID, entities.RecordEntityMedication, entities.RecordActionCreated)
	return medication, nil
}

// UpdateMedication replaces a medication's fields, id included in the value.
func (s *RecordService) UpdateMedication(ctx context.Context, conditionID string, medication entities.Medication) (*entities.Medication, error) {
	medication.Name = strings.TrimSpace(medication.Name)
	if medication.ID == "" {
		return nil, apperrors.NewValidationError("medication id is required")
	}
	if medication.Name == "" {
		return nil, apperrors.NewValidationError("medication name is required")
	}

	if err := s.repo.UpdateMedication(ctx, conditionID, &medication); err != nil {
		return nil, err
	}

	s.publish(ctx, conditionID, entities.RecordEntityMedication, entities.RecordActionUpdated)
	return &medication, nil
}

// AttachExamResults stores exam results on an existing medication.
func (s *RecordService) AttachExamResults(ctx context.Context, conditionID, medicationID, results string) (*entities.Medication, error) {
	condition, err := s.repo.GetByID(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	i := condition.FindMedication(medicationID)
	if i < 0 {
		return nil, apperrors.NewNotFoundError("medication not found")
	}

	medication := condition.Medications[i]
	medication.ExamResults = strings.TrimSpace(results)
	if err := s.repo.UpdateMedication(ctx, conditionID, &medication); err != nil {
		return nil, err
	}

	s.publish(ctx, conditionID, entities.RecordEntityMedication, entities.RecordActionUpdated)
	return &medication, nil
}

// RemoveMedication detaches and deletes a medication.
func (s *RecordService) RemoveMedication(ctx context.Context, conditionID, medicationID string) error {
	if err := s.repo.RemoveMedication(ctx, conditionID, medicationID); err != nil {
		return err
	}

	s.publish(ctx, conditionID, entities.RecordEntityMedication, entities.RecordActionDeleted)
	return nil
}

// AddTreatment attaches a new treatment to a condition.
func (s *RecordService) AddTreatment(ctx context.Context, conditionID, name string) (*entities.Treatment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("treatment name is required")
	}

	treatment := &entities.Treatment{
		ID:   uuid.New().String(),
		Name: name,
	}
	if err := s.repo.AddTreatment(ctx, conditionID, treatment); err != nil {
		return nil, err
	}

	s.publish(ctx, conditionID, entities.RecordEntityTreatment, entities.RecordActionCreated)
	return treatment, nil
}

// RemoveTreatment detaches and deletes a treatment.
func (s *RecordService) RemoveTreatment(ctx context.Context, conditionID, treatmentID string) error {
	if err := s.repo.RemoveTreatment(ctx, conditionID, treatmentID); err != nil {
		return err
	}

	s.publish(ctx, conditionID, entities.RecordEntityTreatment, entities.RecordActionDeleted)
	return nil
}

func (s *RecordService) publish(ctx context.Context, conditionID string, entity entities.RecordEntity, action entities.RecordAction) {
	if s.bus == nil {
		return
	}
	event := entities.NewRecordEvent(conditionID, entity, action)
	if err := s.bus.Publish(ctx, providers.EventChannelRecordUpdates, event); err != nil {
		log.Warn().
			Err(err).
			Str("condition_id", conditionID).
			Str("entity", string(entity)).
			Str("action", string(action)).
			Msg("failed to publish record event")
	}
}
