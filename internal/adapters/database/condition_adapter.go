package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/careloop/conditiontrack/internal/domain/entities"
	"github.com/careloop/conditiontrack/internal/domain/repositories"
	"github.com/careloop/conditiontrack/internal/infrastructure/clients/postgres"
	apperrors "github.com/careloop/conditiontrack/pkg/errors"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
)

// ConditionAdapter implements ConditionRepository on PostgreSQL. Conditions,
// medications and treatments live in three tables; medications and
// treatments carry a condition_id foreign key and are deleted with their
// condition in one transaction.
type ConditionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConditionAdapter creates a new condition adapter
func NewConditionAdapter(client *postgres.Client) repositories.ConditionRepository {
	return &ConditionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// List retrieves every condition in creation order
func (a *ConditionAdapter) List(ctx context.Context) ([]*entities.Condition, error) {
	query, args, err := a.db.From("conditions").
		Select("id", "name", "created_at").
		Order(goqu.I("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list conditions", err)
	}
	defer rows.Close()

	var conditions []*entities.Condition
	index := make(map[string]*entities.Condition)
	for rows.Next() {
		c := &entities.Condition{
			Medications: []entities.Medication{},
			Treatments:  []entities.Treatment{},
		}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, apperrors.NewStorageError("failed to scan condition", err)
		}
		conditions = append(conditions, c)
		index[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read conditions", err)
	}

	if err := a.loadMedications(ctx, index); err != nil {
		return nil, err
	}
	if err := a.loadTreatments(ctx, index); err != nil {
		return nil, err
	}

	if conditions == nil {
		conditions = []*entities.Condition{}
	}
	return conditions, nil
}

// GetByID retrieves a condition by ID
func (a *ConditionAdapter) GetByID(ctx context.Context, id string) (*entities.Condition, error) {
	query, args, err := a.db.From("conditions").
		Select("id", "name", "created_at").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build get query", err)
	}

	c := &entities.Condition{
		Medications: []entities.Medication{},
		Treatments:  []entities.Treatment{},
	}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("condition not found: " + id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to get condition", err)
	}

	index := map[string]*entities.Condition{c.ID: c}
	if err := a.loadMedications(ctx, index); err != nil {
		return nil, err
	}
	if err := a.loadTreatments(ctx, index); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *ConditionAdapter) loadMedications(ctx context.Context, index map[string]*entities.Condition) error {
	if len(index) == 0 {
		return nil
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}

	query, args, err := a.db.From("medications").
		Select("id", "condition_id", "name", "dosage", "frequency", "exam_results").
		Where(goqu.C("condition_id").In(ids)).
		Order(goqu.I("position").Asc()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build medications query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to load medications", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m entities.Medication
		var conditionID string
		var dosage, frequency, examResults sql.NullString
		if err := rows.Scan(&m.ID, &conditionID, &m.Name, &dosage, &frequency, &examResults); err != nil {
			return apperrors.NewStorageError("failed to scan medication", err)
		}
		m.Dosage = dosage.String
		m.Frequency = frequency.String
		m.ExamResults = examResults.String
		if c, ok := index[conditionID]; ok {
			c.Medications = append(c.Medications, m)
		}
	}
	return rows.Err()
}

func (a *ConditionAdapter) loadTreatments(ctx context.Context, index map[string]*entities.Condition) error {
	if len(index) == 0 {
		return nil
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}

	query, args, err := a.db.From("treatments").
		Select("id", "condition_id", "name").
		Where(goqu.C("condition_id").In(ids)).
		Order(goqu.I("position").Asc()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build treatments query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to load treatments", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t entities.Treatment
		var conditionID string
		if err := rows.Scan(&t.ID, &conditionID, &t.Name); err != nil {
			return apperrors.NewStorageError("failed to scan treatment", err)
		}
		if c, ok := index[conditionID]; ok {
			c.Treatments = append(c.Treatments, t)
		}
	}
	return rows.Err()
}

// Create creates a new condition
func (a *ConditionAdapter) Create(ctx context.Context, condition *entities.Condition) error {
	record := goqu.Record{
		"id":         condition.ID,
		"name":       condition.Name,
		"created_at": condition.CreatedAt,
	}

	query, args, err := a.db.Insert("conditions").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to create condition", err)
	}
	return nil
}

// Update replaces a condition's own fields
func (a *ConditionAdapter) Update(ctx context.Context, condition *entities.Condition) error {
	query, args, err := a.db.Update("conditions").
		Set(goqu.Record{"name": condition.Name}).
		Where(goqu.C("id").Eq(condition.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to update condition", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError("condition not found: " + condition.ID)
	}
	return nil
}

// Delete deletes a condition and cascades to its medications and treatments.
// Unknown ids are a no-op.
func (a *ConditionAdapter) Delete(ctx context.Context, id string) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"medications", "treatments"} {
		query, args, err := a.db.Delete(table).Where(goqu.C("condition_id").Eq(id)).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build cascade delete", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.NewStorageError("failed to delete owned entities", err)
		}
	}

	query, args, err := a.db.Delete("conditions").Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to delete condition", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit delete", err)
	}
	return nil
}

// AddMedication attaches a medication to a condition
func (a *ConditionAdapter) AddMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
	if err := a.requireCondition(ctx, conditionID); err != nil {
		return err
	}

	record := goqu.Record{
		"id":           medication.ID,
		"condition_id": conditionID,
		"name":         medication.Name,
		"dosage":       sql.NullString{String: medication.Dosage, Valid: medication.Dosage != ""},
		"frequency":    sql.NullString{String: medication.Frequency, Valid: medication.Frequency != ""},
		"exam_results": sql.NullString{String: medication.ExamResults, Valid: medication.ExamResults != ""},
		"position":     goqu.L("(SELECT COALESCE(MAX(position), 0) + 1 FROM medications WHERE condition_id = ?)", conditionID),
	}

	query, args, err := a.db.Insert("medications").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to add medication", err)
	}
	return nil
}

// UpdateMedication replaces a medication attached to a condition
func (a *ConditionAdapter) UpdateMedication(ctx context.Context, conditionID string, medication *entities.Medication) error {
	query, args, err := a.db.Update("medications").
		Set(goqu.Record{
			"name":         medication.Name,
			"dosage":       sql.NullString{String: medication.Dosage, Valid: medication.Dosage != ""},
			"frequency":    sql.NullString{String: medication.Frequency, Valid: medication.Frequency != ""},
			"exam_results": sql.NullString{String: medication.ExamResults, Valid: medication.ExamResults != ""},
		}).
		Where(goqu.C("id").Eq(medication.ID), goqu.C("condition_id").Eq(conditionID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to update medication", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError("medication not found: " + medication.ID)
	}
	return nil
}

// RemoveMedication detaches and deletes a medication
func (a *ConditionAdapter) RemoveMedication(ctx context.Context, conditionID, medicationID string) error {
	if err := a.requireCondition(ctx, conditionID); err != nil {
		return err
	}

	query, args, err := a.db.Delete("medications").
		Where(goqu.C("id").Eq(medicationID), goqu.C("condition_id").Eq(conditionID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to remove medication", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError("medication not found: " + medicationID)
	}
	return nil
}

// AddTreatment attaches a treatment to a condition
func (a *ConditionAdapter) AddTreatment(ctx context.Context, conditionID string, treatment *entities.Treatment) error {
	if err := a.requireCondition(ctx, conditionID); err != nil {
		return err
	}

	record := goqu.Record{
		"id":           treatment.ID,
		"condition_id": conditionID,
		"name":         treatment.Name,
		"position":     goqu.L("(SELECT COALESCE(MAX(position), 0) + 1 FROM treatments WHERE condition_id = ?)", conditionID),
	}

	query, args, err := a.db.Insert("treatments").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to add treatment", err)
	}
	return nil
}

// RemoveTreatment detaches and deletes a treatment
func (a *ConditionAdapter) RemoveTreatment(ctx context.Context, conditionID, treatmentID string) error {
	if err := a.requireCondition(ctx, conditionID); err != nil {
		return err
	}

	query, args, err := a.db.Delete("treatments").
		Where(goqu.C("id").Eq(treatmentID), goqu.C("condition_id").Eq(conditionID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to remove treatment", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError("treatment not found: " + treatmentID)
	}
	return nil
}

func (a *ConditionAdapter) requireCondition(ctx context.Context, id string) error {
	query, args, err := a.db.From("conditions").
		Select(goqu.L("1")).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build existence query", err)
	}

	var one int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("condition not found: " + id)
	}
	if err != nil {
		return apperrors.NewStorageError("failed to check condition", err)
	}
	return nil
}
