package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// RecordEntity identifies which entity kind a record event refers to
type RecordEntity string

const (
	RecordEntityCondition  RecordEntity = "condition"
	RecordEntityMedication RecordEntity = "medication"
	RecordEntityTreatment  RecordEntity = "treatment"
)

// RecordAction identifies the mutation that produced a record event
type RecordAction string

const (
	RecordActionCreated RecordAction = "created"
	RecordActionUpdated RecordAction = "updated"
	RecordActionDeleted RecordAction = "deleted"
)

// RecordEvent is the invalidation signal broadcast after every store
// mutation. Listeners must re-read the store rather than trust the payload;
// the fields exist for logging and event streams, not for state transfer.
type RecordEvent struct {
	ID          string       `json:"id"`
	ConditionID string       `json:"condition_id"`
	Entity      RecordEntity `json:"entity"`
	Action      RecordAction `json:"action"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewRecordEvent creates a new record event
func NewRecordEvent(conditionID string, entity RecordEntity, action RecordAction) *RecordEvent {
	return &RecordEvent{
		ID:          generateEventID(),
		ConditionID: conditionID,
		Entity:      entity,
		Action:      action,
		Timestamp:   time.Now(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
