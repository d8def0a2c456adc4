package models

import "time"

// SequenceCounter stores the last value handed out for a named monotonic counter.
// The mongo driver keeps the same document shape keyed by name.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" bson:"_id" json:"name"`
	LastValue int64     `gorm:"not null;default:0" bson:"sequence_value" json:"last_value"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" bson:"updated_at,omitempty" json:"updated_at"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }
