// Package models contains domain entities persisted by the character registry
package models

import (
	"time"
)

// Character is a named game entity with an immutable sequence-allocated id.
// Table: characters
// Unique by Name; a record is never updated in place, only created or deleted.
type Character struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false" bson:"_id" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uk_characters_name" bson:"name" json:"name"`
	Health    int64     `gorm:"not null" bson:"health" json:"health"`
	Power     int64     `gorm:"not null" bson:"power" json:"power"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_characters_created_at" bson:"created_at" json:"created_at"`
}

func (Character) TableName() string {
	return "characters"
}

// CharacterFilter represents filter criteria for character queries
type CharacterFilter struct {
	ID            *uint64
	Name          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
