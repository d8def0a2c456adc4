package dto

import "time"

// CreateCharacterRequest is accepted as JSON or as an urlencoded form.
// Health and power fall back to server defaults when omitted.
type CreateCharacterRequest struct {
	Name   string `json:"name" form:"name" validate:"required"`
	Health *int64 `json:"health,omitempty" form:"health" validate:"omitempty,gte=0"`
	Power  *int64 `json:"power,omitempty" form:"power" validate:"omitempty,gte=0"`
}

// CharacterDTO represents a character for responses
type CharacterDTO struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Health    int64     `json:"health"`
	Power     int64     `json:"power"`
	CreatedAt time.Time `json:"created_at"`
}

// ListCharactersResponse wraps the list snapshot, ordered by id
type ListCharactersResponse struct {
	Characters []CharacterDTO `json:"characters"`
}
