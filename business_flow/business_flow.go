package businessflow

import (
	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/models"
)

// ClientMetadata holds client-related information for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToCharacterDTO converts a character model to its API representation
func ToCharacterDTO(character models.Character) dto.CharacterDTO {
	return dto.CharacterDTO{
		ID:        character.ID,
		Name:      character.Name,
		Health:    character.Health,
		Power:     character.Power,
		CreatedAt: character.CreatedAt,
	}
}
