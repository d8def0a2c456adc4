package testing

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/utils"
)

// RandomCharacterName returns a name unlikely to collide with other tests
func RandomCharacterName(prefix string) string {
	return fmt.Sprintf("%s-%08d", prefix, rand.Intn(100000000))
}

// NewCreateCharacterRequest builds a create request; zero-valued stats are left unset
func NewCreateCharacterRequest(name string, stats ...int64) *dto.CreateCharacterRequest {
	req := &dto.CreateCharacterRequest{Name: name}
	if len(stats) > 0 {
		req.Health = utils.ToPtr(stats[0])
	}
	if len(stats) > 1 {
		req.Power = utils.ToPtr(stats[1])
	}
	return req
}

// NewTestCharacter builds a character model with default stats
func NewTestCharacter(id uint64, name string) *models.Character {
	return &models.Character{
		ID:        id,
		Name:      name,
		Health:    utils.DefaultCharacterHealth,
		Power:     utils.DefaultCharacterPower,
		CreatedAt: utils.StorageNow(),
	}
}

// CharacterSaver is the subset of a character repository the fixtures need
type CharacterSaver interface {
	Save(ctx context.Context, character *models.Character) error
}

// SeedCharacters stores characters with ids 1..len(names)
func SeedCharacters(ctx context.Context, repo CharacterSaver, names ...string) ([]*models.Character, error) {
	seeded := make([]*models.Character, 0, len(names))
	for i, name := range names {
		character := NewTestCharacter(uint64(i+1), name)
		if err := repo.Save(ctx, character); err != nil {
			return nil, fmt.Errorf("failed to seed character %s: %w", name, err)
		}
		seeded = append(seeded, character)
	}
	return seeded, nil
}
