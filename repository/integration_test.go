package repository_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/repository"
	testingutil "github.com/amirphl/charmemo/testing"
	"github.com/amirphl/charmemo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, testingutil.ErrServiceUnavailable) {
		t.Skipf("skipping integration test: %v", err)
	}
	require.NoError(t, err)
}

// testSequenceRepository checks the behavior every sequence driver must share
func testSequenceRepository(t *testing.T, repo repository.SequenceRepository) {
	ctx := testingutil.CreateTestContext()

	current, err := repo.Current(ctx, "characterId")
	require.NoError(t, err)
	assert.Zero(t, current)

	first, err := repo.Increment(ctx, "characterId")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	const callers = 25
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values []int64
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Increment(ctx, "characterId")
			assert.NoError(t, err)
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.Sort(values)
	require.Len(t, values, callers)
	for i, v := range values {
		assert.Equal(t, int64(i+2), v)
	}

	current, err = repo.Current(ctx, "characterId")
	require.NoError(t, err)
	assert.Equal(t, int64(callers+1), current)

	other, err := repo.Increment(ctx, "questId")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

// testCharacterRepository checks the behavior every character driver must share
func testCharacterRepository(t *testing.T, repo repository.CharacterRepository) {
	ctx := testingutil.CreateTestContext()

	seeded, err := testingutil.SeedCharacters(ctx, repo, "Aria", "Bram")
	require.NoError(t, err)

	t.Run("UniqueName", func(t *testing.T) {
		err := repo.Save(ctx, testingutil.NewTestCharacter(99, "Aria"))
		assert.ErrorIs(t, err, repository.ErrUniqueViolation)
		assert.NotErrorIs(t, err, repository.ErrDuplicateID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		err := repo.Save(ctx, testingutil.NewTestCharacter(seeded[0].ID, "Fresh"))
		assert.ErrorIs(t, err, repository.ErrDuplicateID)
		assert.NotErrorIs(t, err, repository.ErrUniqueViolation)

		fresh, err := repo.ByName(ctx, "Fresh")
		require.NoError(t, err)
		assert.Nil(t, fresh)
	})

	t.Run("ByIDAndName", func(t *testing.T) {
		byID, err := repo.ByID(ctx, seeded[1].ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "Bram", byID.Name)
		assert.Equal(t, seeded[1].Health, byID.Health)
		assert.WithinDuration(t, seeded[1].CreatedAt, byID.CreatedAt, time.Millisecond)

		byName, err := repo.ByName(ctx, "Aria")
		require.NoError(t, err)
		require.NotNil(t, byName)
		assert.Equal(t, uint64(1), byName.ID)

		missing, err := repo.ByID(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("ZeroStatsKept", func(t *testing.T) {
		character := testingutil.NewTestCharacter(3, "Zero")
		character.Health = 0
		character.Power = 0
		require.NoError(t, repo.Save(ctx, character))

		stored, err := repo.ByID(ctx, 3)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Zero(t, stored.Health)
		assert.Zero(t, stored.Power)
	})

	t.Run("ListOrdered", func(t *testing.T) {
		characters, err := repo.ByFilter(ctx, models.CharacterFilter{}, "id ASC", 0, 0)
		require.NoError(t, err)
		require.Len(t, characters, 3)
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{characters[0].ID, characters[1].ID, characters[2].ID})

		count, err := repo.Count(ctx, models.CharacterFilter{Name: utils.ToPtr("Bram")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("DeleteReturnsRecord", func(t *testing.T) {
		deleted, err := repo.DeleteByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, "Aria", deleted.Name)

		again, err := repo.DeleteByID(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, again)

		// Name is reusable after delete
		require.NoError(t, repo.Save(ctx, testingutil.NewTestCharacter(4, "Aria")))
	})
}

// testAuditLogRepository checks the filters every audit driver must honour
func testAuditLogRepository(t *testing.T, repo repository.AuditLogRepository) {
	ctx := testingutil.CreateTestContext()
	base := utils.StorageNow().Add(-time.Hour)

	entries := []*models.AuditLog{
		{
			CharacterID:   utils.ToPtr(uint64(1)),
			CharacterName: utils.ToPtr("Aria"),
			Action:        models.AuditActionCharacterCreated,
			Success:       utils.ToPtr(true),
			CreatedAt:     base,
		},
		{
			CharacterName: utils.ToPtr("Aria"),
			Action:        models.AuditActionCharacterDuplicateRejected,
			Success:       utils.ToPtr(false),
			CreatedAt:     base.Add(10 * time.Minute),
		},
		{
			CharacterID:   utils.ToPtr(uint64(1)),
			CharacterName: utils.ToPtr("Aria"),
			Action:        models.AuditActionCharacterDeleted,
			Success:       utils.ToPtr(true),
			CreatedAt:     base.Add(20 * time.Minute),
		},
	}
	for _, entry := range entries {
		require.NoError(t, repo.Save(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	t.Run("All", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, models.AuditActionCharacterDeleted, logs[0].Action)
		assert.True(t, utils.IsTrue(logs[0].Success))
	})

	t.Run("ByID", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{ID: &entries[1].ID}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, entries[1].ID, logs[0].ID)
		assert.True(t, logs[0].IsFailed())
	})

	t.Run("ByCharacterAndAction", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{
			CharacterID: utils.ToPtr(uint64(1)),
			Action:      utils.ToPtr(models.AuditActionCharacterCreated),
		}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, entries[0].ID, logs[0].ID)
	})

	t.Run("CreatedAfter", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{CreatedAfter: utils.ToPtr(base.Add(5 * time.Minute))}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, entries[2].ID, logs[0].ID)
		assert.Equal(t, entries[1].ID, logs[1].ID)
	})

	t.Run("CreatedWindow", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{
			CreatedAfter:  utils.ToPtr(base.Add(5 * time.Minute)),
			CreatedBefore: utils.ToPtr(base.Add(15 * time.Minute)),
		}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditActionCharacterDuplicateRejected, logs[0].Action)
	})

	t.Run("CreatedBefore", func(t *testing.T) {
		logs, err := repo.ByFilter(ctx, models.AuditLogFilter{CreatedBefore: utils.ToPtr(base.Add(-time.Minute))}, "", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

func TestPostgresRepositories(t *testing.T) {
	testDB, err := testingutil.SetupTestDB()
	skipIfUnavailable(t, err)
	defer func() {
		_ = testDB.TeardownTestDB()
	}()

	t.Run("Sequence", func(t *testing.T) {
		testSequenceRepository(t, repository.NewSequenceRepository(testDB.DB))
	})

	t.Run("Character", func(t *testing.T) {
		testCharacterRepository(t, repository.NewCharacterRepository(testDB.DB))
	})

	t.Run("AuditLog", func(t *testing.T) {
		testAuditLogRepository(t, repository.NewAuditLogRepository(testDB.DB))
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		ctx := testingutil.CreateTestContext()
		repo := repository.NewCharacterRepository(testDB.DB)
		abort := errors.New("abort")

		err := repository.WithTransaction(ctx, testDB.DB, func(txCtx context.Context) error {
			require.NoError(t, repo.Save(txCtx, testingutil.NewTestCharacter(50, "Ghost")))

			inside, err := repo.ByName(txCtx, "Ghost")
			require.NoError(t, err)
			assert.NotNil(t, inside)
			return abort
		})
		assert.ErrorIs(t, err, abort)

		ghost, err := repo.ByName(ctx, "Ghost")
		require.NoError(t, err)
		assert.Nil(t, ghost)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repository.NewGormPinger(testDB.DB).Ping(context.Background()))
	})

	t.Run("ClearAllTables", func(t *testing.T) {
		require.NoError(t, testDB.ClearAllTables())

		current, err := repository.NewSequenceRepository(testDB.DB).Current(context.Background(), "characterId")
		require.NoError(t, err)
		assert.Zero(t, current)
	})
}

func TestMongoRepositories(t *testing.T) {
	testMongo, err := testingutil.SetupTestMongo()
	skipIfUnavailable(t, err)
	defer func() {
		_ = testMongo.Teardown()
	}()

	t.Run("Sequence", func(t *testing.T) {
		testSequenceRepository(t, repository.NewMongoSequenceRepository(testMongo.DB))
	})

	t.Run("Character", func(t *testing.T) {
		repo, err := repository.NewMongoCharacterRepository(context.Background(), testMongo.DB)
		require.NoError(t, err)
		testCharacterRepository(t, repo)
	})

	t.Run("AuditLog", func(t *testing.T) {
		testAuditLogRepository(t, repository.NewMongoAuditLogRepository(testMongo.DB))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, repository.NewMongoPinger(testMongo.Client).Ping(context.Background()))
	})
}

func TestRedisSequenceRepositoryIntegration(t *testing.T) {
	client, err := testingutil.NewTestRedisClient()
	skipIfUnavailable(t, err)
	defer client.Close()

	prefix := testingutil.RandomKeyPrefix()
	defer func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	}()

	testSequenceRepository(t, repository.NewRedisSequenceRepository(client, prefix))
}
