package businessflow_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/amirphl/charmemo/app/dto"
	businessflow "github.com/amirphl/charmemo/business_flow"
	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/repository"
	"github.com/amirphl/charmemo/repository/mocks"
	testingutil "github.com/amirphl/charmemo/testing"
	"github.com/amirphl/charmemo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/mock/gomock"
)

type memoryRegistry struct {
	flow      businessflow.CharacterFlow
	allocator businessflow.SequenceAllocator
	chars     *repository.MemoryCharacterRepository
	audits    *repository.MemoryAuditLogRepository
}

func newMemoryRegistry() *memoryRegistry {
	chars := repository.NewMemoryCharacterRepository()
	audits := repository.NewMemoryAuditLogRepository()
	allocator := businessflow.NewSequenceAllocator(repository.NewMemorySequenceRepository())
	return &memoryRegistry{
		flow:      businessflow.NewCharacterFlow(chars, audits, allocator, businessflow.DefaultCharacterSettings()),
		allocator: allocator,
		chars:     chars,
		audits:    audits,
	}
}

func (r *memoryRegistry) counter(t *testing.T) int64 {
	t.Helper()
	current, err := r.allocator.Current(context.Background(), utils.CharacterIDCounter)
	require.NoError(t, err)
	return current
}

func listIDs(t *testing.T, flow businessflow.CharacterFlow) []uint64 {
	t.Helper()
	list, err := flow.List(context.Background(), nil)
	require.NoError(t, err)
	ids := make([]uint64, 0, len(list.Characters))
	for _, c := range list.Characters {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCharacterFlowCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsApplied", func(t *testing.T) {
		reg := newMemoryRegistry()

		created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Aria"), nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), created.ID)
		assert.Equal(t, "Aria", created.Name)
		assert.Equal(t, int64(500), created.Health)
		assert.Equal(t, int64(100), created.Power)
		assert.False(t, created.CreatedAt.IsZero())

		stored, err := reg.flow.Get(ctx, created.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, *created, *stored)
	})

	t.Run("ExplicitStatsKept", func(t *testing.T) {
		reg := newMemoryRegistry()

		created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Bram", 0, 7), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), created.Health)
		assert.Equal(t, int64(7), created.Power)
	})

	t.Run("NameIsTrimmed", func(t *testing.T) {
		reg := newMemoryRegistry()

		created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("  Aria \t"), nil)
		require.NoError(t, err)
		assert.Equal(t, "Aria", created.Name)

		_, err = reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Aria"), nil)
		assert.True(t, businessflow.IsDuplicateName(err))
	})

	t.Run("NamesAreCaseSensitive", func(t *testing.T) {
		reg := newMemoryRegistry()

		_, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("aria"), nil)
		require.NoError(t, err)
		_, err = reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Aria"), nil)
		require.NoError(t, err)
	})

	t.Run("LongestNameAccepted", func(t *testing.T) {
		reg := newMemoryRegistry()

		name := strings.Repeat("é", utils.MaxCharacterNameLength)
		created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest(name), nil)
		require.NoError(t, err)
		assert.Equal(t, name, created.Name)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		reg := newMemoryRegistry()

		tests := []struct {
			name string
			req  *dto.CreateCharacterRequest
			code string
		}{
			{name: "nil request", req: nil, code: "CHARACTER_VALIDATION_FAILED"},
			{name: "empty name", req: testingutil.NewCreateCharacterRequest(""), code: "CHARACTER_NAME_REQUIRED"},
			{name: "blank name", req: testingutil.NewCreateCharacterRequest("   "), code: "CHARACTER_NAME_REQUIRED"},
			{name: "name too long", req: testingutil.NewCreateCharacterRequest(strings.Repeat("x", utils.MaxCharacterNameLength+1)), code: "CHARACTER_NAME_TOO_LONG"},
			{name: "negative health", req: testingutil.NewCreateCharacterRequest("Neg", -1), code: "CHARACTER_HEALTH_INVALID"},
			{name: "negative power", req: testingutil.NewCreateCharacterRequest("Neg", 10, -5), code: "CHARACTER_POWER_INVALID"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				created, err := reg.flow.Create(ctx, tt.req, nil)
				assert.Nil(t, created)
				assert.True(t, businessflow.IsValidationError(err))
				assert.Equal(t, tt.code, businessflow.ErrorCode(err))
			})
		}

		// Rejected input never consumes an id
		assert.Zero(t, reg.counter(t))
		assert.Empty(t, listIDs(t, reg.flow))
	})
}

func TestCharacterFlowScenario(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry()

	a, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("A"), nil)
	require.NoError(t, err)
	b, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("B"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), a.ID)
	assert.Equal(t, uint64(2), b.ID)

	deleted, err := reg.flow.DeleteByID(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", deleted.Name)

	// The name is free again, the id is not
	again, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("A"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), again.ID)

	assert.Equal(t, []uint64{2, 3}, listIDs(t, reg.flow))
	assert.Equal(t, int64(3), reg.counter(t))
}

func TestCharacterFlowDuplicateName(t *testing.T) {
	ctx := context.Background()

	t.Run("Sequential", func(t *testing.T) {
		reg := newMemoryRegistry()

		_, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Zed"), nil)
		require.NoError(t, err)

		dup, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Zed", 1, 1), nil)
		assert.Nil(t, dup)
		assert.True(t, businessflow.IsDuplicateName(err))
		assert.Equal(t, "CHARACTER_NAME_EXISTS", businessflow.ErrorCode(err))

		assert.Equal(t, []uint64{1}, listIDs(t, reg.flow))
		// Caught by the lookup, so no id was spent
		assert.Equal(t, int64(1), reg.counter(t))
	})

	t.Run("Concurrent", func(t *testing.T) {
		const callers = 20
		reg := newMemoryRegistry()

		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			successes  int
			duplicates int
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Zed"), nil)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case businessflow.IsDuplicateName(err):
					duplicates++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, callers-1, duplicates)

		list, err := reg.flow.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, list.Characters, 1)
		assert.Equal(t, "Zed", list.Characters[0].Name)
	})
}

func TestCharacterFlowConcurrentDistinctNames(t *testing.T) {
	const callers = 50

	ctx := context.Background()
	reg := newMemoryRegistry()

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest(fmt.Sprintf("hero-%d", i)), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ids := listIDs(t, reg.flow)
	require.Len(t, ids, callers)
	assert.True(t, slices.IsSorted(ids))
	for i, id := range ids {
		assert.Equal(t, uint64(i+1), id)
	}
}

func TestCharacterFlowGetAndDelete(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry()

	created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Orla"), nil)
	require.NoError(t, err)

	t.Run("GetMissing", func(t *testing.T) {
		_, err := reg.flow.Get(ctx, 99, nil)
		assert.True(t, businessflow.IsCharacterNotFound(err))
		assert.Equal(t, "CHARACTER_NOT_FOUND", businessflow.ErrorCode(err))
	})

	t.Run("ZeroID", func(t *testing.T) {
		_, err := reg.flow.Get(ctx, 0, nil)
		assert.True(t, businessflow.IsValidationError(err))

		_, err = reg.flow.DeleteByID(ctx, 0, nil)
		assert.True(t, businessflow.IsValidationError(err))
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		deleted, err := reg.flow.DeleteByID(ctx, created.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, *created, *deleted)

		_, err = reg.flow.DeleteByID(ctx, created.ID, nil)
		assert.True(t, businessflow.IsCharacterNotFound(err))

		_, err = reg.flow.Get(ctx, created.ID, nil)
		assert.True(t, businessflow.IsCharacterNotFound(err))

		// Deletion never touches the counter
		assert.Equal(t, int64(1), reg.counter(t))
	})
}

func TestCharacterFlowCounterBehindStoredIDs(t *testing.T) {
	ctx := context.Background()
	chars := repository.NewMemoryCharacterRepository()
	audits := repository.NewMemoryAuditLogRepository()
	_, err := testingutil.SeedCharacters(ctx, chars, "Existing")
	require.NoError(t, err)

	// a fresh counter restarts at 1 while id 1 is already stored
	allocator := businessflow.NewSequenceAllocator(repository.NewMemorySequenceRepository())
	flow := businessflow.NewCharacterFlow(chars, audits, allocator, businessflow.DefaultCharacterSettings())

	_, err = flow.Create(ctx, testingutil.NewCreateCharacterRequest("BrandNew"), nil)
	require.Error(t, err)
	assert.False(t, businessflow.IsDuplicateName(err))
	assert.True(t, businessflow.IsStorageUnavailable(err))

	missing, err := chars.ByName(ctx, "BrandNew")
	require.NoError(t, err)
	assert.Nil(t, missing)

	existing, err := chars.ByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "Existing", existing.Name)

	rejected, err := audits.ByFilter(ctx, models.AuditLogFilter{
		Action: utils.ToPtr(models.AuditActionCharacterDuplicateRejected),
	}, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rejected)

	// the next id is free, so the following create succeeds
	created, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("BrandNew"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), created.ID)
}

func TestCharacterFlowAudit(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry()
	metadata := businessflow.NewClientMetadata("10.0.0.1", "test-agent")
	metadata.SetRequestID("req-1")

	created, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Audited"), metadata)
	require.NoError(t, err)
	_, err = reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Audited"), metadata)
	require.True(t, businessflow.IsDuplicateName(err))
	_, err = reg.flow.DeleteByID(ctx, created.ID, metadata)
	require.NoError(t, err)

	logs, err := reg.audits.ByFilter(ctx, models.AuditLogFilter{}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
		assert.Equal(t, "req-1", *l.RequestID)
		assert.Equal(t, "10.0.0.1", *l.IPAddress)
		assert.Equal(t, "Audited", *l.CharacterName)
	}
	assert.ElementsMatch(t, []string{
		models.AuditActionCharacterCreated,
		models.AuditActionCharacterDuplicateRejected,
		models.AuditActionCharacterDeleted,
	}, actions)

	rejected, err := reg.audits.ByFilter(ctx, models.AuditLogFilter{
		Action: utils.ToPtr(models.AuditActionCharacterDuplicateRejected),
	}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.True(t, rejected[0].IsFailed())
	assert.Nil(t, rejected[0].CharacterID)
}

func TestCharacterFlowAuditFailureIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	auditRepo := mocks.NewMockAuditLogRepository(ctrl)
	auditRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("audit table missing"))

	allocator := businessflow.NewSequenceAllocator(repository.NewMemorySequenceRepository())
	flow := businessflow.NewCharacterFlow(repository.NewMemoryCharacterRepository(), auditRepo, allocator, businessflow.DefaultCharacterSettings())

	created, err := flow.Create(context.Background(), testingutil.NewCreateCharacterRequest("Quiet"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.ID)
}

func TestCharacterFlowStorageFailures(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection reset by peer")

	setup := func(t *testing.T) (*mocks.MockCharacterRepository, *mocks.MockSequenceRepository, businessflow.CharacterFlow) {
		ctrl := gomock.NewController(t)
		charRepo := mocks.NewMockCharacterRepository(ctrl)
		seqRepo := mocks.NewMockSequenceRepository(ctrl)
		flow := businessflow.NewCharacterFlow(charRepo, nil, businessflow.NewSequenceAllocator(seqRepo), businessflow.DefaultCharacterSettings())
		return charRepo, seqRepo, flow
	}

	t.Run("LookupFails", func(t *testing.T) {
		charRepo, _, flow := setup(t)
		charRepo.EXPECT().ByName(gomock.Any(), "Vex").Return(nil, cause)

		_, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("Vex"), nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("AllocationFails", func(t *testing.T) {
		charRepo, seqRepo, flow := setup(t)
		charRepo.EXPECT().ByName(gomock.Any(), "Vex").Return(nil, nil)
		seqRepo.EXPECT().Increment(gomock.Any(), utils.CharacterIDCounter).Return(int64(0), cause)

		_, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("Vex"), nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
	})

	t.Run("InsertFails", func(t *testing.T) {
		charRepo, seqRepo, flow := setup(t)
		charRepo.EXPECT().ByName(gomock.Any(), "Vex").Return(nil, nil)
		seqRepo.EXPECT().Increment(gomock.Any(), utils.CharacterIDCounter).Return(int64(5), nil)
		charRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(cause)

		_, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("Vex"), nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
		assert.False(t, businessflow.IsDuplicateName(err))
	})

	t.Run("ConstraintCatchesLostRace", func(t *testing.T) {
		charRepo, seqRepo, flow := setup(t)
		charRepo.EXPECT().ByName(gomock.Any(), "Vex").Return(nil, nil)
		seqRepo.EXPECT().Increment(gomock.Any(), utils.CharacterIDCounter).Return(int64(6), nil)
		charRepo.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c *models.Character) error {
			assert.Equal(t, uint64(6), c.ID)
			assert.Equal(t, "Vex", c.Name)
			return fmt.Errorf("insert: %w", repository.ErrUniqueViolation)
		})

		_, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("Vex"), nil)
		assert.True(t, businessflow.IsDuplicateName(err))
		assert.Equal(t, "CHARACTER_NAME_EXISTS", businessflow.ErrorCode(err))
	})

	t.Run("IDCollisionIsNotDuplicateName", func(t *testing.T) {
		charRepo, seqRepo, flow := setup(t)
		charRepo.EXPECT().ByName(gomock.Any(), "Vex").Return(nil, nil)
		seqRepo.EXPECT().Increment(gomock.Any(), utils.CharacterIDCounter).Return(int64(1), nil)
		charRepo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(fmt.Errorf("insert: %w", repository.ErrDuplicateID))

		_, err := flow.Create(ctx, testingutil.NewCreateCharacterRequest("Vex"), nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
		assert.False(t, businessflow.IsDuplicateName(err))
		assert.Equal(t, "CHARACTER_ID_CONFLICT", businessflow.ErrorCode(err))
	})

	t.Run("ListFails", func(t *testing.T) {
		charRepo, _, flow := setup(t)
		charRepo.EXPECT().ByFilter(gomock.Any(), models.CharacterFilter{}, "id ASC", 0, 0).Return(nil, cause)

		_, err := flow.List(ctx, nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
	})

	t.Run("DeleteFails", func(t *testing.T) {
		charRepo, _, flow := setup(t)
		charRepo.EXPECT().DeleteByID(gomock.Any(), uint64(3)).Return(nil, cause)

		_, err := flow.DeleteByID(ctx, 3, nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
	})

	t.Run("GetFails", func(t *testing.T) {
		charRepo, _, flow := setup(t)
		charRepo.EXPECT().ByID(gomock.Any(), uint64(3)).Return(nil, cause)

		_, err := flow.Get(ctx, 3, nil)
		assert.True(t, businessflow.IsStorageUnavailable(err))
	})
}

func TestCharacterFlowExportXLSX(t *testing.T) {
	ctx := context.Background()
	reg := newMemoryRegistry()

	_, err := reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Aria"), nil)
	require.NoError(t, err)
	_, err = reg.flow.Create(ctx, testingutil.NewCreateCharacterRequest("Bram", 20, 30), nil)
	require.NoError(t, err)

	filename, data, err := reg.flow.ExportXLSX(ctx, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filename, "characters_"))
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer xl.Close()

	rows, err := xl.GetRows(utils.ExportSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Name", "Health", "Power", "Created At"}, rows[0])
	assert.Equal(t, []string{"1", "Aria", "500", "100"}, rows[1][:4])
	assert.Equal(t, []string{"2", "Bram", "20", "30"}, rows[2][:4])
}
