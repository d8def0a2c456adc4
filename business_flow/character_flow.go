package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/models"
	"github.com/amirphl/charmemo/repository"
	"github.com/amirphl/charmemo/utils"
	"github.com/xuri/excelize/v2"
)

// CharacterFlow is the character registry: create, list, lookup and delete characters
// whose names are unique and whose ids come from the sequence allocator.
type CharacterFlow interface {
	Create(ctx context.Context, req *dto.CreateCharacterRequest, metadata *ClientMetadata) (*dto.CharacterDTO, error)
	List(ctx context.Context, metadata *ClientMetadata) (*dto.ListCharactersResponse, error)
	Get(ctx context.Context, id uint64, metadata *ClientMetadata) (*dto.CharacterDTO, error)
	DeleteByID(ctx context.Context, id uint64, metadata *ClientMetadata) (*dto.CharacterDTO, error)
	ExportXLSX(ctx context.Context, metadata *ClientMetadata) (string, []byte, error)
}

// CharacterSettings controls id allocation and the stats given to characters created without them
type CharacterSettings struct {
	CounterName   string
	DefaultHealth int64
	DefaultPower  int64
}

func DefaultCharacterSettings() CharacterSettings {
	return CharacterSettings{
		CounterName:   utils.CharacterIDCounter,
		DefaultHealth: utils.DefaultCharacterHealth,
		DefaultPower:  utils.DefaultCharacterPower,
	}
}

type CharacterFlowImpl struct {
	charRepo  repository.CharacterRepository
	auditRepo repository.AuditLogRepository
	allocator SequenceAllocator
	settings  CharacterSettings
}

// NewCharacterFlow wires the registry. auditRepo may be nil, in which case nothing is audited.
func NewCharacterFlow(
	charRepo repository.CharacterRepository,
	auditRepo repository.AuditLogRepository,
	allocator SequenceAllocator,
	settings CharacterSettings,
) CharacterFlow {
	if settings.CounterName == "" {
		settings.CounterName = utils.CharacterIDCounter
	}
	return &CharacterFlowImpl{
		charRepo:  charRepo,
		auditRepo: auditRepo,
		allocator: allocator,
		settings:  settings,
	}
}

// Create registers a new character. The unique constraint in storage is the final word on
// name collisions; the ByName lookup only short-circuits the common case. An id allocated
// by a create that then fails is not reissued.
func (f *CharacterFlowImpl) Create(ctx context.Context, req *dto.CreateCharacterRequest, metadata *ClientMetadata) (*dto.CharacterDTO, error) {
	result, err := f.create(ctx, req, metadata)
	characterOperationsTotal.WithLabelValues("create", resultLabel(err)).Inc()
	return result, err
}

func (f *CharacterFlowImpl) create(ctx context.Context, req *dto.CreateCharacterRequest, metadata *ClientMetadata) (*dto.CharacterDTO, error) {
	if req == nil {
		return nil, newValidationError("CHARACTER_VALIDATION_FAILED", "Create character request is required")
	}

	name := utils.NormalizeName(req.Name)
	if name == "" {
		return nil, newValidationError("CHARACTER_NAME_REQUIRED", "Character name is required")
	}
	if utf8.RuneCountInString(name) > utils.MaxCharacterNameLength {
		return nil, newValidationError("CHARACTER_NAME_TOO_LONG", fmt.Sprintf("Character name must be at most %d characters", utils.MaxCharacterNameLength))
	}

	health := utils.ValueOr(req.Health, f.settings.DefaultHealth)
	if health < 0 {
		return nil, newValidationError("CHARACTER_HEALTH_INVALID", "Character health must not be negative")
	}
	power := utils.ValueOr(req.Power, f.settings.DefaultPower)
	if power < 0 {
		return nil, newValidationError("CHARACTER_POWER_INVALID", "Character power must not be negative")
	}

	existing, err := f.charRepo.ByName(ctx, name)
	if err != nil {
		return nil, newStorageError("CHARACTER_LOOKUP_FAILED", "Failed to look up character name", err)
	}
	if existing != nil {
		return nil, f.rejectDuplicate(ctx, name, metadata)
	}

	id, err := f.allocator.Next(ctx, f.settings.CounterName)
	if err != nil {
		return nil, err
	}

	character := models.Character{
		ID:        uint64(id),
		Name:      name,
		Health:    health,
		Power:     power,
		CreatedAt: utils.StorageNow(),
	}

	if err := f.charRepo.Save(ctx, &character); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			log.Printf("Character id %d from counter %q is already stored; the sequence was reset or reissued", character.ID, f.settings.CounterName)
			return nil, newStorageError("CHARACTER_ID_CONFLICT", "Failed to save character", err)
		}
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, f.rejectDuplicate(ctx, name, metadata)
		}
		return nil, newStorageError("CHARACTER_SAVE_FAILED", "Failed to save character", err)
	}

	desc := fmt.Sprintf("Character %q created with id %d", character.Name, character.ID)
	f.createAuditLog(ctx, &character, character.Name, models.AuditActionCharacterCreated, desc, true, nil, metadata)

	resp := ToCharacterDTO(character)
	return &resp, nil
}

func (f *CharacterFlowImpl) rejectDuplicate(ctx context.Context, name string, metadata *ClientMetadata) error {
	errMsg := ErrDuplicateName.Error()
	desc := fmt.Sprintf("Character name %q rejected as duplicate", name)
	f.createAuditLog(ctx, nil, name, models.AuditActionCharacterDuplicateRejected, desc, false, &errMsg, metadata)

	return NewBusinessError("CHARACTER_NAME_EXISTS", "Character name already exists", ErrDuplicateName)
}

// List returns every character present at the time of the read, ordered by id
func (f *CharacterFlowImpl) List(ctx context.Context, metadata *ClientMetadata) (*dto.ListCharactersResponse, error) {
	characters, err := f.list(ctx)
	characterOperationsTotal.WithLabelValues("list", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	items := make([]dto.CharacterDTO, 0, len(characters))
	for _, c := range characters {
		items = append(items, ToCharacterDTO(*c))
	}

	return &dto.ListCharactersResponse{Characters: items}, nil
}

func (f *CharacterFlowImpl) list(ctx context.Context) ([]*models.Character, error) {
	characters, err := f.charRepo.ByFilter(ctx, models.CharacterFilter{}, "id ASC", 0, 0)
	if err != nil {
		return nil, newStorageError("CHARACTER_LIST_FAILED", "Failed to list characters", err)
	}
	return characters, nil
}

func (f *CharacterFlowImpl) Get(ctx context.Context, id uint64, metadata *ClientMetadata) (*dto.CharacterDTO, error) {
	result, err := f.get(ctx, id)
	characterOperationsTotal.WithLabelValues("get", resultLabel(err)).Inc()
	return result, err
}

func (f *CharacterFlowImpl) get(ctx context.Context, id uint64) (*dto.CharacterDTO, error) {
	if id == 0 {
		return nil, newValidationError("CHARACTER_ID_INVALID", "Character id must be a positive integer")
	}

	character, err := f.charRepo.ByID(ctx, id)
	if err != nil {
		return nil, newStorageError("CHARACTER_LOOKUP_FAILED", "Failed to look up character", err)
	}
	if character == nil {
		return nil, NewBusinessErrorf("CHARACTER_NOT_FOUND", "Character %d not found", ErrCharacterNotFound, id)
	}

	resp := ToCharacterDTO(*character)
	return &resp, nil
}

// DeleteByID removes the character in a single storage operation and returns what was removed.
// The name becomes free for reuse; the id is never handed out again.
func (f *CharacterFlowImpl) DeleteByID(ctx context.Context, id uint64, metadata *ClientMetadata) (*dto.CharacterDTO, error) {
	result, err := f.deleteByID(ctx, id, metadata)
	characterOperationsTotal.WithLabelValues("delete", resultLabel(err)).Inc()
	return result, err
}

func (f *CharacterFlowImpl) deleteByID(ctx context.Context, id uint64, metadata *ClientMetadata) (*dto.CharacterDTO, error) {
	if id == 0 {
		return nil, newValidationError("CHARACTER_ID_INVALID", "Character id must be a positive integer")
	}

	deleted, err := f.charRepo.DeleteByID(ctx, id)
	if err != nil {
		return nil, newStorageError("CHARACTER_DELETE_FAILED", "Failed to delete character", err)
	}
	if deleted == nil {
		return nil, NewBusinessErrorf("CHARACTER_NOT_FOUND", "Character %d not found", ErrCharacterNotFound, id)
	}

	desc := fmt.Sprintf("Character %q deleted (id %d)", deleted.Name, deleted.ID)
	f.createAuditLog(ctx, deleted, deleted.Name, models.AuditActionCharacterDeleted, desc, true, nil, metadata)

	resp := ToCharacterDTO(*deleted)
	return &resp, nil
}

// ExportXLSX renders the current list snapshot as a single-sheet workbook
func (f *CharacterFlowImpl) ExportXLSX(ctx context.Context, metadata *ClientMetadata) (string, []byte, error) {
	filename, data, err := f.exportXLSX(ctx)
	characterOperationsTotal.WithLabelValues("export", resultLabel(err)).Inc()
	return filename, data, err
}

func (f *CharacterFlowImpl) exportXLSX(ctx context.Context) (string, []byte, error) {
	characters, err := f.list(ctx)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := utils.ExportSheetName
	xl.SetSheetName(xl.GetSheetName(0), sheet)

	header := []any{"ID", "Name", "Health", "Power", "Created At"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel header", err)
	}

	for i, c := range characters {
		record := []any{c.ID, c.Name, c.Health, c.Power, c.CreatedAt.UTC().Format(time.RFC3339)}
		cellRef, err := characterRowCell(i)
		if err != nil {
			return "", nil, err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("characters_%s.xlsx", utils.ExportTimestamp(utils.UTCNow()))
	return filename, buf.Bytes(), nil
}

// characterRowCell returns the first cell of the row holding the i-th character; row 1 is the header
func characterRowCell(i int) (string, error) {
	cellRef, err := excelize.CoordinatesToCellName(1, i+2)
	if err != nil {
		return "", NewBusinessError("EXCEL_WRITE_ERROR", "Failed to get cell reference", err)
	}
	return cellRef, nil
}

// createAuditLog records the outcome of a registry operation. Failures are logged and swallowed.
func (f *CharacterFlowImpl) createAuditLog(ctx context.Context, character *models.Character, name, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) {
	if f.auditRepo == nil {
		return
	}

	audit := &models.AuditLog{
		CharacterName: &name,
		Action:        action,
		Description:   &description,
		Success:       utils.ToPtr(success),
		ErrorMessage:  errorMsg,
		CreatedAt:     utils.UTCNow(),
	}
	if character != nil {
		audit.CharacterID = utils.ToPtr(character.ID)
	}

	if metadata != nil {
		audit.IPAddress = &metadata.IPAddress
		audit.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			audit.RequestID = &metadata.RequestID
		}
	}
	if audit.RequestID == nil {
		if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
			audit.RequestID = &requestID
		}
	}

	if err := f.auditRepo.Save(ctx, audit); err != nil {
		log.Printf("failed to write audit log %s for %q: %v", action, name, err)
	}
}
