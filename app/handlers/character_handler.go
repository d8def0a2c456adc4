package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/charmemo/app/dto"
	businessflow "github.com/amirphl/charmemo/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// CharacterHandlerInterface defines handler methods for character registry operations
type CharacterHandlerInterface interface {
	CreateCharacter(c fiber.Ctx) error
	ListCharacters(c fiber.Ctx) error
	GetCharacter(c fiber.Ctx) error
	DeleteCharacter(c fiber.Ctx) error
	ExportCharacters(c fiber.Ctx) error
}

// CharacterHandler implements the character endpoints
type CharacterHandler struct {
	flow      businessflow.CharacterFlow
	validator *validator.Validate
	timeout   time.Duration
}

func NewCharacterHandler(flow businessflow.CharacterFlow, timeout time.Duration) CharacterHandlerInterface {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &CharacterHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
	}
}

// CreateCharacter registers a character under a unique name
// @Summary Create Character
// @Description Create a character; id is allocated by the server, health and power default to 500 and 100
// @Tags Characters
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body dto.CreateCharacterRequest true "Create character payload"
// @Success 201 {object} dto.APIResponse{data=dto.CharacterDTO}
// @Failure 400 {object} dto.APIResponse "Validation error or duplicate name"
// @Failure 500 {object} dto.APIResponse "Creation failed"
// @Router /api/characters [post]
func (h *CharacterHandler) CreateCharacter(c fiber.Ctx) error {
	var req dto.CreateCharacterRequest
	if err := c.Bind().Body(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c, c.Path(), h.timeout)
	defer cancel()

	res, err := h.flow.Create(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowErrorResponse(c, err, "Create character failed", "CHARACTER_CREATE_FAILED")
	}

	return successResponse(c, fiber.StatusCreated, "Character created", res)
}

// ListCharacters returns every character ordered by id
// @Summary List Characters
// @Tags Characters
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListCharactersResponse}
// @Failure 500 {object} dto.APIResponse "List failed"
// @Router /api/characters [get]
func (h *CharacterHandler) ListCharacters(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/characters", h.timeout)
	defer cancel()

	res, err := h.flow.List(ctx, h.clientMetadata(c))
	if err != nil {
		return h.flowErrorResponse(c, err, "List characters failed", "CHARACTER_LIST_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Characters retrieved", res)
}

// GetCharacter returns one character by id
// @Summary Get Character
// @Tags Characters
// @Produce json
// @Param id path int true "Character ID"
// @Success 200 {object} dto.APIResponse{data=dto.CharacterDTO}
// @Failure 400 {object} dto.APIResponse "Invalid id"
// @Failure 404 {object} dto.APIResponse "Character not found"
// @Router /api/characters/{id} [get]
func (h *CharacterHandler) GetCharacter(c fiber.Ctx) error {
	id, ok := parseCharacterID(c)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Character id must be a positive integer", "INVALID_CHARACTER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/characters/:id", h.timeout)
	defer cancel()

	res, err := h.flow.Get(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.flowErrorResponse(c, err, "Get character failed", "CHARACTER_GET_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Character retrieved", res)
}

// DeleteCharacter removes a character by id
// @Summary Delete Character
// @Tags Characters
// @Produce json
// @Param id path int true "Character ID"
// @Success 200 {object} dto.APIResponse{data=dto.CharacterDTO}
// @Failure 404 {object} dto.APIResponse "Character not found"
// @Failure 500 {object} dto.APIResponse "Delete failed"
// @Router /api/characters/{id} [delete]
func (h *CharacterHandler) DeleteCharacter(c fiber.Ctx) error {
	id, ok := parseCharacterID(c)
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Character id must be a positive integer", "INVALID_CHARACTER_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/characters/:id", h.timeout)
	defer cancel()

	res, err := h.flow.DeleteByID(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.flowErrorResponse(c, err, "Delete character failed", "CHARACTER_DELETE_FAILED")
	}

	return successResponse(c, fiber.StatusOK, "Character deleted", res)
}

// ExportCharacters downloads the character list as an Excel workbook
// @Summary Export Characters
// @Tags Characters
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Failure 500 {object} dto.APIResponse "Export failed"
// @Router /api/characters/export [get]
func (h *CharacterHandler) ExportCharacters(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/characters/export", h.timeout)
	defer cancel()

	filename, data, err := h.flow.ExportXLSX(ctx, h.clientMetadata(c))
	if err != nil {
		return h.flowErrorResponse(c, err, "Export characters failed", "CHARACTER_EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Status(fiber.StatusOK).Send(data)
}

// flowErrorResponse maps registry error kinds onto status codes. Storage and unclassified
// failures get a generic message; the cause only goes to the log.
func (h *CharacterHandler) flowErrorResponse(c fiber.Ctx, err error, failMessage, failCode string) error {
	switch {
	case businessflow.IsValidationError(err):
		return errorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Validation failed"), "VALIDATION_ERROR", businessflow.ErrorCode(err))
	case businessflow.IsDuplicateName(err):
		return errorResponse(c, fiber.StatusBadRequest, "Character name already exists", "CHARACTER_NAME_EXISTS", nil)
	case businessflow.IsCharacterNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Character not found", "CHARACTER_NOT_FOUND", nil)
	case businessflow.IsStorageUnavailable(err):
		log.Printf("%s (request %s): %v", failMessage, requestid.FromContext(c), err)
		return errorResponse(c, fiber.StatusInternalServerError, "Storage is temporarily unavailable", "STORAGE_UNAVAILABLE", nil)
	default:
		log.Printf("%s (request %s): %v", failMessage, requestid.FromContext(c), err)
		return errorResponse(c, fiber.StatusInternalServerError, failMessage, failCode, nil)
	}
}

func (h *CharacterHandler) clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	return metadata
}

func parseCharacterID(c fiber.Ctx) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func businessMessage(err error, fallback string) string {
	var businessErr *businessflow.BusinessError
	if errors.As(err, &businessErr) && businessErr.Message != "" {
		return businessErr.Message
	}
	return fallback
}
