package handlers

import (
	"context"
	"time"

	"github.com/amirphl/charmemo/app/dto"
	businessflow "github.com/amirphl/charmemo/business_flow"
	"github.com/gofiber/fiber/v3"
)

// HealthHandlerInterface defines the liveness and greeting endpoints
type HealthHandlerInterface interface {
	Health(c fiber.Ctx) error
	Greeting(c fiber.Ctx) error
}

type HealthHandler struct {
	flow businessflow.HealthFlow
}

func NewHealthHandler(flow businessflow.HealthFlow) HealthHandlerInterface {
	return &HealthHandler{flow: flow}
}

// Health reports storage reachability
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse}
// @Failure 503 {object} dto.APIResponse{data=dto.HealthResponse}
// @Router /api/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := h.flow.Check(ctx)
	if res.Status != businessflow.HealthStatusHealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service unhealthy",
			Data:    res,
			Error:   dto.ErrorDetail{Code: "SERVICE_UNHEALTHY"},
		})
	}

	return successResponse(c, fiber.StatusOK, "Service healthy", res)
}

// Greeting answers the API root
// @Summary Greeting
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GreetingResponse}
// @Router /api [get]
func (h *HealthHandler) Greeting(c fiber.Ctx) error {
	return successResponse(c, fiber.StatusOK, "Hi!", dto.GreetingResponse{Message: "Hi!"})
}
