package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/app/handlers"
	businessflow "github.com/amirphl/charmemo/business_flow"
	"github.com/amirphl/charmemo/repository/mocks"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHealthHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockPinger(ctrl)
	sequence := mocks.NewMockPinger(ctrl)

	flow := businessflow.NewHealthFlow(time.Second,
		businessflow.HealthComponent{Name: "postgres", Pinger: storage},
		businessflow.HealthComponent{Name: "redis", Pinger: sequence},
	)
	h := handlers.NewHealthHandler(flow)

	app := fiber.New()
	app.Get("/api", h.Greeting)
	app.Get("/api/health", h.Health)

	t.Run("Greeting", func(t *testing.T) {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var greeting dto.GreetingResponse
		require.NoError(t, json.Unmarshal(body.Data, &greeting))
		assert.Equal(t, "Hi!", greeting.Message)
	})

	t.Run("Healthy", func(t *testing.T) {
		storage.EXPECT().Ping(gomock.Any()).Return(nil)
		sequence.EXPECT().Ping(gomock.Any()).Return(nil)

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var health dto.HealthResponse
		require.NoError(t, json.Unmarshal(body.Data, &health))
		assert.Equal(t, businessflow.HealthStatusHealthy, health.Status)
		assert.Equal(t, businessflow.HealthStatusHealthy, health.Components["redis"])
	})

	t.Run("Unhealthy", func(t *testing.T) {
		storage.EXPECT().Ping(gomock.Any()).Return(nil)
		sequence.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNHEALTHY", body.Error.Code)

		var health dto.HealthResponse
		require.NoError(t, json.Unmarshal(body.Data, &health))
		assert.Equal(t, businessflow.HealthStatusUnhealthy, health.Status)
		assert.Equal(t, businessflow.HealthStatusHealthy, health.Components["postgres"])
		assert.Equal(t, businessflow.HealthStatusUnhealthy, health.Components["redis"])
	})
}
