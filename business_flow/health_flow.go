package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/charmemo/app/dto"
	"github.com/amirphl/charmemo/repository"
	"github.com/amirphl/charmemo/utils"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

// HealthComponent is a named dependency probed by the health check
type HealthComponent struct {
	Name   string
	Pinger repository.Pinger
}

// HealthFlow reports whether the storage dependencies of the registry are reachable
type HealthFlow interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type HealthFlowImpl struct {
	components []HealthComponent
	timeout    time.Duration
}

func NewHealthFlow(timeout time.Duration, components ...HealthComponent) HealthFlow {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthFlowImpl{
		components: components,
		timeout:    timeout,
	}
}

// Check pings every component; any failure marks the whole service unhealthy
func (f *HealthFlowImpl) Check(ctx context.Context) *dto.HealthResponse {
	resp := &dto.HealthResponse{
		Status:     HealthStatusHealthy,
		Components: make(map[string]string, len(f.components)),
		Timestamp:  utils.UTCNowUnix(),
	}

	for _, component := range f.components {
		pingCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := component.Pinger.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status = HealthStatusUnhealthy
			resp.Components[component.Name] = HealthStatusUnhealthy
			continue
		}
		resp.Components[component.Name] = HealthStatusHealthy
	}

	return resp
}
