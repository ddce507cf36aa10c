package service

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/popeskul/waba-messenger/internal/repository"
)

// HealthStatus is the aggregate health report for the service and its
// dependencies.
type HealthStatus struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Version     string            `json:"version"`
	Checks      map[string]string `json:"checks"`
	Breaker     BreakerStatus     `json:"circuit_breaker"`
	SchedulerOn bool              `json:"scheduler_running"`
}

type BreakerStatus struct {
	State    string `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
}

const version = "1.0.0"

type healthService struct {
	repo        repository.Repository
	redisClient *redis.Client
	scheduler   SchedulerService
	gateway     Gateway
}

func NewHealthService(
	repo repository.Repository,
	redisClient *redis.Client,
	sched SchedulerService,
	gw Gateway,
) HealthService {
	return &healthService{
		repo:        repo,
		redisClient: redisClient,
		scheduler:   sched,
		gateway:     gw,
	}
}

// GetHealth probes the database and cache and reports overall status.
// The service is degraded, not down, when only the cache is unreachable.
func (s *healthService) GetHealth() *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make(map[string]string),
	}

	if err := s.repo.Ping(); err != nil {
		status.Status = "unhealthy"
		status.Checks["database"] = "down: " + err.Error()
	} else {
		status.Checks["database"] = "up"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		if status.Status == "healthy" {
			status.Status = "degraded"
		}
		status.Checks["redis"] = "down: " + err.Error()
	} else {
		status.Checks["redis"] = "up"
	}

	state, requests, failures := s.gateway.BreakerStatus()
	status.Breaker = BreakerStatus{
		State:    string(state),
		Requests: requests,
		Failures: failures,
	}

	status.SchedulerOn = s.scheduler.IsRunning()

	return status
}
