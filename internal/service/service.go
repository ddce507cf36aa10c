// Package service provides business logic implementation for the application.
package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/repository"
)

type Service struct {
	Message   MessageService
	Inbox     InboxService
	Webhook   WebhookService
	Bulk      BulkService
	Scheduler SchedulerService
	Health    HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	gw Gateway,
	hub Notifier,
	redisClient *redis.Client,
	logger *zap.Logger,
) *Service {
	messageService := NewMessageService(repo, gw, redisClient, logger)
	inboxService := NewInboxService(repo, logger)
	webhookService := NewWebhookService(cfg, repo, gw, hub, redisClient, logger)
	bulkService := NewBulkService(&cfg.Bulk, repo, gw, logger)
	schedulerService := NewSchedulerService(cfg, inboxService, logger)
	healthService := NewHealthService(repo, redisClient, schedulerService, gw)

	return &Service{
		Message:   messageService,
		Inbox:     inboxService,
		Webhook:   webhookService,
		Bulk:      bulkService,
		Scheduler: schedulerService,
		Health:    healthService,
	}
}
