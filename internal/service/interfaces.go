package service

import (
	"context"

	"github.com/popeskul/waba-messenger/internal/gateway"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/notifier"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_service.go -package=mocks

// Gateway is the outbound messaging surface consumed by the services.
// Implemented by gateway.Client.
type Gateway interface {
	SendText(ctx context.Context, to, body string) models.DispatchOutcome
	SendTemplate(ctx context.Context, to, templateName string, params []gateway.TemplateParam, languageCode string) models.DispatchOutcome
	SendMedia(ctx context.Context, to, mediaType, mediaRef, caption string) models.DispatchOutcome
	MarkRead(ctx context.Context, gatewayMessageID string) error
	VerifySignature(body []byte, header string) bool
	Normalize(phone string) string
	BreakerStatus() (state gateway.BreakerState, requests, failures uint32)
}

// Notifier fans change events out to real-time subscribers. Implemented by
// notifier.Hub.
type Notifier interface {
	Broadcast(event notifier.Event)
	ConnectionCount() int
}

type MessageService interface {
	SendText(ctx context.Context, to, body string) (models.DispatchOutcome, error)
	SendTemplate(ctx context.Context, to, templateName string, params []gateway.TemplateParam, languageCode string) (models.DispatchOutcome, error)
	SendMedia(ctx context.Context, to, mediaType, mediaRef, caption string) (models.DispatchOutcome, error)
	MarkMessageRead(ctx context.Context, gatewayMessageID string) error
	ListMessages(userID string, limit, offset, sinceDays int) ([]*models.Message, int64, error)
	SearchMessages(query, userID string, limit int) ([]*models.Message, error)
}

type InboxService interface {
	ListConversations(limit, offset int, archived bool) ([]*models.Conversation, int64, error)
	MarkConversationRead(userID string) (bool, error)
	ReconcileTotals(ctx context.Context) error
}

type WebhookService interface {
	VerifyToken(mode, token string) bool
	VerifySignature(body []byte, header string) bool
	ProcessPayload(ctx context.Context, payload *models.WebhookPayload) error
}

type BulkService interface {
	ValidateContacts(contacts []models.Contact) models.ContactValidation
	SendBulk(ctx context.Context, template string, contacts []models.Contact, delaySeconds float64) (*models.CampaignReport, error)
}

type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
}

type HealthService interface {
	GetHealth() *HealthStatus
}
