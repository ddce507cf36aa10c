package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/gateway"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/repository"
)

const sentCacheTTL = 24 * time.Hour

type messageService struct {
	repo        repository.Repository
	gateway     Gateway
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewMessageService(
	repo repository.Repository,
	gw Gateway,
	redisClient *redis.Client,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		repo:        repo,
		gateway:     gw,
		redisClient: redisClient,
		logger:      logger,
	}
}

// SendText dispatches one text message and records it with its outcome.
func (s *messageService) SendText(ctx context.Context, to, body string) (models.DispatchOutcome, error) {
	outcome := s.gateway.SendText(ctx, to, body)

	msg := s.buildOutbound(to, models.MessageTypeText, body, outcome)
	if err := s.persist(ctx, msg); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// SendTemplate dispatches a template message and records it.
func (s *messageService) SendTemplate(ctx context.Context, to, templateName string, params []gateway.TemplateParam, languageCode string) (models.DispatchOutcome, error) {
	outcome := s.gateway.SendTemplate(ctx, to, templateName, params, languageCode)

	msg := s.buildOutbound(to, models.MessageTypeTemplate, fmt.Sprintf("[Template: %s]", templateName), outcome)
	msg.TemplateName = sql.NullString{String: templateName, Valid: true}
	if len(params) > 0 {
		if encoded, err := json.Marshal(params); err == nil {
			msg.TemplateParams = sql.NullString{String: string(encoded), Valid: true}
		}
	}

	if err := s.persist(ctx, msg); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// SendMedia dispatches a media message and records it.
func (s *messageService) SendMedia(ctx context.Context, to, mediaType, mediaRef, caption string) (models.DispatchOutcome, error) {
	outcome := s.gateway.SendMedia(ctx, to, mediaType, mediaRef, caption)

	body := fmt.Sprintf("[%s]", capitalize(mediaType))
	if caption != "" {
		body = caption
	}

	msg := s.buildOutbound(to, models.MessageType(mediaType), body, outcome)
	msg.MediaType = sql.NullString{String: mediaType, Valid: true}
	msg.MediaURL = sql.NullString{String: mediaRef, Valid: true}

	if err := s.persist(ctx, msg); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// MarkMessageRead reports a single message as read back to the gateway.
func (s *messageService) MarkMessageRead(ctx context.Context, gatewayMessageID string) error {
	return s.gateway.MarkRead(ctx, gatewayMessageID)
}

// ListMessages returns a user's messages with the total count for paging.
func (s *messageService) ListMessages(userID string, limit, offset, sinceDays int) ([]*models.Message, int64, error) {
	normalized := s.gateway.Normalize(userID)

	messages, err := s.repo.Message().ListByUser(normalized, limit, offset, sinceDays)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	total, err := s.repo.Message().CountByUser(normalized)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return messages, total, nil
}

// SearchMessages finds messages by body content.
func (s *messageService) SearchMessages(query, userID string, limit int) ([]*models.Message, error) {
	if userID != "" {
		userID = s.gateway.Normalize(userID)
	}

	messages, err := s.repo.Message().Search(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return messages, nil
}

func (s *messageService) buildOutbound(to string, messageType models.MessageType, body string, outcome models.DispatchOutcome) *models.Message {
	msg := &models.Message{
		UserID:      s.gateway.Normalize(to),
		Direction:   models.DirectionOutbound,
		MessageType: messageType,
		Body:        body,
		Timestamp:   time.Now(),
	}

	if outcome.Success {
		msg.Status = models.MessageStatusSent
		msg.GatewayMessageID = sql.NullString{String: outcome.GatewayMessageID, Valid: true}
	} else {
		msg.Status = models.MessageStatusFailed
		msg.ErrorReason = sql.NullString{String: outcome.ErrorMessage, Valid: true}
	}

	return msg
}

// persist stores the message and folds it into the conversation summary.
// A failure between the two writes leaves the summary transiently stale;
// the reconciliation pass heals it.
func (s *messageService) persist(ctx context.Context, msg *models.Message) error {
	if _, err := s.repo.Message().Insert(msg); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}

	if err := s.repo.Conversation().UpsertOnMessage(msg); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	s.cacheGatewayID(ctx, msg)
	return nil
}

// cacheGatewayID keeps a short-lived gateway id -> internal id mapping so
// status events can be correlated without a table scan in debugging tools.
// Failures only log; the cache is not load-bearing.
func (s *messageService) cacheGatewayID(ctx context.Context, msg *models.Message) {
	if !msg.GatewayMessageID.Valid {
		return
	}

	key := fmt.Sprintf("message:%s", msg.GatewayMessageID.String)
	value := fmt.Sprintf("%d:%s", msg.ID, time.Now().Format(time.RFC3339))

	if err := s.redisClient.Set(ctx, key, value, sentCacheTTL).Err(); err != nil {
		s.logger.Warn("Failed to cache gateway message id",
			zap.String("gatewayMessageID", msg.GatewayMessageID.String),
			zap.Error(err))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
