package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/notifier"
	"github.com/popeskul/waba-messenger/internal/repository"
)

type webhookService struct {
	cfg         *config.WebhookConfig
	repo        repository.Repository
	gateway     Gateway
	hub         Notifier
	redisClient *redis.Client
	logger      *zap.Logger
}

func NewWebhookService(
	cfg *config.Config,
	repo repository.Repository,
	gw Gateway,
	hub Notifier,
	redisClient *redis.Client,
	logger *zap.Logger,
) WebhookService {
	return &webhookService{
		cfg:         &cfg.Webhook,
		repo:        repo,
		gateway:     gw,
		hub:         hub,
		redisClient: redisClient,
		logger:      logger,
	}
}

// VerifyToken answers the gateway's subscription handshake.
func (s *webhookService) VerifyToken(mode, token string) bool {
	return mode == "subscribe" && token == s.cfg.VerifyToken
}

// VerifySignature checks the payload signature header against the shared
// application secret.
func (s *webhookService) VerifySignature(body []byte, header string) bool {
	return s.gateway.VerifySignature(body, header)
}

// ProcessPayload walks every entry and change in the payload, reconciling
// new-message and status-update events into storage. Events it cannot
// correlate are logged and skipped; the whole payload never fails partway
// in a way the gateway would retry forever.
func (s *webhookService) ProcessPayload(ctx context.Context, payload *models.WebhookPayload) error {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := contactNames(change.Value.Contacts)

			for i := range change.Value.Messages {
				if err := s.processInbound(ctx, &change.Value.Messages[i], names); err != nil {
					return err
				}
			}

			for i := range change.Value.Statuses {
				if err := s.processStatus(ctx, &change.Value.Statuses[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *webhookService) processInbound(ctx context.Context, inbound *models.InboundMessage, names map[string]string) error {
	if !s.claimEvent(ctx, "inbound", inbound.ID) {
		s.logger.Debug("Skipping replayed inbound event", zap.String("gatewayMessageID", inbound.ID))
		return nil
	}

	userID := s.gateway.Normalize(inbound.From)
	messageType, body, mediaID := inboundContent(inbound)

	msg := &models.Message{
		UserID:      userID,
		Direction:   models.DirectionInbound,
		MessageType: messageType,
		Body:        body,
		Timestamp:   parseEventTimestamp(inbound.Timestamp),
		Status:      models.MessageStatusReceived,
		GatewayMessageID: sql.NullString{
			String: inbound.ID,
			Valid:  true,
		},
	}
	if mediaID != "" {
		msg.MediaID = sql.NullString{String: mediaID, Valid: true}
		msg.MediaType = sql.NullString{String: string(messageType), Valid: true}
	}

	if _, err := s.repo.Message().Insert(msg); err != nil {
		s.releaseEvent(ctx, "inbound", inbound.ID)
		return fmt.Errorf("failed to persist inbound message: %w", err)
	}

	if err := s.repo.Conversation().UpsertOnMessage(msg); err != nil {
		s.releaseEvent(ctx, "inbound", inbound.ID)
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	if name, ok := names[inbound.From]; ok && name != "" {
		if err := s.repo.Conversation().SetUserName(userID, name); err != nil {
			s.logger.Warn("Failed to store contact name",
				zap.String("userID", userID), zap.Error(err))
		}
	}

	s.hub.Broadcast(notifier.NewEvent(notifier.EventNewMessage, map[string]interface{}{
		"user_id":      msg.UserID,
		"message_type": msg.MessageType,
		"body":         msg.Body,
		"timestamp":    msg.Timestamp,
	}))

	return nil
}

func (s *webhookService) processStatus(ctx context.Context, event *models.StatusEvent) error {
	status, ok := mapGatewayStatus(event.Status)
	if !ok {
		s.logger.Warn("Unknown status value in webhook event",
			zap.String("status", event.Status),
			zap.String("gatewayMessageID", event.ID))
		return nil
	}

	if !s.claimEvent(ctx, "status", event.ID+":"+event.Status) {
		s.logger.Debug("Skipping replayed status event",
			zap.String("gatewayMessageID", event.ID),
			zap.String("status", event.Status))
		return nil
	}

	var errorReason *string
	if status == models.MessageStatusFailed {
		reason := statusErrorReason(event.Errors)
		errorReason = &reason
	}

	found, err := s.repo.Message().UpdateStatusByGatewayID(event.ID, status, errorReason)
	if err != nil {
		s.releaseEvent(ctx, "status", event.ID+":"+event.Status)
		return fmt.Errorf("failed to apply status update: %w", err)
	}
	if !found {
		// The outbound row may not be inserted yet; give the claim back so
		// a redelivery can apply the update once the message exists.
		s.releaseEvent(ctx, "status", event.ID+":"+event.Status)
		s.logger.Warn("Status event for unknown message",
			zap.String("gatewayMessageID", event.ID),
			zap.String("status", event.Status))
		return nil
	}

	s.hub.Broadcast(notifier.NewEvent(notifier.EventMessageStatus, map[string]interface{}{
		"gateway_message_id": event.ID,
		"status":             status,
	}))

	return nil
}

// claimEvent records the event id in redis with a TTL. The first caller wins;
// replays see the existing key and skip. A claim is released again when the
// event could not be applied, so redelivery gets another attempt. On redis
// errors processing proceeds: the storage layer tolerates duplicate
// application.
func (s *webhookService) claimEvent(ctx context.Context, kind, id string) bool {
	key := eventKey(kind, id)
	ttl := time.Duration(s.cfg.EventTTLHours) * time.Hour

	claimed, err := s.redisClient.SetNX(ctx, key, time.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		s.logger.Warn("Event dedup check failed, processing anyway",
			zap.String("key", key), zap.Error(err))
		return true
	}
	return claimed
}

func (s *webhookService) releaseEvent(ctx context.Context, kind, id string) {
	key := eventKey(kind, id)
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("Failed to release event claim",
			zap.String("key", key), zap.Error(err))
	}
}

func eventKey(kind, id string) string {
	return fmt.Sprintf("webhook:%s:%s", kind, id)
}

// inboundContent derives message type, display body, and media id from an
// inbound event. Unknown types fall back to a bracketed type tag.
func inboundContent(inbound *models.InboundMessage) (models.MessageType, string, string) {
	switch inbound.Type {
	case "text":
		body := ""
		if inbound.Text != nil {
			body = inbound.Text.Body
		}
		return models.MessageTypeText, body, ""
	case "image":
		return mediaContent(models.MessageTypeImage, "[Image]", inbound.Image)
	case "video":
		return mediaContent(models.MessageTypeVideo, "[Video]", inbound.Video)
	case "audio":
		return mediaContent(models.MessageTypeAudio, "[Audio]", inbound.Audio)
	case "document":
		return mediaContent(models.MessageTypeDocument, "[Document]", inbound.Document)
	case "location":
		body := "[Location]"
		if inbound.Location != nil {
			body = fmt.Sprintf("[%g, %g]", inbound.Location.Latitude, inbound.Location.Longitude)
		}
		return models.MessageTypeLocation, body, ""
	case "contacts":
		return models.MessageTypeContacts, "[Contacts]", ""
	default:
		return models.MessageType(inbound.Type), fmt.Sprintf("[%s]", capitalize(inbound.Type)), ""
	}
}

func mediaContent(messageType models.MessageType, tag string, media *models.MediaContent) (models.MessageType, string, string) {
	body := tag
	mediaID := ""
	if media != nil {
		mediaID = media.ID
		if media.Caption != "" {
			body = media.Caption
		}
	}
	return messageType, body, mediaID
}

func mapGatewayStatus(status string) (models.MessageStatus, bool) {
	switch status {
	case "sent":
		return models.MessageStatusSent, true
	case "delivered":
		return models.MessageStatusDelivered, true
	case "read":
		return models.MessageStatusRead, true
	case "failed":
		return models.MessageStatusFailed, true
	default:
		return "", false
	}
}

// statusErrorReason keeps the first reported error detail.
func statusErrorReason(errors []models.StatusError) string {
	if len(errors) == 0 {
		return "Delivery failed"
	}

	e := errors[0]
	switch {
	case e.Message != "":
		return e.Message
	case e.Title != "":
		return e.Title
	default:
		return fmt.Sprintf("error %d", e.Code)
	}
}

// parseEventTimestamp reads the gateway's unix-seconds string; a malformed
// value falls back to the receive time.
func parseEventTimestamp(raw string) time.Time {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(seconds, 0)
}

func contactNames(contacts []models.InboundContact) map[string]string {
	if len(contacts) == 0 {
		return nil
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}
