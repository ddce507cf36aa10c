package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/notifier"
	"github.com/popeskul/waba-messenger/internal/repository/mocks"
	"github.com/popeskul/waba-messenger/internal/service"
)

func newWebhookFixture(t *testing.T) (service.WebhookService, *mocks.MockMessageRepository, *mocks.MockConversationRepository, *fakeNotifier) {
	return newWebhookFixtureWithRedis(t, deadRedis())
}

func newWebhookFixtureWithRedis(t *testing.T, client *redis.Client) (service.WebhookService, *mocks.MockMessageRepository, *mocks.MockConversationRepository, *fakeNotifier) {
	ctrl := gomock.NewController(t)

	repo := mocks.NewMockRepository(ctrl)
	messageRepo := mocks.NewMockMessageRepository(ctrl)
	conversationRepo := mocks.NewMockConversationRepository(ctrl)
	repo.EXPECT().Message().Return(messageRepo).AnyTimes()
	repo.EXPECT().Conversation().Return(conversationRepo).AnyTimes()

	cfg := &config.Config{
		Webhook: config.WebhookConfig{
			VerifyToken:   "secret-token",
			EventTTLHours: 24,
		},
	}

	hub := &fakeNotifier{}
	svc := service.NewWebhookService(cfg, repo, &fakeGateway{}, hub, client, zap.NewNop())
	return svc, messageRepo, conversationRepo, hub
}

// setupRedisClient starts a throwaway redis for dedup tests that need real
// SETNX semantics.
func setupRedisClient(t *testing.T) *redis.Client {
	if testing.Short() {
		t.Skip("skipping container-backed dedup tests in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})

	return client
}

func inboundPayload(messages []models.InboundMessage, statuses []models.StatusEvent, contacts []models.InboundContact) *models.WebhookPayload {
	return &models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			ID: "entry-1",
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					MessagingProduct: "whatsapp",
					Messages:         messages,
					Statuses:         statuses,
					Contacts:         contacts,
				},
			}},
		}},
	}
}

func TestWebhookService_VerifyToken(t *testing.T) {
	svc, _, _, _ := newWebhookFixture(t)

	assert.True(t, svc.VerifyToken("subscribe", "secret-token"))
	assert.False(t, svc.VerifyToken("subscribe", "wrong"))
	assert.False(t, svc.VerifyToken("unsubscribe", "secret-token"))
}

func TestWebhookService_InboundText(t *testing.T) {
	svc, messageRepo, conversationRepo, hub := newWebhookFixture(t)

	var stored *models.Message
	messageRepo.EXPECT().Insert(gomock.Any()).DoAndReturn(func(msg *models.Message) (int64, error) {
		stored = msg
		return 1, nil
	})
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil)
	conversationRepo.EXPECT().SetUserName("919876543210", "Priya").Return(nil)

	contact := models.InboundContact{WaID: "919876543210"}
	contact.Profile.Name = "Priya"

	payload := inboundPayload([]models.InboundMessage{{
		ID:        "wamid.in-1",
		From:      "919876543210",
		Timestamp: "1755900000",
		Type:      "text",
		Text:      &models.TextContent{Body: "Hello"},
	}}, nil, []models.InboundContact{contact})

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))

	require.NotNil(t, stored)
	assert.Equal(t, "919876543210", stored.UserID)
	assert.Equal(t, models.DirectionInbound, stored.Direction)
	assert.Equal(t, models.MessageStatusReceived, stored.Status)
	assert.Equal(t, "Hello", stored.Body)
	assert.Equal(t, "wamid.in-1", stored.GatewayMessageID.String)

	assert.Equal(t, []notifier.EventType{notifier.EventNewMessage}, hub.eventTypes())
}

func TestWebhookService_InboundMediaContent(t *testing.T) {
	cases := []struct {
		name     string
		message  models.InboundMessage
		wantType models.MessageType
		wantBody string
	}{
		{
			name: "image without caption",
			message: models.InboundMessage{
				ID: "wamid.m1", From: "919876543210", Type: "image",
				Image: &models.MediaContent{ID: "media-1"},
			},
			wantType: models.MessageTypeImage,
			wantBody: "[Image]",
		},
		{
			name: "image with caption",
			message: models.InboundMessage{
				ID: "wamid.m2", From: "919876543210", Type: "image",
				Image: &models.MediaContent{ID: "media-2", Caption: "Invoice attached"},
			},
			wantType: models.MessageTypeImage,
			wantBody: "Invoice attached",
		},
		{
			name: "location",
			message: models.InboundMessage{
				ID: "wamid.m3", From: "919876543210", Type: "location",
				Location: &models.LocationContent{Latitude: 12.97, Longitude: 77.59},
			},
			wantType: models.MessageTypeLocation,
			wantBody: "[12.97, 77.59]",
		},
		{
			name: "contacts",
			message: models.InboundMessage{
				ID: "wamid.m4", From: "919876543210", Type: "contacts",
			},
			wantType: models.MessageTypeContacts,
			wantBody: "[Contacts]",
		},
		{
			name: "unknown type",
			message: models.InboundMessage{
				ID: "wamid.m5", From: "919876543210", Type: "sticker",
			},
			wantType: models.MessageType("sticker"),
			wantBody: "[Sticker]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, messageRepo, conversationRepo, _ := newWebhookFixture(t)

			var stored *models.Message
			messageRepo.EXPECT().Insert(gomock.Any()).DoAndReturn(func(msg *models.Message) (int64, error) {
				stored = msg
				return 1, nil
			})
			conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil)

			payload := inboundPayload([]models.InboundMessage{tc.message}, nil, nil)
			require.NoError(t, svc.ProcessPayload(context.Background(), payload))

			require.NotNil(t, stored)
			assert.Equal(t, tc.wantType, stored.MessageType)
			assert.Equal(t, tc.wantBody, stored.Body)
		})
	}
}

func TestWebhookService_StatusDelivered(t *testing.T) {
	svc, messageRepo, _, hub := newWebhookFixture(t)

	messageRepo.EXPECT().
		UpdateStatusByGatewayID("wamid.out-1", models.MessageStatusDelivered, nil).
		Return(true, nil)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-1",
		Status: "delivered",
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	assert.Equal(t, []notifier.EventType{notifier.EventMessageStatus}, hub.eventTypes())
}

func TestWebhookService_StatusFailedCarriesReason(t *testing.T) {
	svc, messageRepo, _, _ := newWebhookFixture(t)

	messageRepo.EXPECT().
		UpdateStatusByGatewayID("wamid.out-2", models.MessageStatusFailed, gomock.Any()).
		DoAndReturn(func(id string, status models.MessageStatus, reason *string) (bool, error) {
			require.NotNil(t, reason)
			assert.Equal(t, "Recipient opted out", *reason)
			return true, nil
		})

	// Only the first reported error detail is kept.
	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-2",
		Status: "failed",
		Errors: []models.StatusError{
			{Code: 131050, Message: "Recipient opted out"},
			{Code: 131026, Message: "Message undeliverable"},
		},
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
}

func TestWebhookService_StatusForUnknownMessageIsNoOp(t *testing.T) {
	svc, messageRepo, _, hub := newWebhookFixture(t)

	messageRepo.EXPECT().
		UpdateStatusByGatewayID("wamid.missing", models.MessageStatusRead, nil).
		Return(false, nil)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.missing",
		Status: "read",
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	assert.Empty(t, hub.eventTypes(), "unknown message must not broadcast")
}

func TestWebhookService_UnknownStatusValueIsSkipped(t *testing.T) {
	svc, _, _, hub := newWebhookFixture(t)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-3",
		Status: "warehoused",
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	assert.Empty(t, hub.eventTypes())
}

func TestWebhookService_NonMessageChangesIgnored(t *testing.T) {
	svc, _, _, hub := newWebhookFixture(t)

	payload := &models.WebhookPayload{
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{Field: "account_update"}},
		}},
	}

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	assert.Empty(t, hub.eventTypes())
}

func TestWebhookService_StatusReplayIsSkipped(t *testing.T) {
	client := setupRedisClient(t)
	svc, messageRepo, _, hub := newWebhookFixtureWithRedis(t, client)

	messageRepo.EXPECT().
		UpdateStatusByGatewayID("wamid.out-4", models.MessageStatusDelivered, nil).
		Return(true, nil).
		Times(1)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-4",
		Status: "delivered",
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	require.NoError(t, svc.ProcessPayload(context.Background(), payload))

	assert.Equal(t, []notifier.EventType{notifier.EventMessageStatus}, hub.eventTypes(),
		"the redelivered event must be deduplicated")
}

func TestWebhookService_StatusRedeliveredAfterUnknownMessageApplies(t *testing.T) {
	client := setupRedisClient(t)
	svc, messageRepo, _, hub := newWebhookFixtureWithRedis(t, client)

	// The first delivery races ahead of the outbound insert; the second
	// finds the row. The claim must not survive the unapplied attempt.
	gomock.InOrder(
		messageRepo.EXPECT().
			UpdateStatusByGatewayID("wamid.out-5", models.MessageStatusDelivered, nil).
			Return(false, nil),
		messageRepo.EXPECT().
			UpdateStatusByGatewayID("wamid.out-5", models.MessageStatusDelivered, nil).
			Return(true, nil),
	)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-5",
		Status: "delivered",
	}}, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	require.NoError(t, svc.ProcessPayload(context.Background(), payload))

	assert.Equal(t, []notifier.EventType{notifier.EventMessageStatus}, hub.eventTypes())
}

func TestWebhookService_StatusRedeliveredAfterUpdateErrorApplies(t *testing.T) {
	client := setupRedisClient(t)
	svc, messageRepo, _, _ := newWebhookFixtureWithRedis(t, client)

	gomock.InOrder(
		messageRepo.EXPECT().
			UpdateStatusByGatewayID("wamid.out-6", models.MessageStatusDelivered, nil).
			Return(false, errors.New("connection refused")),
		messageRepo.EXPECT().
			UpdateStatusByGatewayID("wamid.out-6", models.MessageStatusDelivered, nil).
			Return(true, nil),
	)

	payload := inboundPayload(nil, []models.StatusEvent{{
		ID:     "wamid.out-6",
		Status: "delivered",
	}}, nil)

	require.Error(t, svc.ProcessPayload(context.Background(), payload))
	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
}

func TestWebhookService_InboundReplayIsSkipped(t *testing.T) {
	client := setupRedisClient(t)
	svc, messageRepo, conversationRepo, hub := newWebhookFixtureWithRedis(t, client)

	messageRepo.EXPECT().Insert(gomock.Any()).Return(int64(1), nil).Times(1)
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).Times(1)

	payload := inboundPayload([]models.InboundMessage{{
		ID:        "wamid.in-9",
		From:      "919876543210",
		Timestamp: "1700000000",
		Type:      "text",
		Text:      &models.TextContent{Body: "Hello"},
	}}, nil, nil)

	require.NoError(t, svc.ProcessPayload(context.Background(), payload))
	require.NoError(t, svc.ProcessPayload(context.Background(), payload))

	assert.Equal(t, []notifier.EventType{notifier.EventNewMessage}, hub.eventTypes())
}
