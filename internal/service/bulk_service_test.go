package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/repository/mocks"
	"github.com/popeskul/waba-messenger/internal/service"
)

func bulkConfig() *config.BulkConfig {
	return &config.BulkConfig{
		MaxContacts:  1000,
		MinDelay:     0.001,
		MaxDelay:     0.01,
		DefaultDelay: 0.001,
	}
}

func newBulkFixture(t *testing.T, gw *fakeGateway) (service.BulkService, *mocks.MockMessageRepository, *mocks.MockConversationRepository) {
	ctrl := gomock.NewController(t)

	repo := mocks.NewMockRepository(ctrl)
	messageRepo := mocks.NewMockMessageRepository(ctrl)
	conversationRepo := mocks.NewMockConversationRepository(ctrl)
	repo.EXPECT().Message().Return(messageRepo).AnyTimes()
	repo.EXPECT().Conversation().Return(conversationRepo).AnyTimes()

	return service.NewBulkService(bulkConfig(), repo, gw, zap.NewNop()), messageRepo, conversationRepo
}

func TestBulkService_ValidateContacts(t *testing.T) {
	svc, _, _ := newBulkFixture(t, &fakeGateway{})

	result := svc.ValidateContacts([]models.Contact{
		{Phone: "919876543210", Name: "Rahul"},
		{Phone: "123", Name: "Bad"},
		{Phone: "9876543210", Name: "TenDigits"},
	})

	assert.Equal(t, 2, result.TotalValid)
	assert.Equal(t, 1, result.TotalInvalid)

	require.Len(t, result.Invalid, 1)
	assert.Equal(t, "123", result.Invalid[0].Phone)
	assert.Equal(t, 2, result.Invalid[0].Row)
	assert.Equal(t, "Invalid phone number (too short: 3 digits)", result.Invalid[0].Error)

	// Ten-digit numbers get the default country code prepended.
	assert.Equal(t, "919876543210", result.Valid[1].Phone)
}

func TestBulkService_SendBulk_MixedList(t *testing.T) {
	gw := &fakeGateway{}
	svc, messageRepo, conversationRepo := newBulkFixture(t, gw)

	var stored []*models.Message
	messageRepo.EXPECT().Insert(gomock.Any()).DoAndReturn(func(msg *models.Message) (int64, error) {
		stored = append(stored, msg)
		return int64(len(stored)), nil
	}).Times(1)
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).Times(1)

	report, err := svc.SendBulk(context.Background(), "Hi {name}!", []models.Contact{
		{Phone: "919876543210", Name: "Rahul"},
		{Phone: "123", Name: "Bad"},
	}, 0)
	require.NoError(t, err)

	assert.NotEmpty(t, report.CampaignID)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 50.0, report.SuccessRate)

	require.Len(t, report.FailedContacts, 1)
	assert.Equal(t, "123", report.FailedContacts[0].Phone)
	assert.Contains(t, report.FailedContacts[0].Error, "too short: 3 digits")

	require.Len(t, report.SuccessfulContacts, 1)
	assert.Equal(t, "919876543210", report.SuccessfulContacts[0].Phone)

	// Only valid contacts hit the gateway, as personalized text sends.
	require.Equal(t, 1, gw.sendCount())
	assert.Equal(t, "text", gw.sends[0].Kind)
	assert.Equal(t, "Hi Rahul!", gw.sends[0].Body)

	require.Len(t, stored, 1)
	assert.Equal(t, report.CampaignID, stored[0].CampaignID.String)
	assert.Equal(t, "Hi Rahul!", stored[0].Body)
	assert.Equal(t, models.MessageStatusSent, stored[0].Status)
}

func TestBulkService_SendBulk_PersonalizesTemplate(t *testing.T) {
	gw := &fakeGateway{}
	svc, messageRepo, conversationRepo := newBulkFixture(t, gw)

	var stored []*models.Message
	messageRepo.EXPECT().Insert(gomock.Any()).DoAndReturn(func(msg *models.Message) (int64, error) {
		stored = append(stored, msg)
		return int64(len(stored)), nil
	}).Times(2)
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).Times(2)

	_, err := svc.SendBulk(context.Background(), "Hi {name}!", []models.Contact{
		{Phone: "919876543210", Name: "Rahul"},
		{Phone: "919876543211", Name: "   "},
	}, 0)
	require.NoError(t, err)

	require.Equal(t, 2, gw.sendCount())
	assert.Equal(t, "Hi Rahul!", gw.sends[0].Body)
	assert.Equal(t, "Hi Customer!", gw.sends[1].Body, "blank names fall back to the default salutation")

	require.Len(t, stored, 2)
	assert.Equal(t, "Hi Rahul!", stored[0].Body)
	assert.Equal(t, "Hi Customer!", stored[1].Body)
}

func TestBulkService_SendBulk_TemplateWithoutPlaceholderRejected(t *testing.T) {
	svc, _, _ := newBulkFixture(t, &fakeGateway{})

	_, err := svc.SendBulk(context.Background(), "Hello everyone!", []models.Contact{
		{Phone: "919876543210", Name: "Rahul"},
	}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{name}")
}

func TestBulkService_SendBulk_FailedSendsRecorded(t *testing.T) {
	gw := &fakeGateway{outcomes: []models.DispatchOutcome{
		{Success: true, GatewayMessageID: "wamid.1"},
		{Success: false, ErrorMessage: "Recipient phone number not valid"},
	}}
	svc, messageRepo, conversationRepo := newBulkFixture(t, gw)

	messageRepo.EXPECT().Insert(gomock.Any()).Return(int64(1), nil).Times(2)
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).Times(2)

	report, err := svc.SendBulk(context.Background(), "Hi {name}!", []models.Contact{
		{Phone: "919876543210", Name: "A"},
		{Phone: "919876543211", Name: "B"},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.FailedContacts, 1)
	assert.Equal(t, "Recipient phone number not valid", report.FailedContacts[0].Error)
}

func TestBulkService_SendBulk_EmptyListRejected(t *testing.T) {
	svc, _, _ := newBulkFixture(t, &fakeGateway{})

	_, err := svc.SendBulk(context.Background(), "Hi {name}!", nil, 0)
	assert.Error(t, err)
}

func TestBulkService_SendBulk_OversizedListRejected(t *testing.T) {
	svc, _, _ := newBulkFixture(t, &fakeGateway{})

	contacts := make([]models.Contact, 1001)
	for i := range contacts {
		contacts[i] = models.Contact{Phone: "919876543210", Name: "X"}
	}

	_, err := svc.SendBulk(context.Background(), "Hi {name}!", contacts, 0)
	assert.Error(t, err)
}

func TestBulkService_SendBulk_CancellationStopsFurtherSends(t *testing.T) {
	gw := &fakeGateway{}
	svc, messageRepo, conversationRepo := newBulkFixture(t, gw)

	messageRepo.EXPECT().Insert(gomock.Any()).Return(int64(1), nil).AnyTimes()
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.SendBulk(ctx, "Hi {name}!", []models.Contact{
		{Phone: "919876543210", Name: "A"},
		{Phone: "919876543211", Name: "B"},
		{Phone: "919876543212", Name: "C"},
	}, 0)
	require.NoError(t, err)

	// The first contact is attempted; the pause before the second observes
	// the cancelled context and the run stops.
	assert.Equal(t, 1, gw.sendCount())
	assert.Equal(t, 1, report.Successful+countAttemptFailures(report))
}

func countAttemptFailures(report *models.CampaignReport) int {
	n := 0
	for _, f := range report.FailedContacts {
		if f.Row == 0 {
			n++
		}
	}
	return n
}

func TestBulkService_DelayBetweenSends(t *testing.T) {
	gw := &fakeGateway{}
	svc, messageRepo, conversationRepo := newBulkFixture(t, gw)

	messageRepo.EXPECT().Insert(gomock.Any()).Return(int64(1), nil).Times(3)
	conversationRepo.EXPECT().UpsertOnMessage(gomock.Any()).Return(nil).Times(3)

	start := time.Now()
	_, err := svc.SendBulk(context.Background(), "Hi {name}!", []models.Contact{
		{Phone: "919876543210", Name: "A"},
		{Phone: "919876543211", Name: "B"},
		{Phone: "919876543212", Name: "C"},
	}, 0.01)
	require.NoError(t, err)

	// Two pauses between three sends, none after the last.
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 3, gw.sendCount())
}
