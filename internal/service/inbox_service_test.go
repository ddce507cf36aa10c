package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/repository/mocks"
	"github.com/popeskul/waba-messenger/internal/service"
)

func newInboxFixture(t *testing.T) (service.InboxService, *mocks.MockConversationRepository) {
	ctrl := gomock.NewController(t)

	repo := mocks.NewMockRepository(ctrl)
	conversationRepo := mocks.NewMockConversationRepository(ctrl)
	repo.EXPECT().Conversation().Return(conversationRepo).AnyTimes()

	return service.NewInboxService(repo, zap.NewNop()), conversationRepo
}

func TestInboxService_ListConversations(t *testing.T) {
	svc, conversationRepo := newInboxFixture(t)

	conversationRepo.EXPECT().List(20, 0, false).Return([]*models.Conversation{
		{UserID: "919876543210", UnreadCount: 2},
	}, nil)
	conversationRepo.EXPECT().Count(false).Return(int64(1), nil)

	conversations, total, err := svc.ListConversations(20, 0, false)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
	assert.Equal(t, int64(1), total)
}

func TestInboxService_MarkConversationRead(t *testing.T) {
	svc, conversationRepo := newInboxFixture(t)

	conversationRepo.EXPECT().MarkRead("919876543210").Return(true, nil)

	found, err := svc.MarkConversationRead("919876543210")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestInboxService_MarkConversationRead_Missing(t *testing.T) {
	svc, conversationRepo := newInboxFixture(t)

	conversationRepo.EXPECT().MarkRead("910000000000").Return(false, nil)

	found, err := svc.MarkConversationRead("910000000000")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInboxService_ReconcileTotals(t *testing.T) {
	svc, conversationRepo := newInboxFixture(t)

	conversationRepo.EXPECT().ReconcileTotals().Return(int64(3), nil)

	require.NoError(t, svc.ReconcileTotals(context.Background()))
}

func TestInboxService_ReconcileTotals_Error(t *testing.T) {
	svc, conversationRepo := newInboxFixture(t)

	conversationRepo.EXPECT().ReconcileTotals().Return(int64(0), errors.New("connection refused"))

	err := svc.ReconcileTotals(context.Background())
	assert.Error(t, err)
}
