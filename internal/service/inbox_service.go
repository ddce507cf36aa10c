package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/repository"
)

type inboxService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewInboxService(repo repository.Repository, logger *zap.Logger) InboxService {
	return &inboxService{
		repo:   repo,
		logger: logger,
	}
}

// ListConversations returns a page of conversation summaries newest-first,
// together with the total count for paging.
func (s *inboxService) ListConversations(limit, offset int, archived bool) ([]*models.Conversation, int64, error) {
	conversations, err := s.repo.Conversation().List(limit, offset, archived)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	total, err := s.repo.Conversation().Count(archived)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	return conversations, total, nil
}

// MarkConversationRead clears the unread counter for a user's conversation.
// Returns false when no conversation exists for the user.
func (s *inboxService) MarkConversationRead(userID string) (bool, error) {
	found, err := s.repo.Conversation().MarkRead(userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return found, nil
}

// ReconcileTotals recomputes per-conversation message totals from the
// message rows and fixes any drifted summaries.
func (s *inboxService) ReconcileTotals(ctx context.Context) error {
	fixed, err := s.repo.Conversation().ReconcileTotals()
	if err != nil {
		return fmt.Errorf("failed to reconcile conversation totals: %w", err)
	}

	if fixed > 0 {
		s.logger.Info("Reconciled conversation totals", zap.Int64("fixed", fixed))
	}
	return nil
}
