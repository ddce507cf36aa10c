package repository

import "github.com/popeskul/waba-messenger/internal/models"

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping() error

	// Message returns the message repository
	Message() MessageRepository

	// Conversation returns the conversation repository
	Conversation() ConversationRepository
}

// MessageRepository owns the per-user message log.
type MessageRepository interface {
	Insert(msg *models.Message) (int64, error)
	// UpdateStatusByGatewayID applies a status update keyed by the gateway
	// message id. It returns false when no row was changed, either because
	// the id is unknown or because the update would reorder the status
	// progression.
	UpdateStatusByGatewayID(gatewayMessageID string, status models.MessageStatus, errorReason *string) (bool, error)
	ListByUser(userID string, limit, offset, sinceDays int) ([]*models.Message, error)
	Search(query, userID string, limit int) ([]*models.Message, error)
	CountByUser(userID string) (int64, error)
}

// ConversationRepository owns the per-user conversation summary.
type ConversationRepository interface {
	// UpsertOnMessage atomically folds one message into the summary:
	// last-message fields, total_messages increment, and an unread_count
	// increment iff the message is inbound.
	UpsertOnMessage(msg *models.Message) error
	SetUserName(userID, name string) error
	MarkRead(userID string) (bool, error)
	List(limit, offset int, archived bool) ([]*models.Conversation, error)
	Count(archived bool) (int64, error)
	GetByUser(userID string) (*models.Conversation, error)
	// ReconcileTotals recomputes total_messages from the message log for
	// summaries that drifted. Idempotent; returns the number of rows fixed.
	ReconcileTotals() (int64, error)
}
