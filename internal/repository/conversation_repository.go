package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/waba-messenger/internal/models"
)

const conversationColumns = `
	id, user_id, user_name, last_message, last_message_timestamp,
	last_message_direction, unread_count, total_messages, is_archived,
	labels, created_at, updated_at`

type conversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepository{
		db: db,
	}
}

// UpsertOnMessage folds one message into the per-user summary in a single
// statement. First write for a user creates the row with zeroed counters
// before the increment is applied; concurrent writers are serialized by the
// unique user_id constraint, not by read-modify-write in application code.
func (r *conversationRepository) UpsertOnMessage(msg *models.Message) error {
	query := `
		INSERT INTO conversations (
			user_id, user_name, last_message, last_message_timestamp,
			last_message_direction, unread_count, total_messages,
			is_archived, labels, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5,
			CASE WHEN $5 = 'inbound' THEN 1 ELSE 0 END,
			1, FALSE, '{}', $6, $6
		)
		ON CONFLICT (user_id) DO UPDATE SET
			user_name = COALESCE(conversations.user_name, EXCLUDED.user_name),
			last_message = EXCLUDED.last_message,
			last_message_timestamp = EXCLUDED.last_message_timestamp,
			last_message_direction = EXCLUDED.last_message_direction,
			unread_count = conversations.unread_count +
				CASE WHEN EXCLUDED.last_message_direction = 'inbound' THEN 1 ELSE 0 END,
			total_messages = conversations.total_messages + 1,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(query,
		msg.UserID,
		sql.NullString{},
		models.TruncateBody(msg.Body),
		msg.Timestamp,
		msg.Direction,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	return nil
}

// SetUserName records the display name reported by the gateway profile.
// Missing conversations are ignored; the name is filled on the next upsert.
func (r *conversationRepository) SetUserName(userID, name string) error {
	query := `
		UPDATE conversations
		SET user_name = $2, updated_at = $3
		WHERE user_id = $1
	`

	if _, err := r.db.Exec(query, userID, name, time.Now()); err != nil {
		return fmt.Errorf("failed to set conversation user name: %w", err)
	}
	return nil
}

// MarkRead resets the unread counter without touching message-level status.
func (r *conversationRepository) MarkRead(userID string) (bool, error) {
	query := `
		UPDATE conversations
		SET unread_count = 0, updated_at = $2
		WHERE user_id = $1
	`

	result, err := r.db.Exec(query, userID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark conversation read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// List returns conversations by recency of their last message.
func (r *conversationRepository) List(limit, offset int, archived bool) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE is_archived = $1
		ORDER BY last_message_timestamp DESC
		LIMIT $2 OFFSET $3
	`

	var conversations []*models.Conversation
	if err := r.db.Select(&conversations, query, archived, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return conversations, nil
}

// Count returns the number of conversations in the archived partition.
func (r *conversationRepository) Count(archived bool) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM conversations WHERE is_archived = $1`

	if err := r.db.Get(&count, query, archived); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	return count, nil
}

// GetByUser returns one conversation summary, or nil when the user has no
// conversation yet.
func (r *conversationRepository) GetByUser(userID string) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE user_id = $1
	`

	var conversation models.Conversation
	err := r.db.Get(&conversation, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return &conversation, nil
}

// ReconcileTotals heals total_messages drift against the message log. The
// unread counter is intentionally left alone: conversation-level read state
// is independent of message rows and cannot be recomputed from them.
func (r *conversationRepository) ReconcileTotals() (int64, error) {
	query := `
		UPDATE conversations c
		SET total_messages = sub.total, updated_at = $1
		FROM (
			SELECT user_id, COUNT(*) AS total
			FROM messages
			GROUP BY user_id
		) sub
		WHERE sub.user_id = c.user_id
		  AND c.total_messages <> sub.total
	`

	result, err := r.db.Exec(query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile conversation totals: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected, nil
}
