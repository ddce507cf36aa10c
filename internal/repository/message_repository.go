package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/popeskul/waba-messenger/internal/models"
)

const messageColumns = `
	id, user_id, direction, message_type, body, timestamp, status,
	gateway_message_id, media_id, media_url, media_type,
	template_name, template_params, error_reason, retry_count,
	campaign_id, created_at, updated_at`

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{
		db: db,
	}
}

// Insert persists a new message and returns its id.
func (r *messageRepository) Insert(msg *models.Message) (int64, error) {
	query := `
		INSERT INTO messages (
			user_id, direction, message_type, body, timestamp, status,
			gateway_message_id, media_id, media_url, media_type,
			template_name, template_params, error_reason, retry_count,
			campaign_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id
	`

	now := time.Now()
	var id int64
	err := r.db.QueryRow(query,
		msg.UserID, msg.Direction, msg.MessageType, msg.Body, msg.Timestamp, msg.Status,
		msg.GatewayMessageID, msg.MediaID, msg.MediaURL, msg.MediaType,
		msg.TemplateName, msg.TemplateParams, msg.ErrorReason, msg.RetryCount,
		msg.CampaignID, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return id, nil
}

// UpdateStatusByGatewayID applies a status update keyed by gateway message
// id. Writes that would move the status backwards in the
// pending -> sent -> delivered -> read order are accepted as no-ops rather
// than rejected, which also makes replayed events idempotent. failed is
// applied from any non-terminal state and captures the error reason.
func (r *messageRepository) UpdateStatusByGatewayID(gatewayMessageID string, status models.MessageStatus, errorReason *string) (bool, error) {
	var reason sql.NullString
	if errorReason != nil {
		reason = sql.NullString{String: *errorReason, Valid: true}
	}

	var query string
	if status == models.MessageStatusFailed {
		query = `
			UPDATE messages
			SET status = $2,
			    error_reason = COALESCE($3, error_reason),
			    updated_at = $4
			WHERE gateway_message_id = $1
			  AND status NOT IN ('read', 'failed')
		`
	} else {
		query = `
			UPDATE messages
			SET status = $2,
			    error_reason = COALESCE($3, error_reason),
			    updated_at = $4
			WHERE gateway_message_id = $1
			  AND (CASE status
			       WHEN 'pending' THEN 0 WHEN 'sent' THEN 1
			       WHEN 'delivered' THEN 2 WHEN 'read' THEN 3
			       ELSE 4 END) <
			      (CASE $2
			       WHEN 'pending' THEN 0 WHEN 'sent' THEN 1
			       WHEN 'delivered' THEN 2 WHEN 'read' THEN 3
			       ELSE 4 END)
		`
	}

	result, err := r.db.Exec(query, gatewayMessageID, status, reason, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to update message status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected > 0, nil
}

// ListByUser returns a user's messages newest first. A positive sinceDays
// restricts the result to messages within that many days.
func (r *messageRepository) ListByUser(userID string, limit, offset, sinceDays int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if sinceDays > 0 {
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args)+1)
		args = append(args, time.Now().AddDate(0, 0, -sinceDays))
	}

	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var messages []*models.Message
	if err := r.db.Select(&messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// Search finds messages whose body matches query, optionally scoped to one
// user.
func (r *messageRepository) Search(query, userID string, limit int) ([]*models.Message, error) {
	sqlQuery := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE body ILIKE '%' || $1 || '%'
	`
	args := []interface{}{query}

	if userID != "" {
		sqlQuery += fmt.Sprintf(" AND user_id = $%d", len(args)+1)
		args = append(args, userID)
	}

	sqlQuery += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	var messages []*models.Message
	if err := r.db.Select(&messages, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	return messages, nil
}

// CountByUser returns the total number of messages for a user.
func (r *messageRepository) CountByUser(userID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM messages WHERE user_id = $1`

	if err := r.db.Get(&count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}
