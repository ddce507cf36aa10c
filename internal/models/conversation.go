package models

import (
	"database/sql"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
)

// LastMessageMaxLen bounds the conversation preview stored per user.
const LastMessageMaxLen = 500

// Conversation is the per-user rollup derived from the message stream.
// Exactly one row exists per user id; it is created on the first message.
type Conversation struct {
	ID                   int64            `db:"id" json:"id"`
	UserID               string           `db:"user_id" json:"user_id"`
	UserName             sql.NullString   `db:"user_name" json:"user_name,omitempty"`
	LastMessage          string           `db:"last_message" json:"last_message"`
	LastMessageTimestamp time.Time        `db:"last_message_timestamp" json:"last_message_timestamp"`
	LastMessageDirection MessageDirection `db:"last_message_direction" json:"last_message_direction"`
	UnreadCount          int              `db:"unread_count" json:"unread_count"`
	TotalMessages        int              `db:"total_messages" json:"total_messages"`
	IsArchived           bool             `db:"is_archived" json:"is_archived"`
	Labels               pq.StringArray   `db:"labels" json:"labels"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// TruncateBody bounds a message body to the stored preview length. The
// column counts characters, so the cut must land on a rune boundary.
func TruncateBody(body string) string {
	if utf8.RuneCountInString(body) <= LastMessageMaxLen {
		return body
	}
	runes := []rune(body)
	return string(runes[:LastMessageMaxLen])
}
