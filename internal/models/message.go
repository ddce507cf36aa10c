// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusReceived  MessageStatus = "received"
)

// Rank positions a status in the pending -> sent -> delivered -> read order.
// failed is terminal and reachable from any non-terminal state.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageStatusPending:
		return 0
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	case MessageStatusFailed:
		return 4
	default:
		return 0
	}
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeTemplate MessageType = "template"
	MessageTypeLocation MessageType = "location"
	MessageTypeContacts MessageType = "contacts"
)

// Message represents one inbound or outbound communication. Rows are
// immutable once created except for status-update driven fields.
type Message struct {
	ID               int64            `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	Direction        MessageDirection `db:"direction" json:"direction"`
	MessageType      MessageType      `db:"message_type" json:"message_type"`
	Body             string           `db:"body" json:"body"`
	Timestamp        time.Time        `db:"timestamp" json:"timestamp"`
	Status           MessageStatus    `db:"status" json:"status"`
	GatewayMessageID sql.NullString   `db:"gateway_message_id" json:"gateway_message_id,omitempty"`
	MediaID          sql.NullString   `db:"media_id" json:"media_id,omitempty"`
	MediaURL         sql.NullString   `db:"media_url" json:"media_url,omitempty"`
	MediaType        sql.NullString   `db:"media_type" json:"media_type,omitempty"`
	TemplateName     sql.NullString   `db:"template_name" json:"template_name,omitempty"`
	TemplateParams   sql.NullString   `db:"template_params" json:"template_params,omitempty"`
	ErrorReason      sql.NullString   `db:"error_reason" json:"error_reason,omitempty"`
	RetryCount       int              `db:"retry_count" json:"retry_count"`
	CampaignID       sql.NullString   `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}
