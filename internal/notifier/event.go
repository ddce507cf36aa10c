// Package notifier broadcasts change events to connected real-time
// subscribers. Delivery is best effort: slow or gone subscribers are
// dropped, and a failed broadcast never affects the state change that
// produced it.
package notifier

import "time"

type EventType string

const (
	EventConnected     EventType = "connected"
	EventNewMessage    EventType = "new_message"
	EventMessageStatus EventType = "message_status"
	EventPong          EventType = "pong"
)

// Event is the JSON envelope pushed to subscribers.
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, data interface{}) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
