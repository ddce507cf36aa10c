package models

// Webhook payload shapes delivered by the gateway. Only the fields the
// reconciler consumes are mapped; everything else is ignored on decode.

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
	Statuses         []StatusEvent    `json:"statuses"`
	Contacts         []InboundContact `json:"contacts"`
}

// InboundMessage is one new-message event. Gateway message ids for inbound
// events are distinct per message, never reused.
type InboundMessage struct {
	ID        string           `json:"id"`
	From      string           `json:"from"`
	Timestamp string           `json:"timestamp"`
	Type      string           `json:"type"`
	Text      *TextContent     `json:"text,omitempty"`
	Image     *MediaContent    `json:"image,omitempty"`
	Video     *MediaContent    `json:"video,omitempty"`
	Audio     *MediaContent    `json:"audio,omitempty"`
	Document  *MediaContent    `json:"document,omitempty"`
	Location  *LocationContent `json:"location,omitempty"`
}

type TextContent struct {
	Body string `json:"body"`
}

type MediaContent struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StatusEvent is one status-update event keyed by gateway message id.
type StatusEvent struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []StatusError `json:"errors,omitempty"`
}

type StatusError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type InboundContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}
