package service_test

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/popeskul/waba-messenger/internal/gateway"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/notifier"
)

// fakeGateway records outbound calls and replays scripted outcomes.
type fakeGateway struct {
	mu       sync.Mutex
	sends    []sendCall
	outcomes []models.DispatchOutcome
	markRead []string
}

type sendCall struct {
	To       string
	Kind     string
	Body     string
	Template string
}

func (f *fakeGateway) nextOutcome() models.DispatchOutcome {
	if len(f.outcomes) == 0 {
		return models.DispatchOutcome{Success: true, GatewayMessageID: "wamid.default"}
	}
	outcome := f.outcomes[0]
	if len(f.outcomes) > 1 {
		f.outcomes = f.outcomes[1:]
	}
	return outcome
}

func (f *fakeGateway) SendText(ctx context.Context, to, body string) models.DispatchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{To: to, Kind: "text", Body: body})
	return f.nextOutcome()
}

func (f *fakeGateway) SendTemplate(ctx context.Context, to, templateName string, params []gateway.TemplateParam, languageCode string) models.DispatchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{To: to, Kind: "template", Template: templateName})
	return f.nextOutcome()
}

func (f *fakeGateway) SendMedia(ctx context.Context, to, mediaType, mediaRef, caption string) models.DispatchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{To: to, Kind: mediaType, Body: caption})
	return f.nextOutcome()
}

func (f *fakeGateway) MarkRead(ctx context.Context, gatewayMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, gatewayMessageID)
	return nil
}

func (f *fakeGateway) VerifySignature(body []byte, header string) bool {
	return true
}

func (f *fakeGateway) Normalize(phone string) string {
	return gateway.NormalizePhone(phone, "91")
}

func (f *fakeGateway) BreakerStatus() (gateway.BreakerState, uint32, uint32) {
	return gateway.BreakerClosed, 0, 0
}

func (f *fakeGateway) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

// fakeNotifier collects broadcast events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakeNotifier) Broadcast(event notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) ConnectionCount() int {
	return 0
}

func (f *fakeNotifier) eventTypes() []notifier.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]notifier.EventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

// deadRedis returns a client pointing at a closed port so cache and dedup
// paths exercise their fail-open behavior.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "localhost:9999"})
}
