// Package gateway implements the outbound WhatsApp Cloud API client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/ratelimit"
)

const defaultRetryAfter = 60 * time.Second

// Client issues send requests against the gateway with rate limiting,
// retry/backoff and a circuit breaker. Send operations never return an
// error; terminal failures surface as DispatchOutcome with Success=false.
type Client struct {
	cfg        *config.GatewayConfig
	webhookCfg *config.WebhookConfig
	httpClient *http.Client
	limiter    *ratelimit.WindowLimiter
	breaker    *CircuitBreaker
	retry      RetryPolicy
	logger     *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        &cfg.Gateway,
		webhookCfg: &cfg.Webhook,
		httpClient: &http.Client{
			Timeout: cfg.Gateway.RequestTimeout(),
		},
		limiter: ratelimit.NewWindowLimiter(cfg.Gateway.RateLimit, cfg.Gateway.RateWindow()),
		breaker: NewCircuitBreaker(&cfg.Gateway.CircuitBreaker, logger),
		retry: RetryPolicy{
			MaxAttempts: cfg.Gateway.MaxAttempts,
			BackoffBase: time.Duration(cfg.Gateway.BackoffBase) * time.Second,
			BackoffCap:  time.Duration(cfg.Gateway.BackoffCap) * time.Second,
		},
		logger: logger,
	}
}

// TemplateParam is one body parameter of a template send.
type TemplateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

type mediaPayload struct {
	ID      string `json:"id,omitempty"`
	Link    string `json:"link,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []TemplateParam `json:"parameters"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type outboundPayload struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
	Image            *mediaPayload    `json:"image,omitempty"`
	Video            *mediaPayload    `json:"video,omitempty"`
	Audio            *mediaPayload    `json:"audio,omitempty"`
	Document         *mediaPayload    `json:"document,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type apiResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) models.DispatchOutcome {
	payload := &outboundPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               c.Normalize(to),
		Type:             "text",
		Text:             &textPayload{Body: body},
	}
	return c.send(ctx, payload)
}

// SendTemplate sends a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, to, templateName string, params []TemplateParam, languageCode string) models.DispatchOutcome {
	if languageCode == "" {
		languageCode = "en_US"
	}

	tpl := &templatePayload{
		Name:     templateName,
		Language: templateLanguage{Code: languageCode},
	}
	if len(params) > 0 {
		tpl.Components = []templateComponent{{Type: "body", Parameters: params}}
	}

	payload := &outboundPayload{
		MessagingProduct: "whatsapp",
		To:               c.Normalize(to),
		Type:             "template",
		Template:         tpl,
	}
	return c.send(ctx, payload)
}

// SendMedia sends an image, video, audio or document message. mediaRef is
// either a media id previously uploaded to the gateway or a public URL.
func (c *Client) SendMedia(ctx context.Context, to, mediaType, mediaRef, caption string) models.DispatchOutcome {
	if mediaRef == "" {
		return models.DispatchOutcome{
			Success:      false,
			ErrorMessage: "media id or url must be provided",
		}
	}

	media := &mediaPayload{}
	if strings.HasPrefix(mediaRef, "http://") || strings.HasPrefix(mediaRef, "https://") {
		media.Link = mediaRef
	} else {
		media.ID = mediaRef
	}

	// Captions are only supported for visual and document media.
	switch mediaType {
	case "image", "video", "document":
		media.Caption = caption
	}

	payload := &outboundPayload{
		MessagingProduct: "whatsapp",
		To:               c.Normalize(to),
		Type:             mediaType,
	}

	switch mediaType {
	case "image":
		payload.Image = media
	case "video":
		payload.Video = media
	case "audio":
		payload.Audio = media
	case "document":
		payload.Document = media
	default:
		return models.DispatchOutcome{
			Success:      false,
			ErrorMessage: fmt.Sprintf("unsupported media type: %s", mediaType),
		}
	}

	return c.send(ctx, payload)
}

// MarkRead reports a message as read back to the gateway. Best effort; the
// single attempt is not retried.
func (c *Client) MarkRead(ctx context.Context, gatewayMessageID string) error {
	body, err := json.Marshal(map[string]string{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        gatewayMessageID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mark-read request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mark-read request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mark-read returned status %d", resp.StatusCode)
	}
	return nil
}

// VerifySignature checks an inbound webhook signature header against the
// configured app secret.
func (c *Client) VerifySignature(body []byte, header string) bool {
	return VerifySignature(c.cfg.AppSecret, body, header, c.webhookCfg.AllowUnsigned)
}

// Normalize converts a phone number to the gateway's international format.
func (c *Client) Normalize(phone string) string {
	return NormalizePhone(phone, c.cfg.DefaultCountryCode)
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.PhoneNumberID)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

// send drives the retry loop around single attempts. The rate limiter is
// acquired before every network attempt, including retries.
func (c *Client) send(ctx context.Context, payload *outboundPayload) models.DispatchOutcome {
	attempt := 0
	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return models.DispatchOutcome{Success: false, ErrorMessage: "request canceled"}
		}

		var outcome models.DispatchOutcome
		var aerr *attemptError

		execErr := c.breaker.Execute(ctx, func() error {
			outcome, aerr = c.attempt(ctx, payload)
			if aerr != nil {
				return aerr
			}
			return nil
		})

		if execErr == nil {
			return outcome
		}

		if aerr == nil {
			// The breaker rejected the call before an attempt was made.
			return models.DispatchOutcome{Success: false, ErrorMessage: execErr.Error()}
		}

		decision := c.retry.Decide(attempt, aerr)
		if !decision.Retry {
			c.logger.Error("Gateway dispatch failed",
				zap.String("to", payload.To),
				zap.Int("attempts", attempt+1),
				zap.String("error", aerr.message))
			return models.DispatchOutcome{
				Success:      false,
				ErrorCode:    aerr.code,
				ErrorMessage: aerr.message,
			}
		}
		if decision.Counted {
			attempt++
		}

		c.logger.Warn("Gateway attempt failed, retrying",
			zap.String("to", payload.To),
			zap.Int("attempt", attempt),
			zap.Duration("delay", decision.Delay),
			zap.String("error", aerr.message))

		timer := time.NewTimer(decision.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.DispatchOutcome{Success: false, ErrorMessage: "request canceled"}
		case <-timer.C:
		}
	}
}

// attempt issues exactly one request and classifies the result.
func (c *Client) attempt(ctx context.Context, payload *outboundPayload) (models.DispatchOutcome, *attemptError) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.DispatchOutcome{}, &attemptError{
			class:   classTerminal,
			message: fmt.Sprintf("failed to marshal request: %v", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return models.DispatchOutcome{}, &attemptError{
			class:   classTerminal,
			message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.DispatchOutcome{}, classifyTransport(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.DispatchOutcome{}, &attemptError{
			class:      classRateLimited,
			message:    "rate limited by gateway",
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded apiResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil && resp.StatusCode < 300 {
		return models.DispatchOutcome{}, &attemptError{
			class:   classServer,
			message: fmt.Sprintf("failed to decode response: %v", decodeErr),
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(decoded.Messages) == 0 {
			return models.DispatchOutcome{}, &attemptError{
				class:   classServer,
				message: "response contains no message id",
			}
		}

		id := decoded.Messages[0].ID
		c.logger.Info("Message dispatched",
			zap.String("to", payload.To),
			zap.String("gatewayMessageID", id))
		return models.DispatchOutcome{Success: true, GatewayMessageID: id}, nil
	}

	errMsg := "Unknown error"
	errCode := 0
	if decoded.Error != nil {
		if decoded.Error.Message != "" {
			errMsg = decoded.Error.Message
		}
		errCode = decoded.Error.Code
	}

	if resp.StatusCode >= 500 {
		return models.DispatchOutcome{}, &attemptError{
			class:   classServer,
			message: fmt.Sprintf("gateway server error %d: %s", resp.StatusCode, errMsg),
			code:    errCode,
		}
	}

	return models.DispatchOutcome{}, &attemptError{
		class:   classTerminal,
		message: errMsg,
		code:    errCode,
	}
}

func classifyTransport(err error) *attemptError {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &attemptError{class: classTransport, message: "Request timeout"}
	}
	return &attemptError{class: classTransport, message: "Connection error"}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// BreakerStatus exposes circuit breaker state for health reporting.
func (c *Client) BreakerStatus() (state BreakerState, requests, failures uint32) {
	state = c.breaker.State()
	requests, failures = c.breaker.Counts()
	return
}
