package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/middleware"
	"github.com/popeskul/waba-messenger/internal/models"
)

const signatureHeader = "X-Hub-Signature-256"

// VerifyWebhook handles GET /webhook, the gateway's subscription handshake.
// A valid token echoes the challenge back as plain text.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if !h.service.Webhook.VerifyToken(mode, token) {
		h.sendError(w, r, http.StatusForbidden, errorCodeInvalidSignature, "Webhook verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// ReceiveWebhook handles POST /webhook. Events are acknowledged with 200
// even when processing fails; the storage layer tolerates the gateway
// redelivering, and a retry storm helps nobody.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "Failed to read request body")
		return
	}

	if !h.service.Webhook.VerifySignature(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("Webhook signature verification failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("remote_addr", r.RemoteAddr))
		h.sendError(w, r, http.StatusForbidden, errorCodeInvalidSignature, "Invalid payload signature")
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "Invalid webhook payload")
		return
	}

	if err := h.service.Webhook.ProcessPayload(r.Context(), &payload); err != nil {
		h.logError(r, "Failed to process webhook payload", err)
	}

	render.JSON(w, r, map[string]string{"status": "received"})
}
