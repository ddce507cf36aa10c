package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/popeskul/waba-messenger/internal/gateway"
	"github.com/popeskul/waba-messenger/internal/models"
)

type SendTextRequest struct {
	To      string `json:"to" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type SendTemplateRequest struct {
	To           string   `json:"to" validate:"required"`
	TemplateName string   `json:"template_name" validate:"required"`
	Params       []string `json:"params"`
	LanguageCode string   `json:"language_code"`
}

type SendMediaRequest struct {
	To        string `json:"to" validate:"required"`
	MediaType string `json:"media_type" validate:"required,oneof=image video audio document"`
	MediaRef  string `json:"media_ref" validate:"required"`
	Caption   string `json:"caption"`
}

type MessageListResponse struct {
	Messages []*models.Message `json:"messages"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// SendTextMessage handles POST /api/messages/text.
func (h *Handler) SendTextMessage(w http.ResponseWriter, r *http.Request) {
	var req SendTextRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.Message.SendText(r.Context(), req.To, req.Message)
	if err != nil {
		h.logError(r, "Failed to record outbound message", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record message")
		return
	}

	render.JSON(w, r, outcome)
}

// SendTemplateMessage handles POST /api/messages/template.
func (h *Handler) SendTemplateMessage(w http.ResponseWriter, r *http.Request) {
	var req SendTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}

	params := make([]gateway.TemplateParam, 0, len(req.Params))
	for _, p := range req.Params {
		params = append(params, gateway.TemplateParam{Type: "text", Text: p})
	}

	outcome, err := h.service.Message.SendTemplate(r.Context(), req.To, req.TemplateName, params, req.LanguageCode)
	if err != nil {
		h.logError(r, "Failed to record outbound template message", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record message")
		return
	}

	render.JSON(w, r, outcome)
}

// SendMediaMessage handles POST /api/messages/media.
func (h *Handler) SendMediaMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMediaRequest
	if !h.decode(w, r, &req) {
		return
	}

	outcome, err := h.service.Message.SendMedia(r.Context(), req.To, req.MediaType, req.MediaRef, req.Caption)
	if err != nil {
		h.logError(r, "Failed to record outbound media message", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record message")
		return
	}

	render.JSON(w, r, outcome)
}

// GetMessages handles GET /api/messages/{userID}.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit, ok := h.queryInt(w, r, "limit", 50, 200)
	if !ok {
		return
	}
	offset, ok := h.queryInt(w, r, "offset", 0, 0)
	if !ok {
		return
	}
	sinceDays, ok := h.queryInt(w, r, "since_days", 0, 365)
	if !ok {
		return
	}

	messages, total, err := h.service.Message.ListMessages(userID, limit, offset, sinceDays)
	if err != nil {
		h.logError(r, "Failed to list messages", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve messages")
		return
	}

	render.JSON(w, r, MessageListResponse{
		Messages: messages,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// SearchMessages handles GET /api/messages/search.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "Query parameter q is required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	limit, ok := h.queryInt(w, r, "limit", 20, 100)
	if !ok {
		return
	}

	messages, err := h.service.Message.SearchMessages(query, userID, limit)
	if err != nil {
		h.logError(r, "Failed to search messages", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search messages")
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// MarkMessageRead handles POST /api/messages/{messageID}/read. The id is
// the gateway message id of an inbound message.
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	if err := h.service.Message.MarkMessageRead(r.Context(), messageID); err != nil {
		h.logError(r, "Failed to mark message read", err)
		h.sendError(w, r, http.StatusBadGateway, errorCodeGateway, "Failed to mark message as read")
		return
	}

	render.JSON(w, r, map[string]string{"status": "ok"})
}
