package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/popeskul/waba-messenger/internal/models"
)

type ConversationListResponse struct {
	Conversations []*models.Conversation `json:"conversations"`
	Total         int64                  `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

// GetConversations handles GET /api/conversations.
func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryInt(w, r, "limit", 20, 100)
	if !ok {
		return
	}
	offset, ok := h.queryInt(w, r, "offset", 0, 0)
	if !ok {
		return
	}
	archived := r.URL.Query().Get("archived") == "true"

	conversations, total, err := h.service.Inbox.ListConversations(limit, offset, archived)
	if err != nil {
		h.logError(r, "Failed to list conversations", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve conversations")
		return
	}

	render.JSON(w, r, ConversationListResponse{
		Conversations: conversations,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	})
}

// MarkConversationRead handles POST /api/conversations/{userID}/read.
func (h *Handler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	found, err := h.service.Inbox.MarkConversationRead(userID)
	if err != nil {
		h.logError(r, "Failed to mark conversation read", err)
		h.sendError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to mark conversation as read")
		return
	}
	if !found {
		h.sendError(w, r, http.StatusNotFound, errorCodeNotFound, "Conversation not found")
		return
	}

	render.JSON(w, r, map[string]string{"status": "ok"})
}
