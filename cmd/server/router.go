package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/popeskul/waba-messenger/internal/handler"
)

func setupRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)

	// Gateway callback surface
	r.Get("/webhook", h.VerifyWebhook)
	r.Post("/webhook", h.ReceiveWebhook)

	// Realtime subscribers
	r.Get("/ws", h.Notifications)

	r.Route("/api", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Post("/text", h.SendTextMessage)
			r.Post("/template", h.SendTemplateMessage)
			r.Post("/media", h.SendMediaMessage)
			r.Get("/search", h.SearchMessages)
			r.Get("/{userID}", h.GetMessages)
			r.Post("/{messageID}/read", h.MarkMessageRead)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.GetConversations)
			r.Post("/{userID}/read", h.MarkConversationRead)
		})

		r.Route("/bulk", func(r chi.Router) {
			r.Post("/send", h.SendBulk)
			r.Post("/validate", h.ValidateContacts)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Post("/start", h.StartScheduler)
			r.Post("/stop", h.StopScheduler)
		})

		r.Get("/connections", h.ConnectionCount)
	})

	return r
}
