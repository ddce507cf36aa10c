package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/models"
)

type BulkSendRequest struct {
	Template     string           `json:"template" validate:"required,contains={name}"`
	Contacts     []models.Contact `json:"contacts" validate:"required,min=1,dive"`
	DelaySeconds float64          `json:"delay_seconds" validate:"gte=0"`
}

type ValidateContactsRequest struct {
	Contacts []models.Contact `json:"contacts" validate:"required,min=1,dive"`
}

// SendBulk handles POST /api/bulk/send. The campaign runs synchronously;
// the response is the full report.
func (h *Handler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkSendRequest
	if !h.decode(w, r, &req) {
		return
	}

	// A large campaign takes minutes; the server write deadline would cut
	// the response off mid-run.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("Failed to clear write deadline for campaign response", zap.Error(err))
	}

	report, err := h.service.Bulk.SendBulk(r.Context(), req.Template, req.Contacts, req.DelaySeconds)
	if err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
		return
	}

	render.JSON(w, r, report)
}

// ValidateContacts handles POST /api/bulk/validate, a dry run of the
// campaign contact checks.
func (h *Handler) ValidateContacts(w http.ResponseWriter, r *http.Request) {
	var req ValidateContactsRequest
	if !h.decode(w, r, &req) {
		return
	}

	render.JSON(w, r, h.service.Bulk.ValidateContacts(req.Contacts))
}
