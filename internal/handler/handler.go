// Package handler provides HTTP request handlers for the application.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/middleware"
	"github.com/popeskul/waba-messenger/internal/service"
)

const (
	errorCodeValidation       = "VALIDATION_ERROR"
	errorCodeInvalidSignature = "INVALID_SIGNATURE"
	errorCodeNotFound         = "NOT_FOUND"
	errorCodeGateway          = "GATEWAY_ERROR"

	errorCodeSchedulerAlreadyRunning = "SCHEDULER_ALREADY_RUNNING"
	errorCodeSchedulerNotRunning     = "SCHEDULER_NOT_RUNNING"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is the realtime surface the handlers need.
type Hub interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
	ConnectionCount() int
}

type Handler struct {
	service  *service.Service
	hub      Hub
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, hub Hub, logger *zap.Logger) *Handler {
	return &Handler{
		service:  svc,
		hub:      hub,
		logger:   logger,
		validate: validator.New(),
	}
}

// decode unmarshals and validates a JSON request body. It writes the error
// response itself and reports whether the caller should proceed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, "Invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation, err.Error())
		return false
	}

	return true
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error:     errorCode,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err))
}

// queryInt parses a non-negative integer query parameter. A malformed or
// negative value is rejected with a validation error; the second return
// reports whether the caller should proceed.
func (h *Handler) queryInt(w http.ResponseWriter, r *http.Request, name string, fallback, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		h.sendError(w, r, http.StatusBadRequest, errorCodeValidation,
			fmt.Sprintf("Invalid %s parameter", name))
		return 0, false
	}
	if max > 0 && value > max {
		return max, true
	}
	return value, true
}
