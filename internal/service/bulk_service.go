package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/config"
	"github.com/popeskul/waba-messenger/internal/gateway"
	"github.com/popeskul/waba-messenger/internal/models"
	"github.com/popeskul/waba-messenger/internal/repository"
)

const (
	namePlaceholder    = "{name}"
	defaultContactName = "Customer"
)

type bulkService struct {
	cfg     *config.BulkConfig
	repo    repository.Repository
	gateway Gateway
	logger  *zap.Logger
}

func NewBulkService(
	cfg *config.BulkConfig,
	repo repository.Repository,
	gw Gateway,
	logger *zap.Logger,
) BulkService {
	return &bulkService{
		cfg:     cfg,
		repo:    repo,
		gateway: gw,
		logger:  logger,
	}
}

// ValidateContacts splits a contact list into sendable and rejected entries.
// Row numbers are 1-based positions in the submitted list.
func (s *bulkService) ValidateContacts(contacts []models.Contact) models.ContactValidation {
	result := models.ContactValidation{
		Valid:   make([]models.Contact, 0, len(contacts)),
		Invalid: make([]models.ContactFailure, 0),
	}

	for i, contact := range contacts {
		if reason, ok := s.rejectContact(contact); ok {
			result.Invalid = append(result.Invalid, models.ContactFailure{
				Phone: contact.Phone,
				Name:  contact.Name,
				Row:   i + 1,
				Error: reason,
			})
			continue
		}
		result.Valid = append(result.Valid, models.Contact{
			Phone: s.gateway.Normalize(contact.Phone),
			Name:  contact.Name,
		})
	}

	result.TotalValid = len(result.Valid)
	result.TotalInvalid = len(result.Invalid)
	return result
}

// SendBulk runs one campaign: validates the list, then sends the template
// text to each valid contact sequentially with a pause between sends, filling
// the {name} placeholder per contact. Invalid contacts count as failures in
// the report. Cancelling the context stops further sends; everything
// attempted so far stays persisted.
func (s *bulkService) SendBulk(ctx context.Context, template string, contacts []models.Contact, delaySeconds float64) (*models.CampaignReport, error) {
	if !strings.Contains(template, namePlaceholder) {
		return nil, fmt.Errorf("template must contain the %s placeholder", namePlaceholder)
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("contact list is empty")
	}
	if len(contacts) > s.cfg.MaxContacts {
		return nil, fmt.Errorf("contact list exceeds limit of %d", s.cfg.MaxContacts)
	}

	delay := s.clampDelay(delaySeconds)
	validation := s.ValidateContacts(contacts)

	report := &models.CampaignReport{
		CampaignID:         uuid.New().String(),
		Total:              len(contacts),
		SuccessfulContacts: make([]models.Contact, 0, len(validation.Valid)),
		FailedContacts:     append([]models.ContactFailure{}, validation.Invalid...),
	}

	s.logger.Info("Starting bulk campaign",
		zap.String("campaignID", report.CampaignID),
		zap.String("template", template),
		zap.Int("total", report.Total),
		zap.Int("invalid", validation.TotalInvalid),
		zap.Float64("delaySeconds", delay))

	for i, contact := range validation.Valid {
		if i > 0 {
			if err := sleepContext(ctx, time.Duration(delay*float64(time.Second))); err != nil {
				s.logger.Warn("Bulk campaign cancelled",
					zap.String("campaignID", report.CampaignID),
					zap.Int("sent", i))
				break
			}
		}

		body := personalize(template, contact.Name)
		outcome := s.gateway.SendText(ctx, contact.Phone, body)

		if err := s.persistCampaignMessage(report.CampaignID, body, contact, outcome); err != nil {
			s.logger.Error("Failed to persist campaign message",
				zap.String("campaignID", report.CampaignID),
				zap.String("phone", contact.Phone),
				zap.Error(err))
		}

		if outcome.Success {
			report.SuccessfulContacts = append(report.SuccessfulContacts, contact)
		} else {
			report.FailedContacts = append(report.FailedContacts, models.ContactFailure{
				Phone: contact.Phone,
				Name:  contact.Name,
				Error: outcome.ErrorMessage,
			})
		}

		if ctx.Err() != nil {
			break
		}
	}

	report.Successful = len(report.SuccessfulContacts)
	report.Failed = len(report.FailedContacts)
	if report.Total > 0 {
		report.SuccessRate = math.Round(float64(report.Successful)/float64(report.Total)*10000) / 100
	}

	s.logger.Info("Bulk campaign finished",
		zap.String("campaignID", report.CampaignID),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
		zap.Float64("successRate", report.SuccessRate))

	return report, nil
}

func (s *bulkService) rejectContact(contact models.Contact) (string, bool) {
	digits := gateway.DigitCount(contact.Phone)
	switch {
	case digits < 10:
		return fmt.Sprintf("Invalid phone number (too short: %d digits)", digits), true
	case digits > 15:
		return fmt.Sprintf("Invalid phone number (too long: %d digits)", digits), true
	}
	return "", false
}

func (s *bulkService) clampDelay(delaySeconds float64) float64 {
	if delaySeconds == 0 {
		delaySeconds = s.cfg.DefaultDelay
	}
	if delaySeconds < s.cfg.MinDelay {
		return s.cfg.MinDelay
	}
	if delaySeconds > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delaySeconds
}

// personalize fills the {name} placeholder. Blank names fall back to a
// generic salutation.
func personalize(template, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultContactName
	}
	return strings.ReplaceAll(template, namePlaceholder, name)
}

func (s *bulkService) persistCampaignMessage(campaignID, body string, contact models.Contact, outcome models.DispatchOutcome) error {
	msg := &models.Message{
		UserID:      contact.Phone,
		Direction:   models.DirectionOutbound,
		MessageType: models.MessageTypeText,
		Body:        body,
		Timestamp:   time.Now(),
		CampaignID:  sql.NullString{String: campaignID, Valid: true},
	}

	if outcome.Success {
		msg.Status = models.MessageStatusSent
		msg.GatewayMessageID = sql.NullString{String: outcome.GatewayMessageID, Valid: true}
	} else {
		msg.Status = models.MessageStatusFailed
		msg.ErrorReason = sql.NullString{String: outcome.ErrorMessage, Valid: true}
	}

	if _, err := s.repo.Message().Insert(msg); err != nil {
		return err
	}
	return s.repo.Conversation().UpsertOnMessage(msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
