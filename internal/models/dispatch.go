package models

// DispatchOutcome is the result of one outbound send, inclusive of retries.
// Send paths never fail past this boundary; callers inspect Success.
type DispatchOutcome struct {
	Success          bool   `json:"success"`
	GatewayMessageID string `json:"message_id,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	ErrorMessage     string `json:"error,omitempty"`
}

// Contact is one (phone, name) pair in a bulk campaign.
type Contact struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name" validate:"required"`
}

// ContactFailure records why a contact was rejected or failed to send.
type ContactFailure struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Row   int    `json:"row,omitempty"`
	Error string `json:"error"`
}

// ContactValidation splits a contact list into sendable and rejected parts.
type ContactValidation struct {
	Valid        []Contact        `json:"valid"`
	Invalid      []ContactFailure `json:"invalid"`
	TotalValid   int              `json:"total_valid"`
	TotalInvalid int              `json:"total_invalid"`
}

// CampaignReport aggregates one bulk run. Every attempted message stays
// persisted with its outcome regardless of how the run ends.
type CampaignReport struct {
	CampaignID         string           `json:"campaign_id"`
	Total              int              `json:"total"`
	Successful         int              `json:"successful"`
	Failed             int              `json:"failed"`
	SuccessRate        float64          `json:"success_rate"`
	SuccessfulContacts []Contact        `json:"successful_contacts"`
	FailedContacts     []ContactFailure `json:"failed_contacts"`
}
