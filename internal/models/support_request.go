package models

import "time"

// SupportRequest is a customer support ticket
type SupportRequest struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	Subject    string    `db:"subject" json:"subject"`
	Message    string    `db:"message" json:"message"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// NewSupportRequest creates a support request in its initial status
func NewSupportRequest(customerID, subject, message string) *SupportRequest {
	now := GetCurrentTime()

	return &SupportRequest{
		ID:         GenerateID("sr"),
		CustomerID: customerID,
		Subject:    subject,
		Message:    message,
		Status:     SupportRequestStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
