package dto

import "github.com/diogomassis/payfriend/internal/models"

// SendPaymentResponse is the body of POST /payments/send.
type SendPaymentResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
}

// DecisionResponse answers the one-touch callback and the SMS code check.
type DecisionResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// LandingResponse is what the exit targets render after a navigation.
type LandingResponse struct {
	Flash    string                    `json:"flash,omitempty"`
	Payments []models.CompletedPayment `json:"payments"`
}
