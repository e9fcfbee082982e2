package handler

import (
	"time"

	"tunelink/internal/linkedaccount/service"
)

// AddAccountResponse is the HTTP response for POST /accounts.
type AddAccountResponse struct {
	OK        bool   `json:"ok"`
	AccountID string `json:"account_id,omitempty"`
	Reason    string `json:"reason"`
}

// TokenResponse is the HTTP response for the challenge-token endpoint.
type TokenResponse struct {
	Token string `json:"token"`
}

// StartVerifyResponse is the HTTP response for the verify endpoint.
type StartVerifyResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message,omitempty"`
}

// StateResponse is the HTTP response for the verification-state endpoint.
type StateResponse struct {
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FromSummary converts a projection summary to an HTTP response.
func FromSummary(summary *service.StateSummary) *StateResponse {
	return &StateResponse{
		Status:    string(summary.Status),
		CreatedAt: summary.CreatedAt,
	}
}
