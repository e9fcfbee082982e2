// Package messages defines the wire contract between the verification
// coordinator and the remote proof checker. Both messages travel over Kafka
// with at-least-once delivery; every consumer of them must tolerate
// redelivery.
package messages

import (
	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
)

const (
	// TopicVerifyCommand carries VerifyAccountCommand from the coordinator
	// to the checker.
	TopicVerifyCommand = "tunelink.verify.command"
	// TopicVerifyResult carries VerifyAccountResult from the checker back
	// to the result consumer.
	TopicVerifyResult = "tunelink.verify.result"
)

const (
	// HeaderCorrelationID propagates the stream's correlation id across the
	// async hand-off.
	HeaderCorrelationID = "correlation-id"
	// HeaderTokenKey names the secret-store key holding the challenge token,
	// so the checker never has to re-derive it.
	HeaderTokenKey = "token-key"
)

// VerifyAccountCommand asks the checker to confirm that the challenge token
// is embedded in content the account controls.
type VerifyAccountCommand struct {
	UserID    id.UserID       `json:"user_id"`
	AccountID string          `json:"account_id"`
	Platform  models.Platform `json:"platform"`
	Token     string          `json:"token"`
}

// VerifyAccountResult is the checker's single, definite outcome for a command.
// A result is only published when the checker reached a verdict; ambiguous
// infrastructure failures are never encoded here.
type VerifyAccountResult struct {
	UserID    id.UserID `json:"user_id"`
	AccountID string    `json:"account_id"`
	Verified  bool      `json:"verified"`
	Proof     *string   `json:"proof,omitempty"`
	Error     *string   `json:"error,omitempty"`
}
