// Package models holds the event-sourced vocabulary for linked external
// accounts: the immutable event facts, the derived projection state, and the
// platform/status enumerations shared by the coordinator, the checker, and the
// consumers.
package models

import (
	"encoding/json"
	"time"

	id "tunelink/pkg/domain"
)

// Platform identifies an external content platform.
type Platform string

const (
	PlatformSpotify      Platform = "spotify"
	PlatformAppleMusic   Platform = "applemusic"
	PlatformDeezer       Platform = "deezer"
	PlatformSoundCloud   Platform = "soundcloud"
	PlatformYouTubeMusic Platform = "youtubemusic"
)

// knownPlatforms is the allowlist enforced at trust boundaries. The bool marks
// whether the platform exposes a public content listing we can scan for a
// challenge token.
var knownPlatforms = map[Platform]bool{
	PlatformSpotify:      true,
	PlatformDeezer:       true,
	PlatformSoundCloud:   true,
	PlatformAppleMusic:   false,
	PlatformYouTubeMusic: false,
}

// ParsePlatform validates a platform string against the allowlist.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(s)
	_, ok := knownPlatforms[p]
	return p, ok
}

// SupportsVerification reports whether content-based ownership verification is
// available for the platform.
func (p Platform) SupportsVerification() bool {
	return knownPlatforms[p]
}

func (p Platform) String() string { return string(p) }

// EventType enumerates linked-account facts.
type EventType string

const (
	EventAccountCreated  EventType = "AccountCreated"
	EventTokenIssued     EventType = "TokenIssued"
	EventProofSubmitted  EventType = "ProofSubmitted"
	EventProofAttached   EventType = "ProofAttached"
	EventProofInvalid    EventType = "ProofInvalid"
	EventAccountVerified EventType = "AccountVerified"
	EventAccountLinked   EventType = "AccountLinked"
	EventAccountUnlinked EventType = "AccountUnlinked"
)

// Status is the derived verification status of a stream.
type Status string

const (
	StatusPending        Status = "pending"
	StatusTokenIssued    Status = "token_issued"
	StatusProofSubmitted Status = "proof_submitted"
	StatusError          Status = "error"
	StatusVerified       Status = "verified"
	StatusDeleted        Status = "deleted"
)

// Event is an immutable linked-account fact. Events are never updated or
// deleted; a stream is identified by (AccountID, Platform, UserID).
type Event struct {
	ID            id.EventID
	AccountID     string
	UserID        id.UserID
	Platform      Platform
	Type          EventType
	Sequence      int64
	CorrelationID string
	Payload       json.RawMessage
	Timestamp     time.Time
}

// AppendRequest carries everything the store needs to persist a new fact.
// Sequence, ID, and Timestamp are assigned at append time by the store.
type AppendRequest struct {
	AccountID     string
	UserID        id.UserID
	Platform      Platform
	Type          EventType
	CorrelationID string
	Payload       json.RawMessage
}

// State is the projection derived from a stream's events. It carries no hidden
// mutable state: replaying the log always reconstructs it.
type State struct {
	AccountID     string
	UserID        id.UserID
	Platform      Platform
	Status        Status
	Sequence      int64
	LastEventType EventType
	CreatedAt     time.Time
	VerifiedAt    time.Time
	CorrelationID string
	Proof         json.RawMessage
}

// ProofPayload is the structured payload attached to ProofSubmitted and
// ProofAttached events: where the challenge token was found.
type ProofPayload struct {
	ItemID string `json:"item_id"`
	Token  string `json:"token,omitempty"`
}
