// Package domain holds typed identifiers shared across features. Typed IDs
// prevent cross-type assignment at compile time; parsing enforces validity at
// trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "tunelink/pkg/domain-errors"
)

// UserID identifies a user aggregate.
type UserID uuid.UUID

// EventID identifies a single linked-account event.
type EventID uuid.UUID

// NewEventID mints a random event ID.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseUserID validates and converts a string into a UserID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

func (id UserID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero value.
func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID as its canonical UUID string so JSON and other
// text encodings carry a string, not a byte array.
func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText parses a canonical UUID string.
func (id *UserID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id EventID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero value.
func (id EventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the ID as its canonical UUID string.
func (id EventID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText parses a canonical UUID string.
func (id *EventID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
