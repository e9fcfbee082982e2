// Package projection folds an ordered event set into the current verification
// state of a linked account. The fold is pure, deterministic, and total:
// duplicates and out-of-order arrivals are discarded by the sequence guard, and
// unknown event types are tolerated as no-ops so newer writers cannot break
// older readers.
package projection

import (
	"sort"

	"tunelink/internal/linkedaccount/models"
)

// Project folds a full event set into a state. Returns nil for an empty set.
func Project(events []models.Event) *models.State {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Sequence != sorted[j].Sequence {
			return sorted[i].Sequence < sorted[j].Sequence
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	first := sorted[0]
	state := &models.State{
		AccountID: first.AccountID,
		UserID:    first.UserID,
		Platform:  first.Platform,
		Status:    models.StatusPending,
	}
	for _, event := range sorted {
		Apply(state, event)
	}
	return state
}

// Apply folds a single event into the state. Events at or below the already
// applied sequence are skipped entirely: no field is touched, which makes the
// fold safe under at-least-once redelivery and out-of-order arrival.
func Apply(state *models.State, event models.Event) {
	if event.Sequence <= state.Sequence {
		return
	}

	switch event.Type {
	case models.EventAccountCreated:
		state.Status = models.StatusPending
		if state.CreatedAt.IsZero() {
			state.CreatedAt = event.Timestamp
		}
		state.CorrelationID = event.CorrelationID
	case models.EventTokenIssued:
		state.Status = models.StatusTokenIssued
	case models.EventProofSubmitted:
		state.Status = models.StatusProofSubmitted
		state.Proof = event.Payload
	case models.EventProofAttached:
		state.Proof = event.Payload
	case models.EventProofInvalid:
		state.Status = models.StatusError
	case models.EventAccountVerified:
		state.Status = models.StatusVerified
		state.VerifiedAt = event.Timestamp
	case models.EventAccountLinked:
		state.Status = models.StatusVerified
		if state.VerifiedAt.IsZero() {
			state.VerifiedAt = event.Timestamp
		}
		if state.CreatedAt.IsZero() {
			state.CreatedAt = event.Timestamp
		}
	case models.EventAccountUnlinked:
		state.Status = models.StatusDeleted
	default:
		// Unknown event types are tolerated for forward compatibility.
	}

	state.Sequence = event.Sequence
	state.LastEventType = event.Type
}
