package projection

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
)

func newEvent(seq int64, eventType models.EventType, at time.Time) models.Event {
	return models.Event{
		ID:        id.NewEventID(),
		AccountID: "acct-1",
		UserID:    id.UserID(uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")),
		Platform:  models.PlatformSpotify,
		Type:      eventType,
		Sequence:  seq,
		Timestamp: at,
	}
}

func TestProject_EmptyStream(t *testing.T) {
	assert.Nil(t, Project(nil))
	assert.Nil(t, Project([]models.Event{}))
}

func TestProject_FullVerificationFlow(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	proof, err := json.Marshal(models.ProofPayload{ItemID: "playlist-9", Token: "abc"})
	require.NoError(t, err)

	created := newEvent(1, models.EventAccountCreated, base)
	created.CorrelationID = "corr-1"
	submitted := newEvent(3, models.EventProofSubmitted, base.Add(2*time.Minute))
	submitted.Payload = proof

	events := []models.Event{
		created,
		newEvent(2, models.EventTokenIssued, base.Add(time.Minute)),
		submitted,
		newEvent(4, models.EventAccountVerified, base.Add(3*time.Minute)),
	}

	state := Project(events)
	require.NotNil(t, state)
	assert.Equal(t, models.StatusVerified, state.Status)
	assert.Equal(t, int64(4), state.Sequence)
	assert.Equal(t, models.EventAccountVerified, state.LastEventType)
	assert.Equal(t, "corr-1", state.CorrelationID)
	assert.Equal(t, base, state.CreatedAt)
	assert.Equal(t, base.Add(3*time.Minute), state.VerifiedAt)

	var attached models.ProofPayload
	require.NoError(t, json.Unmarshal(state.Proof, &attached))
	assert.Equal(t, "abc", attached.Token)
	assert.Equal(t, "playlist-9", attached.ItemID)
}

// TestApply_SequenceGuard covers duplicate and stale delivery: an event at or
// below the applied sequence must not mutate anything at all.
func TestApply_SequenceGuard(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	state := Project([]models.Event{
		newEvent(1, models.EventAccountCreated, base),
		newEvent(5, models.EventTokenIssued, base.Add(time.Minute)),
	})
	require.NotNil(t, state)
	require.Equal(t, models.StatusTokenIssued, state.Status)

	before := *state
	Apply(state, newEvent(5, models.EventProofInvalid, base.Add(2*time.Minute)))

	assert.Equal(t, before, *state, "same-sequence event must be ignored entirely")
	assert.Equal(t, models.StatusTokenIssued, state.Status)
	assert.Equal(t, models.EventTokenIssued, state.LastEventType)
}

func TestApply_IdempotentForAppliedSequences(t *testing.T) {
	base := time.Now().UTC()
	events := []models.Event{
		newEvent(1, models.EventAccountCreated, base),
		newEvent(2, models.EventTokenIssued, base.Add(time.Second)),
		newEvent(3, models.EventAccountVerified, base.Add(2*time.Second)),
	}
	state := Project(events)
	require.NotNil(t, state)

	for _, event := range events {
		before := *state
		Apply(state, event)
		assert.Equal(t, before, *state, "re-applying %s must be a no-op", event.Type)
	}
}

// TestProject_OrderInsensitive folds random permutations of the same event set
// and requires convergence to one final state.
func TestProject_OrderInsensitive(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []models.Event{
		newEvent(1, models.EventAccountCreated, base),
		newEvent(2, models.EventTokenIssued, base.Add(time.Minute)),
		newEvent(3, models.EventProofSubmitted, base.Add(2*time.Minute)),
		newEvent(4, models.EventAccountVerified, base.Add(3*time.Minute)),
		newEvent(5, models.EventAccountLinked, base.Add(3*time.Minute)),
	}

	want := Project(events)
	require.NotNil(t, want)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Event, len(events))
		copy(shuffled, events)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := Project(shuffled)
		require.NotNil(t, got)
		assert.Equal(t, want, got, "permutation %d diverged", i)
	}
}

func TestApply_UnknownEventType(t *testing.T) {
	base := time.Now().UTC()
	state := Project([]models.Event{newEvent(1, models.EventAccountCreated, base)})
	require.NotNil(t, state)

	unknown := newEvent(2, models.EventType("AccountRenamed"), base.Add(time.Second))
	Apply(state, unknown)

	assert.Equal(t, models.StatusPending, state.Status, "unknown types must not change status")
	assert.Equal(t, int64(2), state.Sequence)
	assert.Equal(t, models.EventType("AccountRenamed"), state.LastEventType)
}

func TestApply_LinkedWithoutVerifiedSetsTimestamps(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	state := Project([]models.Event{newEvent(1, models.EventAccountLinked, at)})
	require.NotNil(t, state)

	assert.Equal(t, models.StatusVerified, state.Status)
	assert.Equal(t, at, state.VerifiedAt)
	assert.Equal(t, at, state.CreatedAt)
}

func TestApply_UnlinkIsTerminal(t *testing.T) {
	base := time.Now().UTC()
	state := Project([]models.Event{
		newEvent(1, models.EventAccountCreated, base),
		newEvent(2, models.EventAccountVerified, base.Add(time.Second)),
		newEvent(3, models.EventAccountUnlinked, base.Add(2*time.Second)),
	})
	require.NotNil(t, state)
	assert.Equal(t, models.StatusDeleted, state.Status)
	assert.Equal(t, models.EventAccountUnlinked, state.LastEventType)
}
