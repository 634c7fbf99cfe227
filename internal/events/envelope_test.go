package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Morgiver/invitation-core/internal/domain"
)

func TestEncode(t *testing.T) {
	remaining := 0
	data, err := Encode(domain.Used{
		ID:            "inv-1",
		Code:          "WELCOME1",
		UsedBy:        "alice",
		UsedAt:        eventTime,
		UsageCount:    1,
		RemainingUses: &remaining,
		IsExhausted:   true,
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, domain.KindUsed, env.Kind)
	assert.Equal(t, "inv-1", env.InvitationID)
	assert.True(t, eventTime.Equal(env.OccurredAt))
	assert.JSONEq(t, `{
		"invitation_id": "inv-1",
		"code": "WELCOME1",
		"used_by": "alice",
		"used_at": "2026-01-10T12:00:00Z",
		"usage_count": 1,
		"remaining_uses": 0,
		"is_exhausted": true
	}`, string(env.Payload))
}

func TestDecode(t *testing.T) {
	reason := "leaked"
	events := []domain.Event{
		domain.Revoked{ID: "inv-1", Code: "WELCOME1", RevokedBy: "admin", RevokedAt: eventTime, Reason: &reason},
		domain.LimitReached{ID: "inv-2", Code: "TEAMCODE", UsageLimit: 3, FinalUsedBy: "carol", ReachedAt: eventTime},
	}
	for _, event := range events {
		t.Run(string(event.Kind()), func(t *testing.T) {
			data, err := Encode(event)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, event, decoded)
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Decode([]byte(`{"kind":"invitation.renamed","payload":{}}`))
		assert.ErrorContains(t, err, "unknown event kind")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Decode([]byte(`not json`))
		assert.Error(t, err)
	})
}
