package livefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geokazi/chores2026-sub003/internal/domain"
)

func TestDecodeMessage_LeaderboardUpdate(t *testing.T) {
	data := []byte(`{"type":"leaderboard_update","leaderboard":[{"user_id":"u1","points":10},{"user_id":"u2","points":7}]}`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)

	update, ok := msg.(LeaderboardUpdate)
	require.True(t, ok, "expected LeaderboardUpdate, got %T", msg)
	assert.Equal(t, []domain.LeaderboardEntry{
		{MemberID: "u1", Points: 10},
		{MemberID: "u2", Points: 7},
	}, update.Entries)
	assert.Equal(t, TypeLeaderboardUpdate, msg.Type())
}

func TestDecodeMessage_ChoreCompleted(t *testing.T) {
	data := []byte(`{"type":"chore_completed","activity":{"family_id":"fam-1","member_id":"kid-1","chore_name":"dishes","points":5}}`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)

	update, ok := msg.(ActivityUpdate)
	require.True(t, ok, "expected ActivityUpdate, got %T", msg)
	assert.Equal(t, "fam-1", update.Record.FamilyID)
	assert.Equal(t, "kid-1", update.Record.MemberID)
	assert.Equal(t, "dishes", update.Record.ChoreName)
	assert.Equal(t, 5, update.Record.Points)
}

func TestDecodeMessage_StatusNotices(t *testing.T) {
	for _, kind := range []string{TypeFeatureDisabled, TypeFallbackMode} {
		msg, err := DecodeMessage([]byte(`{"type":"` + kind + `"}`))
		require.NoError(t, err)

		notice, ok := msg.(Notice)
		require.True(t, ok, "expected Notice, got %T", msg)
		assert.Equal(t, kind, notice.Kind)
	}
}

func TestDecodeMessage_UnknownKindIsGeneric(t *testing.T) {
	data := []byte(`{"type":"server_announcement","text":"hi"}`)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)

	generic, ok := msg.(Generic)
	require.True(t, ok, "expected Generic, got %T", msg)
	assert.Equal(t, "server_announcement", generic.Kind)
	assert.JSONEq(t, string(data), string(generic.Payload))
}

func TestDecodeMessage_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"invalid json":     []byte(`{not json`),
		"missing type tag": []byte(`{"leaderboard":[]}`),
		"empty type tag":   []byte(`{"type":""}`),
		"bad payload":      []byte(`{"type":"leaderboard_update","leaderboard":"nope"}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMessage(data)
			require.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}
