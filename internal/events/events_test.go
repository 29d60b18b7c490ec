package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreUpdate(t *testing.T) {
	msg := ScoreUpdate("G1", 10, 8, "05:42", 2, "And-one layup")

	assert.Equal(t, "score_update", msg.Type)
	assert.Equal(t, "G1", msg.Fields["game_id"])
	assert.Equal(t, 10, msg.Fields["team1_score"])
	assert.Equal(t, 8, msg.Fields["team2_score"])
	assert.Equal(t, 2, msg.Fields["period"])
}

func TestCheckinEvents(t *testing.T) {
	in := PlayerCheckedIn("V1", "u1", "card-9")
	assert.Equal(t, "player_checked_in", in.Type)
	assert.Equal(t, "V1", in.Fields["court_id"])

	out := PlayerCheckedOut("V1", "u1", "card-9")
	assert.Equal(t, "player_checked_out", out.Type)
	assert.Equal(t, "card-9", out.Fields["rfid_card_uid"])
}

func TestTournamentEvents(t *testing.T) {
	created := TournamentCreated(map[string]any{"id": "T1", "name": "Summer Slam"})
	assert.Equal(t, "tournament_created", created.Type)

	registered := ParticipantRegistered("T1", "u2", 12)
	assert.Equal(t, "participant_registered", registered.Type)
	assert.Equal(t, 12, registered.Fields["participant_count"])
}

func TestUserJoinedGame(t *testing.T) {
	msg := UserJoinedGame("G1", "u3", "spectator", "live")
	assert.Equal(t, "user_joined", msg.Type)
	assert.Equal(t, "spectator", msg.Fields["role"])
	assert.Equal(t, "live", msg.Fields["session_type"])
}
