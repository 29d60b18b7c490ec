// Package events builds the ready-made messages application code publishes
// through the realtime registry. The registry stamps timestamps; constructors
// here only shape payloads.
package events

import (
	"github.com/TayDaGreatDIY/phase-2-complete/internal/realtime"
)

// ScoreUpdate is published to a game topic when a live score changes.
func ScoreUpdate(gameID string, team1Score, team2Score int, gameTime string, period int, eventDescription string) realtime.Message {
	return realtime.NewMessage("score_update", map[string]any{
		"game_id":           gameID,
		"team1_score":       team1Score,
		"team2_score":       team2Score,
		"game_time":         gameTime,
		"period":            period,
		"event_description": eventDescription,
	})
}

// PlayerCheckedIn is published to a court topic on an RFID check-in.
func PlayerCheckedIn(courtID, userID, cardUID string) realtime.Message {
	return realtime.NewMessage("player_checked_in", map[string]any{
		"court_id":      courtID,
		"user_id":       userID,
		"rfid_card_uid": cardUID,
	})
}

// PlayerCheckedOut is published to a court topic on an RFID check-out.
func PlayerCheckedOut(courtID, userID, cardUID string) realtime.Message {
	return realtime.NewMessage("player_checked_out", map[string]any{
		"court_id":      courtID,
		"user_id":       userID,
		"rfid_card_uid": cardUID,
	})
}

// TournamentCreated is published to the general scope when a tournament opens.
func TournamentCreated(tournament any) realtime.Message {
	return realtime.NewMessage("tournament_created", map[string]any{
		"tournament": tournament,
	})
}

// ParticipantRegistered is published to a tournament topic on registration.
func ParticipantRegistered(tournamentID, userID string, participantCount int) realtime.Message {
	return realtime.NewMessage("participant_registered", map[string]any{
		"tournament_id":     tournamentID,
		"user_id":           userID,
		"participant_count": participantCount,
	})
}

// UserJoinedGame is published to a game topic when a viewer or player joins
// a live session.
func UserJoinedGame(gameID, userID, role, sessionType string) realtime.Message {
	return realtime.NewMessage("user_joined", map[string]any{
		"game_id":      gameID,
		"user_id":      userID,
		"role":         role,
		"session_type": sessionType,
	})
}
