package protocol

import (
	"encoding/json"
	"errors"
)

// ErrMalformed reports an inbound frame that is not valid JSON. The boundary
// layer answers it with an error message and keeps the connection open.
var ErrMalformed = errors.New("malformed control frame")

// Frame is one decoded inbound control frame. The variant set is closed:
// anything syntactically valid but unrecognized decodes to Unknown.
type Frame interface{ isFrame() }

type baseFrame struct{}

func (baseFrame) isFrame() {}

// SubscribeCourt subscribes the connection to a court's update stream.
type SubscribeCourt struct {
	baseFrame
	CourtID string
}

// SubscribeGame subscribes the connection to a game's update stream.
type SubscribeGame struct {
	baseFrame
	GameID string
}

// SubscribeTournament subscribes the connection to a tournament's update stream.
type SubscribeTournament struct {
	baseFrame
	TournamentID string
}

// UnsubscribeCourt removes the connection from a court's update stream.
type UnsubscribeCourt struct {
	baseFrame
	CourtID string
}

// Ping requests a pong with a server timestamp.
type Ping struct {
	baseFrame
}

// Unknown is valid JSON the protocol does not recognize; it is ignored.
type Unknown struct {
	baseFrame
	Type string
}

// rawFrame is the superset of fields any control frame may carry.
type rawFrame struct {
	Type         string `json:"type"`
	CourtID      string `json:"court_id"`
	GameID       string `json:"game_id"`
	TournamentID string `json:"tournament_id"`
}

// Decode parses one inbound frame into its variant. Returns ErrMalformed for
// invalid JSON. A recognized type missing its topic id field decodes to
// Unknown, matching the silent-ignore behavior for incomplete requests.
func Decode(data []byte) (Frame, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrMalformed
	}

	switch raw.Type {
	case "subscribe_court":
		if raw.CourtID == "" {
			return Unknown{Type: raw.Type}, nil
		}
		return SubscribeCourt{CourtID: raw.CourtID}, nil
	case "unsubscribe_court":
		if raw.CourtID == "" {
			return Unknown{Type: raw.Type}, nil
		}
		return UnsubscribeCourt{CourtID: raw.CourtID}, nil
	case "subscribe_game":
		if raw.GameID == "" {
			return Unknown{Type: raw.Type}, nil
		}
		return SubscribeGame{GameID: raw.GameID}, nil
	case "subscribe_tournament":
		if raw.TournamentID == "" {
			return Unknown{Type: raw.Type}, nil
		}
		return SubscribeTournament{TournamentID: raw.TournamentID}, nil
	case "ping":
		return Ping{}, nil
	default:
		return Unknown{Type: raw.Type}, nil
	}
}
