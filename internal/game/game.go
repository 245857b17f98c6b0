package game

import (
	"encoding/json"
	"math/rand/v2"
)

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name        string `json:"name"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`
	Description string `json:"description,omitempty"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	PlayerIDs []string
	// Bots maps the computer-controlled players in PlayerIDs to a difficulty.
	Bots map[string]string
	// FirstRound and LastRound bound the rounds played; zero means the game's default.
	FirstRound int
	LastRound  int
	Seed       uint64
}

// Action represents a move a player can make.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Rank     int    `json:"rank"` // 1 = first place
	Score    int    `json:"score"`
}

// Event is something public that happened in a match.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RoundSummary is the payload of a round-complete event. Stores record it.
type RoundSummary struct {
	Round   int            `json:"round"`
	Winner  string         `json:"winner"`
	Results []PlayerResult `json:"results"`
}

// Event types shared by every game.
const (
	EventMatchStarted  = "match_started"
	EventAction        = "action"
	EventRoundComplete = "round_complete"
	EventMatchOver     = "match_over"
)

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
	// LoadMatch rebuilds a match from its MarshalJSON output.
	LoadMatch(data []byte) (Match, error)
}

// Match is one in-progress game session.
type Match interface {
	State(playerID string) any
	ValidActions(playerID string) []Action
	ApplyAction(playerID string, action Action) error
	IsOver() bool
	Results() []PlayerResult
	// MarshalJSON / UnmarshalJSON support for persistence
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(data []byte) error
}

// EventSource is implemented by matches that report what happened since the
// last call.
type EventSource interface {
	DrainEvents() []Event
}

// BotDriver is implemented by matches with computer-controlled players.
// NextBotAction returns the move for the bot whose turn it is, if any.
type BotDriver interface {
	NextBotAction(rng *rand.Rand) (playerID string, action Action, ok bool)
}
