// Package carioca plays full Carioca matches: one round per contract, scores
// carried across rounds, computer players driven through the same actions as
// people.
package carioca

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"carioca/internal/bot"
	"carioca/internal/engine"
	"carioca/internal/game"
)

const (
	Name       = "carioca"
	MinPlayers = 2
	MaxPlayers = 4
	// DefaultMaxRecycles is how many times a round may reshuffle the discard
	// pile into the stock before it is closed as blocked.
	DefaultMaxRecycles = 1
)

// ErrMatchOver is returned for actions sent after the last round.
var ErrMatchOver = errors.New("match is over")

// Game implements game.Game.
type Game struct{}

func (Game) Info() game.GameInfo {
	return game.GameInfo{
		Name:        Name,
		MinPlayers:  MinPlayers,
		MaxPlayers:  MaxPlayers,
		Description: "Contract rummy over ten rounds with two decks and eight jokers",
	}
}

func (Game) NewMatch(config game.MatchConfig) (game.Match, error) {
	return New(config)
}

func (Game) LoadMatch(data []byte) (game.Match, error) {
	m := &Match{}
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	if m.Round == nil || len(m.Players) == 0 {
		return nil, fmt.Errorf("match state has no round")
	}
	return m, nil
}

// RoundRecord is the outcome of one finished round.
type RoundRecord struct {
	Contract int                 `json:"contract"`
	Winner   string              `json:"winner,omitempty"`
	Blocked  bool                `json:"blocked,omitempty"`
	Results  []engine.SeatResult `json:"results"`
}

// Match implements game.Match for Carioca.
type Match struct {
	Players     []string                  `json:"players"`
	Bots        map[string]bot.Difficulty `json:"bots,omitempty"`
	FirstRound  int                       `json:"firstRound"`
	LastRound   int                       `json:"lastRound"`
	MaxRecycles int                       `json:"maxRecycles"`
	Seed        uint64                    `json:"seed"`
	Round       *engine.Round             `json:"round"`
	Totals      map[string]int            `json:"totals"`
	History     []RoundRecord             `json:"history"`
	Done        bool                      `json:"done"`

	events []game.Event
}

// New validates config and deals the first round.
func New(config game.MatchConfig) (*Match, error) {
	n := len(config.PlayerIDs)
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("carioca needs %d-%d players, have %d", MinPlayers, MaxPlayers, n)
	}
	first, last := config.FirstRound, config.LastRound
	if first == 0 {
		first = 1
	}
	if last == 0 {
		last = engine.NumContracts
	}
	if first < 1 || last > engine.NumContracts || first > last {
		return nil, fmt.Errorf("rounds %d-%d: %w", first, last, engine.ErrUnknownContract)
	}

	m := &Match{
		Players:     slices.Clone(config.PlayerIDs),
		FirstRound:  first,
		LastRound:   last,
		MaxRecycles: DefaultMaxRecycles,
		Seed:        config.Seed,
		Totals:      make(map[string]int, n),
		History:     []RoundRecord{},
	}
	for _, p := range m.Players {
		m.Totals[p] = 0
	}
	for id, name := range config.Bots {
		if !slices.Contains(m.Players, id) {
			return nil, fmt.Errorf("bot %q: %w", id, engine.ErrUnknownPlayer)
		}
		d, err := bot.ParseDifficulty(name)
		if err != nil {
			return nil, fmt.Errorf("bot %q: %w", id, err)
		}
		if m.Bots == nil {
			m.Bots = make(map[string]bot.Difficulty)
		}
		m.Bots[id] = d
	}
	if err := m.deal(first); err != nil {
		return nil, err
	}
	return m, nil
}

// deal starts the round for contract. The opening seat moves one place left
// every round.
func (m *Match) deal(contract int) error {
	r, err := engine.NewRound(engine.RoundConfig{
		Players:   m.Players,
		Contract:  contract,
		Seed:      m.Seed + uint64(contract),
		StartSeat: (contract - m.FirstRound) % len(m.Players),
	})
	if err != nil {
		return fmt.Errorf("deal contract %d: %w", contract, err)
	}
	m.Round = r
	return nil
}

type stateView struct {
	Round      engine.View               `json:"round"`
	Players    []string                  `json:"players"`
	Bots       map[string]bot.Difficulty `json:"bots,omitempty"`
	Totals     map[string]int            `json:"totals"`
	History    []RoundRecord             `json:"history"`
	FirstRound int                       `json:"firstRound"`
	LastRound  int                       `json:"lastRound"`
	Done       bool                      `json:"done"`
}

func (m *Match) State(playerID string) any {
	return stateView{
		Round:      m.Round.View(playerID),
		Players:    m.Players,
		Bots:       m.Bots,
		Totals:     m.Totals,
		History:    m.History,
		FirstRound: m.FirstRound,
		LastRound:  m.LastRound,
		Done:       m.Done,
	}
}

// ValidActions lists what playerID may do now. Discards are listed per card,
// except a last card that cannot go out yet. When the hand can cover the
// contract a ready-made meld is offered too.
func (m *Match) ValidActions(playerID string) []game.Action {
	r := m.Round
	if m.Done || r.Phase == engine.PhaseRoundComplete || r.Current() != playerID {
		return nil
	}
	hand, _ := r.Hand(playerID)
	var out []game.Action
	if r.Phase == engine.PhaseAwaitingDraw {
		out = append(out, encodeAction(engine.DrawStock{}))
		if _, ok := r.DiscardTop(); ok {
			out = append(out, encodeAction(engine.DrawDiscard{}))
		}
		return out
	}
	ev, _ := r.Evaluate(playerID)
	if r.Phase == engine.PhaseAwaitingMeldOrDiscard {
		c, _ := engine.ContractByIndex(r.Contract)
		if specs, ok := bot.Plan(c, hand); ok && !ev.Met() {
			out = append(out, encodeAction(engine.DeclareMelds{Melds: specs}))
		}
		out = append(out, encodeAction(engine.EndMelds{}))
	}
	if len(hand) == 1 && !ev.Met() {
		return out
	}
	for _, c := range hand {
		out = append(out, encodeAction(engine.Discard{CardID: c.ID}))
	}
	return out
}

// ApplyAction runs one wire action. A stock draw on an empty stock recycles
// the discard pile first, or closes the round as blocked once MaxRecycles is
// spent. Finishing a round deals the next contract.
func (m *Match) ApplyAction(playerID string, action game.Action) error {
	if m.Done {
		return ErrMatchOver
	}
	act, err := decodeAction(action)
	if err != nil {
		return err
	}
	r := m.Round
	if _, ok := act.(engine.DrawStock); ok && len(r.Stock) == 0 &&
		r.Phase == engine.PhaseAwaitingDraw && r.Current() == playerID {
		if r.Recycles >= m.MaxRecycles || len(r.DiscardPile) < 2 {
			if err := r.Close(); err != nil {
				return err
			}
			return m.finishRound(true)
		}
		if err := r.RecycleStock(); err != nil {
			return fmt.Errorf("recycle stock: %w", err)
		}
	}

	ev, err := r.Apply(playerID, act)
	if err != nil {
		return err
	}
	m.emit(game.EventAction, ev)
	if r.Phase == engine.PhaseRoundComplete {
		return m.finishRound(false)
	}
	return nil
}

func (m *Match) finishRound(blocked bool) error {
	r := m.Round
	rec := RoundRecord{
		Contract: r.Contract,
		Winner:   r.Winner,
		Blocked:  blocked,
		Results:  r.Results(),
	}
	scores := make(map[string]int, len(rec.Results))
	for _, res := range rec.Results {
		m.Totals[res.Player] += res.Score
		scores[res.Player] = res.Score
	}
	m.History = append(m.History, rec)
	m.emit(game.EventRoundComplete, game.RoundSummary{
		Round:   rec.Contract,
		Winner:  rec.Winner,
		Results: rank(m.Players, scores),
	})

	if r.Contract >= m.LastRound {
		m.Done = true
		m.emit(game.EventMatchOver, m.Results())
		return nil
	}
	return m.deal(r.Contract + 1)
}

func (m *Match) IsOver() bool {
	return m.Done
}

// Results ranks players by ascending total penalty. Equal totals share a rank.
func (m *Match) Results() []game.PlayerResult {
	if !m.Done {
		return nil
	}
	return rank(m.Players, m.Totals)
}

func rank(players []string, scores map[string]int) []game.PlayerResult {
	out := make([]game.PlayerResult, len(players))
	for i, p := range players {
		out[i] = game.PlayerResult{PlayerID: p, Score: scores[p]}
	}
	slices.SortStableFunc(out, func(a, b game.PlayerResult) int { return cmp.Compare(a.Score, b.Score) })
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

// NextBotAction returns the move of the bot whose turn it is.
func (m *Match) NextBotAction(rng *rand.Rand) (string, game.Action, bool) {
	if m.Done || m.Round.Phase == engine.PhaseRoundComplete {
		return "", game.Action{}, false
	}
	cur := m.Round.Current()
	d, ok := m.Bots[cur]
	if !ok {
		return "", game.Action{}, false
	}
	act, ok := bot.Decide(rng, d, m.Round.View(cur))
	if !ok {
		return "", game.Action{}, false
	}
	return cur, encodeAction(act), true
}

// DrainEvents returns the events recorded since the previous call.
func (m *Match) DrainEvents() []game.Event {
	out := m.events
	m.events = nil
	return out
}

func (m *Match) emit(typ string, payload any) {
	m.events = append(m.events, game.Event{Type: typ, Payload: payload})
}

func (m *Match) MarshalJSON() ([]byte, error) {
	type alias Match
	return json.Marshal((*alias)(m))
}

func (m *Match) UnmarshalJSON(data []byte) error {
	type alias Match
	return json.Unmarshal(data, (*alias)(m))
}
