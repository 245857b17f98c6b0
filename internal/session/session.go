package session

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"

	"carioca/internal/bot"
	"carioca/internal/game"
)

// Status represents the session lifecycle.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Player represents a seated player. Bots have a difficulty and no Send channel.
type Player struct {
	ID   string
	Name string
	Bot  bot.Difficulty
	Send chan []byte // outbound messages
}

// IsBot reports whether the seat is computer-controlled.
func (p *Player) IsBot() bool { return p.Bot != "" }

// Session is one game session with seated players.
type Session struct {
	mu       sync.RWMutex
	Code     string
	GameType string
	Status   Status
	HostID   string
	Players  map[string]*Player
	Match    game.Match
	Seed     uint64
	order    []string
	game     game.Game

	// names picks bot names and is only used under mu.
	names *rand.Rand

	// driveMu keeps a single bot loop per session; rng is only used under it.
	driveMu sync.Mutex
	rng     *rand.Rand
}

// NewSession creates a session in the waiting state.
func NewSession(code, gameType string, g game.Game) *Session {
	seed := rand.Uint64()
	return &Session{
		Code:     code,
		GameType: gameType,
		Status:   StatusWaiting,
		Players:  make(map[string]*Player),
		Seed:     seed,
		game:     g,
		names:    rand.New(rand.NewPCG(seed>>1, seed)),
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
	}
}

// AddPlayer seats a person. The first person seated becomes the host.
func (s *Session) AddPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.seatLocked(&Player{ID: playerID, Name: playerID, Send: make(chan []byte, 64)}); err != nil {
		return err
	}
	if s.HostID == "" {
		s.HostID = playerID
	}
	return nil
}

// AddBot seats a computer player and returns it. The bot is named once its
// seat is taken.
func (s *Session) AddBot(d bot.Difficulty) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Player{ID: "bot-" + uuid.NewString()[:8], Bot: d}
	if err := s.seatLocked(p); err != nil {
		return nil, err
	}
	p.Name = bot.Name(s.names, d)
	return p, nil
}

func (s *Session) seatLocked(p *Player) error {
	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not accepting players")
	}
	info := s.game.Info()
	if len(s.Players) >= info.MaxPlayers {
		return fmt.Errorf("session is full")
	}
	if _, exists := s.Players[p.ID]; exists {
		return fmt.Errorf("player %s already in session", p.ID)
	}
	s.Players[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

// RemovePlayer removes a player from the session.
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok {
		return
	}
	if p.Send != nil {
		close(p.Send)
	}
	delete(s.Players, playerID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == playerID })
}

// ConnectPlayer replaces the Send channel for a reconnecting player.
func (s *Session) ConnectPlayer(playerID string, send chan []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Players[playerID]
	if !ok || p.IsBot() {
		return false
	}
	p.Send = send
	return true
}

// PlayerIDs returns player IDs in seat order.
func (s *Session) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Start transitions the session from waiting to playing.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusWaiting {
		return fmt.Errorf("session is not in waiting state")
	}
	info := s.game.Info()
	if len(s.Players) < info.MinPlayers {
		return fmt.Errorf("need at least %d players, have %d", info.MinPlayers, len(s.Players))
	}

	cfg := game.MatchConfig{PlayerIDs: slices.Clone(s.order), Seed: s.Seed}
	for _, id := range s.order {
		if p := s.Players[id]; p.IsBot() {
			if cfg.Bots == nil {
				cfg.Bots = make(map[string]string)
			}
			cfg.Bots[id] = string(p.Bot)
		}
	}
	m, err := s.game.NewMatch(cfg)
	if err != nil {
		return fmt.Errorf("new match: %w", err)
	}
	s.Match = m
	s.Status = StatusPlaying
	return nil
}

// Finish marks the session as finished.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = StatusFinished
}

// Broadcast sends a message to all connected players.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.Players {
		if p.Send == nil {
			continue
		}
		select {
		case p.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// GetPlayer returns a player, or nil if not found.
func (s *Session) GetPlayer(playerID string) *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Players[playerID]
}

// PlayerInfo is the public description of a seat.
type PlayerInfo struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Bot  bot.Difficulty `json:"bot,omitempty"`
}

// Info returns session info for the API.
type Info struct {
	Code     string       `json:"code"`
	GameType string       `json:"gameType"`
	Status   Status       `json:"status"`
	Players  []PlayerInfo `json:"players"`
	HostID   string       `json:"hostId"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.infoLocked()
}

// InfoLocked returns info without acquiring the lock (caller must hold it).
func (s *Session) InfoLocked() Info {
	return s.infoLocked()
}

func (s *Session) infoLocked() Info {
	players := make([]PlayerInfo, 0, len(s.order))
	for _, id := range s.order {
		p := s.Players[id]
		players = append(players, PlayerInfo{ID: p.ID, Name: p.Name, Bot: p.Bot})
	}
	return Info{
		Code:     s.Code,
		GameType: s.GameType,
		Status:   s.Status,
		Players:  players,
		HostID:   s.HostID,
	}
}

// humansLocked counts seated people.
func (s *Session) humansLocked() int {
	n := 0
	for _, p := range s.Players {
		if !p.IsBot() {
			n++
		}
	}
	return n
}

// Lock/RLock/Unlock/RUnlock expose the mutex for the server's websocket handler.
func (s *Session) Lock()    { s.mu.Lock() }
func (s *Session) Unlock()  { s.mu.Unlock() }
func (s *Session) RLock()   { s.mu.RLock() }
func (s *Session) RUnlock() { s.mu.RUnlock() }
