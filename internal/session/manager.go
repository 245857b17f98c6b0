package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"carioca/internal/bot"
	"carioca/internal/events"
	"carioca/internal/game"
	"carioca/internal/storage"
)

// ErrNotStarted is returned for actions sent before the match starts.
var ErrNotStarted = errors.New("game not started")

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store
	events   events.Publisher
	log      *logrus.Entry
	botDelay time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sends match events to p. The default logs them.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.events = p }
}

func WithLogger(l *logrus.Entry) Option {
	return func(m *Manager) { m.log = l }
}

// WithBotDelay scales bot think time; see config.Config.BotDelay.
func WithBotDelay(d time.Duration) Option {
	return func(m *Manager) { m.botDelay = d }
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		registry: registry,
		store:    store,
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events == nil {
		m.events = events.NewLogPublisher(m.log)
	}
	return m
}

// Create makes a new session and persists it.
func (m *Manager) Create(gameType string) (*Session, error) {
	g, err := m.registry.Lookup(gameType)
	if err != nil {
		return nil, err
	}
	code := generateCode()
	if err := m.store.CreateSession(code, gameType); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := NewSession(code, gameType, g)
	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	m.log.WithFields(logrus.Fields{"session": code, "game": gameType}).Info("session created")
	return s, nil
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Start deals the match, persists the seating and the first state, and
// announces the start.
func (m *Manager) Start(ctx context.Context, s *Session) error {
	if err := s.Start(); err != nil {
		return err
	}
	if err := m.SaveSessionPlayers(s); err != nil {
		m.log.WithError(err).WithField("session", s.Code).Warn("save players")
	}
	if err := m.SaveMatchState(s); err != nil {
		m.log.WithError(err).WithField("session", s.Code).Warn("save match state")
	}
	info := s.Info()
	m.publish(ctx, s.Code, []game.Event{{Type: game.EventMatchStarted, Payload: info.Players}})
	m.log.WithFields(logrus.Fields{"session": s.Code, "players": len(info.Players)}).Info("match started")
	return nil
}

// Apply runs one action for playerID under the session lock, persists the
// new state and publishes whatever the match reported.
func (m *Manager) Apply(ctx context.Context, s *Session, playerID string, action game.Action) error {
	entry := m.log.WithFields(logrus.Fields{"session": s.Code, "player": playerID, "action": action.Type})

	s.mu.Lock()
	if s.Match == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if err := s.Match.ApplyAction(playerID, action); err != nil {
		s.mu.Unlock()
		entry.WithError(err).Debug("action rejected")
		return err
	}
	if s.Match.IsOver() {
		s.Status = StatusFinished
	}
	var evs []game.Event
	if src, ok := s.Match.(game.EventSource); ok {
		evs = src.DrainEvents()
	}
	err := m.saveLocked(s)
	s.mu.Unlock()

	entry.Debug("action applied")
	if err != nil {
		entry.WithError(err).Warn("save match state")
	}
	m.record(s.Code, evs)
	m.publish(ctx, s.Code, evs)
	return nil
}

// DriveBots plays bot turns until a person is to move or the match ends.
// afterMove runs after every accepted bot move. Only one loop runs per
// session; a second caller waits and then finds nothing to do.
func (m *Manager) DriveBots(ctx context.Context, s *Session, afterMove func()) {
	s.driveMu.Lock()
	defer s.driveMu.Unlock()

	for ctx.Err() == nil {
		s.mu.RLock()
		var (
			pid    string
			action game.Action
			ok     bool
			d      bot.Difficulty
		)
		if driver, isDriver := s.Match.(game.BotDriver); isDriver {
			pid, action, ok = driver.NextBotAction(s.rng)
		}
		if p := s.Players[pid]; p != nil {
			d = p.Bot
		}
		s.mu.RUnlock()
		if !ok {
			return
		}

		if err := m.think(ctx, s, d); err != nil {
			return
		}
		if err := m.Apply(ctx, s, pid, action); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{"session": s.Code, "player": pid}).Warn("bot move rejected")
			return
		}
		if afterMove != nil {
			afterMove()
		}
	}
}

// think waits out a bot's think time scaled by the configured delay.
func (m *Manager) think(ctx context.Context, s *Session, d bot.Difficulty) error {
	if m.botDelay <= 0 {
		return nil
	}
	wait := time.Duration(float64(d.Profile().ThinkTime(s.rng)) * m.botDelay.Seconds())
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// record stores per-round scores carried by round-complete events.
func (m *Manager) record(code string, evs []game.Event) {
	for _, ev := range evs {
		switch ev.Type {
		case game.EventRoundComplete:
			sum, ok := ev.Payload.(game.RoundSummary)
			if !ok {
				continue
			}
			rows := make([]storage.RoundResultRow, len(sum.Results))
			for i, r := range sum.Results {
				rows[i] = storage.RoundResultRow{
					Round:    sum.Round,
					PlayerID: r.PlayerID,
					Score:    r.Score,
					Rank:     r.Rank,
					Winner:   r.PlayerID == sum.Winner,
				}
			}
			entry := m.log.WithFields(logrus.Fields{"session": code, "contract": sum.Round, "winner": sum.Winner})
			if err := m.store.SaveRoundResults(code, sum.Round, rows); err != nil {
				entry.WithError(err).Error("save round results")
			}
			entry.Info("round complete")
		case game.EventMatchOver:
			m.log.WithField("session", code).Info("match finished")
		}
	}
}

func (m *Manager) publish(ctx context.Context, code string, evs []game.Event) {
	for _, ev := range evs {
		if err := m.events.Publish(ctx, events.NewEnvelope(code, ev)); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{"session": code, "event": ev.Type}).Warn("publish event")
		}
	}
}

// RoundResults returns the recorded round scores of a session.
func (m *Manager) RoundResults(code string) ([]storage.RoundResultRow, error) {
	return m.store.RoundResults(code)
}

// SaveMatchState persists the current match state for a session.
func (m *Manager) SaveMatchState(s *Session) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return m.saveLocked(s)
}

func (m *Manager) saveLocked(s *Session) error {
	if err := m.store.UpdateSessionStatus(s.Code, string(s.Status)); err != nil {
		return err
	}
	if s.Match == nil {
		return nil
	}
	data, err := s.Match.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}
	return m.store.SaveMatchState(s.Code, string(data))
}

// Restore loads sessions from the database on startup.
func (m *Manager) Restore() error {
	rows, err := m.store.ListSessions("")
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, row := range rows {
		if row.Status == string(StatusFinished) {
			continue
		}
		entry := m.log.WithField("session", row.Code)
		g, err := m.registry.Lookup(row.GameType)
		if err != nil {
			entry.WithError(err).Warn("skipping session")
			continue
		}
		s := NewSession(row.Code, row.GameType, g)
		s.Status = Status(row.Status)

		snap, err := m.loadSessionPlayers(row.Code)
		if err != nil {
			entry.WithError(err).Warn("skipping session: load players")
			continue
		}
		s.HostID = snap.HostID
		for _, p := range snap.Players {
			player := &Player{ID: p.PlayerID, Name: p.Name, Bot: bot.Difficulty(p.Bot)}
			if !player.IsBot() {
				player.Send = make(chan []byte, 64)
			}
			s.Players[p.PlayerID] = player
			s.order = append(s.order, p.PlayerID)
		}

		if s.Status == StatusPlaying {
			stateJSON, err := m.store.GetMatchState(row.Code)
			if err != nil {
				entry.WithError(err).Warn("skipping session: no match state")
				continue
			}
			match, err := g.LoadMatch([]byte(stateJSON))
			if err != nil {
				entry.WithError(err).Warn("skipping session: load match")
				continue
			}
			s.Match = match
		}
		m.mu.Lock()
		m.sessions[row.Code] = s
		m.mu.Unlock()
		entry.Info("session restored")
	}
	return nil
}

// ResumeBots starts a bot loop for every playing session, so a session
// restored on a bot's turn moves again without waiting for a person. It
// returns how many loops were started.
func (m *Manager) ResumeBots(ctx context.Context, afterMove func(*Session)) int {
	m.mu.RLock()
	var playing []*Session
	for _, s := range m.sessions {
		s.mu.RLock()
		if s.Status == StatusPlaying && s.Match != nil {
			playing = append(playing, s)
		}
		s.mu.RUnlock()
	}
	m.mu.RUnlock()

	for _, s := range playing {
		go m.DriveBots(ctx, s, func() {
			if afterMove != nil {
				afterMove(s)
			}
		})
	}
	return len(playing)
}

// Remove deletes a session from memory and storage.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	delete(m.sessions, code)
	m.mu.Unlock()
	if err := m.store.DeleteSession(code); err != nil {
		m.log.WithError(err).WithField("session", code).Warn("delete session")
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(maxAge)
		}
	}
}

// cleanup drops finished sessions older than maxAge and sessions nobody is
// seated in. Bots alone do not keep a session alive.
func (m *Manager) cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for code, s := range m.sessions {
		s.mu.RLock()
		empty := s.humansLocked() == 0
		finished := s.Status == StatusFinished
		s.mu.RUnlock()

		if finished || empty {
			row, err := m.store.GetSession(code)
			if err != nil {
				delete(m.sessions, code)
				continue
			}
			if now.Sub(row.CreatedAt) > maxAge || empty {
				m.log.WithField("session", code).Info("cleaning up session")
				m.store.DeleteSession(code)
				delete(m.sessions, code)
			}
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

type sessionSnapshot struct {
	Players []storage.PlayerRow
	HostID  string
}

// SaveSessionPlayers persists the seating and host of a session.
func (m *Manager) SaveSessionPlayers(s *Session) error {
	s.mu.RLock()
	rows := make([]storage.PlayerRow, 0, len(s.order))
	for i, id := range s.order {
		p := s.Players[id]
		rows = append(rows, storage.PlayerRow{Seat: i, PlayerID: p.ID, Name: p.Name, Bot: string(p.Bot)})
	}
	host := s.HostID
	s.mu.RUnlock()
	return m.store.SavePlayers(s.Code, host, rows)
}

func (m *Manager) loadSessionPlayers(code string) (sessionSnapshot, error) {
	row, err := m.store.GetSession(code)
	if err != nil {
		return sessionSnapshot{}, err
	}
	players, err := m.store.ListPlayers(code)
	if err != nil {
		return sessionSnapshot{}, err
	}
	return sessionSnapshot{Players: players, HostID: row.HostID}, nil
}
