package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRow represents a session in the database.
type SessionRow struct {
	Code      string
	GameType  string
	Status    string // "waiting", "playing", "finished"
	HostID    string
	CreatedAt time.Time
}

// PlayerRow is one seat of a session. Bot is the difficulty of a computer
// player and empty for people.
type PlayerRow struct {
	Seat     int
	PlayerID string
	Name     string
	Bot      string
}

// RoundResultRow is one player's score for a finished round.
type RoundResultRow struct {
	Round    int
	PlayerID string
	Score    int
	Rank     int
	Winner   bool
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: SQLite has a single writer anyway, and every caller
	// must see the same :memory: database.
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			code       TEXT PRIMARY KEY,
			game_type  TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'waiting',
			host_id    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS match_state (
			session_code TEXT PRIMARY KEY REFERENCES sessions(code),
			state_json   TEXT NOT NULL,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS session_players (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			seat         INTEGER NOT NULL,
			player_id    TEXT NOT NULL,
			name         TEXT NOT NULL,
			bot          TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_code, player_id)
		);
		CREATE TABLE IF NOT EXISTS round_results (
			session_code TEXT NOT NULL REFERENCES sessions(code),
			round        INTEGER NOT NULL,
			player_id    TEXT NOT NULL,
			score        INTEGER NOT NULL,
			rank         INTEGER NOT NULL,
			winner       BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (session_code, round, player_id)
		);
	`)
	return err
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(code, gameType string) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (code, game_type, status) VALUES (?, ?, 'waiting')",
		code, gameType,
	)
	return err
}

// GetSession retrieves a session by code.
func (s *Store) GetSession(code string) (*SessionRow, error) {
	row := s.db.QueryRow("SELECT code, game_type, status, host_id, created_at FROM sessions WHERE code = ?", code)
	var sr SessionRow
	if err := row.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.HostID, &sr.CreatedAt); err != nil {
		return nil, err
	}
	return &sr, nil
}

// UpdateSessionStatus changes a session's status.
func (s *Store) UpdateSessionStatus(code, status string) error {
	_, err := s.db.Exec("UPDATE sessions SET status = ? WHERE code = ?", status, code)
	return err
}

// ListSessions returns all sessions with the given status (or all if status is empty).
func (s *Store) ListSessions(status string) ([]SessionRow, error) {
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT code, game_type, status, host_id, created_at FROM sessions ORDER BY created_at DESC")
	} else {
		rows, err = s.db.Query("SELECT code, game_type, status, host_id, created_at FROM sessions WHERE status = ? ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []SessionRow
	for rows.Next() {
		var sr SessionRow
		if err := rows.Scan(&sr.Code, &sr.GameType, &sr.Status, &sr.HostID, &sr.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// SaveMatchState upserts match state JSON.
func (s *Store) SaveMatchState(sessionCode, stateJSON string) error {
	_, err := s.db.Exec(`
		INSERT INTO match_state (session_code, state_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_code) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, sessionCode, stateJSON)
	return err
}

// GetMatchState retrieves match state JSON.
func (s *Store) GetMatchState(sessionCode string) (string, error) {
	var stateJSON string
	err := s.db.QueryRow("SELECT state_json FROM match_state WHERE session_code = ?", sessionCode).Scan(&stateJSON)
	return stateJSON, err
}

// SavePlayers replaces the seating of a session and records its host.
func (s *Store) SavePlayers(code, hostID string, players []PlayerRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE sessions SET host_id = ? WHERE code = ?", hostID, code); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM session_players WHERE session_code = ?", code); err != nil {
		return err
	}
	for _, p := range players {
		_, err := tx.Exec(
			"INSERT INTO session_players (session_code, seat, player_id, name, bot) VALUES (?, ?, ?, ?, ?)",
			code, p.Seat, p.PlayerID, p.Name, p.Bot,
		)
		if err != nil {
			return fmt.Errorf("insert player %s: %w", p.PlayerID, err)
		}
	}
	return tx.Commit()
}

// ListPlayers returns the seating of a session in seat order.
func (s *Store) ListPlayers(code string) ([]PlayerRow, error) {
	rows, err := s.db.Query("SELECT seat, player_id, name, bot FROM session_players WHERE session_code = ? ORDER BY seat", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PlayerRow
	for rows.Next() {
		var p PlayerRow
		if err := rows.Scan(&p.Seat, &p.PlayerID, &p.Name, &p.Bot); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// SaveRoundResults upserts the scores of one finished round.
func (s *Store) SaveRoundResults(code string, round int, results []RoundResultRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range results {
		_, err := tx.Exec(`
			INSERT INTO round_results (session_code, round, player_id, score, rank, winner)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_code, round, player_id) DO UPDATE SET
				score = excluded.score, rank = excluded.rank, winner = excluded.winner
		`, code, round, r.PlayerID, r.Score, r.Rank, r.Winner)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", r.PlayerID, err)
		}
	}
	return tx.Commit()
}

// RoundResults returns every recorded round of a session, by round then rank.
func (s *Store) RoundResults(code string) ([]RoundResultRow, error) {
	rows, err := s.db.Query(
		"SELECT round, player_id, score, rank, winner FROM round_results WHERE session_code = ? ORDER BY round, rank, player_id",
		code,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RoundResultRow
	for rows.Next() {
		var r RoundResultRow
		if err := rows.Scan(&r.Round, &r.PlayerID, &r.Score, &r.Rank, &r.Winner); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteSession removes a session with its players, results and match state.
func (s *Store) DeleteSession(code string) error {
	for _, q := range []string{
		"DELETE FROM match_state WHERE session_code = ?",
		"DELETE FROM session_players WHERE session_code = ?",
		"DELETE FROM round_results WHERE session_code = ?",
		"DELETE FROM sessions WHERE code = ?",
	} {
		if _, err := s.db.Exec(q, code); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
