package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"carioca/internal/bot"
	"carioca/internal/engine"
	"carioca/internal/game"
	"carioca/internal/session"
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	webFS    fs.FS
	log      *logrus.Entry
	// ctx bounds the bot loops started by requests, which outlive them.
	ctx context.Context
}

// New creates a server with all routes.
// webFS should be the directory of static files; nil serves none.
func New(ctx context.Context, registry *game.Registry, manager *session.Manager, webFS fs.FS, log *logrus.Entry) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		webFS:    webFS,
		log:      log,
		ctx:      ctx,
	}
	s.routes()
	if n := manager.ResumeBots(ctx, s.broadcastState); n > 0 {
		log.WithField("sessions", n).Info("resumed bot play")
	}
	return s
}

func (s *Server) routes() {
	// API routes
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/contracts", s.handleListContracts)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/rounds", s.handleRoundResults)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /api/sessions/{code}/bots", s.handleAddBot)
	s.mux.HandleFunc("POST /api/sessions/{code}/start", s.handleStartSession)

	// Static files
	if s.webFS != nil {
		s.mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListContracts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, engine.Contracts())
}

type createSessionRequest struct {
	GameType string `json:"gameType"`
	PlayerID string `json:"playerId"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	if req.GameType == "" || req.PlayerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "gameType and playerId required"})
		return
	}

	sess, err := s.manager.Create(req.GameType)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := sess.AddPlayer(req.PlayerID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

type roundResult struct {
	Round    int    `json:"round"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
	Winner   bool   `json:"winner,omitempty"`
}

func (s *Server) handleRoundResults(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if _, ok := s.manager.Get(code); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	rows, err := s.manager.RoundResults(code)
	if err != nil {
		s.log.WithError(err).WithField("session", code).Error("load round results")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load results"})
		return
	}
	out := make([]roundResult, len(rows))
	for i, row := range rows {
		out[i] = roundResult(row)
	}
	writeJSON(w, http.StatusOK, out)
}

type addBotRequest struct {
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	var req addBotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	d, err := bot.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p, err := sess.AddBot(d)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.broadcastState(sess)
	writeJSON(w, http.StatusCreated, session.PlayerInfo{ID: p.ID, Name: p.Name, Bot: p.Bot})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err := s.start(sess); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// start deals the match, tells everyone and lets bots move if one opens.
func (s *Server) start(sess *session.Session) error {
	if err := s.manager.Start(s.ctx, sess); err != nil {
		return err
	}
	// Broadcast new state to all players
	s.broadcastState(sess)
	s.driveBots(sess)
	return nil
}

// driveBots plays bot turns in the background, broadcasting each move.
func (s *Server) driveBots(sess *session.Session) {
	go s.manager.DriveBots(s.ctx, sess, func() { s.broadcastState(sess) })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
