package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"carioca/internal/engine"
	"carioca/internal/game"
	"carioca/internal/session"
)

// Message types on the wire.
const (
	msgJoin   = "join"
	msgAction = "action"
	msgStart  = "start"
	msgState  = "state"
	msgError  = "error"
)

// maxMessageSize bounds one client message; a full meld declaration is far
// smaller.
const maxMessageSize = 16 << 10

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	PlayerID string `json:"playerId"`
}

type actionPayload struct {
	Action game.Action `json:"action"`
}

type statePayload struct {
	State        any                 `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	SessionInfo  session.Info        `json:"sessionInfo"`
	Results      []game.PlayerResult `json:"results,omitempty"`
}

// errorPayload carries the error text and, for rule violations, a stable
// code clients can switch on.
type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.WithError(err).WithField("session", code).Warn("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxMessageSize)

	ctx := r.Context()
	playerID, send, err := s.join(ctx, conn, sess)
	if err != nil {
		writeWSError(ctx, conn, err)
		return
	}
	entry := s.log.WithFields(logrus.Fields{"session": code, "player": playerID})
	entry.Debug("player connected")

	s.broadcastState(sess)
	// A bot may be holding the turn since a restart.
	s.driveBots(sess)

	go writeLoop(ctx, conn, send)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			enqueue(send, msgError, errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(sess, playerID, send, msg)
	}

	// The seat is kept for a reconnect.
	entry.Info("player disconnected")
}

// join reads the opening message and seats or reconnects the player named in
// it. Bot seats cannot be taken over.
func (s *Server) join(ctx context.Context, conn *websocket.Conn, sess *session.Session) (string, chan []byte, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return "", nil, err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != msgJoin {
		return "", nil, errors.New("first message must be a join")
	}
	var jp joinPayload
	if err := json.Unmarshal(msg.Payload, &jp); err != nil || jp.PlayerID == "" {
		return "", nil, errors.New("invalid join payload")
	}

	if p := sess.GetPlayer(jp.PlayerID); p != nil && p.IsBot() {
		return "", nil, fmt.Errorf("player %s is a bot", jp.PlayerID)
	}
	send := make(chan []byte, 64)
	if !sess.ConnectPlayer(jp.PlayerID, send) {
		if err := sess.AddPlayer(jp.PlayerID); err != nil {
			return "", nil, err
		}
		sess.ConnectPlayer(jp.PlayerID, send)
	}
	return jp.PlayerID, send, nil
}

func (s *Server) handleMessage(sess *session.Session, playerID string, send chan []byte, msg WSMessage) {
	switch msg.Type {
	case msgAction:
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil {
			enqueue(send, msgError, errorPayload{Message: "invalid action payload"})
			return
		}
		if err := s.manager.Apply(s.ctx, sess, playerID, ap.Action); err != nil {
			enqueue(send, msgError, errorPayload{Message: err.Error(), Code: errorCode(err)})
			return
		}
		s.broadcastState(sess)
		s.driveBots(sess)

	case msgStart:
		if sess.Info().HostID != playerID {
			enqueue(send, msgError, errorPayload{Message: "only the host can start"})
			return
		}
		if err := s.start(sess); err != nil {
			enqueue(send, msgError, errorPayload{Message: err.Error()})
		}

	default:
		enqueue(send, msgError, errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

// errorCode names the rule a rejected action broke.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotStarted):
		return "not_started"
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, engine.ErrCannotGoOut):
		return "cannot_go_out"
	case errors.Is(err, engine.ErrInvalidCombination):
		return "invalid_combination"
	case errors.Is(err, engine.ErrCardNotInHand), errors.Is(err, engine.ErrCardsNotInHand):
		return "card_not_in_hand"
	case errors.Is(err, engine.ErrRoundComplete):
		return "round_complete"
	}
	return ""
}

// broadcastState sends every connected person their own view of the session.
func (s *Server) broadcastState(sess *session.Session) {
	sess.RLock()
	defer sess.RUnlock()
	info := sess.InfoLocked()
	for _, pi := range info.Players {
		p := sess.Players[pi.ID]
		if p == nil || p.Send == nil {
			continue
		}
		enqueue(p.Send, msgState, viewFor(sess, info, pi.ID))
	}
}

// viewFor builds one player's state message. The caller holds the session lock.
func viewFor(sess *session.Session, info session.Info, playerID string) statePayload {
	sp := statePayload{SessionInfo: info}
	if sess.Match == nil || sess.Status == session.StatusWaiting {
		return sp
	}
	sp.State = sess.Match.State(playerID)
	sp.ValidActions = sess.Match.ValidActions(playerID)
	if sess.Match.IsOver() {
		sp.Results = sess.Match.Results()
	}
	return sp
}

func writeLoop(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
			return
		}
	}
}

// enqueue drops the message when the player's buffer is full.
func enqueue(send chan []byte, msgType string, payload any) {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	select {
	case send <- msg:
	default:
	}
}

func writeWSError(ctx context.Context, conn *websocket.Conn, err error) {
	if ctx.Err() != nil {
		return
	}
	p, _ := json.Marshal(errorPayload{Message: err.Error()})
	msg, _ := json.Marshal(WSMessage{Type: msgError, Payload: p})
	conn.Write(ctx, websocket.MessageText, msg)
}
