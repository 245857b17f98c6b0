package carioca

import (
	"encoding/json"
	"fmt"

	"carioca/internal/engine"
	"carioca/internal/game"
)

// Wire action types.
const (
	ActionDraw     = "draw"
	ActionMeld     = "meld"
	ActionEndMelds = "end_melds"
	ActionDiscard  = "discard"
)

type drawPayload struct {
	Source engine.DrawSource `json:"source"`
}

type meldPayload struct {
	Melds []engine.MeldSpec `json:"melds"`
}

type discardPayload struct {
	Card string `json:"card"`
}

// decodeAction turns a wire action into an engine action.
func decodeAction(a game.Action) (engine.Action, error) {
	switch a.Type {
	case ActionDraw:
		var p drawPayload
		if len(a.Payload) > 0 {
			if err := json.Unmarshal(a.Payload, &p); err != nil {
				return nil, fmt.Errorf("invalid draw payload: %w", err)
			}
		}
		switch p.Source {
		case "", engine.FromStock:
			return engine.DrawStock{}, nil
		case engine.FromDiscard:
			return engine.DrawDiscard{}, nil
		}
		return nil, fmt.Errorf("draw source %q: %w", p.Source, engine.ErrUnknownAction)

	case ActionMeld:
		var p meldPayload
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid meld payload: %w", err)
		}
		if len(p.Melds) == 0 {
			return nil, fmt.Errorf("meld payload lists no melds: %w", engine.ErrInvalidCombination)
		}
		return engine.DeclareMelds{Melds: p.Melds}, nil

	case ActionEndMelds:
		return engine.EndMelds{}, nil

	case ActionDiscard:
		var p discardPayload
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid discard payload: %w", err)
		}
		if p.Card == "" {
			return nil, fmt.Errorf("discard payload names no card: %w", engine.ErrCardNotInHand)
		}
		return engine.Discard{CardID: p.Card}, nil
	}
	return nil, fmt.Errorf("action type %q: %w", a.Type, engine.ErrUnknownAction)
}

// encodeAction is the inverse of decodeAction.
func encodeAction(a engine.Action) game.Action {
	var (
		typ     string
		payload any
	)
	switch a := a.(type) {
	case engine.DrawStock:
		typ, payload = ActionDraw, drawPayload{Source: engine.FromStock}
	case engine.DrawDiscard:
		typ, payload = ActionDraw, drawPayload{Source: engine.FromDiscard}
	case engine.DeclareMelds:
		typ, payload = ActionMeld, meldPayload{Melds: a.Melds}
	case engine.EndMelds:
		typ = ActionEndMelds
	case engine.Discard:
		typ, payload = ActionDiscard, discardPayload{Card: a.CardID}
	}
	out := game.Action{Type: typ}
	if payload != nil {
		out.Payload, _ = json.Marshal(payload)
	}
	return out
}
