package engine

import (
	"errors"
	"fmt"
)

// Rule violations. Every one of them leaves the round exactly as it was.
var (
	ErrInvalidCombination = errors.New("invalid combination")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrCardNotInHand      = errors.New("card not in hand")
	ErrCardsNotInHand     = errors.New("cards not in hand")
	ErrEmptyPile          = errors.New("pile is empty")
	ErrWrongPhase         = errors.New("action not allowed in this phase")
	ErrRoundComplete      = errors.New("round is complete")
	ErrCannotGoOut        = errors.New("cannot go out before the contract is met")
	ErrUnknownContract    = errors.New("unknown contract")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrUnknownAction      = errors.New("unknown action")
)

// RejectionError is returned when one meld of a multi-meld declaration fails
// validation. It unwraps to ErrInvalidCombination.
type RejectionError struct {
	MeldIndex int
	Kind      MeldKind
	Cards     []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("meld %d (%s %v): %v", e.MeldIndex, e.Kind, e.Cards, ErrInvalidCombination)
}

func (e *RejectionError) Unwrap() error { return ErrInvalidCombination }
