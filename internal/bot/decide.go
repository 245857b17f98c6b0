package bot

import (
	"math/rand/v2"

	"carioca/internal/engine"
)

// Decide returns the next move for the player who owns view. It reports false
// when that player has nothing to do (not their turn, or the round is over).
//
// In the draw phase the discard top is taken when its utility against the
// hand beats the profile's threshold. Once a card is drawn the bot lays down
// the contract the first time its hand can cover it and, with the contract
// met, any further complete meld it holds. Either may be fumbled with the
// profile's error probability. Otherwise it discards the card that helps the
// rest of the hand least.
func Decide(rng *rand.Rand, d Difficulty, view engine.View) (engine.Action, bool) {
	if view.Turn != view.You || view.Phase == engine.PhaseRoundComplete {
		return nil, false
	}
	p := d.Profile()

	switch view.Phase {
	case engine.PhaseAwaitingDraw:
		if view.DiscardTop != nil && Utility(*view.DiscardTop, view.Hand) > p.DrawThreshold() {
			return engine.DrawDiscard{}, true
		}
		return engine.DrawStock{}, true

	case engine.PhaseAwaitingMeldOrDiscard:
		own, _ := view.Own()
		switch {
		case len(own.Melds) == 0:
			if specs, ok := Plan(view.Contract, view.Hand); ok && rng.Float64() >= p.ErrorProbability {
				return engine.DeclareMelds{Melds: specs}, true
			}
		case own.Progress.Met():
			if spec, ok := Extra(view.Hand); ok && rng.Float64() >= p.ErrorProbability {
				return engine.DeclareMelds{Melds: []engine.MeldSpec{spec}}, true
			}
		}
		return chooseDiscard(rng, p, view.Hand), true

	case engine.PhaseAwaitingDiscard:
		return chooseDiscard(rng, p, view.Hand), true
	}
	return nil, false
}

func chooseDiscard(rng *rand.Rand, p Profile, hand []engine.Card) engine.Action {
	if rng.Float64() < p.ErrorProbability {
		return engine.Discard{CardID: hand[rng.IntN(len(hand))].ID}
	}
	return engine.Discard{CardID: hand[Weakest(hand)].ID}
}

// Weakest returns the index of the card with the lowest utility against the
// rest of the hand. Ties go to the earliest card.
func Weakest(hand []engine.Card) int {
	best, bestU := 0, 2.0
	rest := make([]engine.Card, 0, len(hand))
	for i, c := range hand {
		rest = append(rest[:0], hand[:i]...)
		rest = append(rest, hand[i+1:]...)
		if u := Utility(c, rest); u < bestU {
			best, bestU = i, u
		}
	}
	return best
}
