package engine

import "math/rand/v2"

const (
	// DeckSize is the number of cards in the two-deck universe.
	DeckSize = 112
	// WildcardsPerDeck is the number of jokers each physical deck carries.
	WildcardsPerDeck = 4
)

// BuildFullDeck returns the 112-card universe in a fixed order: red deck then
// blue deck, suits hearts/diamonds/clubs/spades, ranks A..K, then the jokers.
func BuildFullDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, tag := range DeckTags {
		for _, s := range Suits {
			for r := RankAce; r <= RankKing; r++ {
				deck = append(deck, NewCard(r, s, tag))
			}
		}
		for n := 1; n <= WildcardsPerDeck; n++ {
			deck = append(deck, NewWildcard(n, tag))
		}
	}
	return deck
}

// Shuffle returns a permuted copy of deck. The same seed always produces the
// same permutation.
func Shuffle(deck []Card, seed uint64) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
