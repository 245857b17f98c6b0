package engine

import (
	"fmt"
	"strings"
)

// Suit is one of the four French suits or the wildcard sentinel.
type Suit uint8

const (
	SuitHearts Suit = iota
	SuitDiamonds
	SuitClubs
	SuitSpades
	SuitWild
)

// Suits lists the four plain suits in deck order.
var Suits = [4]Suit{SuitHearts, SuitDiamonds, SuitClubs, SuitSpades}

var suitNames = [...]string{"hearts", "diamonds", "clubs", "spades", "joker"}

func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return fmt.Sprintf("suit(%d)", uint8(s))
}

func (s Suit) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Suit) UnmarshalText(b []byte) error {
	for i, name := range suitNames {
		if name == string(b) {
			*s = Suit(i)
			return nil
		}
	}
	return fmt.Errorf("unknown suit %q", b)
}

// Rank is A..K or the wildcard sentinel. The numeric value of a plain rank is
// its ordinal in a run (A=1 ... K=13).
type Rank uint8

const (
	RankWild Rank = iota
	RankAce
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
)

var rankNames = [...]string{"joker", "A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return fmt.Sprintf("rank(%d)", uint8(r))
}

func (r Rank) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rank) UnmarshalText(b []byte) error {
	for i, name := range rankNames {
		if strings.EqualFold(name, string(b)) {
			*r = Rank(i)
			return nil
		}
	}
	return fmt.Errorf("unknown rank %q", b)
}

// Ordinal returns the run position of the rank, 0 for the wildcard.
func (r Rank) Ordinal() int { return int(r) }

// DeckTag names which physical deck a card came from. It never affects rules.
type DeckTag string

const (
	DeckRed  DeckTag = "red"
	DeckBlue DeckTag = "blue"
)

// DeckTags lists both decks in build order.
var DeckTags = [2]DeckTag{DeckRed, DeckBlue}

// Card is an immutable card value. Two cards are the same card iff their IDs match.
type Card struct {
	ID   string  `json:"id"`
	Suit Suit    `json:"suit"`
	Rank Rank    `json:"rank"`
	Deck DeckTag `json:"deck"`
}

// NewCard builds a plain card with its canonical id.
func NewCard(rank Rank, suit Suit, deck DeckTag) Card {
	return Card{
		ID:   fmt.Sprintf("%s_%s_%s", rank, suit, deck),
		Suit: suit,
		Rank: rank,
		Deck: deck,
	}
}

// NewWildcard builds the n-th joker (1-based) of a deck.
func NewWildcard(n int, deck DeckTag) Card {
	return Card{
		ID:   fmt.Sprintf("joker%d_%s", n, deck),
		Suit: SuitWild,
		Rank: RankWild,
		Deck: deck,
	}
}

// IsWildcard reports whether the card is a joker.
func (c Card) IsWildcard() bool { return c.Rank == RankWild }

// PointValue is the penalty a card is worth when left in hand at round end.
func (c Card) PointValue() int {
	switch {
	case c.IsWildcard():
		return 25
	case c.Rank == RankAce:
		return 15
	case c.Rank >= RankJack:
		return 10
	default:
		return c.Rank.Ordinal()
	}
}

func (c Card) String() string {
	if c.IsWildcard() {
		return "Wild"
	}
	return c.Rank.String() + suitSymbol(c.Suit)
}

func suitSymbol(s Suit) string {
	switch s {
	case SuitHearts:
		return "♥"
	case SuitDiamonds:
		return "♦"
	case SuitClubs:
		return "♣"
	case SuitSpades:
		return "♠"
	}
	return "?"
}

// CardIDs returns the ids of cards in order.
func CardIDs(cards []Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}
