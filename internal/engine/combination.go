package engine

import (
	"fmt"
	"slices"
)

// MinMeldSize is the smallest number of cards any combination may hold.
const MinMeldSize = 3

// MeldKind is the kind of combination a set of cards claims to be.
type MeldKind string

const (
	KindGroup MeldKind = "group"
	KindRun   MeldKind = "run"
)

func (k MeldKind) valid() bool { return k == KindGroup || k == KindRun }

// split partitions cards into plain cards and a wildcard count.
func split(cards []Card) (plain []Card, wilds int) {
	plain = make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.IsWildcard() {
			wilds++
			continue
		}
		plain = append(plain, c)
	}
	return plain, wilds
}

// ValidateGroup reports whether cards form a group: at least three cards whose
// plain members all share one rank. Wildcards fill any slot.
func ValidateGroup(cards []Card) bool {
	if len(cards) < MinMeldSize {
		return false
	}
	plain, _ := split(cards)
	for i := 1; i < len(plain); i++ {
		if plain[i].Rank != plain[0].Rank {
			return false
		}
	}
	return true
}

// ValidateRun reports whether cards form a run: at least three cards whose
// plain members share one suit and whose distinct ordinals leave no more
// missing positions than there are wildcards. Ace is low only.
func ValidateRun(cards []Card) bool {
	if len(cards) < MinMeldSize {
		return false
	}
	plain, wilds := split(cards)
	if len(plain) == 0 {
		return true
	}
	suit := plain[0].Suit
	ords := make([]int, 0, len(plain))
	for _, c := range plain {
		if c.Suit != suit {
			return false
		}
		ords = append(ords, c.Rank.Ordinal())
	}
	return runGaps(ords) <= wilds
}

// runGaps sums the missing positions between consecutive distinct ordinals.
func runGaps(ords []int) int {
	sorted := slices.Clone(ords)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	gaps := 0
	for i := 1; i < len(sorted); i++ {
		gaps += sorted[i] - sorted[i-1] - 1
	}
	return gaps
}

// Validate checks cards against the claimed kind.
func Validate(kind MeldKind, cards []Card) bool {
	switch kind {
	case KindGroup:
		return ValidateGroup(cards)
	case KindRun:
		return ValidateRun(cards)
	}
	return false
}

// Classify returns the kind cards form, preferring a group when both apply.
func Classify(cards []Card) (MeldKind, bool) {
	if ValidateGroup(cards) {
		return KindGroup, true
	}
	if ValidateRun(cards) {
		return KindRun, true
	}
	return "", false
}

// CanExtend reports whether card may be appended to an already valid meld.
func CanExtend(card Card, m Meld) bool {
	if card.IsWildcard() {
		return true
	}
	plain, wilds := split(m.Cards)
	if len(plain) == 0 {
		return true
	}
	switch m.Kind {
	case KindGroup:
		return card.Rank == plain[0].Rank
	case KindRun:
		if card.Suit != plain[0].Suit {
			return false
		}
		ords := make([]int, 0, len(plain)+1)
		for _, c := range plain {
			ords = append(ords, c.Rank.Ordinal())
		}
		ords = append(ords, card.Rank.Ordinal())
		return runGaps(ords) <= wilds
	}
	return false
}

// Meld is a committed combination. It is never edited once declared.
type Meld struct {
	Kind  MeldKind `json:"kind"`
	Cards []Card   `json:"cards"`
	Owner string   `json:"owner"`
	Round int      `json:"round"`
}

func (m Meld) String() string {
	return fmt.Sprintf("%s%v", m.Kind, m.Cards)
}
