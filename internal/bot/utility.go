package bot

import "carioca/internal/engine"

// Utility scores in [0, 1] how much card helps the holding it would join.
// Jokers are always worth 0.9. A plain card earns 0.8 when the holding has two
// or more of its rank and 0.4 for exactly one, plus 0.6 for each same-suit
// card one rank away and 0.3 for each two ranks away.
func Utility(card engine.Card, holding []engine.Card) float64 {
	if card.IsWildcard() {
		return 0.9
	}
	sameRank := 0
	u := 0.0
	for _, h := range holding {
		if h.IsWildcard() {
			continue
		}
		if h.Rank == card.Rank {
			sameRank++
		}
		if h.Suit != card.Suit {
			continue
		}
		switch abs(h.Rank.Ordinal() - card.Rank.Ordinal()) {
		case 1:
			u += 0.6
		case 2:
			u += 0.3
		}
	}
	switch {
	case sameRank >= 2:
		u += 0.8
	case sameRank == 1:
		u += 0.4
	}
	return min(u, 1.0)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
