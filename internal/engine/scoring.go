package engine

import "slices"

// ScoreHand sums the point values of the cards left in a hand.
func ScoreHand(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.PointValue()
	}
	return total
}

// SeatResult is one player's outcome for a finished round.
type SeatResult struct {
	Player  string `json:"player"`
	Score   int    `json:"score"`
	WentOut bool   `json:"wentOut"`
	Left    []Card `json:"left"`
}

// Results scores every seat. It returns nil until the round is complete.
func (r *Round) Results() []SeatResult {
	if r.Phase != PhaseRoundComplete {
		return nil
	}
	out := make([]SeatResult, len(r.Seats))
	for i, s := range r.Seats {
		out[i] = SeatResult{
			Player:  s.Player,
			Score:   ScoreHand(s.Hand),
			WentOut: s.Player == r.Winner,
			Left:    slices.Clone(s.Hand),
		}
	}
	return out
}
