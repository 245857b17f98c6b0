package engine

import "slices"

// Event is the public description of an accepted transition, suitable for
// broadcasting to every client at the table. Cards drawn from the stock are
// never revealed.
type Event struct {
	Kind        ActionKind `json:"kind"`
	Player      string     `json:"player"`
	Card        *Card      `json:"card,omitempty"`
	Melds       []Meld     `json:"melds,omitempty"`
	Turn        string     `json:"turn"`
	Phase       Phase      `json:"phase"`
	DiscardTop  *Card      `json:"discardTop,omitempty"`
	StockSize   int        `json:"stockSize"`
	Contract    int        `json:"contract"`
	Progress    Evaluation `json:"progress"`
	HandSize    int        `json:"handSize"`
	RoundWinner string     `json:"roundWinner,omitempty"`
}

func (r *Round) fillEvent(ev *Event) {
	ev.Turn = r.Current()
	ev.Phase = r.Phase
	if top, ok := r.DiscardTop(); ok {
		ev.DiscardTop = &top
	}
	ev.StockSize = len(r.Stock)
	ev.Contract = r.Contract
	if i, err := r.seatOf(ev.Player); err == nil {
		ev.HandSize = len(r.Seats[i].Hand)
		ev.Progress, _ = r.Evaluate(ev.Player)
	}
	ev.RoundWinner = r.Winner
}

// PlayerView is what everybody at the table knows about one player.
type PlayerView struct {
	Player   string     `json:"player"`
	HandSize int        `json:"handSize"`
	Melds    []Meld     `json:"melds"`
	Progress Evaluation `json:"progress"`
}

// View is one player's picture of the round: all public state plus their own hand.
type View struct {
	Contract    Contract     `json:"contract"`
	Phase       Phase        `json:"phase"`
	Turn        string       `json:"turn"`
	You         string       `json:"you"`
	Hand        []Card       `json:"hand"`
	DiscardTop  *Card        `json:"discardTop,omitempty"`
	DiscardSize int          `json:"discardSize"`
	StockSize   int          `json:"stockSize"`
	Players     []PlayerView `json:"players"`
	Winner      string       `json:"winner,omitempty"`
}

// Own returns the viewer's entry in Players.
func (v View) Own() (PlayerView, bool) {
	for _, p := range v.Players {
		if p.Player == v.You {
			return p, true
		}
	}
	return PlayerView{}, false
}

// View builds the picture of the round seen by player. Spectators (unknown ids)
// get the public part with an empty hand.
func (r *Round) View(player string) View {
	c, _ := ContractByIndex(r.Contract)
	v := View{
		Contract:    c,
		Phase:       r.Phase,
		Turn:        r.Current(),
		You:         player,
		Hand:        []Card{},
		DiscardSize: len(r.DiscardPile),
		StockSize:   len(r.Stock),
		Players:     make([]PlayerView, len(r.Seats)),
		Winner:      r.Winner,
	}
	if top, ok := r.DiscardTop(); ok {
		v.DiscardTop = &top
	}
	for i, s := range r.Seats {
		ev, _ := EvaluateSubmission(r.Contract, submissionsOf(s.Melds))
		v.Players[i] = PlayerView{
			Player:   s.Player,
			HandSize: len(s.Hand),
			Melds:    slices.Clone(s.Melds),
			Progress: ev,
		}
		if s.Player == player {
			v.Hand = slices.Clone(s.Hand)
		}
	}
	return v
}
