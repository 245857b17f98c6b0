package engine

import (
	"errors"
	"fmt"
	"slices"
)

// Phase is where the current turn stands.
type Phase string

const (
	PhaseAwaitingDraw          Phase = "awaiting_draw"
	PhaseAwaitingMeldOrDiscard Phase = "awaiting_meld_or_discard"
	PhaseAwaitingDiscard       Phase = "awaiting_discard"
	PhaseRoundComplete         Phase = "round_complete"
)

// DrawSource selects the pile a draw takes from.
type DrawSource string

const (
	FromStock   DrawSource = "stock"
	FromDiscard DrawSource = "discard"
)

const (
	MinPlayers = 2
	MaxPlayers = 8
)

// Seat is one player's private holdings for the round.
type Seat struct {
	Player string `json:"player"`
	Hand   []Card `json:"hand"`
	Melds  []Meld `json:"melds"`
}

// Round is the state of one contract being played. It is mutated only through
// its methods, by the player whose turn it is. A Round is not safe for
// concurrent use; its owner serializes calls.
type Round struct {
	Contract    int    `json:"contract"`
	Seats       []Seat `json:"seats"`
	Stock       []Card `json:"stock"`
	DiscardPile []Card `json:"discardPile"`
	Turn        int    `json:"turn"`
	Phase       Phase  `json:"phase"`
	Seed        uint64 `json:"seed"`
	Recycles    int    `json:"recycles"`
	Winner      string `json:"winner,omitempty"`
}

// RoundConfig describes how to deal a new round.
type RoundConfig struct {
	Players   []string
	Contract  int
	Seed      uint64
	StartSeat int
}

// NewRound shuffles the full deck, deals every player the contract's hand size
// in seat order and turns one card face up to start the discard pile.
func NewRound(cfg RoundConfig) (*Round, error) {
	c, err := ContractByIndex(cfg.Contract)
	if err != nil {
		return nil, err
	}
	n := len(cfg.Players)
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("need %d-%d players, have %d", MinPlayers, MaxPlayers, n)
	}
	seen := make(map[string]bool, n)
	for _, p := range cfg.Players {
		if p == "" || seen[p] {
			return nil, fmt.Errorf("invalid or duplicate player id %q", p)
		}
		seen[p] = true
	}
	if cfg.StartSeat < 0 || cfg.StartSeat >= n {
		return nil, fmt.Errorf("start seat %d out of range", cfg.StartSeat)
	}

	deck := Shuffle(BuildFullDeck(), cfg.Seed)
	r := &Round{
		Contract: c.Index,
		Seats:    make([]Seat, n),
		Turn:     cfg.StartSeat,
		Phase:    PhaseAwaitingDraw,
		Seed:     cfg.Seed,
	}
	next := 0
	for i, p := range cfg.Players {
		r.Seats[i] = Seat{
			Player: p,
			Hand:   slices.Clone(deck[next : next+c.InitialHandSize]),
			Melds:  []Meld{},
		}
		next += c.InitialHandSize
	}
	r.DiscardPile = []Card{deck[next]}
	r.Stock = slices.Clone(deck[next+1:])
	return r, nil
}

// Current returns the id of the player whose turn it is.
func (r *Round) Current() string { return r.Seats[r.Turn].Player }

// Players returns player ids in seat order.
func (r *Round) Players() []string {
	ids := make([]string, len(r.Seats))
	for i, s := range r.Seats {
		ids[i] = s.Player
	}
	return ids
}

// DiscardTop returns the face-up card, if any.
func (r *Round) DiscardTop() (Card, bool) {
	if len(r.DiscardPile) == 0 {
		return Card{}, false
	}
	return r.DiscardPile[len(r.DiscardPile)-1], true
}

// Hand returns a copy of a player's hand.
func (r *Round) Hand(player string) ([]Card, error) {
	i, err := r.seatOf(player)
	if err != nil {
		return nil, err
	}
	return slices.Clone(r.Seats[i].Hand), nil
}

func (r *Round) seatOf(player string) (int, error) {
	for i, s := range r.Seats {
		if s.Player == player {
			return i, nil
		}
	}
	return -1, fmt.Errorf("player %q: %w", player, ErrUnknownPlayer)
}

// actor checks that player holds the turn and the round is in one of phases.
func (r *Round) actor(player string, phases ...Phase) (*Seat, error) {
	if r.Phase == PhaseRoundComplete {
		return nil, ErrRoundComplete
	}
	i, err := r.seatOf(player)
	if err != nil {
		return nil, err
	}
	if i != r.Turn {
		return nil, fmt.Errorf("%s: %w", player, ErrNotYourTurn)
	}
	if !slices.Contains(phases, r.Phase) {
		return nil, fmt.Errorf("%w: %w (%s)", ErrNotYourTurn, ErrWrongPhase, r.Phase)
	}
	return &r.Seats[i], nil
}

// Draw moves one card from the chosen pile into the player's hand.
func (r *Round) Draw(player string, source DrawSource) (Card, error) {
	seat, err := r.actor(player, PhaseAwaitingDraw)
	if err != nil {
		return Card{}, err
	}
	var c Card
	switch source {
	case FromStock:
		if len(r.Stock) == 0 {
			return Card{}, fmt.Errorf("stock: %w", ErrEmptyPile)
		}
		c = r.Stock[0]
		r.Stock = r.Stock[1:]
	case FromDiscard:
		top, ok := r.DiscardTop()
		if !ok {
			return Card{}, fmt.Errorf("discard pile: %w", ErrEmptyPile)
		}
		c = top
		r.DiscardPile = r.DiscardPile[:len(r.DiscardPile)-1]
	default:
		return Card{}, fmt.Errorf("draw source %q: %w", source, ErrUnknownAction)
	}
	seat.Hand = append(seat.Hand, c)
	r.Phase = PhaseAwaitingMeldOrDiscard
	return c, nil
}

// RecycleStock turns an exhausted stock into a fresh one: the top discard stays
// face up and every card beneath it is shuffled into the stock.
func (r *Round) RecycleStock() error {
	if r.Phase == PhaseRoundComplete {
		return ErrRoundComplete
	}
	if len(r.Stock) > 0 {
		return fmt.Errorf("stock still holds %d cards: %w", len(r.Stock), ErrWrongPhase)
	}
	if len(r.DiscardPile) < 2 {
		return fmt.Errorf("nothing to recycle: %w", ErrEmptyPile)
	}
	top := r.DiscardPile[len(r.DiscardPile)-1]
	r.Recycles++
	r.Stock = Shuffle(r.DiscardPile[:len(r.DiscardPile)-1], r.Seed+uint64(r.Recycles))
	r.DiscardPile = []Card{top}
	return nil
}

// Close ends a blocked round with nobody going out. Every seat scores what it
// still holds.
func (r *Round) Close() error {
	if r.Phase == PhaseRoundComplete {
		return ErrRoundComplete
	}
	r.Phase = PhaseRoundComplete
	return nil
}

// takeCards resolves ids against hand. It returns the chosen cards and the
// hand that would remain, without touching the seat.
func takeCards(hand []Card, ids []string) (taken, rest []Card, err error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if want[id] {
			return nil, nil, fmt.Errorf("card %s listed twice: %w", id, ErrCardsNotInHand)
		}
		want[id] = true
	}
	byID := make(map[string]Card, len(hand))
	for _, c := range hand {
		byID[c.ID] = c
	}
	taken = make([]Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, nil, fmt.Errorf("card %s: %w", id, ErrCardsNotInHand)
		}
		taken = append(taken, c)
	}
	rest = make([]Card, 0, len(hand)-len(taken))
	for _, c := range hand {
		if !want[c.ID] {
			rest = append(rest, c)
		}
	}
	return taken, rest, nil
}

// DeclareMeld lays down a single meld.
func (r *Round) DeclareMeld(player string, kind MeldKind, cardIDs []string) error {
	return r.DeclareMelds(player, []MeldSpec{{Kind: kind, CardIDs: cardIDs}})
}

// DeclareMelds validates every meld and then commits all of them. On any
// failure the hand and melds are left untouched. If the hand ends up empty and
// the contract is met, the player goes out and the round completes. Melding
// down to one card also needs a met contract, since that card can only be
// discarded by going out.
func (r *Round) DeclareMelds(player string, specs []MeldSpec) error {
	seat, err := r.actor(player, PhaseAwaitingMeldOrDiscard)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return fmt.Errorf("no melds given: %w", ErrInvalidCombination)
	}
	var all []string
	for _, s := range specs {
		all = append(all, s.CardIDs...)
	}
	if _, _, err := takeCards(seat.Hand, all); err != nil {
		return err
	}

	byID := make(map[string]Card, len(seat.Hand))
	for _, c := range seat.Hand {
		byID[c.ID] = c
	}
	melds := make([]Meld, 0, len(specs))
	for i, s := range specs {
		cards := make([]Card, len(s.CardIDs))
		for j, id := range s.CardIDs {
			cards[j] = byID[id]
		}
		kind := s.Kind
		if kind == "" {
			k, ok := Classify(cards)
			if !ok {
				return &RejectionError{MeldIndex: i, Kind: kind, Cards: s.CardIDs}
			}
			kind = k
		}
		if !kind.valid() || !Validate(kind, cards) {
			return &RejectionError{MeldIndex: i, Kind: kind, Cards: s.CardIDs}
		}
		melds = append(melds, Meld{Kind: kind, Cards: cards, Owner: player, Round: r.Contract})
	}

	_, rest, _ := takeCards(seat.Hand, all)
	committed := append(slices.Clone(seat.Melds), melds...)
	if len(rest) <= 1 {
		ev, err := EvaluateSubmission(r.Contract, submissionsOf(committed))
		if err != nil {
			return err
		}
		if !ev.Met() {
			return ErrCannotGoOut
		}
	}

	seat.Hand = rest
	seat.Melds = committed
	if len(rest) == 0 {
		r.Winner = player
		r.Phase = PhaseRoundComplete
	}
	return nil
}

// Evaluate judges a player's melds declared this round against the contract.
func (r *Round) Evaluate(player string) (Evaluation, error) {
	i, err := r.seatOf(player)
	if err != nil {
		return Evaluation{}, err
	}
	return EvaluateSubmission(r.Contract, submissionsOf(r.Seats[i].Melds))
}

// EndMeldPhase closes the meld phase for the turn and reports how the
// player's melds from this round measure up against the contract.
func (r *Round) EndMeldPhase(player string) (Evaluation, error) {
	if _, err := r.actor(player, PhaseAwaitingMeldOrDiscard); err != nil {
		return Evaluation{}, err
	}
	ev, err := r.Evaluate(player)
	if err != nil {
		return Evaluation{}, err
	}
	r.Phase = PhaseAwaitingDiscard
	return ev, nil
}

// Discard puts a card on the discard pile and passes the turn to the next
// seat. Discarding the last card goes out, which needs a met contract.
func (r *Round) Discard(player, cardID string) error {
	seat, err := r.actor(player, PhaseAwaitingMeldOrDiscard, PhaseAwaitingDiscard)
	if err != nil {
		return err
	}
	taken, rest, err := takeCards(seat.Hand, []string{cardID})
	if err != nil {
		return fmt.Errorf("card %s: %w", cardID, ErrCardNotInHand)
	}
	if len(rest) == 0 {
		ev, err := r.Evaluate(player)
		if err != nil {
			return err
		}
		if !ev.Met() {
			return ErrCannotGoOut
		}
	}

	seat.Hand = rest
	r.DiscardPile = append(r.DiscardPile, taken[0])
	if len(rest) == 0 {
		r.Winner = player
		r.Phase = PhaseRoundComplete
		return nil
	}
	r.Turn = (r.Turn + 1) % len(r.Seats)
	r.Phase = PhaseAwaitingDraw
	return nil
}

// Apply dispatches an Action and returns the public event describing the
// accepted transition.
func (r *Round) Apply(player string, a Action) (Event, error) {
	ev := Event{Kind: a.Kind(), Player: player}
	switch a := a.(type) {
	case DrawStock:
		if _, err := r.Draw(player, FromStock); err != nil {
			return Event{}, err
		}
	case DrawDiscard:
		c, err := r.Draw(player, FromDiscard)
		if err != nil {
			return Event{}, err
		}
		ev.Card = &c
	case DeclareMelds:
		before := 0
		if i, err := r.seatOf(player); err == nil {
			before = len(r.Seats[i].Melds)
		}
		if err := r.DeclareMelds(player, a.Melds); err != nil {
			return Event{}, err
		}
		i, _ := r.seatOf(player)
		ev.Melds = slices.Clone(r.Seats[i].Melds[before:])
	case EndMelds:
		if _, err := r.EndMeldPhase(player); err != nil {
			return Event{}, err
		}
	case Discard:
		top := Card{}
		for _, c := range r.Seats[r.Turn].Hand {
			if c.ID == a.CardID {
				top = c
			}
		}
		if err := r.Discard(player, a.CardID); err != nil {
			return Event{}, err
		}
		ev.Card = &top
	default:
		return Event{}, fmt.Errorf("%T: %w", a, ErrUnknownAction)
	}
	r.fillEvent(&ev)
	return ev, nil
}

// CheckConservation verifies every card of the universe sits in exactly one
// place: a hand, a meld, the stock or the discard pile.
func (r *Round) CheckConservation() error {
	counts := make(map[string]int, DeckSize)
	add := func(cards []Card) {
		for _, c := range cards {
			counts[c.ID]++
		}
	}
	add(r.Stock)
	add(r.DiscardPile)
	for _, s := range r.Seats {
		add(s.Hand)
		for _, m := range s.Melds {
			add(m.Cards)
		}
	}
	var errs []error
	for _, c := range BuildFullDeck() {
		switch n := counts[c.ID]; n {
		case 1:
		case 0:
			errs = append(errs, fmt.Errorf("card %s missing", c.ID))
		default:
			errs = append(errs, fmt.Errorf("card %s present %d times", c.ID, n))
		}
		delete(counts, c.ID)
	}
	for id := range counts {
		errs = append(errs, fmt.Errorf("card %s is not part of the deck", id))
	}
	return errors.Join(errs...)
}
