package engine

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rig builds a round with fixed hands for players p0, p1, ... The rest of the
// deck goes to the stock except one card that starts the discard pile.
func rig(t *testing.T, contract int, phase Phase, hands ...[]Card) *Round {
	t.Helper()
	used := map[string]bool{}
	r := &Round{Contract: contract, Phase: phase, Seed: 7}
	for i, h := range hands {
		for _, c := range h {
			used[c.ID] = true
		}
		r.Seats = append(r.Seats, Seat{Player: fmt.Sprintf("p%d", i), Hand: append([]Card(nil), h...), Melds: []Meld{}})
	}
	var rest []Card
	for _, c := range BuildFullDeck() {
		if !used[c.ID] {
			rest = append(rest, c)
		}
	}
	r.DiscardPile = []Card{rest[0]}
	r.Stock = rest[1:]
	require.NoError(t, r.CheckConservation())
	return r
}

func ids(cards ...Card) []string { return CardIDs(cards) }

func snapshot(t *testing.T, r *Round) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

func TestNewRound(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b", "c"}, Contract: 1, Seed: 99})
	require.NoError(t, err)

	for _, s := range r.Seats {
		assert.Len(t, s.Hand, 11)
		assert.Empty(t, s.Melds)
	}
	assert.Len(t, r.DiscardPile, 1)
	assert.Len(t, r.Stock, DeckSize-3*11-1)
	assert.Equal(t, "a", r.Current())
	assert.Equal(t, PhaseAwaitingDraw, r.Phase)
	require.NoError(t, r.CheckConservation())

	again, err := NewRound(RoundConfig{Players: []string{"a", "b", "c"}, Contract: 1, Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, r, again, "same seed must deal the same round")

	last, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 10, Seed: 1, StartSeat: 1})
	require.NoError(t, err)
	assert.Len(t, last.Seats[0].Hand, 2)
	assert.Equal(t, "b", last.Current())
}

func TestNewRoundRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  RoundConfig
	}{
		{"one player", RoundConfig{Players: []string{"a"}, Contract: 1}},
		{"duplicate player", RoundConfig{Players: []string{"a", "a"}, Contract: 1}},
		{"empty id", RoundConfig{Players: []string{"a", ""}, Contract: 1}},
		{"unknown contract", RoundConfig{Players: []string{"a", "b"}, Contract: 11}},
		{"start seat out of range", RoundConfig{Players: []string{"a", "b"}, Contract: 1, StartSeat: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRound(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestTurnOrderFourPlayers(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b", "c", "d"}, Contract: 1, Seed: 5})
	require.NoError(t, err)

	require.Equal(t, 0, r.Turn)
	for want := 1; want <= 4; want++ {
		p := r.Current()
		_, err := r.Draw(p, FromStock)
		require.NoError(t, err)
		require.NoError(t, r.Discard(p, r.Seats[r.Turn].Hand[0].ID))
		assert.Equal(t, want%4, r.Turn)
		assert.Equal(t, PhaseAwaitingDraw, r.Phase)
	}
	require.NoError(t, r.CheckConservation())
}

func TestOutOfTurnAndWrongPhase(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 1, Seed: 3})
	require.NoError(t, err)
	before := snapshot(t, r)

	_, err = r.Draw("b", FromStock)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	err = r.Discard("a", r.Seats[0].Hand[0].ID)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = r.Draw("zed", FromStock)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, err = r.Draw("a", DrawSource("pocket"))
	assert.ErrorIs(t, err, ErrUnknownAction)

	assert.Equal(t, before, snapshot(t, r))

	_, err = r.Draw("a", FromStock)
	require.NoError(t, err)
	_, err = r.Draw("a", FromStock)
	assert.ErrorIs(t, err, ErrWrongPhase, "second draw in one turn")
}

func TestDrawDiscardPile(t *testing.T) {
	r := rig(t, 1, PhaseAwaitingDraw, []Card{card(RankTwo, SuitHearts)}, []Card{card(RankThree, SuitHearts)})
	top, _ := r.DiscardTop()

	got, err := r.Draw("p0", FromDiscard)
	require.NoError(t, err)
	assert.Equal(t, top, got)
	assert.Empty(t, r.DiscardPile)

	require.NoError(t, r.Discard("p0", card(RankTwo, SuitHearts).ID))
	_, err = r.Draw("p1", FromDiscard)
	require.NoError(t, err)
	require.NoError(t, r.Discard("p1", card(RankThree, SuitHearts).ID))

	r.Stock = append(r.Stock, r.DiscardPile...)
	r.DiscardPile = nil
	require.NoError(t, r.CheckConservation())
	_, err = r.Draw("p0", FromDiscard)
	assert.ErrorIs(t, err, ErrEmptyPile)
}

func TestDeclareMeldScenario(t *testing.T) {
	hand := []Card{
		card(RankSeven, SuitHearts), card(RankSeven, SuitSpades), card(RankSeven, SuitDiamonds),
		card(RankTwo, SuitClubs), card(RankThree, SuitClubs),
	}
	r := rig(t, 1, PhaseAwaitingMeldOrDiscard, hand, []Card{card(RankKing, SuitClubs)})

	require.NoError(t, r.DeclareMeld("p0", KindGroup, ids(hand[0], hand[1], hand[2])))

	left, err := r.Hand("p0")
	require.NoError(t, err)
	assert.Equal(t, ids(hand[3], hand[4]), CardIDs(left))
	assert.Len(t, r.Seats[0].Melds, 1)
	assert.Equal(t, "p0", r.Seats[0].Melds[0].Owner)

	ev, err := r.EndMeldPhase("p0")
	require.NoError(t, err)
	assert.Equal(t, Insufficient, ev.Status)
	assert.Equal(t, 1, ev.GroupsFound)
	assert.Equal(t, 2, ev.GroupsNeeded)
	assert.Equal(t, PhaseAwaitingDiscard, r.Phase)

	err = r.DeclareMeld("p0", KindRun, ids(hand[3], hand[4]))
	assert.ErrorIs(t, err, ErrWrongPhase, "meld phase is closed")
	require.NoError(t, r.CheckConservation())
}

func TestRejectedMeldLeavesRoundUntouched(t *testing.T) {
	hand := []Card{
		card(RankNine, SuitHearts), card(RankNine, SuitSpades), card(RankFour, SuitDiamonds),
		card(RankTwo, SuitClubs), card(RankThree, SuitClubs), card(RankFour, SuitClubs),
	}
	r := rig(t, 2, PhaseAwaitingMeldOrDiscard, hand, []Card{card(RankKing, SuitClubs)})
	before := snapshot(t, r)

	err := r.DeclareMeld("p0", KindGroup, ids(hand[0], hand[1], hand[2]))
	assert.ErrorIs(t, err, ErrInvalidCombination)
	assert.Equal(t, before, snapshot(t, r))

	err = r.DeclareMeld("p0", KindGroup, []string{hand[0].ID, hand[1].ID, "joker1_blue"})
	assert.ErrorIs(t, err, ErrCardsNotInHand)
	assert.Equal(t, before, snapshot(t, r))

	err = r.DeclareMelds("p0", []MeldSpec{
		{Kind: KindRun, CardIDs: ids(hand[3], hand[4], hand[5])},
		{Kind: KindGroup, CardIDs: ids(hand[0], hand[1], hand[2])},
	})
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 1, rej.MeldIndex)
	assert.Equal(t, before, snapshot(t, r), "first meld must not be applied either")

	err = r.DeclareMelds("p0", []MeldSpec{
		{Kind: KindRun, CardIDs: ids(hand[3], hand[4], hand[5])},
		{Kind: KindRun, CardIDs: ids(hand[5], hand[0], hand[1])},
	})
	assert.ErrorIs(t, err, ErrCardsNotInHand, "card reused across melds")
	assert.Equal(t, before, snapshot(t, r))
}

func TestDeclareMeldClassifiesMissingKind(t *testing.T) {
	hand := []Card{
		card(RankTwo, SuitClubs), card(RankThree, SuitClubs), card(RankFour, SuitClubs),
		card(RankKing, SuitHearts), card(RankQueen, SuitHearts),
	}
	r := rig(t, 3, PhaseAwaitingMeldOrDiscard, hand, []Card{card(RankKing, SuitClubs)})

	require.NoError(t, r.DeclareMelds("p0", []MeldSpec{{CardIDs: ids(hand[0], hand[1], hand[2])}}))
	assert.Equal(t, KindRun, r.Seats[0].Melds[0].Kind)
}

func TestGoingOut(t *testing.T) {
	g1 := []Card{card(RankFive, SuitHearts), card(RankFive, SuitClubs), card(RankFive, SuitSpades)}
	g2 := []Card{card(RankJack, SuitHearts), card(RankJack, SuitClubs), wild(1)}
	other := []Card{card(RankAce, SuitDiamonds), card(RankKing, SuitDiamonds), wild(2)}

	t.Run("by melding the last card", func(t *testing.T) {
		r := rig(t, 1, PhaseAwaitingMeldOrDiscard, append(append([]Card{}, g1...), g2...), other)
		require.NoError(t, r.DeclareMelds("p0", []MeldSpec{
			{Kind: KindGroup, CardIDs: ids(g1...)},
			{Kind: KindGroup, CardIDs: ids(g2...)},
		}))
		assert.Equal(t, PhaseRoundComplete, r.Phase)
		assert.Equal(t, "p0", r.Winner)

		res := r.Results()
		require.Len(t, res, 2)
		assert.Equal(t, SeatResult{Player: "p0", Score: 0, WentOut: true, Left: []Card{}}, res[0])
		assert.Equal(t, 15+10+25, res[1].Score)

		_, err := r.Draw("p1", FromStock)
		assert.ErrorIs(t, err, ErrRoundComplete)
		require.NoError(t, r.CheckConservation())
	})

	t.Run("by discarding the last card", func(t *testing.T) {
		hand := append(append([]Card{}, g1...), g2...)
		hand = append(hand, card(RankTwo, SuitDiamonds))
		r := rig(t, 1, PhaseAwaitingMeldOrDiscard, hand, other)
		require.NoError(t, r.DeclareMelds("p0", []MeldSpec{
			{Kind: KindGroup, CardIDs: ids(g1...)},
			{Kind: KindGroup, CardIDs: ids(g2...)},
		}))
		assert.Nil(t, r.Results(), "round still running")
		require.NoError(t, r.Discard("p0", card(RankTwo, SuitDiamonds).ID))
		assert.Equal(t, PhaseRoundComplete, r.Phase)
		assert.Equal(t, "p0", r.Winner)
	})

	t.Run("not before the contract is met", func(t *testing.T) {
		r := rig(t, 3, PhaseAwaitingMeldOrDiscard, g1, other)
		before := snapshot(t, r)
		err := r.DeclareMeld("p0", KindGroup, ids(g1...))
		assert.ErrorIs(t, err, ErrCannotGoOut)
		assert.Equal(t, before, snapshot(t, r))

		single := rig(t, 1, PhaseAwaitingDiscard, []Card{card(RankTwo, SuitDiamonds)}, other)
		err = single.Discard("p0", card(RankTwo, SuitDiamonds).ID)
		assert.ErrorIs(t, err, ErrCannotGoOut)
		assert.Len(t, single.Seats[0].Hand, 1)
	})
}

func TestMeldDownToOneCardNeedsContract(t *testing.T) {
	sevens := []Card{card(RankSeven, SuitHearts), card(RankSeven, SuitSpades), card(RankSeven, SuitDiamonds)}
	last := card(RankTwo, SuitClubs)
	other := []Card{card(RankAce, SuitDiamonds), card(RankKing, SuitDiamonds), wild(2)}

	// Contract 9 asks for three groups and a run; one group leaves it unmet.
	r := rig(t, 9, PhaseAwaitingMeldOrDiscard, append(append([]Card{}, sevens...), last), other)
	before := snapshot(t, r)
	err := r.DeclareMeld("p0", KindGroup, ids(sevens...))
	assert.ErrorIs(t, err, ErrCannotGoOut)
	assert.Equal(t, before, snapshot(t, r))

	// The turn still moves on after a plain discard.
	require.NoError(t, r.Discard("p0", last.ID))
	assert.Equal(t, 1, r.Turn)
	assert.Equal(t, PhaseAwaitingDraw, r.Phase)
	_, err = r.Draw("p1", FromStock)
	require.NoError(t, err)
	require.NoError(t, r.CheckConservation())

	// With the contract met the same shape is allowed and the last card goes out.
	g2 := []Card{card(RankJack, SuitHearts), card(RankJack, SuitClubs), wild(1)}
	met := rig(t, 1, PhaseAwaitingMeldOrDiscard, append(append(append([]Card{}, sevens...), g2...), last), other)
	require.NoError(t, met.DeclareMelds("p0", []MeldSpec{
		{Kind: KindGroup, CardIDs: ids(sevens...)},
		{Kind: KindGroup, CardIDs: ids(g2...)},
	}))
	require.NoError(t, met.Discard("p0", last.ID))
	assert.Equal(t, "p0", met.Winner)
}

func TestRecycleStock(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 10, Seed: 11})
	require.NoError(t, err)
	assert.ErrorIs(t, r.RecycleStock(), ErrWrongPhase, "stock is not empty")

	r.DiscardPile = append(r.DiscardPile, r.Stock...)
	r.Stock = nil
	top, _ := r.DiscardTop()
	n := len(r.DiscardPile)

	require.NoError(t, r.RecycleStock())
	assert.Equal(t, []Card{top}, r.DiscardPile)
	assert.Len(t, r.Stock, n-1)
	assert.Equal(t, 1, r.Recycles)
	require.NoError(t, r.CheckConservation())

	r.DiscardPile = nil
	r.Stock = nil
	assert.ErrorIs(t, r.RecycleStock(), ErrEmptyPile)
}

func TestCloseBlockedRound(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 9, Seed: 12})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Equal(t, PhaseRoundComplete, r.Phase)
	assert.Empty(t, r.Winner)
	for i, res := range r.Results() {
		assert.False(t, res.WentOut)
		assert.Equal(t, ScoreHand(r.Seats[i].Hand), res.Score)
	}
	assert.ErrorIs(t, r.Close(), ErrRoundComplete)
}

func TestApplyEvents(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 1, Seed: 21})
	require.NoError(t, err)

	ev, err := r.Apply("a", DrawStock{})
	require.NoError(t, err)
	assert.Equal(t, ActionDrawStock, ev.Kind)
	assert.Nil(t, ev.Card, "stock draws stay private")
	assert.Equal(t, 12, ev.HandSize)
	assert.Equal(t, PhaseAwaitingMeldOrDiscard, ev.Phase)

	_, err = r.Apply("a", EndMelds{})
	require.NoError(t, err)

	c := r.Seats[0].Hand[3]
	ev, err = r.Apply("a", Discard{CardID: c.ID})
	require.NoError(t, err)
	require.NotNil(t, ev.Card)
	assert.Equal(t, c, *ev.Card)
	assert.Equal(t, c, *ev.DiscardTop)
	assert.Equal(t, "b", ev.Turn)

	ev, err = r.Apply("b", DrawDiscard{})
	require.NoError(t, err)
	require.NotNil(t, ev.Card)
	assert.Equal(t, c, *ev.Card)

	_, err = r.Apply("b", Discard{CardID: "nope"})
	assert.ErrorIs(t, err, ErrCardNotInHand)
}

func TestView(t *testing.T) {
	r, err := NewRound(RoundConfig{Players: []string{"a", "b"}, Contract: 4, Seed: 8})
	require.NoError(t, err)

	v := r.View("b")
	assert.Equal(t, 4, v.Contract.Index)
	assert.Equal(t, "a", v.Turn)
	assert.Equal(t, r.Seats[1].Hand, v.Hand)
	own, ok := v.Own()
	require.True(t, ok)
	assert.Equal(t, 8, own.HandSize)
	assert.Equal(t, 3, own.Progress.GroupsNeeded)

	spectator := r.View("nobody")
	assert.Empty(t, spectator.Hand)
	_, ok = spectator.Own()
	assert.False(t, ok)
}

func TestConservationUnderRandomPlay(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	r, err := NewRound(RoundConfig{Players: []string{"a", "b", "c"}, Contract: 1, Seed: 77})
	require.NoError(t, err)

	for step := 0; step < 400 && r.Phase != PhaseRoundComplete; step++ {
		p := r.Current()
		if len(r.Stock) == 0 {
			require.NoError(t, r.RecycleStock())
		}
		var a Action = DrawStock{}
		if rng.IntN(2) == 0 {
			a = DrawDiscard{}
		}
		if _, err := r.Apply(p, a); err != nil {
			require.ErrorIs(t, err, ErrEmptyPile)
			_, err = r.Apply(p, DrawStock{})
			require.NoError(t, err)
		}
		hand := r.Seats[r.Turn].Hand
		_, err := r.Apply(p, Discard{CardID: hand[rng.IntN(len(hand))].ID})
		require.NoError(t, err)
		require.NoError(t, r.CheckConservation(), "step %d", step)
	}
}
