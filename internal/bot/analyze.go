package bot

import (
	"cmp"
	"slices"

	"carioca/internal/engine"
)

// Candidate is a meld the hand could form: a set of plain cards plus the
// number of jokers it still needs.
type Candidate struct {
	Kind  engine.MeldKind
	Plain []engine.Card
	Wilds int
}

// Size is the number of cards the meld would hold.
func (c Candidate) Size() int { return len(c.Plain) + c.Wilds }

// Analysis is the breakdown of a hand into jokers and candidate melds.
type Analysis struct {
	Wildcards []engine.Card
	Groups    []Candidate
	Runs      []Candidate
}

// Analyze lists every group and run the hand could form with the jokers it
// holds. Candidates overlap; use Plan to pick a disjoint set.
func Analyze(hand []engine.Card) Analysis {
	var a Analysis
	byRank := map[engine.Rank][]engine.Card{}
	bySuit := map[engine.Suit][]engine.Card{}
	for _, c := range hand {
		if c.IsWildcard() {
			a.Wildcards = append(a.Wildcards, c)
			continue
		}
		byRank[c.Rank] = append(byRank[c.Rank], c)
		bySuit[c.Suit] = append(bySuit[c.Suit], c)
	}
	wilds := len(a.Wildcards)

	for r := engine.RankAce; r <= engine.RankKing; r++ {
		cards := byRank[r]
		if len(cards) == 0 {
			continue
		}
		need := max(0, engine.MinMeldSize-len(cards))
		if need <= wilds {
			a.Groups = append(a.Groups, Candidate{Kind: engine.KindGroup, Plain: cards, Wilds: need})
		}
	}

	for _, s := range engine.Suits {
		a.Runs = append(a.Runs, runsInSuit(bySuit[s], wilds)...)
	}

	byCost := func(x, y Candidate) int {
		if c := cmp.Compare(x.Wilds, y.Wilds); c != 0 {
			return c
		}
		return cmp.Compare(y.Size(), x.Size())
	}
	slices.SortStableFunc(a.Groups, byCost)
	slices.SortStableFunc(a.Runs, byCost)
	return a
}

// runsInSuit returns every window of consecutive distinct ranks, at least two
// plain cards long, whose gaps and missing length fit in the joker budget.
func runsInSuit(cards []engine.Card, wilds int) []Candidate {
	distinct := slices.Clone(cards)
	slices.SortStableFunc(distinct, func(x, y engine.Card) int { return cmp.Compare(x.Rank, y.Rank) })
	distinct = slices.CompactFunc(distinct, func(x, y engine.Card) bool { return x.Rank == y.Rank })

	var out []Candidate
	for i := range distinct {
		gaps := 0
		for j := i + 1; j < len(distinct); j++ {
			gaps += distinct[j].Rank.Ordinal() - distinct[j-1].Rank.Ordinal() - 1
			if gaps > wilds {
				break
			}
			plain := distinct[i : j+1]
			need := gaps + max(0, engine.MinMeldSize-len(plain)-gaps)
			if need > wilds {
				continue
			}
			out = append(out, Candidate{Kind: engine.KindRun, Plain: slices.Clone(plain), Wilds: need})
		}
	}
	return out
}

// Plan picks disjoint candidates covering exactly the contract's groups and
// runs within the hand's joker budget, and returns them as declarations. The
// second result is false when the hand cannot meet the contract.
func Plan(contract engine.Contract, hand []engine.Card) ([]engine.MeldSpec, bool) {
	a := Analyze(hand)
	p := planner{
		groups: a.Groups,
		runs:   a.Runs,
		used:   map[string]bool{},
		budget: len(a.Wildcards),
	}
	if !p.pick(contract.RequiredGroups, contract.RequiredRuns, 0, 0) {
		return nil, false
	}

	jokers := a.Wildcards
	specs := make([]engine.MeldSpec, 0, len(p.chosen))
	for _, c := range p.chosen {
		cards := append(slices.Clone(c.Plain), jokers[:c.Wilds]...)
		jokers = jokers[c.Wilds:]
		if !engine.Validate(c.Kind, cards) {
			return nil, false
		}
		specs = append(specs, engine.MeldSpec{Kind: c.Kind, CardIDs: engine.CardIDs(cards)})
	}
	return specs, true
}

type planner struct {
	groups, runs []Candidate
	used         map[string]bool
	budget       int
	chosen       []Candidate
}

// pick backtracks over groups first, then runs. from indexes the list being
// filled so each combination is tried once.
func (p *planner) pick(groups, runs, gFrom, rFrom int) bool {
	if groups == 0 && runs == 0 {
		return true
	}
	list, from := p.runs, rFrom
	if groups > 0 {
		list, from = p.groups, gFrom
	}
	for i := from; i < len(list); i++ {
		c := list[i]
		if c.Wilds > p.budget || !p.free(c) {
			continue
		}
		p.take(c, true)
		var ok bool
		if groups > 0 {
			ok = p.pick(groups-1, runs, i+1, rFrom)
		} else {
			ok = p.pick(groups, runs-1, gFrom, i+1)
		}
		if ok {
			return true
		}
		p.take(c, false)
	}
	return false
}

func (p *planner) free(c Candidate) bool {
	for _, card := range c.Plain {
		if p.used[card.ID] {
			return false
		}
	}
	return true
}

func (p *planner) take(c Candidate, on bool) {
	for _, card := range c.Plain {
		p.used[card.ID] = on
	}
	if on {
		p.budget -= c.Wilds
		p.chosen = append(p.chosen, c)
		return
	}
	p.budget += c.Wilds
	p.chosen = p.chosen[:len(p.chosen)-1]
}

// Extra returns one more complete meld the hand can lay down, preferring the
// one that spends the fewest jokers.
func Extra(hand []engine.Card) (engine.MeldSpec, bool) {
	a := Analyze(hand)
	cands := append(slices.Clone(a.Groups), a.Runs...)
	slices.SortStableFunc(cands, func(x, y Candidate) int { return cmp.Compare(x.Wilds, y.Wilds) })
	for _, c := range cands {
		if c.Wilds > len(a.Wildcards) {
			continue
		}
		cards := append(slices.Clone(c.Plain), a.Wildcards[:c.Wilds]...)
		if engine.Validate(c.Kind, cards) {
			return engine.MeldSpec{Kind: c.Kind, CardIDs: engine.CardIDs(cards)}, true
		}
	}
	return engine.MeldSpec{}, false
}
