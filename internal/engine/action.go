package engine

// ActionKind names an Action variant on the wire and in logs.
type ActionKind string

const (
	ActionDrawStock    ActionKind = "draw_stock"
	ActionDrawDiscard  ActionKind = "draw_discard"
	ActionDeclareMelds ActionKind = "declare_melds"
	ActionEndMelds     ActionKind = "end_melds"
	ActionDiscard      ActionKind = "discard"
)

// Action is the closed set of moves a player (human or bot) can make.
type Action interface {
	Kind() ActionKind
	sealed()
}

// DrawStock takes the front card of the stock.
type DrawStock struct{}

// DrawDiscard takes the top card of the discard pile.
type DrawDiscard struct{}

// MeldSpec names the cards of one meld. An empty Kind is classified from the cards.
type MeldSpec struct {
	Kind    MeldKind `json:"kind,omitempty"`
	CardIDs []string `json:"cards"`
}

// DeclareMelds lays down one or more melds at once. All or none are applied.
type DeclareMelds struct {
	Melds []MeldSpec
}

// EndMelds closes the meld phase and reports contract progress.
type EndMelds struct{}

// Discard puts a card from hand on top of the discard pile and ends the turn.
type Discard struct {
	CardID string
}

func (DrawStock) Kind() ActionKind    { return ActionDrawStock }
func (DrawDiscard) Kind() ActionKind  { return ActionDrawDiscard }
func (DeclareMelds) Kind() ActionKind { return ActionDeclareMelds }
func (EndMelds) Kind() ActionKind     { return ActionEndMelds }
func (Discard) Kind() ActionKind      { return ActionDiscard }

func (DrawStock) sealed()    {}
func (DrawDiscard) sealed()  {}
func (DeclareMelds) sealed() {}
func (EndMelds) sealed()     {}
func (Discard) sealed()      {}
