package engine

import "fmt"

// Contract is the combination of melds a round demands before a player may go out.
type Contract struct {
	Index           int    `json:"index"`
	RequiredGroups  int    `json:"requiredGroups"`
	RequiredRuns    int    `json:"requiredRuns"`
	InitialHandSize int    `json:"initialHandSize"`
	Description     string `json:"description"`
}

// NumContracts is the length of a full match.
const NumContracts = 10

var contracts = [NumContracts]Contract{
	{Index: 1, RequiredGroups: 2, RequiredRuns: 0, InitialHandSize: 11, Description: "2 groups"},
	{Index: 2, RequiredGroups: 1, RequiredRuns: 1, InitialHandSize: 10, Description: "1 group + 1 run"},
	{Index: 3, RequiredGroups: 0, RequiredRuns: 2, InitialHandSize: 9, Description: "2 runs"},
	{Index: 4, RequiredGroups: 3, RequiredRuns: 0, InitialHandSize: 8, Description: "3 groups"},
	{Index: 5, RequiredGroups: 2, RequiredRuns: 1, InitialHandSize: 7, Description: "2 groups + 1 run"},
	{Index: 6, RequiredGroups: 1, RequiredRuns: 2, InitialHandSize: 6, Description: "1 group + 2 runs"},
	{Index: 7, RequiredGroups: 0, RequiredRuns: 3, InitialHandSize: 5, Description: "3 runs"},
	{Index: 8, RequiredGroups: 4, RequiredRuns: 0, InitialHandSize: 4, Description: "4 groups"},
	{Index: 9, RequiredGroups: 3, RequiredRuns: 1, InitialHandSize: 3, Description: "3 groups + 1 run"},
	{Index: 10, RequiredGroups: 2, RequiredRuns: 2, InitialHandSize: 2, Description: "2 groups + 2 runs"},
}

// Contracts returns the fixed contract sequence.
func Contracts() []Contract {
	out := make([]Contract, NumContracts)
	copy(out, contracts[:])
	return out
}

// ContractByIndex returns the contract with the given 1-based index.
func ContractByIndex(index int) (Contract, error) {
	if index < 1 || index > NumContracts {
		return Contract{}, fmt.Errorf("contract %d: %w", index, ErrUnknownContract)
	}
	return contracts[index-1], nil
}

// EvaluationStatus is the outcome of judging a submission against a contract.
type EvaluationStatus string

const (
	Satisfied    EvaluationStatus = "satisfied"
	Insufficient EvaluationStatus = "insufficient"
	Rejected     EvaluationStatus = "rejected"
)

// Submission is one claimed meld inside a contract submission.
type Submission struct {
	Kind  MeldKind
	Cards []Card
}

// Evaluation reports how a list of melds measures up against a contract.
// Offending and Reason are only set when Status is Rejected.
type Evaluation struct {
	Status       EvaluationStatus `json:"status"`
	GroupsFound  int              `json:"groupsFound"`
	RunsFound    int              `json:"runsFound"`
	GroupsNeeded int              `json:"groupsNeeded"`
	RunsNeeded   int              `json:"runsNeeded"`
	Offending    int              `json:"offending,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

// Met reports whether the contract is satisfied.
func (e Evaluation) Met() bool { return e.Status == Satisfied }

// EvaluateSubmission validates every meld and counts groups and runs against
// the contract. A single invalid meld rejects the whole submission.
func EvaluateSubmission(contractIndex int, melds []Submission) (Evaluation, error) {
	c, err := ContractByIndex(contractIndex)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{GroupsNeeded: c.RequiredGroups, RunsNeeded: c.RequiredRuns}
	for i, m := range melds {
		if !Validate(m.Kind, m.Cards) {
			return Evaluation{
				Status:       Rejected,
				GroupsNeeded: c.RequiredGroups,
				RunsNeeded:   c.RequiredRuns,
				Offending:    i,
				Reason:       fmt.Sprintf("meld %d is not a valid %s", i, m.Kind),
			}, nil
		}
		switch m.Kind {
		case KindGroup:
			ev.GroupsFound++
		case KindRun:
			ev.RunsFound++
		}
	}
	if ev.GroupsFound >= ev.GroupsNeeded && ev.RunsFound >= ev.RunsNeeded {
		ev.Status = Satisfied
	} else {
		ev.Status = Insufficient
	}
	return ev, nil
}

func submissionsOf(melds []Meld) []Submission {
	subs := make([]Submission, len(melds))
	for i, m := range melds {
		subs[i] = Submission{Kind: m.Kind, Cards: m.Cards}
	}
	return subs
}
