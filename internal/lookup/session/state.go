// Package session holds the per-operator conversation state machine.
package session

import (
	"time"

	"asset-lookup-bot/internal/lookup/query"
)

// Step is the conversation state.
type Step int

const (
	StepInitial Step = iota
	StepAwaitingBranch
	StepAwaitingQuery
	StepAmbiguousSelection
)

func (s Step) String() string {
	switch s {
	case StepInitial:
		return "INITIAL"
	case StepAwaitingBranch:
		return "AWAITING_BRANCH"
	case StepAwaitingQuery:
		return "AWAITING_QUERY"
	case StepAmbiguousSelection:
		return "AMBIGUOUS_SELECTION"
	default:
		return "UNKNOWN"
	}
}

// Ambiguity is a pending choice between several canonical assets.
type Ambiguity struct {
	Query      string        `json:"query"`
	Candidates []query.Group `json:"candidates"`
}

// State is one operator's session. Build it with the constructors below so the
// fields valid for each step are the only ones set.
type State struct {
	Step             Step       `json:"step"`
	SelectedBranch   string     `json:"selectedBranch,omitempty"`
	PendingAmbiguity *Ambiguity `json:"pendingAmbiguity,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func Initial() State {
	return State{Step: StepInitial}
}

func AwaitingBranch() State {
	return State{Step: StepAwaitingBranch}
}

func AwaitingQuery(branch string) State {
	return State{Step: StepAwaitingQuery, SelectedBranch: branch}
}

func AmbiguousSelection(branch string, pending *Ambiguity) State {
	return State{Step: StepAmbiguousSelection, SelectedBranch: branch, PendingAmbiguity: pending}
}
