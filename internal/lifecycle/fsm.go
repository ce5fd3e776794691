// Package lifecycle implements the Belief Lifecycle FSM (C7): the five-state
// machine governing a belief's epistemic status.
package lifecycle

import (
	"fmt"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/model"
)

// transitions is the allowed-transition table. Any transition not listed
// here fails with apperr.ErrInvalidTransition.
var transitions = map[model.BeliefState]map[model.BeliefState]bool{
	model.StateHypothesis: {model.StateAccepted: true, model.StateContested: true, model.StateRejected: true},
	model.StateAccepted:   {model.StateContested: true, model.StateDeprecated: true},
	model.StateContested:  {model.StateAccepted: true, model.StateRejected: true, model.StateDeprecated: true},
	model.StateDeprecated: {model.StateContested: true},
	model.StateRejected:   {model.StateHypothesis: true},
}

// Validate reports whether transitioning from -> to is a member of the FSM.
func Validate(from, to model.BeliefState) error {
	allowed, ok := transitions[from]
	if !ok || !allowed[to] {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}
	return nil
}

// InitialState is the state every new belief starts in.
const InitialState = model.StateHypothesis
