package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/lifecycle"
	"github.com/ashita-ai/akashi/internal/model"
)

func TestValidateAllowedTransitions(t *testing.T) {
	cases := []struct {
		from, to model.BeliefState
	}{
		{model.StateHypothesis, model.StateAccepted},
		{model.StateHypothesis, model.StateContested},
		{model.StateHypothesis, model.StateRejected},
		{model.StateAccepted, model.StateContested},
		{model.StateAccepted, model.StateDeprecated},
		{model.StateContested, model.StateAccepted},
		{model.StateContested, model.StateRejected},
		{model.StateContested, model.StateDeprecated},
		{model.StateDeprecated, model.StateContested},
		{model.StateRejected, model.StateHypothesis},
	}
	for _, c := range cases {
		require.NoError(t, lifecycle.Validate(c.from, c.to), "%s -> %s should be allowed", c.from, c.to)
	}
}

func TestValidateRejectsInvalidTransition(t *testing.T) {
	err := lifecycle.Validate(model.StateRejected, model.StateAccepted)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestS1FSMHappyPath(t *testing.T) {
	// hypothesis -> accepted is allowed; accepted -> hypothesis directly is not.
	require.NoError(t, lifecycle.Validate(model.StateHypothesis, model.StateAccepted))
	err := lifecycle.Validate(model.StateAccepted, model.StateHypothesis)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}
