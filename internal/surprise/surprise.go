// Package surprise implements the Surprise Scorer (C11): combines novelty,
// contradiction, evidence, confidence-shift and disagreement into a single
// score in [0,1].
package surprise

import "github.com/ashita-ai/akashi/internal/model"

// Signal is the optional external surprise signal a caller may supply
// instead of (or alongside) the internally computed components.
type Signal struct {
	Magnitude  float64
	Momentum   float64
	Components *model.SurpriseComponents
}

// Inputs are the raw ingredients for the internal computation.
type Inputs struct {
	// Novelty = 1 - max semantic similarity to the last N memories of the same agent.
	Novelty float64
	// Contradiction = fraction of claims found contradictory against active beliefs.
	Contradiction float64
	// Evidence accumulates provenance-quality (externally supplied, in [0,1]).
	Evidence float64
	// ConfidenceShift = |delta mean confidence| of updated beliefs.
	ConfidenceShift float64
	// Disagreement = fraction of differing-agent beliefs on overlapping claims.
	Disagreement float64
}

// Score computes the final surprise score. When signal is non-nil (even with
// a zero Magnitude; Momentum is not read), the internal computation
// acts only as a ceiling check and the final score is max(external, internal)
// — the Open Question resolution documented in DESIGN.md.
func Score(weights model.SurpriseWeights, in Inputs, signal *Signal) (float64, model.SurpriseComponents) {
	w := normalise(weights)

	internal := w.Novelty*in.Novelty +
		w.Contradiction*in.Contradiction +
		w.Evidence*in.Evidence +
		w.ConfidenceShift*in.ConfidenceShift +
		w.Disagreement*in.Disagreement
	internal = clamp(internal)

	components := model.SurpriseComponents{
		Novelty: in.Novelty, Contradiction: in.Contradiction, Evidence: in.Evidence,
		ConfidenceShift: in.ConfidenceShift, Disagreement: in.Disagreement,
	}

	if signal != nil {
		final := signal.Magnitude
		if internal > final {
			final = internal
		}
		return clamp(final), components
	}
	return internal, components
}

// normalise renormalises weights to sum to 1.0, matching the TenantConfig
// invariant that weights within a map must sum to 1.0.
func normalise(w model.SurpriseWeights) model.SurpriseWeights {
	sum := w.Novelty + w.Contradiction + w.Evidence + w.ConfidenceShift + w.Disagreement
	if sum <= 0 {
		return model.DefaultSurpriseWeights()
	}
	return model.SurpriseWeights{
		Novelty: w.Novelty / sum, Contradiction: w.Contradiction / sum, Evidence: w.Evidence / sum,
		ConfidenceShift: w.ConfidenceShift / sum, Disagreement: w.Disagreement / sum,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
