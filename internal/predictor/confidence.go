package predictor

import (
	"refuge/internal/metrics"
	"refuge/pkg/errors"
)

// Confidence bounds. Degenerate evidence (near-zero residual spread,
// crossed-over quantile predictions) must not produce a zero or
// uninformatively wide interval.
const (
	minConfidence = 0.01
	maxConfidence = 0.5
)

// zScore95 is the normal-approximation z value for a 95% interval.
const zScore95 = 1.96

// evidenceSource is the closed set of interval evidence, in priority order.
type evidenceSource int

const (
	evidenceQuantilePair evidenceSource = iota
	evidenceResidualStats
	evidenceMetadataRMSE
)

func (s evidenceSource) String() string {
	switch s {
	case evidenceQuantilePair:
		return "quantile"
	case evidenceResidualStats:
		return "residuals"
	default:
		return "rmse"
	}
}

// selectEvidence picks the best available evidence source from the snapshot.
func selectEvidence(a *artifacts) evidenceSource {
	switch {
	case a.hasQuantilePair():
		return evidenceQuantilePair
	case a.residuals != nil:
		return evidenceResidualStats
	default:
		return evidenceMetadataRMSE
	}
}

// estimateConfidence produces the symmetric +/- interval half-width in
// [0,1]-space for the encoded input, clamped to [minConfidence, maxConfidence].
func estimateConfidence(a *artifacts, features []float64) (float64, error) {
	source := selectEvidence(a)
	metrics.ConfidenceSource.WithLabelValues(source.String()).Inc()

	var confidence float64
	switch source {
	case evidenceQuantilePair:
		lower, err := a.lower.Predict(features)
		if err != nil {
			return 0, errors.Wrap(err, "lower quantile model")
		}
		upper, err := a.upper.Predict(features)
		if err != nil {
			return 0, errors.Wrap(err, "upper quantile model")
		}
		confidence = (clamp01(upper) - clamp01(lower)) / 2

	case evidenceResidualStats:
		confidence = zScore95 * a.residuals.ResidualStd / 2

	case evidenceMetadataRMSE:
		confidence = zScore95 * a.metadata.RMSE / 2
	}

	return clamp(confidence, minConfidence, maxConfidence), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
