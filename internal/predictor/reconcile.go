package predictor

import (
	"strings"

	"refuge/internal/metrics"
	"refuge/internal/ml"
	"refuge/pkg/errors"
)

// Historical UNHCR datasets carry formal country names that casual input
// rarely matches verbatim, so reconciliation layers fallbacks behind the
// authoritative exact match: exact -> case-insensitive -> alias table ->
// substring. The alias tables map normalized lowercase input to the literal
// training-corpus label.

var countryAliases = map[string]string{
	"syria":                "Syrian Arab Rep.",
	"syrian":               "Syrian Arab Rep.",
	"syrian arab republic": "Syrian Arab Rep.",
}

// The procedure encoder vocabulary uses codes like "G / AR", "J / FA",
// "U / AR" (G = Government, J = Joint, U = UNHCR). Each procedure type maps
// to its most common code; "unknown" defaults to the UNHCR code.
var procedureAliases = map[string]string{
	"government": "G / AR",
	"unhcr":      "U / AR",
	"joint":      "J / AR",
	"unknown":    "U / AR",
}

// displayName returns the feature name used in user-facing error messages.
func displayName(feature string) string {
	if feature == FeatureProcedure {
		return "procedure type"
	}
	return feature
}

// reconcile resolves a raw input string to the trained integer code for the
// given feature. Strategies are tried in strict precedence order and the
// first match wins; failure to match is a client input error.
func reconcile(enc *ml.LabelEncoder, feature, value string) (int, error) {
	strategy := "none"
	defer func() {
		metrics.ReconciliationMatches.WithLabelValues(feature, strategy).Inc()
	}()

	// 1. Exact match.
	if code, ok := enc.Transform(value); ok {
		strategy = "exact"
		return code, nil
	}

	lower := strings.ToLower(value)

	// 2. Case-insensitive: encode the original-cased vocabulary entry.
	for _, class := range enc.Classes {
		if strings.ToLower(class) == lower {
			code, _ := enc.Transform(class)
			strategy = "case_insensitive"
			return code, nil
		}
	}

	// 3. Alias table, per feature kind.
	var aliases map[string]string
	switch feature {
	case FeatureCountry, FeatureOrigin:
		aliases = countryAliases
	case FeatureProcedure:
		aliases = procedureAliases
	}
	if mapped, ok := aliases[lower]; ok {
		if code, ok := enc.Transform(mapped); ok {
			strategy = "alias"
			return code, nil
		}
	}

	// 4. Substring match in either direction. Prefer a candidate whose
	// lowercased prefix (truncated to the input's length) equals the input;
	// otherwise take the first candidate in vocabulary order.
	var candidates []string
	for _, class := range enc.Classes {
		classLower := strings.ToLower(class)
		if strings.Contains(classLower, lower) || strings.Contains(lower, classLower) {
			candidates = append(candidates, class)
		}
	}
	if len(candidates) > 0 {
		match := candidates[0]
		for _, c := range candidates {
			classLower := strings.ToLower(c)
			if len(classLower) >= len(lower) && classLower[:len(lower)] == lower {
				match = c
				break
			}
		}
		code, _ := enc.Transform(match)
		strategy = "substring"
		return code, nil
	}

	return 0, errors.Wrapf(errors.ErrUnknownCategory, "unknown %s: %s", displayName(feature), value)
}
