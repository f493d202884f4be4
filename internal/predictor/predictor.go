package predictor

import (
	"context"

	"refuge/internal/metrics"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// Result is a prediction with its confidence half-width, both on the [0,1]
// scale. Percentage conversion belongs to the boundary layer.
type Result struct {
	Rate       float64
	Confidence float64
}

// Service composes encoding, point-model inference and confidence estimation
// into a single prediction call.
type Service struct {
	registry *Registry
	log      *logger.Logger
}

// NewService creates a prediction service backed by the given registry.
func NewService(registry *Registry, log *logger.Logger) *Service {
	return &Service{registry: registry, log: log}
}

// Predict estimates the asylum acceptance rate for the given inputs.
// country is the country/territory of asylum/residence, origin the country
// of origin, procedure the RSD procedure type.
//
// Returns ErrModelsNotLoaded when the registry is not ready and
// ErrUnknownCategory when an input cannot be reconciled against the trained
// vocabulary. Model faults never escape as raw errors.
func (s *Service) Predict(ctx context.Context, country, origin, procedure string) (Result, error) {
	a := s.registry.snapshot()
	if a == nil {
		return Result{}, errors.ErrModelsNotLoaded
	}

	features, err := s.encode(a, country, origin, procedure)
	if err != nil {
		return Result{}, err
	}

	rate, err := safePredict(a, features)
	if err != nil {
		s.log.Errorf("Point model inference failed: %v", err)
		return Result{}, errors.Wrap(errors.ErrPrediction, err.Error())
	}

	confidence, err := estimateConfidence(a, features)
	if err != nil {
		s.log.Errorf("Confidence estimation failed: %v", err)
		return Result{}, errors.Wrap(errors.ErrPrediction, err.Error())
	}

	metrics.PredictedRate.Observe(rate)

	return Result{Rate: rate, Confidence: confidence}, nil
}

// encode reconciles the three categorical inputs into the model feature
// vector, short-circuiting on the first failure.
func (s *Service) encode(a *artifacts, country, origin, procedure string) ([]float64, error) {
	countryCode, err := reconcile(a.encoders[FeatureCountry], FeatureCountry, country)
	if err != nil {
		return nil, err
	}

	originCode, err := reconcile(a.encoders[FeatureOrigin], FeatureOrigin, origin)
	if err != nil {
		return nil, err
	}

	procedureCode, err := reconcile(a.encoders[FeatureProcedure], FeatureProcedure, procedure)
	if err != nil {
		return nil, err
	}

	return []float64{float64(countryCode), float64(originCode), float64(procedureCode)}, nil
}

// safePredict runs the point model and clamps the raw output to [0,1].
// Panics inside inference are converted to errors so a model fault degrades
// to a prediction error instead of killing the request goroutine.
func safePredict(a *artifacts, features []float64) (rate float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("model panic: %v", r)
		}
	}()

	raw, err := a.model.Predict(features)
	if err != nil {
		return 0, err
	}
	return clamp01(raw), nil
}
