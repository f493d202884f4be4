package predictor

import (
	"os"
	"path/filepath"
	"time"

	"refuge/internal/ml"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// Artifact file names inside the model directory. These match what cmd/train
// writes.
const (
	PointModelFile    = "model.gob"
	LowerModelFile    = "model_lower.gob"
	UpperModelFile    = "model_upper.gob"
	EncodersFile      = "encoders.gob"
	MetadataFile      = "metadata.gob"
	ResidualStatsFile = "residual_stats.gob"
)

// Feature names, in model input order.
const (
	FeatureCountry   = "country"
	FeatureOrigin    = "origin"
	FeatureProcedure = "procedure"
)

// Metadata describes a training run. It is written once by the trainer and
// read-only afterwards.
type Metadata struct {
	RMSE          float64
	MAE           float64
	TrainingDate  time.Time
	FeatureNames  []string
	NSamplesTrain int
	NSamplesTest  int
	ModelType     string
	Objective     string
}

// ResidualStats holds training-set residual statistics, written only when
// quantile training was unavailable.
type ResidualStats struct {
	ResidualStd  float64
	MeanResidual float64
}

// defaultMetadata is substituted when no metadata artifact exists.
func defaultMetadata() *Metadata {
	return &Metadata{
		RMSE:      0.439,
		MAE:       0.137,
		ModelType: "gbt",
	}
}

// artifacts is an immutable snapshot of everything loaded from a model
// directory. Once published by the registry it is never mutated.
type artifacts struct {
	model     *ml.Ensemble
	lower     *ml.Ensemble
	upper     *ml.Ensemble
	encoders  map[string]*ml.LabelEncoder
	metadata  *Metadata
	residuals *ResidualStats
}

// hasQuantilePair reports whether both interval models are present.
func (a *artifacts) hasQuantilePair() bool {
	return a.lower != nil && a.upper != nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadArtifacts reads a full artifact set from dir. The point model and the
// encoder set are required; everything else degrades gracefully with a
// warning to the operator log.
func loadArtifacts(dir string, log *logger.Logger) (*artifacts, error) {
	a := &artifacts{}

	modelPath := filepath.Join(dir, PointModelFile)
	if !fileExists(modelPath) {
		return nil, errors.Wrapf(errors.ErrArtifactLoad, "model file not found: %s", modelPath)
	}
	a.model = &ml.Ensemble{}
	if err := ml.LoadArtifact(modelPath, a.model); err != nil {
		return nil, errors.Wrap(errors.ErrArtifactLoad, err.Error())
	}

	encodersPath := filepath.Join(dir, EncodersFile)
	if !fileExists(encodersPath) {
		return nil, errors.Wrapf(errors.ErrArtifactLoad, "encoders file not found: %s", encodersPath)
	}
	if err := ml.LoadArtifact(encodersPath, &a.encoders); err != nil {
		return nil, errors.Wrap(errors.ErrArtifactLoad, err.Error())
	}
	for _, feature := range []string{FeatureCountry, FeatureOrigin, FeatureProcedure} {
		if a.encoders[feature] == nil {
			return nil, errors.Wrapf(errors.ErrArtifactLoad, "encoder set is missing feature %q", feature)
		}
	}

	// Quantile models are a pair: either both load or both are discarded.
	lowerPath := filepath.Join(dir, LowerModelFile)
	upperPath := filepath.Join(dir, UpperModelFile)
	switch {
	case fileExists(lowerPath) && fileExists(upperPath):
		lower, upper := &ml.Ensemble{}, &ml.Ensemble{}
		if err := ml.LoadArtifact(lowerPath, lower); err != nil {
			log.Warnf("Could not load quantile models: %v", err)
		} else if err := ml.LoadArtifact(upperPath, upper); err != nil {
			log.Warnf("Could not load quantile models: %v", err)
		} else {
			a.lower, a.upper = lower, upper
		}
	case fileExists(lowerPath) || fileExists(upperPath):
		log.Warn("Only one quantile model file present, ignoring both")
	}

	metadataPath := filepath.Join(dir, MetadataFile)
	if fileExists(metadataPath) {
		a.metadata = &Metadata{}
		if err := ml.LoadArtifact(metadataPath, a.metadata); err != nil {
			log.Warnf("Could not load model metadata, using defaults: %v", err)
			a.metadata = defaultMetadata()
		}
	} else {
		a.metadata = defaultMetadata()
	}

	statsPath := filepath.Join(dir, ResidualStatsFile)
	if fileExists(statsPath) {
		a.residuals = &ResidualStats{}
		if err := ml.LoadArtifact(statsPath, a.residuals); err != nil {
			log.Warnf("Could not load residual statistics: %v", err)
			a.residuals = nil
		}
	}

	return a, nil
}
