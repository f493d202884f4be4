package training

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"refuge/internal/ml"
	"refuge/internal/predictor"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// Options configures a training run.
type Options struct {
	DataPath string
	OutDir   string

	Trees        int
	MaxDepth     int
	LearningRate float64
	Seed         int64

	// Quantiles controls whether the 5th/95th percentile interval models are
	// trained. When disabled, residual statistics are persisted instead.
	Quantiles bool
}

// DefaultOptions returns the trainer defaults.
func DefaultOptions() Options {
	params := ml.DefaultParams()
	return Options{
		OutDir:       "models",
		Trees:        params.Trees,
		MaxDepth:     params.MaxDepth,
		LearningRate: params.LearningRate,
		Seed:         42,
		Quantiles:    true,
	}
}

// Report summarizes a completed training run.
type Report struct {
	RMSE          float64
	MAE           float64
	NSamplesTrain int
	NSamplesTest  int
	Quantiles     bool
}

// Run executes the full offline training stage: load and clean the dataset,
// fit encoders and models, evaluate, and write all artifacts to OutDir.
func Run(opts Options, log *logger.Logger) (*Report, error) {
	examples, err := LoadDataset(opts.DataPath)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d cleaned training rows", len(examples))

	// Encoders are fit over the full cleaned corpus, so the serving-time
	// vocabulary covers everything the models ever saw.
	countries := make([]string, len(examples))
	origins := make([]string, len(examples))
	procedures := make([]string, len(examples))
	for i, ex := range examples {
		countries[i] = ex.Country
		origins[i] = ex.Origin
		procedures[i] = ex.Procedure
	}
	encoders := map[string]*ml.LabelEncoder{
		predictor.FeatureCountry:   ml.FitLabelEncoder(countries),
		predictor.FeatureOrigin:    ml.FitLabelEncoder(origins),
		predictor.FeatureProcedure: ml.FitLabelEncoder(procedures),
	}

	features := make([][]float64, len(examples))
	target := make([]float64, len(examples))
	for i, ex := range examples {
		c, _ := encoders[predictor.FeatureCountry].Transform(ex.Country)
		o, _ := encoders[predictor.FeatureOrigin].Transform(ex.Origin)
		p, _ := encoders[predictor.FeatureProcedure].Transform(ex.Procedure)
		features[i] = []float64{float64(c), float64(o), float64(p)}
		target[i] = ex.Rate
	}

	trainX, trainY, testX, testY := split(features, target, 0.2, opts.Seed)
	log.Infof("Split dataset: %d train, %d test", len(trainX), len(testX))

	params := ml.DefaultParams()
	params.Trees = opts.Trees
	params.MaxDepth = opts.MaxDepth
	params.LearningRate = opts.LearningRate

	log.Info("Training point model...")
	model, err := ml.Train(trainX, trainY, params)
	if err != nil {
		return nil, errors.Wrap(err, "train point model")
	}

	rmse, mae := evaluate(model, testX, testY)
	log.Infof("Model performance: RMSE=%.6f MAE=%.6f", rmse, mae)

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.PointModelFile), model); err != nil {
		return nil, err
	}
	if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.EncodersFile), encoders); err != nil {
		return nil, err
	}

	if opts.Quantiles {
		log.Info("Training quantile models for confidence intervals...")
		lowerParams, upperParams := params, params
		lowerParams.Objective, lowerParams.Alpha = ml.ObjectiveQuantile, 0.05
		upperParams.Objective, upperParams.Alpha = ml.ObjectiveQuantile, 0.95

		lower, err := ml.Train(trainX, trainY, lowerParams)
		if err != nil {
			return nil, errors.Wrap(err, "train lower quantile model")
		}
		upper, err := ml.Train(trainX, trainY, upperParams)
		if err != nil {
			return nil, errors.Wrap(err, "train upper quantile model")
		}

		if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.LowerModelFile), lower); err != nil {
			return nil, err
		}
		if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.UpperModelFile), upper); err != nil {
			return nil, err
		}
	} else {
		// Fall back to training-set residual statistics for the serving-time
		// confidence estimate.
		stats := residualStats(model, trainX, trainY)
		log.Infof("Quantile training disabled, saving residual stats (std=%.6f)", stats.ResidualStd)
		if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.ResidualStatsFile), stats); err != nil {
			return nil, err
		}
	}

	metadata := &predictor.Metadata{
		RMSE:         rmse,
		MAE:          mae,
		TrainingDate: time.Now().UTC(),
		FeatureNames: []string{
			predictor.FeatureCountry,
			predictor.FeatureOrigin,
			predictor.FeatureProcedure,
		},
		NSamplesTrain: len(trainX),
		NSamplesTest:  len(testX),
		ModelType:     "gbt",
		Objective:     string(ml.ObjectiveSquaredError),
	}
	if err := ml.SaveArtifact(filepath.Join(opts.OutDir, predictor.MetadataFile), metadata); err != nil {
		return nil, err
	}

	return &Report{
		RMSE:          rmse,
		MAE:           mae,
		NSamplesTrain: len(trainX),
		NSamplesTest:  len(testX),
		Quantiles:     opts.Quantiles,
	}, nil
}

// split shuffles with a fixed seed and carves off testFraction for held-out
// evaluation.
func split(x [][]float64, y []float64, testFraction float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(x))

	testN := int(float64(len(x)) * testFraction)
	if testN < 1 && len(x) > 1 {
		testN = 1
	}

	for i, p := range perm {
		if i < testN {
			testX = append(testX, x[p])
			testY = append(testY, y[p])
		} else {
			trainX = append(trainX, x[p])
			trainY = append(trainY, y[p])
		}
	}
	return trainX, trainY, testX, testY
}

func evaluate(model *ml.Ensemble, x [][]float64, y []float64) (rmse, mae float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sumSq, sumAbs float64
	for i := range x {
		pred, err := model.Predict(x[i])
		if err != nil {
			continue
		}
		diff := pred - y[i]
		sumSq += diff * diff
		sumAbs += math.Abs(diff)
	}
	n := float64(len(x))
	return math.Sqrt(sumSq / n), sumAbs / n
}

func residualStats(model *ml.Ensemble, x [][]float64, y []float64) *predictor.ResidualStats {
	residuals := make([]float64, 0, len(x))
	for i := range x {
		pred, err := model.Predict(x[i])
		if err != nil {
			continue
		}
		residuals = append(residuals, y[i]-pred)
	}

	var sum float64
	for _, r := range residuals {
		sum += r
	}
	meanResidual := sum / float64(len(residuals))

	var sumSq float64
	for _, r := range residuals {
		d := r - meanResidual
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(residuals)))

	return &predictor.ResidualStats{ResidualStd: std, MeanResidual: meanResidual}
}
