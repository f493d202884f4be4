package predictor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refuge/internal/ml"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// loadedRegistry builds a ready registry around a constant point model with
// the shared test vocabulary.
func loadedRegistry(t *testing.T, base float64) *Registry {
	t.Helper()
	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, base)
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, MetadataFile), &Metadata{RMSE: 0.25, MAE: 0.1}))

	r := NewRegistry(logger.Get())
	require.NoError(t, r.Load(dir))
	return r
}

func TestService_Predict(t *testing.T) {
	svc := NewService(loadedRegistry(t, 0.3), logger.Get())

	res, err := svc.Predict(context.Background(), "Germany", "Syrian Arab Rep.", "G / AR")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.Rate, 1e-9)
	assert.InDelta(t, 1.96*0.25/2, res.Confidence, 1e-9)
}

func TestService_PredictReconcilesCasualInput(t *testing.T) {
	svc := NewService(loadedRegistry(t, 0.3), logger.Get())

	// Alias, case-insensitive and substring reconciliation all compose in
	// a single request.
	res, err := svc.Predict(context.Background(), "german", "Syria", "Government")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.Rate, 1e-9)
}

func TestService_PredictUnknownCategory(t *testing.T) {
	svc := NewService(loadedRegistry(t, 0.3), logger.Get())

	_, err := svc.Predict(context.Background(), "Germany", "Atlantis", "Government")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownCategory))
	assert.Contains(t, err.Error(), "origin")

	_, err = svc.Predict(context.Background(), "Germany", "Syria", "Martian")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "procedure")
}

func TestService_PredictNotReady(t *testing.T) {
	svc := NewService(NewRegistry(logger.Get()), logger.Get())

	_, err := svc.Predict(context.Background(), "Germany", "Syria", "Government")
	assert.True(t, errors.Is(err, errors.ErrModelsNotLoaded))
}

func TestService_PredictClampsRate(t *testing.T) {
	high := NewService(loadedRegistry(t, 1.7), logger.Get())
	res, err := high.Predict(context.Background(), "Germany", "Syria", "Government")
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Rate)

	low := NewService(loadedRegistry(t, -0.4), logger.Get())
	res, err = low.Predict(context.Background(), "Germany", "Syria", "Government")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Rate)
}

func TestSafePredict_ConvertsPanicToError(t *testing.T) {
	// A tree referencing a feature index beyond the input vector panics
	// during traversal; the fault must surface as an error.
	broken := &ml.Ensemble{
		Base:         0.3,
		LearningRate: 0.1,
		NumFeatures:  3,
		Trees: []ml.Tree{{Nodes: []ml.TreeNode{
			{Feature: 5, Threshold: 1, Left: 1, Right: 2},
			{Leaf: true, Value: 0.1},
			{Leaf: true, Value: 0.2},
		}}},
	}

	_, err := safePredict(&artifacts{model: broken}, []float64{0, 0, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model panic")
}
