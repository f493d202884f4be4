package predictor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refuge/internal/ml"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

func testEncoders() map[string]*ml.LabelEncoder {
	return map[string]*ml.LabelEncoder{
		FeatureCountry:   ml.FitLabelEncoder([]string{"Germany", "Kenya"}),
		FeatureOrigin:    ml.FitLabelEncoder([]string{"Afghanistan", "Syrian Arab Rep."}),
		FeatureProcedure: ml.FitLabelEncoder([]string{"G / AR", "U / AR"}),
	}
}

// writeRequiredArtifacts writes a constant point model plus the encoder set,
// the minimum a registry load needs.
func writeRequiredArtifacts(t *testing.T, dir string, base float64) {
	t.Helper()
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, PointModelFile), constantModel(base)))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, EncodersFile), testEncoders()))
}

func TestRegistry_LoadRequiredArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, 0.3)

	r := NewRegistry(logger.Get())
	require.False(t, r.Ready())

	require.NoError(t, r.Load(dir))
	assert.True(t, r.Ready())

	// Without a metadata artifact the documented defaults apply.
	md := r.Metadata()
	require.NotNil(t, md)
	assert.Equal(t, 0.439, md.RMSE)
	assert.Equal(t, 0.137, md.MAE)
}

func TestRegistry_LoadFailsWithoutModel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, EncodersFile), testEncoders()))

	r := NewRegistry(logger.Get())
	err := r.Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArtifactLoad))
	assert.False(t, r.Ready())
}

func TestRegistry_LoadFailsWithoutEncoders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, PointModelFile), constantModel(0.3)))

	r := NewRegistry(logger.Get())
	err := r.Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArtifactLoad))
}

func TestRegistry_LoadFailsOnIncompleteEncoderSet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, PointModelFile), constantModel(0.3)))

	partial := testEncoders()
	delete(partial, FeatureProcedure)
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, EncodersFile), partial))

	err := NewRegistry(logger.Get()).Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArtifactLoad))
}

func TestRegistry_SingleQuantileFileIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, 0.3)
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, LowerModelFile), constantModel(0.1)))

	r := NewRegistry(logger.Get())
	require.NoError(t, r.Load(dir))

	a := r.snapshot()
	require.NotNil(t, a)
	assert.False(t, a.hasQuantilePair())
	assert.Nil(t, a.lower)
}

func TestRegistry_QuantilePairLoads(t *testing.T) {
	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, 0.3)
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, LowerModelFile), constantModel(0.1)))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, UpperModelFile), constantModel(0.6)))

	r := NewRegistry(logger.Get())
	require.NoError(t, r.Load(dir))
	assert.True(t, r.snapshot().hasQuantilePair())
}

func TestRegistry_MetadataAndResidualStatsLoad(t *testing.T) {
	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, 0.3)
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, MetadataFile), &Metadata{
		RMSE:         0.25,
		MAE:          0.1,
		TrainingDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		ModelType:    "gbt",
	}))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, ResidualStatsFile), &ResidualStats{ResidualStd: 0.12}))

	r := NewRegistry(logger.Get())
	require.NoError(t, r.Load(dir))

	assert.Equal(t, 0.25, r.Metadata().RMSE)
	require.NotNil(t, r.snapshot().residuals)
	assert.Equal(t, 0.12, r.snapshot().residuals.ResidualStd)
}

func TestRegistry_LoadIsIdempotent(t *testing.T) {
	first := t.TempDir()
	writeRequiredArtifacts(t, first, 0.3)

	r := NewRegistry(logger.Get())
	require.NoError(t, r.Load(first))
	before := r.snapshot()

	// A second Load is a no-op even against a different directory.
	second := t.TempDir()
	writeRequiredArtifacts(t, second, 0.9)
	require.NoError(t, r.Load(second))
	assert.Same(t, before, r.snapshot())

	// Reload swaps the snapshot.
	require.NoError(t, r.Reload(second))
	assert.NotSame(t, before, r.snapshot())
}

func TestDefault_SingletonAndReset(t *testing.T) {
	r := Default()
	assert.Same(t, r, Default())

	dir := t.TempDir()
	writeRequiredArtifacts(t, dir, 0.3)
	require.NoError(t, r.Load(dir))
	require.True(t, r.Ready())

	Reset()
	assert.False(t, Default().Ready())
}

func TestRegistry_FailedLoadLeavesNotReady(t *testing.T) {
	r := NewRegistry(logger.Get())
	require.Error(t, r.Load(t.TempDir()))
	assert.False(t, r.Ready())
	assert.Nil(t, r.Metadata())
}
