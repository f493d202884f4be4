package predict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refuge/internal/domain/prediction"
	"refuge/internal/ml"
	"refuge/internal/predictor"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// fakeAudit records predictions in memory and can be forced to fail.
type fakeAudit struct {
	records []prediction.Record
	fail    bool
}

func (f *fakeAudit) Create(_ context.Context, rec *prediction.Record) error {
	if f.fail {
		return errors.New("audit unavailable")
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeAudit) ListRecent(_ context.Context, limit int) ([]prediction.Record, error) {
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

// readyRegistry writes a constant-output model with a small vocabulary to a
// temp dir and loads it.
func readyRegistry(t *testing.T) *predictor.Registry {
	t.Helper()
	dir := t.TempDir()

	model := &ml.Ensemble{Base: 0.3, LearningRate: 0.1, NumFeatures: 3}
	encoders := map[string]*ml.LabelEncoder{
		predictor.FeatureCountry:   ml.FitLabelEncoder([]string{"Germany", "Kenya"}),
		predictor.FeatureOrigin:    ml.FitLabelEncoder([]string{"Somalia", "Syrian Arab Rep."}),
		predictor.FeatureProcedure: ml.FitLabelEncoder([]string{"G / AR", "U / AR"}),
	}
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, predictor.PointModelFile), model))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, predictor.EncodersFile), encoders))
	require.NoError(t, ml.SaveArtifact(filepath.Join(dir, predictor.MetadataFile), &predictor.Metadata{
		RMSE:          0.25,
		MAE:           0.1,
		ModelType:     "gbt",
		NSamplesTrain: 800,
		NSamplesTest:  200,
	}))

	registry := predictor.NewRegistry(logger.Get())
	require.NoError(t, registry.Load(dir))
	return registry
}

func newHandler(t *testing.T, registry *predictor.Registry, audit prediction.Repository) *Handler {
	t.Helper()
	svc := predictor.NewService(registry, logger.Get())
	return New(svc, registry, audit, logger.Get())
}

func doPredict(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandlePredict(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandlePredict_Success(t *testing.T) {
	audit := &fakeAudit{}
	h := newHandler(t, readyRegistry(t), audit)

	w := doPredict(h, `{"origin":"Syria","asylum":"Germany","year":"2015","procedure":"Government"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	// Base 0.3 -> 30.0%; RMSE 0.25 -> 1.96*0.25/2 = 0.245 -> 24.5%.
	assert.Equal(t, 30.0, body["rate"])
	assert.Equal(t, 24.5, body["confidence"])

	// The audit record keeps raw inputs and [0,1]-scale outputs.
	require.Len(t, audit.records, 1)
	rec := audit.records[0]
	assert.Equal(t, "Syria", rec.Origin)
	assert.Equal(t, "Germany", rec.Asylum)
	assert.Equal(t, 2015, rec.Year)
	assert.InDelta(t, 0.3, rec.Rate, 1e-9)
	assert.InDelta(t, 0.245, rec.Confidence, 1e-9)
}

func TestHandlePredict_UnknownCategory(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	w := doPredict(h, `{"origin":"Atlantis","asylum":"Germany","year":"2015","procedure":"Government"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["detail"], "unknown origin: Atlantis")
}

func TestHandlePredict_YearValidation(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	for _, year := range []string{"abc", "", "1999", "2017"} {
		w := doPredict(h, `{"origin":"Syria","asylum":"Germany","year":"`+year+`","procedure":"Government"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, "year %q", year)
		assert.Contains(t, decodeBody(t, w)["detail"], "year", "year %q", year)
	}
}

func TestHandlePredict_ProcedureValidation(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	w := doPredict(h, `{"origin":"Syria","asylum":"Germany","year":"2015","procedure":"Martian"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["detail"], "procedure")
}

func TestHandlePredict_MalformedBody(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	w := doPredict(h, `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decodeBody(t, w)["detail"])
}

func TestHandlePredict_NotReady(t *testing.T) {
	h := newHandler(t, predictor.NewRegistry(logger.Get()), nil)

	w := doPredict(h, `{"origin":"Syria","asylum":"Germany","year":"2015","procedure":"Government"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Models not loaded. Please check server logs.", decodeBody(t, w)["detail"])
}

func TestHandlePredict_MethodNotAllowed(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	w := httptest.NewRecorder()
	h.HandlePredict(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandlePredict_AuditFailureDoesNotFailRequest(t *testing.T) {
	h := newHandler(t, readyRegistry(t), &fakeAudit{fail: true})

	w := doPredict(h, `{"origin":"Syria","asylum":"Germany","year":"2015","procedure":"Government"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleModelInfo(t *testing.T) {
	h := newHandler(t, readyRegistry(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/model/info", nil)
	w := httptest.NewRecorder()
	h.HandleModelInfo(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "gbt", body["model_type"])
	assert.Equal(t, 0.25, body["rmse"])
	assert.Equal(t, 0.1, body["mae"])
	assert.Equal(t, 800.0, body["n_samples_train"])
	assert.Equal(t, 200.0, body["n_samples_test"])
	// Zero training date is omitted entirely.
	assert.NotContains(t, body, "training_date")
}

func TestHandleModelInfo_NotReady(t *testing.T) {
	h := newHandler(t, predictor.NewRegistry(logger.Get()), nil)

	req := httptest.NewRequest(http.MethodGet, "/model/info", nil)
	w := httptest.NewRecorder()
	h.HandleModelInfo(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestValidate_AcceptsRangeBoundaries(t *testing.T) {
	for _, year := range []string{"2000", "2016"} {
		got, err := validate(&Request{Year: year, Procedure: "UNHCR"})
		require.NoError(t, err, "year %q", year)
		assert.NotZero(t, got)
	}
}
