package predict

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"refuge/internal/domain/prediction"
	"refuge/internal/metrics"
	"refuge/internal/predictor"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

// Year range covered by the training corpus.
const (
	minYear = 2000
	maxYear = 2016
)

var validProcedures = map[string]struct{}{
	"Government": {},
	"UNHCR":      {},
	"Joint":      {},
	"Unknown":    {},
}

// Handler serves the prediction and model-info endpoints
type Handler struct {
	svc      *predictor.Service
	registry *predictor.Registry
	audit    prediction.Repository // nil disables the audit log
	log      *logger.Logger
}

// New creates a new prediction handler
func New(svc *predictor.Service, registry *predictor.Registry, audit prediction.Repository, log *logger.Logger) *Handler {
	return &Handler{
		svc:      svc,
		registry: registry,
		audit:    audit,
		log:      log,
	}
}

// Request is the POST /predict body
type Request struct {
	Origin    string `json:"origin"`    // country of origin
	Asylum    string `json:"asylum"`    // country/territory of asylum/residence
	Year      string `json:"year"`      // numeric string, 2000-2016
	Procedure string `json:"procedure"` // Government, UNHCR, Joint or Unknown
}

// Response carries the prediction as percentages rounded to one decimal
type Response struct {
	Rate       float64 `json:"rate"`
	Confidence float64 `json:"confidence"`
}

// ModelInfo is the GET /model/info response body
type ModelInfo struct {
	ModelType     string  `json:"model_type"`
	RMSE          float64 `json:"rmse"`
	MAE           float64 `json:"mae,omitempty"`
	TrainingDate  string  `json:"training_date,omitempty"`
	NSamplesTrain int     `json:"n_samples_train,omitempty"`
	NSamplesTest  int     `json:"n_samples_test,omitempty"`
}

// HandlePredict serves POST /predict
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordPrediction("invalid_input", time.Since(start))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	year, err := validate(&req)
	if err != nil {
		metrics.RecordPrediction("invalid_input", time.Since(start))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Predict(r.Context(), req.Asylum, req.Origin, req.Procedure)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrModelsNotLoaded):
			metrics.RecordPrediction("not_ready", time.Since(start))
			writeError(w, http.StatusServiceUnavailable, "Models not loaded. Please check server logs.")
		case errors.Is(err, errors.ErrUnknownCategory):
			metrics.RecordPrediction("unknown_category", time.Since(start))
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			metrics.RecordPrediction("error", time.Since(start))
			writeError(w, http.StatusInternalServerError, "prediction error")
		}
		return
	}

	metrics.RecordPrediction("success", time.Since(start))
	h.recordAudit(r, &req, year, result)

	writeJSON(w, http.StatusOK, Response{
		Rate:       round1(result.Rate * 100),
		Confidence: round1(result.Confidence * 100),
	})
}

// HandleModelInfo serves GET /model/info
func (h *Handler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !h.registry.Ready() {
		writeError(w, http.StatusServiceUnavailable, "Models not loaded")
		return
	}

	md := h.registry.Metadata()
	info := ModelInfo{
		ModelType:     md.ModelType,
		RMSE:          md.RMSE,
		MAE:           md.MAE,
		NSamplesTrain: md.NSamplesTrain,
		NSamplesTest:  md.NSamplesTest,
	}
	if !md.TrainingDate.IsZero() {
		info.TrainingDate = md.TrainingDate.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, info)
}

// validate checks the request fields and returns the parsed year.
func validate(req *Request) (int, error) {
	year, err := strconv.Atoi(req.Year)
	if err != nil {
		return 0, errors.NewValidationError("year", "must be a valid integer", req.Year)
	}
	if year < minYear || year > maxYear {
		return 0, errors.NewValidationError("year", "must be between 2000 and 2016", req.Year)
	}

	if _, ok := validProcedures[req.Procedure]; !ok {
		return 0, errors.NewValidationError("procedure",
			"must be one of: Government, UNHCR, Joint, Unknown", req.Procedure)
	}

	return year, nil
}

// recordAudit writes the served prediction to the audit log. Failures are
// logged and counted, never surfaced to the caller.
func (h *Handler) recordAudit(r *http.Request, req *Request, year int, result predictor.Result) {
	if h.audit == nil {
		return
	}

	err := h.audit.Create(r.Context(), &prediction.Record{
		ID:         uuid.New(),
		Origin:     req.Origin,
		Asylum:     req.Asylum,
		Year:       year,
		Procedure:  req.Procedure,
		Rate:       result.Rate,
		Confidence: result.Confidence,
		CreatedAt:  time.Now().UTC(),
	})
	metrics.RecordAuditWrite(err)
	if err != nil {
		h.log.Warnf("Failed to record prediction audit entry: %v", err)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
