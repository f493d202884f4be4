package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModels struct{ ready bool }

func (f fakeModels) Ready() bool { return f.ready }

func checkHealth(t *testing.T, ready bool) Status {
	t.Helper()
	h := New(fakeModels{ready: ready}, "refuge", "1.0.0")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealth(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	return status
}

func TestHandleHealth_ModelsLoaded(t *testing.T) {
	status := checkHealth(t, true)

	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.ModelsLoaded)
	assert.Equal(t, "refuge", status.Service)
	assert.Equal(t, "1.0.0", status.Version)
	assert.NotEmpty(t, status.Uptime)
}

func TestHandleHealth_Degraded(t *testing.T) {
	// Missing models degrade the service but never take /health down.
	status := checkHealth(t, false)

	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.ModelsLoaded)
}
