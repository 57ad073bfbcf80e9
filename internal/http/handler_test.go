package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/iono-api/internal/adapter/store/local"
	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/usecase"
)

func newTestRouter(t *testing.T, origins ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	files := local.NewLocalStore("../../testdata", nil)
	uc := usecase.NewDelayUseCase(files, files, nil, nil)
	return SetupRouter(uc, origins)
}

func get(t *testing.T, router *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := get(t, newTestRouter(t), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestGetDelays(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/delays?ionex=grid3x3.18i&nav=brdc0010.18n&lat=5&lon=15&elevation=45&azimuth=90")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.DelayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "grid3x3.18i", resp.IonexFile)
	assert.Equal(t, domain.BoundingBox{North: 10, South: 0, West: 10, East: 20}, resp.BoundingBox)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Points, 2)
	assert.InDelta(t, 12.5, resp.Points[0].TECU, 1e-9)
	assert.Equal(t, 1982, resp.Points[0].GPSWeek)
	require.NotNil(t, resp.Points[0].KlobucharDelayM)
	assert.Greater(t, *resp.Points[0].KlobucharDelayM, 0.0)
}

func TestGetDelays_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing position", "ionex=grid3x3.18i", http.StatusBadRequest},
		{"bad latitude", "ionex=grid3x3.18i&lat=north&lon=15", http.StatusBadRequest},
		{"bad elevation", "ionex=grid3x3.18i&lat=5&lon=15&elevation=high", http.StatusBadRequest},
		{"missing file name", "lat=5&lon=15", http.StatusBadRequest},
		{"elevation out of range", "ionex=grid3x3.18i&lat=5&lon=15&elevation=120", http.StatusBadRequest},
		{"unknown file", "ionex=absent.18i&lat=5&lon=15", http.StatusNotFound},
		{"outside grid", "ionex=grid3x3.18i&lat=45&lon=15", http.StatusUnprocessableEntity},
		{"path traversal", "ionex=../go.mod&lat=5&lon=15", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, router, "/v1/delays?"+tt.query)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetKlobuchar(t *testing.T) {
	router := newTestRouter(t)

	w := get(t, router, "/v1/klobuchar?nav=brdm0010.18p&time=2018-01-01T02:00:00Z&lat=5&lon=15&elevation=45&azimuth=90")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.KlobucharResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1982, resp.GPSWeek)
	assert.Equal(t, 86400.0+7200, resp.TimeOfWeek)
	assert.Greater(t, resp.DelayM, 0.0)
	assert.InDelta(t, resp.DelaySeconds*domain.SpeedOfLight, resp.DelayM, 1e-9)

	w = get(t, router, "/v1/klobuchar?nav=brdm0010.18p&lat=5&lon=15")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, router, "/v1/klobuchar?nav=brdm0010.18p&time=yesterday&lat=5&lon=15")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetGPSTime(t *testing.T) {
	router := newTestRouter(t)

	w := get(t, router, "/v1/gpstime?time=2018-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)

	var resp usecase.GPSTimeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1982, resp.GPSWeek)
	assert.Equal(t, 86400.0, resp.TimeOfWeek)

	w = get(t, router, "/v1/gpstime")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, router, "/v1/gpstime?time=2018-13-01")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFiles(t *testing.T) {
	w := get(t, newTestRouter(t), "/v1/files")
	require.Equal(t, http.StatusOK, w.Code)

	var resp usecase.FilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Ionex, "grid3x3.18i")
	assert.Contains(t, resp.Navigation, "brdc0010.18n")
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t, "https://maps.example.org")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://maps.example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example.org")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrMalformedInput), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", domain.ErrRange), http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", domain.ErrDataNotFound), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrDivisionByZero), http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
