package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/iono-api/internal/adapter/receiver"
	"go.ngs.io/iono-api/internal/adapter/store"
	"go.ngs.io/iono-api/internal/domain"
)

// memStore serves files from memory.
type memStore map[string][]byte

func (m memStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	data, ok := m[name]
	if !ok {
		return nil, domain.ErrDataNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m memStore) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names, nil
}

type memReports struct {
	saved map[store.ReportKey]*domain.DelayReport
}

func (m *memReports) Save(_ context.Context, r *domain.DelayReport) error {
	m.saved[store.KeyOf(r)] = r
	return nil
}

func (m *memReports) Find(_ context.Context, k store.ReportKey) (*domain.DelayReport, error) {
	return m.saved[k], nil
}

func (m *memReports) Close() error { return nil }

type recordingSink struct {
	reports []*domain.DelayReport
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(_ context.Context, r *domain.DelayReport) error {
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../testdata/" + name)
	require.NoError(t, err)
	return data
}

func newTestUseCase(t *testing.T) (*DelayUseCase, *memReports, *recordingSink) {
	t.Helper()
	ionexStore := memStore{"grid.18i": fixture(t, "grid3x3.18i")}
	navStore := memStore{"brdc0010.18n": fixture(t, "brdc0010.18n")}
	reports := &memReports{saved: make(map[store.ReportKey]*domain.DelayReport)}
	out := &recordingSink{}

	uc := NewDelayUseCase(ionexStore, navStore, reports, out)
	uc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return uc, reports, out
}

func ptr(v float64) *float64 { return &v }

var (
	epoch0 = domain.Epoch{Year: 2018, Month: 1, Day: 1}
	epoch2 = domain.Epoch{Year: 2018, Month: 1, Day: 1, Hour: 2}
)

func TestExecute_GridSeries(t *testing.T) {
	uc, _, _ := newTestUseCase(t)

	resp, err := uc.Execute(context.Background(), DelayRequest{
		IonexFile:    "grid.18i",
		Lat:          ptr(5),
		Lon:          ptr(15),
		ElevationDeg: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BoundingBox{North: 10, South: 0, West: 10, East: 20}, resp.BoundingBox)
	assert.Equal(t, domain.GridNode{Lat: 10, Lon: 20}, resp.Corners[domain.CornerNE])
	assert.Equal(t, 1, resp.Skipped, "the 04:00 map has no value at the NW corner")
	require.Len(t, resp.Points, 2)

	factor := 1e16 * 40.308193 / (1575.42e6 * 1575.42e6)

	assert.Equal(t, "2018-01-01T00:00:00Z", resp.Points[0].Time)
	assert.InDelta(t, 12.5, resp.Points[0].TECU, 1e-9)
	assert.InDelta(t, 12.5*factor, resp.Points[0].GridDelayM, 1e-12)
	assert.Equal(t, 1982, resp.Points[0].GPSWeek)
	assert.Equal(t, 86400.0, resp.Points[0].TimeOfWeek)
	assert.Nil(t, resp.Points[0].KlobucharDelayM)

	assert.InDelta(t, 14.0, resp.Points[1].TECU, 1e-9)
}

func TestExecute_WithKlobuchar(t *testing.T) {
	uc, _, _ := newTestUseCase(t)

	resp, err := uc.Execute(context.Background(), DelayRequest{
		IonexFile:    "grid.18i",
		NavFile:      "brdc0010.18n",
		Lat:          ptr(5),
		Lon:          ptr(15),
		ElevationDeg: 45,
		AzimuthDeg:   90,
	})
	require.NoError(t, err)
	require.Len(t, resp.Points, 2)

	coeffs := domain.IonosphericCoefficients{
		Alpha: [4]float64{0.1118e-07, -0.7451e-08, -0.5960e-07, 0.1192e-06},
		Beta:  [4]float64{0.9011e+05, -0.6554e+05, -0.1311e+06, 0.4588e+06},
	}
	for i, tow := range []float64{86400, 86400 + 7200} {
		want, err := domain.KlobucharDelayMeters(5, 15, 45, 90, tow, coeffs)
		require.NoError(t, err)
		require.NotNil(t, resp.Points[i].KlobucharDelayM)
		assert.InDelta(t, want, *resp.Points[i].KlobucharDelayM, 1e-12)
		assert.Greater(t, *resp.Points[i].KlobucharDelayM, 0.0)
	}
	assert.Equal(t, "klobuchar", resp.Meta["broadcast_model"])
}

func TestReport_CacheAndSink(t *testing.T) {
	uc, reports, out := newTestUseCase(t)
	ctx := context.Background()
	req := DelayRequest{IonexFile: "grid.18i", Lat: ptr(5), Lon: ptr(15), ElevationDeg: 90}

	first, err := uc.Report(ctx, req)
	require.NoError(t, err)
	assert.Len(t, reports.saved, 1)
	assert.Len(t, out.reports, 1)

	second, err := uc.Report(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "served from cache")
	assert.Len(t, out.reports, 1)

	req.Refresh = true
	third, err := uc.Report(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Len(t, out.reports, 2)
}

// evictingStore records evictions from a memStore.
type evictingStore struct {
	memStore
	evicted []string
}

func (s *evictingStore) Evict(name string) { s.evicted = append(s.evicted, name) }

func TestReport_RefreshEvictsCachedFiles(t *testing.T) {
	ionexStore := &evictingStore{memStore: memStore{"grid.18i": fixture(t, "grid3x3.18i")}}
	navStore := &evictingStore{memStore: memStore{"brdc0010.18n": fixture(t, "brdc0010.18n")}}
	uc := NewDelayUseCase(ionexStore, navStore, nil, nil)
	ctx := context.Background()

	req := DelayRequest{IonexFile: "grid.18i", NavFile: "brdc0010.18n", Lat: ptr(5), Lon: ptr(15), ElevationDeg: 90}
	_, err := uc.Report(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, ionexStore.evicted)
	assert.Empty(t, navStore.evicted)

	req.Refresh = true
	_, err = uc.Report(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"grid.18i"}, ionexStore.evicted)
	assert.Equal(t, []string{"brdc0010.18n"}, navStore.evicted)

	// Grid-only requests leave the navigation cache alone.
	req.NavFile = ""
	_, err = uc.Report(ctx, req)
	require.NoError(t, err)
	assert.Len(t, ionexStore.evicted, 2)
	assert.Len(t, navStore.evicted, 1)
}

func TestReport_SinkErrorDoesNotFail(t *testing.T) {
	uc, _, out := newTestUseCase(t)
	out.err = errors.New("broker down")

	_, err := uc.Report(context.Background(), DelayRequest{IonexFile: "grid.18i", Lat: ptr(5), Lon: ptr(15), ElevationDeg: 90})
	assert.NoError(t, err)
}

func TestExecute_Errors(t *testing.T) {
	uc, _, _ := newTestUseCase(t)

	tests := []struct {
		name string
		req  DelayRequest
		want error
	}{
		{"no file", DelayRequest{Lat: ptr(5), Lon: ptr(15)}, domain.ErrValidation},
		{"no position", DelayRequest{IonexFile: "grid.18i"}, domain.ErrValidation},
		{"latitude", DelayRequest{IonexFile: "grid.18i", Lat: ptr(95), Lon: ptr(15)}, domain.ErrValidation},
		{"elevation", DelayRequest{IonexFile: "grid.18i", Lat: ptr(5), Lon: ptr(15), ElevationDeg: 91}, domain.ErrValidation},
		{"missing file", DelayRequest{IonexFile: "absent.18i", Lat: ptr(5), Lon: ptr(15)}, domain.ErrDataNotFound},
		{"outside grid", DelayRequest{IonexFile: "grid.18i", Lat: ptr(45), Lon: ptr(15)}, domain.ErrRange},
		{"missing nav", DelayRequest{IonexFile: "grid.18i", NavFile: "absent.18n", Lat: ptr(5), Lon: ptr(15)}, domain.ErrDataNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGridAndKlobucharSeries(t *testing.T) {
	uc, _, _ := newTestUseCase(t)
	ctx := context.Background()
	target := domain.Target{Lat: 5, Lon: 15, ElevationDeg: 30, AzimuthDeg: 180}

	grid, err := uc.GridSeries(ctx, "grid.18i", target)
	require.NoError(t, err)
	assert.Equal(t, []domain.Epoch{epoch0, epoch2}, grid.Epochs())

	klob, err := uc.KlobucharSeries(ctx, "brdc0010.18n", target, grid.Epochs())
	require.NoError(t, err)
	assert.Equal(t, grid.Epochs(), klob.Epochs())

	_, err = uc.KlobucharSeries(ctx, "", target, grid.Epochs())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestKlobuchar(t *testing.T) {
	uc, _, _ := newTestUseCase(t)

	resp, err := uc.Klobuchar(context.Background(), KlobucharRequest{
		NavFile:      "brdc0010.18n",
		Time:         time.Date(2018, 1, 1, 12, 0, 0, 0, time.UTC),
		Lat:          ptr(40),
		Lon:          ptr(-105),
		ElevationDeg: 20,
		AzimuthDeg:   210,
	})
	require.NoError(t, err)

	assert.Equal(t, 1982, resp.GPSWeek)
	assert.Equal(t, 86400.0+43200, resp.TimeOfWeek)
	assert.InDelta(t, resp.DelaySeconds*domain.SpeedOfLight, resp.DelayM, 1e-9)
	assert.Greater(t, resp.DelayM, 0.0)
	assert.InDelta(t, 0.4588e+06, resp.Coefficients.Beta[3], 1e-6)

	_, err = uc.Klobuchar(context.Background(), KlobucharRequest{NavFile: "brdc0010.18n", Lat: ptr(40), Lon: ptr(-105)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGPSTime(t *testing.T) {
	resp, err := GPSTime(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1982, resp.GPSWeek)
	assert.Equal(t, 86400.0, resp.TimeOfWeek)

	resp, err = GPSTime(time.Date(2018, 1, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*3600)))
	require.NoError(t, err)
	assert.Equal(t, 86400.0, resp.TimeOfWeek, "converted to UTC first")

	_, err = GPSTime(time.Date(1979, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSatelliteDelays(t *testing.T) {
	coeffs := domain.IonosphericCoefficients{
		Alpha: [4]float64{0.1118e-07, -0.7451e-08, -0.5960e-07, 0.1192e-06},
		Beta:  [4]float64{0.9011e+05, -0.6554e+05, -0.1311e+06, 0.4588e+06},
	}
	fix := receiver.Fix{
		Time: time.Date(2018, 1, 1, 2, 0, 0, 0, time.UTC),
		Lat:  5,
		Lon:  15,
		Satellites: []receiver.Satellite{
			{PRN: 1, ElevationDeg: 45, AzimuthDeg: 90},
			{PRN: 7, ElevationDeg: 90, AzimuthDeg: 0},
			{PRN: 9, ElevationDeg: -3, AzimuthDeg: 10},
		},
	}

	delays, err := SatelliteDelays(fix, coeffs)
	require.NoError(t, err)
	require.Len(t, delays, 2)
	assert.Equal(t, int64(1), delays[0].PRN)
	// Lower elevation means a longer slant path.
	assert.Greater(t, delays[0].DelayM, delays[1].DelayM)
}

func TestListFiles(t *testing.T) {
	uc, _, _ := newTestUseCase(t)
	files, err := uc.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"grid.18i"}, files.Ionex)
	assert.Equal(t, []string{"brdc0010.18n"}, files.Navigation)
}
