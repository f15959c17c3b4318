package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/acudp/acudp"
)

type statMock struct{ st acudp.Stat }

func (m *statMock) Stat() acudp.Stat { return m.st.Value() }

func TestCollectorCar(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, nil)
	require.NoError(t, err)

	c.OnCarUpdate(acudp.CarInfo{
		SpeedKmh:       220.5,
		EngineRPM:      9000,
		Gear:           5,
		CurrentLapTime: 58 * time.Second,
		LastLapTime:    59200 * time.Millisecond,
		BestLapTime:    57800 * time.Millisecond,
	})
	assert.Equal(t, 220.5, testutil.ToFloat64(c.speed))
	assert.Equal(t, 9000.0, testutil.ToFloat64(c.rpm))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.gear))
	assert.Equal(t, 58.0, testutil.ToFloat64(c.carLap.WithLabelValues("current")))
	assert.InDelta(t, 59.2, testutil.ToFloat64(c.carLap.WithLabelValues("last")), 1e-9)
	assert.InDelta(t, 57.8, testutil.ToFloat64(c.carLap.WithLabelValues("best")), 1e-9)

	expected := `
# HELP acudp_car_speed_kmh Current car speed, km/h.
# TYPE acudp_car_speed_kmh gauge
acudp_car_speed_kmh 220.5
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "acudp_car_speed_kmh"))
}

func TestCollectorLapSession(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, nil)
	require.NoError(t, err)

	c.OnLapUpdate(acudp.LapInfo{DriverName: "Mario", CarName: "bmw_m3", LapNumber: 1, LapTime: 90 * time.Second})
	c.OnLapUpdate(acudp.LapInfo{DriverName: "Mario", CarName: "bmw_m3", LapNumber: 2, LapTime: 88500 * time.Millisecond})
	c.OnLapUpdate(acudp.LapInfo{DriverName: "Kimi", CarName: "ferrari", LapNumber: 1, LapTime: 87 * time.Second})
	assert.Equal(t, 88.5, testutil.ToFloat64(c.lapTime.WithLabelValues("Mario", "bmw_m3")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.laps.WithLabelValues("Mario", "bmw_m3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.laps.WithLabelValues("Kimi", "ferrari")))

	c.Session(acudp.SessionInfo{DriverName: "Mario", CarName: "bmw_m3", TrackName: "spa"})
	c.Session(acudp.SessionInfo{DriverName: "Mario", CarName: "bmw_m3", TrackName: "monza", TrackLayout: "junior"})
	assert.Equal(t, 1, testutil.CollectAndCount(c.session))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.session.WithLabelValues("Mario", "bmw_m3", "monza", "junior")))
}

func TestCollectorStat(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	src := &statMock{}
	_, err := NewCollector(reg, src)
	require.NoError(t, err)
	src.st.Recv.Register(408)
	src.st.Recv.Register(328)
	src.st.Violation.Add(1)

	expected := `
# HELP acudp_datagrams_total Datagrams received from server.
# TYPE acudp_datagrams_total counter
acudp_datagrams_total 2
# HELP acudp_protocol_violations_total Datagrams dropped because of unexpected length.
# TYPE acudp_protocol_violations_total counter
acudp_protocol_violations_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"acudp_datagrams_total", "acudp_protocol_violations_total"))

	_, err = NewCollector(reg, src)
	assert.Error(t, err, "duplicate registration")
}

func TestHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, nil)
	require.NoError(t, err)
	c.OnCarUpdate(acudp.CarInfo{Gear: 3})
	healthy := false
	h := Handler(reg, func() bool { return healthy })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acudp_car_gear 3")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	healthy = true
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
