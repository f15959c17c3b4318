// Package metrics exports latest telemetry in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/acudp/acudp"
)

const namespace = "acudp"

type StatSource interface {
	Stat() acudp.Stat
}

// Collector implements acudp.Listener.
type Collector struct {
	speed      prometheus.Gauge
	rpm        prometheus.Gauge
	gear       prometheus.Gauge
	carLap     *prometheus.GaugeVec
	lapTime    *prometheus.GaugeVec
	laps       *prometheus.CounterVec
	session    *prometheus.GaugeVec
	datagrams  prometheus.CounterFunc
	violations prometheus.CounterFunc
}

var _ acudp.Listener = &Collector{}

// NewCollector registers metrics on reg. src provides client counters, may be nil.
func NewCollector(reg prometheus.Registerer, src StatSource) (*Collector, error) {
	c := &Collector{
		speed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "car", Name: "speed_kmh",
			Help: "Current car speed, km/h.",
		}),
		rpm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "car", Name: "engine_rpm",
			Help: "Current engine RPM.",
		}),
		gear: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "car", Name: "gear",
			Help: "Current gear as sent by server: 0=reverse 1=neutral 2=first.",
		}),
		carLap: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "car", Name: "lap_seconds",
			Help: "Lap times of the player car.",
		}, []string{"lap"}),
		lapTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "lap", Name: "time_seconds",
			Help: "Last completed lap time.",
		}, []string{"driver", "car"}),
		laps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "laps_total",
			Help: "Completed laps.",
		}, []string{"driver", "car"}),
		session: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_info",
			Help: "Current session, value is always 1.",
		}, []string{"driver", "car", "track", "layout"}),
	}
	collectors := []prometheus.Collector{c.speed, c.rpm, c.gear, c.carLap, c.lapTime, c.laps, c.session}
	if src != nil {
		c.datagrams = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "datagrams_total",
			Help: "Datagrams received from server.",
		}, func() float64 { st := src.Stat(); return float64(st.Recv.Count.Value()) })
		c.violations = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "protocol_violations_total",
			Help: "Datagrams dropped because of unexpected length.",
		}, func() float64 { st := src.Stat(); return float64(st.Violation.Value()) })
		collectors = append(collectors, c.datagrams, c.violations)
	}
	for _, x := range collectors {
		if err := reg.Register(x); err != nil {
			return nil, errors.Annotate(err, "metrics register")
		}
	}
	return c, nil
}

func (c *Collector) Session(s acudp.SessionInfo) {
	c.session.Reset()
	c.session.WithLabelValues(s.DriverName, s.CarName, s.TrackName, s.TrackLayout).Set(1)
}

func (c *Collector) OnCarUpdate(ci acudp.CarInfo) {
	c.speed.Set(float64(ci.SpeedKmh))
	c.rpm.Set(float64(ci.EngineRPM))
	c.gear.Set(float64(ci.Gear))
	c.carLap.WithLabelValues("current").Set(ci.CurrentLapTime.Seconds())
	c.carLap.WithLabelValues("last").Set(ci.LastLapTime.Seconds())
	c.carLap.WithLabelValues("best").Set(ci.BestLapTime.Seconds())
}

func (c *Collector) OnLapUpdate(li acudp.LapInfo) {
	c.lapTime.WithLabelValues(li.DriverName, li.CarName).Set(li.LapTime.Seconds())
	c.laps.WithLabelValues(li.DriverName, li.CarName).Inc()
}

// Handler serves /metrics and /health.
func Handler(g prometheus.Gatherer, healthy func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if healthy != nil && !healthy() {
			http.Error(w, "not connected", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}
