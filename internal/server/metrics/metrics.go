// Package metrics exposes prometheus collectors of the reference server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stocksync_server"

// HTTP коллекторы запросов
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP регистрирует коллекторы в reg
func NewHTTP(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		// Labels: route (шаблон ServeMux), code
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// statusRecorder запоминает код ответа
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument оборачивает обработчик маршрута route.
// Потоковые маршруты не оборачиваются: им нужен Hijack исходного writer.
func (m *HTTP) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Hub коллекторы push рассылки
type Hub struct {
	streams prometheus.Gauge
}

// NewHub регистрирует коллекторы в reg
func NewHub(reg prometheus.Registerer) *Hub {
	return &Hub{
		streams: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "open_streams",
			Help:      "Open websocket change streams",
		}),
	}
}

// StreamOpened учитывает открытый поток, безопасен для nil
func (h *Hub) StreamOpened() {
	if h != nil {
		h.streams.Inc()
	}
}

// StreamClosed учитывает закрытый поток, безопасен для nil
func (h *Hub) StreamClosed() {
	if h != nil {
		h.streams.Dec()
	}
}
