// Package metrics exposes prometheus collectors of the client sync engine.
//
// All Record/Set methods are safe on a nil *Sync, so components can run
// without metrics in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iudanet/stocksync/internal/models"
)

const namespace = "stocksync"

// Sync коллекторы клиента синхронизации
type Sync struct {
	transmits     *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	drains        *prometheus.CounterVec
	drainDuration prometheus.Histogram
	queue         *prometheus.GaugeVec
	pushChanges   *prometheus.CounterVec
	refreshes     prometheus.Counter
}

// NewSync регистрирует коллекторы в reg. nil reg означает prometheus.DefaultRegisterer.
func NewSync(reg prometheus.Registerer) *Sync {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Sync{
		// Labels: kind (create, update, delete), outcome (done, retry, failed, expired)
		transmits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "transmits_total",
			Help:      "Operations transmitted to the server by outcome",
		}, []string{"kind", "outcome"}),

		// Labels: type (version, timestamp, content), strategy (server, local, manual)
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "conflicts_total",
			Help:      "Conflicts detected before transmit by resolution strategy",
		}, []string{"type", "strategy"}),

		// Labels: trigger (manual, scheduler, background, connectivity)
		drains: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "drains_total",
			Help:      "Drain passes by trigger",
		}, []string{"trigger"}),

		drainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "drain_duration_seconds",
			Help:      "Duration of one drain pass",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		// Labels: status (pending, in_flight, blocked, failed)
		queue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operations",
			Help:      "Operations in the local queue by status",
		}, []string{"status"}),

		// Labels: kind (insert, update, delete), result (applied, dropped)
		pushChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_total",
			Help:      "Push changes received by result",
		}, []string{"kind", "result"}),

		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "refreshes_total",
			Help:      "Full scope refreshes",
		}),
	}
}

// RecordTransmit учитывает результат отправки операции
func (m *Sync) RecordTransmit(kind models.OperationKind, outcome string) {
	if m == nil {
		return
	}
	m.transmits.WithLabelValues(string(kind), outcome).Inc()
}

// RecordConflict учитывает найденный конфликт и выбранную стратегию
func (m *Sync) RecordConflict(conflictType models.ConflictType, strategy string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(string(conflictType), strategy).Inc()
}

// RecordDrain учитывает проход очереди
func (m *Sync) RecordDrain(trigger string, d time.Duration) {
	if m == nil {
		return
	}
	m.drains.WithLabelValues(trigger).Inc()
	m.drainDuration.Observe(d.Seconds())
}

// SetQueue обновляет размеры очереди по статусам
func (m *Sync) SetQueue(counts map[models.OperationStatus]int) {
	if m == nil {
		return
	}
	for _, status := range []models.OperationStatus{
		models.StatusPending,
		models.StatusInFlight,
		models.StatusBlocked,
		models.StatusFailed,
	} {
		m.queue.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// RecordPushChange учитывает push изменение
func (m *Sync) RecordPushChange(kind models.ChangeKind, applied bool) {
	if m == nil {
		return
	}
	result := "dropped"
	if applied {
		result = "applied"
	}
	m.pushChanges.WithLabelValues(string(kind), result).Inc()
}

// RecordRefresh учитывает полный refresh области
func (m *Sync) RecordRefresh() {
	if m == nil {
		return
	}
	m.refreshes.Inc()
}
