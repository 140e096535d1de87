// Package connectivity watches reachability of the sync server and reports
// offline → online transitions, which wake the sync executor.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval период проверки сервера
const DefaultInterval = 10 * time.Second

// Prober проверяет доступность сервера
type Prober interface {
	Health(ctx context.Context) error
}

// Listener получает новое состояние сети
type Listener func(online bool)

// Monitor периодически проверяет сервер
type Monitor struct {
	prober    Prober
	logger    *slog.Logger
	listeners []Listener
	interval  time.Duration
	timeout   time.Duration
	online    atomic.Bool
	checked   atomic.Bool
	mu        sync.Mutex
}

// NewMonitor создает монитор. До первой проверки клиент считается offline.
func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  interval,
		logger:   logger,
	}
}

// Online возвращает последнее известное состояние
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnChange добавляет слушателя переходов online/offline
func (m *Monitor) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Check выполняет одну проверку и сообщает слушателям, если состояние изменилось
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.prober.Health(probeCtx)
	cancel()

	online := err == nil
	prev := m.online.Swap(online)
	first := !m.checked.Swap(true)

	if prev == online && !first {
		return online
	}
	if online {
		m.logger.Info("Server reachable")
	} else {
		m.logger.Warn("Server unreachable", "error", err)
	}
	// Первая неудачная проверка не меняет исходное offline состояние
	if first && !online {
		return online
	}

	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(online)
	}
	return online
}

// Run проверяет сервер сразу и затем каждые interval до отмены ctx
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
