package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/stocksync/internal/server/handlers"
	"github.com/iudanet/stocksync/pkg/api"
)

// limiterEntry limiter одного ключа и время последнего запроса
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов по ключу (пользователь или IP)
type RateLimiter struct {
	entries map[string]*limiterEntry
	stop    chan struct{}
	now     func() time.Time
	idle    time.Duration
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	once    sync.Once
}

// NewRateLimiter создает limiter на rps запросов в секунду с запасом burst.
// Ключи без запросов дольше idle удаляются фоновой очисткой.
func NewRateLimiter(rps float64, burst int, idle time.Duration) *RateLimiter {
	rl := &RateLimiter{
		entries: make(map[string]*limiterEntry),
		stop:    make(chan struct{}),
		now:     time.Now,
		idle:    idle,
		limit:   rate.Limit(rps),
		burst:   burst,
	}

	go rl.cleanup()

	return rl
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	now := rl.now()
	e.lastSeen = now
	rl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Stop останавливает cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		close(rl.stop)
	})
}

// cleanup периодически удаляет неактивные ключи для экономии памяти
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupIdle()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanupIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, e := range rl.entries {
		if now.Sub(e.lastSeen) > rl.idle {
			delete(rl.entries, key)
		}
	}
}

// size возвращает число отслеживаемых ключей
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов.
// Ключ - пользователь из токена, для анонимных запросов - IP адрес.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + getClientIP(r)
			if userID, ok := handlers.GetUserID(r.Context()); ok {
				key = "user:" + userID
			}

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"key", key,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Retry-After", "1")
				handlers.SendError(w, logger, http.StatusTooManyRequests, api.CodeRateLimited,
					"rate limit exceeded, please try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Берем первый IP из списка (реальный клиент)
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
