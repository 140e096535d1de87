// Package engine is the caller-facing surface of the sync engine.
//
// It ties together the durable store, the operation queue, the executor, the
// conflict detector and resolver and the realtime provider. Domain code submits
// mutations, reads cached entities, subscribes to scopes and answers conflict
// prompts only through Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/client/connectivity"
	"github.com/iudanet/stocksync/internal/client/lock"
	"github.com/iudanet/stocksync/internal/client/metrics"
	"github.com/iudanet/stocksync/internal/client/queue"
	"github.com/iudanet/stocksync/internal/client/realtime"
	"github.com/iudanet/stocksync/internal/client/storage"
	clientsync "github.com/iudanet/stocksync/internal/client/sync"
	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/syncerr"
	"github.com/iudanet/stocksync/internal/validation"
)

var (
	// ErrEntityNotFound entity is not in the local cache
	ErrEntityNotFound = errors.New("entity not found")
	// ErrEntityExists create targets an entity that already exists
	ErrEntityExists = errors.New("entity already exists")
	// ErrNoConflict entity has neither conflicts nor a blocked operation
	ErrNoConflict = errors.New("entity has no conflicts to resolve")
	// ErrInvalidChoice resolution choice is neither local nor server
	ErrInvalidChoice = errors.New("choice must be local or server")
	// ErrUnsettled a bulk write was queued but not acknowledged by the server
	ErrUnsettled = errors.New("operation is not acknowledged")
)

// Store локальное хранилище, которое нужно движку целиком
type Store interface {
	storage.CacheStorage
	storage.OperationStorage
	storage.ConflictStorage
	storage.MetadataStorage
}

// Remote сетевая граница: мутации, снимки и полный список области
type Remote interface {
	clientsync.Remote
	ListScope(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error)
}

// Config параметры движка
type Config struct {
	Policy       conflict.Policy
	Queue        queue.Config
	PollInterval time.Duration
	Concurrency  int
}

// DefaultConfig параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Policy:       conflict.DefaultPolicy(),
		Queue:        queue.DefaultConfig(),
		Concurrency:  clientsync.DefaultConcurrency,
		PollInterval: clientsync.DefaultPollInterval,
	}
}

// Mutation намерение изменить сущность
type Mutation struct {
	Payload    models.Fields
	Kind       models.OperationKind
	EntityType string
	EntityID   string // EntityID для create может быть пустым, тогда назначается UUID
	ScopeID    string // ScopeID обязателен для create, для остальных берется из кэша
}

// Status сводка состояния синхронизации для отображения
type Status struct {
	LastDrainAt time.Time
	ScopeSeqs   map[string]int64 // последнее изменение сервера, отраженное в кэше области
	Leases      []models.SubscriptionLease
	Pending     int
	InFlight    int
	Blocked     int
	Failed      int
	Conflicts   int
	Online      bool
}

// WriteResult итог массовой записи: операции, проход по их сущностям и refresh области
type WriteResult struct {
	Refresh    *storage.ReplaceResult
	Drain      *clientsync.DrainResult
	Operations []*models.Operation
}

// Option настройка движка
type Option func(*Engine)

// WithMetrics подключает коллекторы prometheus
func WithMetrics(m *metrics.Sync) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithMonitor подключает монитор связи: executor не работает офлайн
// и запускается при восстановлении связи
func WithMonitor(m *connectivity.Monitor) Option {
	return func(e *Engine) {
		e.monitor = m
	}
}

// WithSessionExpired вызывается, когда сервер отверг токен
func WithSessionExpired(fn func()) Option {
	return func(e *Engine) {
		e.onExpired = fn
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine фасад движка синхронизации
type Engine struct {
	store     Store
	remote    Remote
	queue     *queue.Queue
	executor  *clientsync.Executor
	provider  *realtime.Provider
	resolver  *conflict.Resolver
	locks     *lock.Keyed
	monitor   *connectivity.Monitor
	metrics   *metrics.Sync
	onExpired func()
	logger    *slog.Logger
	now       func() time.Time
}

// New собирает движок
func New(store Store, remote Remote, push realtime.Subscriber, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		remote: remote,
		locks:  lock.NewKeyed(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	e.queue = queue.New(store, cfg.Queue, logger)
	e.queue.SetClock(e.now)

	detector := conflict.NewDetector(remote, store, cfg.Policy)
	detector.SetClock(e.now)
	e.resolver = conflict.NewResolver(store, cfg.Policy, logger)
	e.resolver.SetClock(e.now)

	e.provider = realtime.NewProvider(push, remote, store, e.locks, logger)
	e.provider.SetMetrics(e.metrics)

	execOpts := []clientsync.Option{
		clientsync.WithConcurrency(cfg.Concurrency),
		clientsync.WithPollInterval(cfg.PollInterval),
		clientsync.WithLocks(e.locks),
		clientsync.WithFreshMarker(e.provider),
		clientsync.WithMetrics(e.metrics),
	}
	if e.onExpired != nil {
		execOpts = append(execOpts, clientsync.WithSessionExpired(e.onExpired))
	}
	if e.monitor != nil {
		execOpts = append(execOpts, clientsync.WithOnline(e.monitor.Online))
	}
	e.executor = clientsync.NewExecutor(remote, store, e.queue, detector, e.resolver, logger, execOpts...)

	if e.monitor != nil {
		e.monitor.OnChange(func(online bool) {
			if online {
				e.executor.Trigger()
			}
		})
	}
	return e
}

// Executor возвращает executor, например для background responder
func (e *Engine) Executor() *clientsync.Executor {
	return e.executor
}

// Provider возвращает realtime provider
func (e *Engine) Provider() *realtime.Provider {
	return e.provider
}

// Recover возвращает в pending операции, прерванные аварийным завершением
func (e *Engine) Recover(ctx context.Context) (int, error) {
	return e.queue.RecoverInFlight(ctx)
}

// Run запускает планировщик executor и монитор связи до отмены ctx
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.Recover(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.executor.Run(ctx)
	})
	if e.monitor != nil {
		g.Go(func() error {
			return e.monitor.Run(ctx)
		})
	}
	return g.Wait()
}

// SubmitOperation проверяет мутацию, атомарно ставит операцию в очередь вместе
// с оптимистичной записью в кэш и будит executor. Ошибка хранилища возвращается
// сразу: запись не считается выполненной.
func (e *Engine) SubmitOperation(ctx context.Context, m Mutation) (*models.Operation, error) {
	if m.Kind == models.KindCreate && m.EntityID == "" {
		m.EntityID = uuid.New().String()
	}
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(m.EntityID)
	defer unlock()

	op, err := e.prepare(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := e.queue.Enqueue(ctx, op); err != nil {
		return nil, err
	}

	e.logger.Info("Operation submitted",
		"op_id", op.ID,
		"entity_id", op.EntityID,
		"kind", op.Kind)
	e.executor.Trigger()
	return op.Clone(), nil
}

func validateMutation(m Mutation) error {
	if !m.Kind.Valid() {
		return fmt.Errorf("unknown operation kind: %q", m.Kind)
	}
	if err := validation.ValidateEntityID(m.EntityID); err != nil {
		return err
	}
	if m.Kind == models.KindCreate {
		if err := validation.ValidateScopeID(m.ScopeID); err != nil {
			return err
		}
	}
	if m.Kind == models.KindDelete && len(m.Payload) > 0 {
		return errors.New("delete does not take a payload")
	}
	return nil
}

// prepare строит операцию по текущему состоянию кэша. Вызывается под блокировкой сущности.
func (e *Engine) prepare(ctx context.Context, m Mutation) (*models.Operation, error) {
	entry, err := e.store.GetEntry(ctx, m.EntityID)
	if err != nil && !errors.Is(err, storage.ErrEntryNotFound) {
		return nil, syncerr.Storage("get", err)
	}
	visible := entry != nil && entry.Visible()

	switch m.Kind {
	case models.KindCreate:
		if visible {
			return nil, fmt.Errorf("%w: %s", ErrEntityExists, m.EntityID)
		}
		if err := validation.ValidateEntity(m.EntityType, m.Payload); err != nil {
			return nil, err
		}
		op := models.NewOperation(m.Kind, m.EntityType, m.EntityID, m.ScopeID, m.Payload, e.now())
		if entry != nil {
			// Пересоздание сущности, удаление которой еще не отправлено
			op.BaseVersion = entry.Version
		}
		return op, nil
	}

	if !visible {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, m.EntityID)
	}
	if m.EntityType != "" && m.EntityType != entry.EntityType {
		return nil, fmt.Errorf("entity %s is %s, not %s", m.EntityID, entry.EntityType, m.EntityType)
	}
	if m.Kind == models.KindUpdate {
		if err := validation.ValidatePatch(entry.EntityType, entry.Data, m.Payload); err != nil {
			return nil, err
		}
	}

	op := models.NewOperation(m.Kind, entry.EntityType, m.EntityID, entry.ScopeID, m.Payload, e.now())
	op.BaseVersion = entry.Version
	return op, nil
}

// GetEntity возвращает лучшее известное состояние сущности
func (e *Engine) GetEntity(ctx context.Context, entityID string) (*models.CacheEntry, error) {
	entry, err := e.store.GetEntry(ctx, entityID)
	if errors.Is(err, storage.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	if err != nil {
		return nil, syncerr.Storage("get", err)
	}
	if !entry.Visible() {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return entry, nil
}

// ListEntities возвращает видимые сущности области. Пустые scopeID и entityType не фильтруют.
func (e *Engine) ListEntities(ctx context.Context, scopeID, entityType string) ([]*models.CacheEntry, error) {
	entries, err := e.store.QueryEntries(ctx, func(entry *models.CacheEntry) bool {
		return entry.Visible() &&
			(scopeID == "" || entry.ScopeID == scopeID) &&
			(entityType == "" || entry.EntityType == entityType)
	})
	if err != nil {
		return nil, syncerr.Storage("query", err)
	}
	return entries, nil
}

// SubscribeToScope регистрирует интерес к области. Первый подписчик заполняет кэш
// снимком области, офлайн ошибка refresh не мешает подписке.
func (e *Engine) SubscribeToScope(ctx context.Context, scopeID string) (*realtime.Lease, error) {
	if err := validation.ValidateScopeID(scopeID); err != nil {
		return nil, err
	}

	lease := e.provider.Register(scopeID)
	if snap, ok := e.provider.Lease(scopeID); ok && snap.LastRefreshAt.IsZero() {
		if _, err := e.provider.Refresh(ctx, scopeID); err != nil {
			e.logger.Warn("Initial scope refresh failed", "scope_id", scopeID, "error", err)
		}
	}
	return lease, nil
}

// OnConflict добавляет слушателя конфликтов, найденных executor
func (e *Engine) OnConflict(l clientsync.ConflictListener) {
	e.executor.OnConflict(l)
}

// OnChange добавляет слушателя изменений, пришедших из push потока и refresh
func (e *Engine) OnChange(l realtime.Listener) {
	e.provider.OnChange(l)
}

// ForceRefresh перечитывает область и устанавливает новый baseline
func (e *Engine) ForceRefresh(ctx context.Context, scopeID string) (*storage.ReplaceResult, error) {
	if err := validation.ValidateScopeID(scopeID); err != nil {
		return nil, err
	}
	return e.provider.Refresh(ctx, scopeID)
}

// Status возвращает счетчики очереди и конфликтов
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	counts, err := e.queue.Counts(ctx)
	if err != nil {
		return nil, err
	}
	conflicts, err := e.store.ListAllConflicts(ctx)
	if err != nil {
		return nil, syncerr.Storage("conflicts", err)
	}
	last, err := e.store.GetLastDrainTime(ctx)
	if err != nil {
		return nil, syncerr.Storage("metadata", err)
	}
	seqs, err := e.store.ScopeSeqs(ctx)
	if err != nil {
		return nil, syncerr.Storage("metadata", err)
	}

	st := &Status{
		Pending:   counts[models.StatusPending],
		InFlight:  counts[models.StatusInFlight],
		Blocked:   counts[models.StatusBlocked],
		Failed:    counts[models.StatusFailed],
		Conflicts: len(conflicts),
		ScopeSeqs: seqs,
		Online:    e.monitor == nil || e.monitor.Online(),
		Leases:    e.provider.Leases(),
	}
	if last > 0 {
		st.LastDrainAt = time.Unix(last, 0).UTC()
	}
	e.metrics.SetQueue(counts)
	return st, nil
}

// Operations возвращает все операции очереди в порядке создания
func (e *Engine) Operations(ctx context.Context) ([]*models.Operation, error) {
	return e.queue.List(ctx)
}

// Conflicts возвращает конфликты сущности, пустой entityID - все конфликты
func (e *Engine) Conflicts(ctx context.Context, entityID string) ([]*models.ConflictRecord, error) {
	var (
		records []*models.ConflictRecord
		err     error
	)
	if entityID == "" {
		records, err = e.store.ListAllConflicts(ctx)
	} else {
		records, err = e.store.ListConflicts(ctx, entityID)
	}
	if err != nil {
		return nil, syncerr.Storage("conflicts", err)
	}
	return records, nil
}

// Drain обрабатывает очередь сейчас
func (e *Engine) Drain(ctx context.Context) (*clientsync.DrainResult, error) {
	return e.executor.DrainWithTrigger(ctx, clientsync.TriggerManual)
}
