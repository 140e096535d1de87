// Package sync drains the operation queue to the server.
//
// Every operation moves through pending → in_flight → {done | failed | blocked}.
// Before transmit the executor checks the entity of the operation for conflicts
// with the server copy and applies the resolution policy. Operations of one entity
// are sent strictly in creation order, different entities are drained concurrently
// up to the configured limit.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/stocksync/internal/client/conflict"
	"github.com/iudanet/stocksync/internal/client/lock"
	"github.com/iudanet/stocksync/internal/client/metrics"
	"github.com/iudanet/stocksync/internal/client/queue"
	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/syncerr"
	"github.com/iudanet/stocksync/pkg/api"
)

//go:generate moq -out mocks_test.go . Remote

// Триггеры прохода очереди (метка метрики drains_total)
const (
	TriggerManual       = "manual"
	TriggerScheduler    = "scheduler"
	TriggerBackground   = "background"
	TriggerConnectivity = "connectivity"
)

const (
	// DefaultConcurrency число сущностей, обрабатываемых одновременно
	DefaultConcurrency = 4
	// DefaultPollInterval период проверки очереди, когда нет запланированных повторов
	DefaultPollInterval = 30 * time.Second
	minRunInterval      = 500 * time.Millisecond
)

// Remote сетевая граница: мутации и снимки сервера
type Remote interface {
	Create(ctx context.Context, op *models.Operation) (*models.MutationResult, error)
	Update(ctx context.Context, op *models.Operation) (*models.MutationResult, error)
	Delete(ctx context.Context, op *models.Operation) (*models.MutationResult, error)
	FetchSnapshots(ctx context.Context, ids []string) (map[string]*models.EntityState, error)
}

// Store часть хранилища, которую executor использует напрямую
type Store interface {
	CompleteOperation(ctx context.Context, op *models.Operation, result *models.MutationResult, syncedAt time.Time) error
	ListConflicts(ctx context.Context, entityID string) ([]*models.ConflictRecord, error)
	SaveLastDrainTime(ctx context.Context, timestamp int64) error
}

// FreshMarker получает номер изменения сервера после собственной записи
type FreshMarker interface {
	MarkFresh(scopeID, entityID string, seq int64)
}

// ConflictEvent конфликт, найденный перед отправкой операции
type ConflictEvent struct {
	Operation  *models.Operation
	Server     *models.EntityState
	Records    []*models.ConflictRecord
	Resolution conflict.Resolution
}

// ConflictListener получает найденные конфликты
type ConflictListener func(ev ConflictEvent)

// DrainResult результат одного прохода очереди
type DrainResult struct {
	Outcomes   map[string]models.OperationStatus `json:"outcomes"`   // Outcomes итоговый статус каждой обработанной операции
	Processed  int                               `json:"processed"`  // Processed операции, подтвержденные сервером
	Superseded int                               `json:"superseded"` // Superseded операции, снятые в пользу сервера
	Blocked    int                               `json:"blocked"`    // Blocked операции, ожидающие решения
	Retried    int                               `json:"retried"`    // Retried операции, запланированные к повтору
	Failed     int                               `json:"failed"`     // Failed операции, ставшие failed
	Expired    bool                              `json:"expired"`    // Expired проход остановлен истекшей сессией
}

// Attempted возвращает число обработанных операций
func (r *DrainResult) Attempted() int {
	return len(r.Outcomes)
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSuperseded
	outcomeBlocked
	outcomeRetry
	outcomeFailed
	outcomeExpired
	outcomeReleased
)

func (r *DrainResult) add(op *models.Operation, o outcome) {
	switch o {
	case outcomeDone:
		r.Processed++
		r.Outcomes[op.ID] = models.StatusDone
	case outcomeSuperseded:
		r.Superseded++
		r.Outcomes[op.ID] = models.StatusDone
	case outcomeBlocked:
		r.Blocked++
		r.Outcomes[op.ID] = models.StatusBlocked
	case outcomeRetry:
		r.Retried++
		r.Outcomes[op.ID] = models.StatusPending
	case outcomeFailed:
		r.Failed++
		r.Outcomes[op.ID] = models.StatusFailed
	case outcomeExpired:
		r.Expired = true
		r.Outcomes[op.ID] = models.StatusPending
	case outcomeReleased:
		r.Outcomes[op.ID] = models.StatusPending
	}
}

// Option настраивает Executor
type Option func(*Executor)

// WithConcurrency ограничивает число одновременно обрабатываемых сущностей
func WithConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLocks задает общий набор блокировок сущностей
func WithLocks(locks *lock.Keyed) Option {
	return func(e *Executor) {
		e.locks = locks
	}
}

// WithFreshMarker подключает realtime provider
func WithFreshMarker(m FreshMarker) Option {
	return func(e *Executor) {
		e.fresh = m
	}
}

// WithMetrics подключает коллекторы prometheus
func WithMetrics(m *metrics.Sync) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSessionExpired задает обработчик истекшей сессии
func WithSessionExpired(fn func()) Option {
	return func(e *Executor) {
		e.onExpired = fn
	}
}

// WithOnline задает проверку наличия сети для планировщика
func WithOnline(fn func() bool) Option {
	return func(e *Executor) {
		e.online = fn
	}
}

// WithPollInterval задает период проверки очереди планировщиком
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// Executor отправляет операции очереди на сервер
type Executor struct {
	remote       Remote
	store        Store
	queue        *queue.Queue
	detector     *conflict.Detector
	resolver     *conflict.Resolver
	locks        *lock.Keyed
	fresh        FreshMarker
	metrics      *metrics.Sync
	logger       *slog.Logger
	onExpired    func()
	online       func() bool
	trigger      chan struct{}
	listeners    []ConflictListener
	concurrency  int
	pollInterval time.Duration
	drainMu      stdsync.Mutex // один проход очереди за раз
	mu           stdsync.Mutex
}

// NewExecutor создает executor
func NewExecutor(remote Remote, store Store, q *queue.Queue, detector *conflict.Detector, resolver *conflict.Resolver, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		remote:       remote,
		store:        store,
		queue:        q,
		detector:     detector,
		resolver:     resolver,
		logger:       logger,
		concurrency:  DefaultConcurrency,
		pollInterval: DefaultPollInterval,
		trigger:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = lock.NewKeyed()
	}
	return e
}

// OnConflict добавляет слушателя конфликтов
func (e *Executor) OnConflict(l ConflictListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Drain обрабатывает все доступные операции очереди
func (e *Executor) Drain(ctx context.Context) (*DrainResult, error) {
	return e.drain(ctx, nil, TriggerManual)
}

// DrainWithTrigger обрабатывает очередь, помечая проход источником запуска
func (e *Executor) DrainWithTrigger(ctx context.Context, trigger string) (*DrainResult, error) {
	return e.drain(ctx, nil, trigger)
}

// DrainEntities обрабатывает только операции перечисленных сущностей
func (e *Executor) DrainEntities(ctx context.Context, entityIDs []string) (*DrainResult, error) {
	only := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		only[id] = true
	}
	if len(only) == 0 {
		return &DrainResult{Outcomes: map[string]models.OperationStatus{}}, nil
	}
	return e.drain(ctx, only, TriggerManual)
}

// Trigger просит планировщик выполнить проход как можно скорее.
// Повторные вызовы до начала прохода сливаются в один.
func (e *Executor) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run планировщик: проходит очередь по Trigger и к моменту ближайшего повтора.
// Завершается при отмене ctx.
func (e *Executor) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.trigger:
		case <-timer.C:
		}

		wait := e.pollInterval
		if e.online == nil || e.online() {
			res, err := e.drain(ctx, nil, TriggerScheduler)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Error("Drain failed", "error", err)
			case res.Expired:
				// Ждем новую сессию и явный Trigger
			default:
				wait = e.nextWait(ctx)
			}
		}
		timer.Reset(wait)
	}
}

// nextWait возвращает время до ближайшего запланированного повтора
func (e *Executor) nextWait(ctx context.Context) time.Duration {
	next, ok, err := e.queue.NextAttemptAt(ctx)
	if err != nil {
		e.logger.Warn("Failed to get next attempt time", "error", err)
		return e.pollInterval
	}
	if !ok {
		return e.pollInterval
	}
	wait := next.Sub(e.queue.Now())
	if wait < minRunInterval {
		wait = minRunInterval
	}
	if wait > e.pollInterval {
		wait = e.pollInterval
	}
	return wait
}

// drain выбирает операции по одной на сущность и обрабатывает их пулом из concurrency задач.
// Каждая операция обрабатывается не больше одного раза за проход.
func (e *Executor) drain(ctx context.Context, only map[string]bool, trigger string) (*DrainResult, error) {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	start := time.Now()
	result := &DrainResult{Outcomes: make(map[string]models.OperationStatus)}

	var (
		mu        stdsync.Mutex
		busy      = make(map[string]bool)
		attempted = make(map[string]bool)
		stopped   bool
		finished  = make(chan struct{}, 1)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	e.logger.Debug("Drain started", "trigger", trigger, "concurrency", e.concurrency)

loop:
	for gctx.Err() == nil {
		mu.Lock()
		if stopped {
			mu.Unlock()
			break
		}
		opts := storage.ClaimOptions{
			SkipEntities: copySet(busy),
			SkipOps:      copySet(attempted),
			OnlyEntities: only,
		}
		mu.Unlock()

		op, err := e.queue.DequeueNext(gctx, opts)
		if err != nil {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error { return err })
			break
		}

		if op == nil {
			mu.Lock()
			running := len(busy)
			mu.Unlock()
			if running == 0 {
				break
			}
			// Завершение операции может открыть следующую операцию той же сущности
			select {
			case <-finished:
				continue
			case <-gctx.Done():
				break loop
			}
		}

		mu.Lock()
		busy[op.EntityID] = true
		attempted[op.ID] = true
		mu.Unlock()

		g.Go(func() error {
			mu.Lock()
			halted := stopped
			mu.Unlock()

			var (
				o   outcome
				err error
			)
			if halted {
				// Операция захвачена до остановки прохода
				o, err = e.abort(gctx, op, nil)
			} else {
				o, err = e.process(gctx, op)
			}

			mu.Lock()
			delete(busy, op.EntityID)
			if err == nil {
				result.add(op, o)
			}
			if o == outcomeExpired {
				stopped = true
			}
			mu.Unlock()

			select {
			case finished <- struct{}{}:
			default:
			}
			return err
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)
	e.metrics.RecordDrain(trigger, elapsed)
	e.updateQueueMetrics(ctx)

	if err != nil {
		return result, err
	}

	if saveErr := e.store.SaveLastDrainTime(context.WithoutCancel(ctx), e.queue.Now().Unix()); saveErr != nil {
		e.logger.Warn("Failed to save last drain time", "error", saveErr)
	}

	e.logger.Info("Drain completed",
		"trigger", trigger,
		"attempted", result.Attempted(),
		"processed", result.Processed,
		"superseded", result.Superseded,
		"blocked", result.Blocked,
		"retried", result.Retried,
		"failed", result.Failed,
		"expired", result.Expired,
		"duration", elapsed)

	return result, ctx.Err()
}

// process проводит одну операцию через проверку конфликтов и отправку.
// Возвращает ошибку только при недоступности хранилища.
func (e *Executor) process(ctx context.Context, op *models.Operation) (outcome, error) {
	// update сам сводит сущность к локальному состоянию, остальные ждут решения сохраненных конфликтов
	if op.Kind != models.KindUpdate {
		records, err := e.store.ListConflicts(ctx, op.EntityID)
		if err != nil {
			return e.abort(ctx, op, syncerr.Storage("list_conflicts", err))
		}
		if len(records) > 0 {
			res := conflict.Resolution{Strategy: conflict.StrategyManual, Reason: "entity has unresolved conflicts"}
			if _, err := e.apply(ctx, op, records, nil, res); err != nil {
				return e.abort(ctx, op, err)
			}
			return outcomeBlocked, nil
		}
	}

	if op.Kind == models.KindUpdate && !op.SentAt.IsZero() {
		// Ответ на прошлую отправку мог потеряться: сервер вернет сохраненный по ключу идемпотентности результат
		result, err := e.send(ctx, op)
		switch {
		case err == nil:
			return e.finish(ctx, op, result)
		case syncerr.CodeOf(err) != api.CodeVersionMismatch:
			return e.fail(ctx, op, err)
		}
		e.logger.Debug("Resent update is stale, checking conflicts", "op_id", op.ID, "entity_id", op.EntityID)
	}

	if op.Kind != models.KindCreate {
		det, err := e.detector.DetectOperation(ctx, op)
		if err != nil {
			return e.fail(ctx, op, err)
		}

		if op.Kind == models.KindDelete && det.Missing() {
			e.logger.Info("Entity already gone on server, delete completed locally",
				"op_id", op.ID,
				"entity_id", op.EntityID)
			if err := e.complete(ctx, op, &models.MutationResult{Deleted: true}); err != nil {
				return e.abort(ctx, op, err)
			}
			return outcomeDone, nil
		}

		if len(det.Records) > 0 {
			res := e.resolver.ResolveAll(det.Records)
			for _, rec := range det.Records {
				e.metrics.RecordConflict(rec.ConflictType, string(res.Strategy))
			}
			out, err := e.apply(ctx, op, det.Records, det.Server, res)
			if err != nil {
				return e.abort(ctx, op, err)
			}
			switch {
			case out.Blocked:
				return outcomeBlocked, nil
			case out.Superseded:
				if det.Server != nil {
					e.markFresh(op, det.Server.Seq)
				}
				return outcomeSuperseded, nil
			}
			op = out.Operation
		}
	}

	result, err := e.send(ctx, op)
	if err != nil && op.Kind == models.KindDelete && syncerr.StatusOf(err) == http.StatusNotFound {
		// Сущность удалили между проверкой и отправкой
		result, err = &models.MutationResult{Deleted: true}, nil
	}
	if err != nil {
		return e.fail(ctx, op, err)
	}
	return e.finish(ctx, op, result)
}

// finish записывает подтвержденный сервером результат
func (e *Executor) finish(ctx context.Context, op *models.Operation, result *models.MutationResult) (outcome, error) {
	if err := e.complete(ctx, op, result); err != nil {
		return e.abort(ctx, op, err)
	}

	e.metrics.RecordTransmit(op.Kind, "done")
	e.logger.Info("Operation synced",
		"op_id", op.ID,
		"entity_id", op.EntityID,
		"kind", op.Kind,
		"seq", result.Seq)
	return outcomeDone, nil
}

// send отмечает отправку в очереди и передает операцию серверу
func (e *Executor) send(ctx context.Context, op *models.Operation) (*models.MutationResult, error) {
	if _, err := e.queue.MarkSent(context.WithoutCancel(ctx), op.ID); err != nil {
		return nil, err
	}
	return e.transmit(ctx, op)
}

func (e *Executor) transmit(ctx context.Context, op *models.Operation) (*models.MutationResult, error) {
	switch op.Kind {
	case models.KindCreate:
		return e.remote.Create(ctx, op)
	case models.KindUpdate:
		return e.remote.Update(ctx, op)
	case models.KindDelete:
		return e.remote.Delete(ctx, op)
	default:
		return nil, syncerr.Permanent("transmit", 0, fmt.Errorf("unknown operation kind %q", op.Kind))
	}
}

// apply применяет решение под блокировкой сущности и сообщает слушателям
func (e *Executor) apply(ctx context.Context, op *models.Operation, records []*models.ConflictRecord, server *models.EntityState, res conflict.Resolution) (*conflict.Outcome, error) {
	unlock := e.locks.Lock(op.EntityID)
	out, err := e.resolver.Apply(context.WithoutCancel(ctx), op, records, server, res)
	unlock()
	if err != nil {
		return nil, syncerr.Storage("resolve", err)
	}

	e.notify(ConflictEvent{Operation: op, Server: server, Records: records, Resolution: res})
	return out, nil
}

// complete записывает ответ сервера. Сервер уже применил мутацию, поэтому отмена ctx не прерывает запись.
func (e *Executor) complete(ctx context.Context, op *models.Operation, result *models.MutationResult) error {
	unlock := e.locks.Lock(op.EntityID)
	err := e.store.CompleteOperation(context.WithoutCancel(ctx), op, result, e.queue.Now())
	unlock()
	if err != nil {
		return syncerr.Storage("complete", err)
	}
	e.markFresh(op, result.Seq)
	return nil
}

func (e *Executor) markFresh(op *models.Operation, seq int64) {
	if e.fresh != nil && seq > 0 && op.ScopeID != "" {
		e.fresh.MarkFresh(op.ScopeID, op.EntityID, seq)
	}
}

// fail применяет политику повторов к ошибке отправки или проверки
func (e *Executor) fail(ctx context.Context, op *models.Operation, cause error) (outcome, error) {
	wctx := context.WithoutCancel(ctx)

	switch {
	case errors.Is(cause, syncerr.ErrSessionExpired):
		if _, err := e.queue.Release(wctx, op.ID, cause); err != nil {
			return outcomeExpired, err
		}
		e.metrics.RecordTransmit(op.Kind, "expired")
		e.logger.Warn("Session expired, drain stopped", "op_id", op.ID)
		if e.onExpired != nil {
			e.onExpired()
		}
		return outcomeExpired, nil

	case errors.Is(cause, syncerr.ErrPermanentRejection):
		if _, err := e.queue.Reject(wctx, op.ID, cause); err != nil {
			return outcomeFailed, err
		}
		e.metrics.RecordTransmit(op.Kind, "failed")
		e.logger.Warn("Operation rejected by server",
			"op_id", op.ID,
			"entity_id", op.EntityID,
			"status", syncerr.StatusOf(cause),
			"code", syncerr.CodeOf(cause),
			"error", cause)
		return outcomeFailed, nil

	case errors.Is(cause, syncerr.ErrStorageUnavailable):
		return e.abort(ctx, op, cause)

	case ctx.Err() != nil:
		// Проход отменен: попытка не засчитывается
		if _, err := e.queue.Release(wctx, op.ID, nil); err != nil {
			return outcomeReleased, err
		}
		return outcomeReleased, nil
	}

	updated, err := e.queue.RecordFailure(wctx, op.ID, cause)
	if err != nil {
		return outcomeRetry, err
	}
	if updated.Status == models.StatusFailed {
		e.metrics.RecordTransmit(op.Kind, "failed")
		return outcomeFailed, nil
	}
	e.metrics.RecordTransmit(op.Kind, "retry")
	return outcomeRetry, nil
}

// abort возвращает операцию в pending, если хранилище еще отвечает, и прерывает проход
func (e *Executor) abort(ctx context.Context, op *models.Operation, cause error) (outcome, error) {
	if _, err := e.queue.Release(context.WithoutCancel(ctx), op.ID, nil); err != nil {
		e.logger.Error("Failed to release operation", "op_id", op.ID, "error", err)
	}
	return outcomeReleased, cause
}

func (e *Executor) notify(ev ConflictEvent) {
	e.mu.Lock()
	listeners := append([]ConflictListener(nil), e.listeners...)
	e.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func (e *Executor) updateQueueMetrics(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	counts, err := e.queue.Counts(context.WithoutCancel(ctx))
	if err != nil {
		e.logger.Warn("Failed to count operations", "error", err)
		return
	}
	e.metrics.SetQueue(counts)
}

func copySet(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
