// Package realtime keeps one push subscription per scope shared by all interested
// consumers and merges push diffs into the local cache.
//
// Every scope has a merge baseline: the change sequence of the last full refresh.
// Diffs at or below the baseline were computed against an older snapshot and are
// dropped, so a late diff can never resurrect an entity the refresh removed.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/stocksync/internal/client/lock"
	"github.com/iudanet/stocksync/internal/client/metrics"
	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/models"
)

//go:generate moq -out mocks_test.go . Subscriber ScopeLister

// Subscriber открывает push поток области
type Subscriber interface {
	Subscribe(ctx context.Context, scopeID string) <-chan models.ChangeEvent
}

// ScopeLister получает полный снимок области с сервера
type ScopeLister interface {
	ListScope(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error)
}

// Store часть локального хранилища, которую меняет provider
type Store interface {
	ReplaceScope(ctx context.Context, scopeID string, states []*models.EntityState, asOfSeq int64, syncedAt time.Time) (*storage.ReplaceResult, error)
	ApplyRemote(ctx context.Context, change *models.ChangeEvent, syncedAt time.Time) (bool, error)
}

// Listener получает изменения, примененные к кэшу
type Listener func(ev models.ChangeEvent)

// Lease регистрация интереса к области. Release можно вызывать повторно.
type Lease struct {
	provider *Provider
	id       string
	scopeID  string
	once     sync.Once
}

// ID возвращает идентификатор регистрации
func (l *Lease) ID() string {
	return l.id
}

// ScopeID возвращает область регистрации
func (l *Lease) ScopeID() string {
	return l.scopeID
}

// Release освобождает регистрацию
func (l *Lease) Release() {
	l.once.Do(func() {
		l.provider.release(l)
	})
}

// scope состояние одной области
type scope struct {
	lease      models.SubscriptionLease
	cancel     context.CancelFunc
	done       chan struct{}
	holders    map[string]bool
	watermarks map[string]int64 // последний известный Seq сущности после собственной записи
	refreshing int              // число выполняющихся Refresh без регистрации
	mu         sync.Mutex       // сериализует refresh и merge области
}

// Provider реестр подписок на области
type Provider struct {
	push      Subscriber
	remote    ScopeLister
	store     Store
	locks     *lock.Keyed
	metrics   *metrics.Sync
	logger    *slog.Logger
	now       func() time.Time
	scopes    map[string]*scope
	listeners []Listener
	mu        sync.Mutex
}

// NewProvider создает provider
func NewProvider(push Subscriber, remote ScopeLister, store Store, locks *lock.Keyed, logger *slog.Logger) *Provider {
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Provider{
		push:   push,
		remote: remote,
		store:  store,
		locks:  locks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		scopes: make(map[string]*scope),
	}
}

// SetMetrics подключает коллекторы prometheus
func (p *Provider) SetMetrics(m *metrics.Sync) {
	p.metrics = m
}

// OnChange добавляет слушателя примененных изменений.
// Слушатели вызываются из задачи merge и не должны вызывать Refresh.
func (p *Provider) OnChange(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Register регистрирует интерес к области. Первая регистрация открывает push поток,
// последующие только увеличивают счетчик.
func (p *Provider) Register(scopeID string) *Lease {
	p.mu.Lock()
	defer p.mu.Unlock()

	sc := p.scopeLocked(scopeID)
	l := &Lease{provider: p, id: uuid.New().String(), scopeID: scopeID}
	sc.holders[l.id] = true
	sc.lease.RefCount++

	if sc.lease.RefCount == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		sc.cancel = cancel
		sc.done = make(chan struct{})
		sc.lease.CreatedAt = p.now()
		events := p.push.Subscribe(ctx, scopeID)
		go p.mergeLoop(ctx, scopeID, sc, events, sc.done)
		p.logger.Info("Realtime subscription opened", "scope_id", scopeID)
	}

	p.logger.Debug("Lease registered", "scope_id", scopeID, "lease_id", l.id, "ref_count", sc.lease.RefCount)
	return l
}

// Release освобождает регистрацию, эквивалентно lease.Release()
func (p *Provider) Release(l *Lease) {
	l.Release()
}

func (p *Provider) release(l *Lease) {
	p.mu.Lock()
	sc, ok := p.scopes[l.scopeID]
	if !ok || !sc.holders[l.id] {
		p.mu.Unlock()
		p.logger.Warn("Release of unknown lease", "scope_id", l.scopeID, "lease_id", l.id)
		return
	}
	delete(sc.holders, l.id)
	sc.lease.RefCount--

	if sc.lease.RefCount > 0 {
		p.mu.Unlock()
		p.logger.Debug("Lease released", "scope_id", l.scopeID, "ref_count", sc.lease.RefCount)
		return
	}

	cancel, done := sc.cancel, sc.done
	sc.cancel, sc.done = nil, nil
	p.mu.Unlock()

	// Последняя регистрация: закрываем поток и ждем завершения merge
	cancel()
	<-done

	p.mu.Lock()
	p.pruneLocked(l.scopeID, sc)
	p.mu.Unlock()
	p.logger.Info("Realtime subscription closed", "scope_id", l.scopeID)
}

// Lease возвращает снимок счетчика области
func (p *Provider) Lease(scopeID string) (models.SubscriptionLease, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sc, ok := p.scopes[scopeID]
	if !ok || sc.lease.RefCount == 0 {
		return models.SubscriptionLease{}, false
	}
	return sc.lease, true
}

// Leases возвращает снимки всех активных областей
func (p *Provider) Leases() []models.SubscriptionLease {
	p.mu.Lock()
	defer p.mu.Unlock()
	leases := make([]models.SubscriptionLease, 0, len(p.scopes))
	for _, sc := range p.scopes {
		if sc.lease.RefCount > 0 {
			leases = append(leases, sc.lease)
		}
	}
	return leases
}

// Refresh перечитывает область целиком и устанавливает новый baseline.
// Возвращается только после того, как снимок записан в кэш.
func (p *Provider) Refresh(ctx context.Context, scopeID string) (*storage.ReplaceResult, error) {
	p.mu.Lock()
	sc := p.scopeLocked(scopeID)
	sc.refreshing++
	p.mu.Unlock()

	sc.mu.Lock()
	result, err := p.refreshLocked(ctx, scopeID, sc)
	sc.mu.Unlock()

	p.mu.Lock()
	sc.refreshing--
	p.pruneLocked(scopeID, sc)
	p.mu.Unlock()
	return result, err
}

func (p *Provider) refreshLocked(ctx context.Context, scopeID string, sc *scope) (*storage.ReplaceResult, error) {
	states, asOf, err := p.remote.ListScope(ctx, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scope %s: %w", scopeID, err)
	}

	now := p.now()
	result, err := p.store.ReplaceScope(ctx, scopeID, states, asOf, now)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if asOf > sc.lease.Baseline {
		sc.lease.Baseline = asOf
	}
	sc.lease.LastRefreshAt = now
	// Водяные знаки ниже нового baseline больше не нужны
	for id, seq := range sc.watermarks {
		if seq <= asOf {
			delete(sc.watermarks, id)
		}
	}
	p.mu.Unlock()

	p.metrics.RecordRefresh()
	p.logger.Info("Scope refreshed",
		"scope_id", scopeID,
		"as_of_seq", asOf,
		"written", result.Written,
		"removed", result.Removed,
		"kept", result.Kept,
		"buried", result.Buried)
	p.notify(models.ChangeEvent{ScopeID: scopeID, Kind: models.ChangeResync, Seq: asOf})
	return result, nil
}

// MarkFresh сообщает, что кэш сущности уже содержит изменение seq, полученное
// в ответе на собственную запись. Более старые push изменения этой сущности отбрасываются.
// Без активной подписки отметка не нужна: новая подписка начинается с resync.
func (p *Provider) MarkFresh(scopeID, entityID string, seq int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sc, ok := p.scopes[scopeID]
	if !ok || sc.lease.RefCount == 0 {
		return
	}
	if seq > sc.watermarks[entityID] {
		sc.watermarks[entityID] = seq
	}
}

// Baseline возвращает номер изменения последнего refresh области
func (p *Provider) Baseline(scopeID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sc, ok := p.scopes[scopeID]; ok {
		return sc.lease.Baseline
	}
	return 0
}

// mergeLoop единственная задача, применяющая изменения области
func (p *Provider) mergeLoop(ctx context.Context, scopeID string, sc *scope, events <-chan models.ChangeEvent, done chan struct{}) {
	defer close(done)

	for {
		var ev models.ChangeEvent
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			ev = e
		}

		if ev.Kind == models.ChangeResync {
			// Поток мог пропустить изменения, перечитываем область
			sc.mu.Lock()
			_, err := p.refreshLocked(ctx, scopeID, sc)
			sc.mu.Unlock()
			if err != nil && ctx.Err() == nil {
				p.logger.Warn("Resync refresh failed", "scope_id", scopeID, "error", err)
			}
			continue
		}
		if err := p.merge(ctx, sc, ev); err != nil {
			p.logger.Error("Failed to merge push change",
				"scope_id", scopeID,
				"entity_id", ev.EntityID,
				"seq", ev.Seq,
				"error", err)
		}
	}
}

// merge применяет одно изменение, если оно новее baseline и водяного знака сущности
func (p *Provider) merge(ctx context.Context, sc *scope, ev models.ChangeEvent) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	entityID := ev.EntityID
	if entityID == "" && ev.Entity != nil {
		entityID = ev.Entity.ID
	}

	p.mu.Lock()
	baseline := sc.lease.Baseline
	watermark := sc.watermarks[entityID]
	p.mu.Unlock()

	if ev.Seq <= baseline || ev.Seq <= watermark {
		p.logger.Debug("Stale push change dropped",
			"entity_id", entityID,
			"seq", ev.Seq,
			"baseline", baseline,
			"watermark", watermark)
		p.metrics.RecordPushChange(ev.Kind, false)
		return nil
	}

	unlock := p.locks.Lock(entityID)
	applied, err := p.store.ApplyRemote(ctx, &ev, p.now())
	unlock()
	if err != nil {
		return err
	}
	p.metrics.RecordPushChange(ev.Kind, applied)
	if applied {
		p.notify(ev)
	}
	return nil
}

func (p *Provider) notify(ev models.ChangeEvent) {
	p.mu.Lock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

// pruneLocked забывает область без регистраций и выполняющихся Refresh. Вызывается под p.mu.
func (p *Provider) pruneLocked(scopeID string, sc *scope) {
	if sc.lease.RefCount > 0 || sc.refreshing > 0 || p.scopes[scopeID] != sc {
		return
	}
	delete(p.scopes, scopeID)
}

// scopeLocked возвращает состояние области, создавая его при необходимости. Вызывается под p.mu.
func (p *Provider) scopeLocked(scopeID string) *scope {
	sc, ok := p.scopes[scopeID]
	if !ok {
		sc = &scope{
			lease:      models.SubscriptionLease{ScopeID: scopeID},
			holders:    make(map[string]bool),
			watermarks: make(map[string]int64),
		}
		p.scopes[scopeID] = sc
	}
	return sc
}
