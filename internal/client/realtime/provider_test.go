package realtime

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/client/storage"
	"github.com/iudanet/stocksync/internal/client/storage/boltdb"
	"github.com/iudanet/stocksync/internal/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *boltdb.Storage {
	t.Helper()
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "realtime.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func item(id string, version, seq int64, name string) *models.EntityState {
	return &models.EntityState{
		ID:        id,
		Type:      models.EntityTypeInventoryItem,
		ScopeID:   "p1",
		Data:      models.Fields{"name": name},
		Version:   version,
		Seq:       seq,
		UpdatedAt: t0,
	}
}

// pushStub выдает управляемый канал на каждую подписку
type pushStub struct {
	mock   *SubscriberMock
	events chan models.ChangeEvent
	ctxs   []context.Context
	mu     sync.Mutex
}

func newPushStub() *pushStub {
	s := &pushStub{events: make(chan models.ChangeEvent, 16)}
	s.mock = &SubscriberMock{
		SubscribeFunc: func(ctx context.Context, scopeID string) <-chan models.ChangeEvent {
			s.mu.Lock()
			s.ctxs = append(s.ctxs, ctx)
			s.mu.Unlock()
			return s.events
		},
	}
	return s
}

func (s *pushStub) ctx(i int) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxs[i]
}

func staticLister(states []*models.EntityState, asOf int64) *ScopeListerMock {
	return &ScopeListerMock{
		ListScopeFunc: func(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error) {
			return states, asOf, nil
		},
	}
}

func newTestProvider(t *testing.T, push *pushStub, lister *ScopeListerMock, store *boltdb.Storage) *Provider {
	t.Helper()
	p := NewProvider(push.mock, lister, store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return t0 }
	return p
}

func TestProvider_LeaseRefCount(t *testing.T) {
	push := newPushStub()
	p := newTestProvider(t, push, staticLister(nil, 0), testStore(t))

	a := p.Register("p1")
	b := p.Register("p1")
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, push.mock.SubscribeCalls(), 1)

	lease, ok := p.Lease("p1")
	require.True(t, ok)
	assert.Equal(t, 2, lease.RefCount)

	a.Release()
	lease, ok = p.Lease("p1")
	require.True(t, ok)
	assert.Equal(t, 1, lease.RefCount)
	assert.NoError(t, push.ctx(0).Err(), "subscription must stay open while B holds a lease")

	// Повторное освобождение не уменьшает счетчик чужой регистрации
	a.Release()
	p.Release(a)
	lease, _ = p.Lease("p1")
	assert.Equal(t, 1, lease.RefCount)

	b.Release()
	_, ok = p.Lease("p1")
	assert.False(t, ok)
	assert.ErrorIs(t, push.ctx(0).Err(), context.Canceled)
	assert.Empty(t, p.Leases())

	// Новая регистрация открывает новую подписку
	c := p.Register("p1")
	defer c.Release()
	assert.Len(t, push.mock.SubscribeCalls(), 2)
	assert.Len(t, p.Leases(), 1)
}

func TestProvider_ForgetsIdleScopes(t *testing.T) {
	ctx := context.Background()
	push := newPushStub()
	p := newTestProvider(t, push, staticLister(nil, 7), testStore(t))

	// Refresh без регистрации не оставляет состояния
	_, err := p.Refresh(ctx, "p1")
	require.NoError(t, err)
	p.MarkFresh("p2", "i1", 3)
	p.mu.Lock()
	assert.Empty(t, p.scopes)
	p.mu.Unlock()

	lease := p.Register("p1")
	p.MarkFresh("p1", "i1", 9)
	_, err = p.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Baseline("p1"))

	lease.Release()
	p.mu.Lock()
	assert.Empty(t, p.scopes)
	p.mu.Unlock()
	assert.Zero(t, p.Baseline("p1"))
}

func TestProvider_RefreshPreventsResurrection(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	require.NoError(t, store.PutEntries(ctx, []*models.CacheEntry{
		models.NewCacheEntry(item("i1", 1, 3, "bolt"), t0),
		models.NewCacheEntry(item("i2", 1, 4, "nut"), t0),
	}))

	// i2 удален на сервере изменением 8, снимок сделан на изменении 10
	push := newPushStub()
	lister := staticLister([]*models.EntityState{item("i1", 2, 9, "bolt v2")}, 10)
	p := newTestProvider(t, push, lister, store)

	lease := p.Register("p1")
	defer lease.Release()

	result, err := p.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, int64(10), p.Baseline("p1"))

	var applied []models.ChangeEvent
	var mu sync.Mutex
	p.OnChange(func(ev models.ChangeEvent) {
		mu.Lock()
		applied = append(applied, ev)
		mu.Unlock()
	})

	// Запоздавшее изменение, вычисленное до удаления
	push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "i2", Kind: models.ChangeUpdate, Seq: 7, Entity: item("i2", 2, 7, "nut v2")}
	// Новое изменение после снимка
	push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "i3", Kind: models.ChangeInsert, Seq: 11, Entity: item("i3", 1, 11, "washer")}

	require.Eventually(t, func() bool {
		_, err := store.GetEntry(ctx, "i3")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	_, err = store.GetEntry(ctx, "i2")
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, applied, 1)
	assert.Equal(t, "i3", applied[0].EntityID)
}

func TestProvider_ConcurrentRefreshAndDelete(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	require.NoError(t, store.PutEntries(ctx, []*models.CacheEntry{
		models.NewCacheEntry(item("i2", 1, 4, "nut"), t0),
	}))

	push := newPushStub()
	p := newTestProvider(t, push, staticLister(nil, 12), store)
	lease := p.Register("p1")
	defer lease.Release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Refresh(ctx, "p1")
		assert.NoError(t, err)
	}()
	push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "i2", Kind: models.ChangeDelete, Seq: 12}
	wg.Wait()

	// При любом порядке сущность остается удаленной
	require.Eventually(t, func() bool {
		return len(push.events) == 0
	}, time.Second, 10*time.Millisecond)
	_, err := store.GetEntry(ctx, "i2")
	assert.ErrorIs(t, err, storage.ErrEntryNotFound)
}

// ownWriteDuringList возвращает снимок asOf, а до возврата подтверждает собственную операцию op,
// как это делает executor: CompleteOperation, затем MarkFresh
func ownWriteDuringList(t *testing.T, p **Provider, store *boltdb.Storage, op *models.Operation, result *models.MutationResult, states []*models.EntityState, asOf int64) *ScopeListerMock {
	return &ScopeListerMock{
		ListScopeFunc: func(ctx context.Context, scopeID string) ([]*models.EntityState, int64, error) {
			require.NoError(t, store.CompleteOperation(ctx, op, result, t0))
			(*p).MarkFresh(op.ScopeID, op.EntityID, result.Seq)
			return states, asOf, nil
		},
	}
}

func TestProvider_RefreshDuringOwnWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("delete", func(t *testing.T) {
		store := testStore(t)
		require.NoError(t, store.PutEntries(ctx, []*models.CacheEntry{
			models.NewCacheEntry(item("x", 1, 10, "bolt"), t0),
		}))
		op := models.NewOperation(models.KindDelete, models.EntityTypeInventoryItem, "x", "p1", nil, t0)
		op.BaseVersion = 1
		require.NoError(t, store.CommitOperation(ctx, op))

		push := newPushStub()
		var p *Provider
		lister := ownWriteDuringList(t, &p, store, op, &models.MutationResult{Deleted: true, Seq: 11},
			[]*models.EntityState{item("x", 1, 10, "bolt")}, 10)
		p = newTestProvider(t, push, lister, store)
		lease := p.Register("p1")
		defer lease.Release()

		_, err := p.Refresh(ctx, "p1")
		require.NoError(t, err)

		// Push удаления отбрасывается водяным знаком, сущность все равно должна остаться удаленной
		push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "x", Kind: models.ChangeDelete, Seq: 11}
		require.Eventually(t, func() bool {
			return len(push.events) == 0
		}, time.Second, 10*time.Millisecond)

		_, err = store.GetEntry(ctx, "x")
		assert.ErrorIs(t, err, storage.ErrEntryNotFound)
	})

	t.Run("create", func(t *testing.T) {
		store := testStore(t)
		op := models.NewOperation(models.KindCreate, models.EntityTypeInventoryItem, "x", "p1", models.Fields{"name": "bolt"}, t0)
		require.NoError(t, store.CommitOperation(ctx, op))

		push := newPushStub()
		var p *Provider
		lister := ownWriteDuringList(t, &p, store, op, &models.MutationResult{State: item("x", 1, 11, "bolt"), Seq: 11}, nil, 10)
		p = newTestProvider(t, push, lister, store)

		result, err := p.Refresh(ctx, "p1")
		require.NoError(t, err)
		assert.Zero(t, result.Removed)

		entry, err := store.GetEntry(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(11), entry.Seq)
	})

	t.Run("update", func(t *testing.T) {
		store := testStore(t)
		require.NoError(t, store.PutEntries(ctx, []*models.CacheEntry{
			models.NewCacheEntry(item("x", 1, 10, "bolt"), t0),
		}))
		op := models.NewOperation(models.KindUpdate, models.EntityTypeInventoryItem, "x", "p1", models.Fields{"name": "bolt v2"}, t0)
		op.BaseVersion = 1
		require.NoError(t, store.CommitOperation(ctx, op))

		push := newPushStub()
		var p *Provider
		lister := ownWriteDuringList(t, &p, store, op, &models.MutationResult{State: item("x", 2, 11, "bolt v2"), Seq: 11},
			[]*models.EntityState{item("x", 1, 10, "bolt")}, 10)
		p = newTestProvider(t, push, lister, store)

		_, err := p.Refresh(ctx, "p1")
		require.NoError(t, err)

		entry, err := store.GetEntry(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(2), entry.Version)
		assert.Equal(t, "bolt v2", entry.Data["name"])
	})
}

func TestProvider_MarkFreshDropsOlderDiffs(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	require.NoError(t, store.PutEntries(ctx, []*models.CacheEntry{
		models.NewCacheEntry(item("i1", 3, 20, "own write"), t0),
	}))

	push := newPushStub()
	p := newTestProvider(t, push, staticLister(nil, 0), store)
	lease := p.Register("p1")
	defer lease.Release()
	p.MarkFresh("p1", "i1", 20)

	push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "i1", Kind: models.ChangeDelete, Seq: 15}
	push.events <- models.ChangeEvent{ScopeID: "p1", EntityID: "i1", Kind: models.ChangeUpdate, Seq: 21, Entity: item("i1", 4, 21, "theirs")}

	require.Eventually(t, func() bool {
		entry, err := store.GetEntry(ctx, "i1")
		return err == nil && entry.Version == 4
	}, time.Second, 10*time.Millisecond)
}

func TestProvider_ResyncTriggersRefresh(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	push := newPushStub()
	lister := staticLister([]*models.EntityState{item("i1", 1, 5, "bolt")}, 5)
	p := newTestProvider(t, push, lister, store)

	resyncs := make(chan int64, 1)
	p.OnChange(func(ev models.ChangeEvent) {
		if ev.Kind == models.ChangeResync {
			resyncs <- ev.Seq
		}
	})

	lease := p.Register("p1")
	defer lease.Release()

	push.events <- models.ChangeEvent{ScopeID: "p1", Kind: models.ChangeResync}

	select {
	case seq := <-resyncs:
		assert.Equal(t, int64(5), seq)
	case <-time.After(time.Second):
		t.Fatal("resync did not refresh the scope")
	}

	assert.Len(t, lister.ListScopeCalls(), 1)
	assert.Equal(t, int64(5), p.Baseline("p1"))
	entry, err := store.GetEntry(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "bolt", entry.Data["name"])

	snapshot, ok := p.Lease("p1")
	require.True(t, ok)
	assert.Equal(t, t0, snapshot.LastRefreshAt)
}
