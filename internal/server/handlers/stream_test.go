package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/stocksync/internal/models"
	"github.com/iudanet/stocksync/internal/server/push"
	"github.com/iudanet/stocksync/internal/server/storage"
	"github.com/iudanet/stocksync/internal/server/storage/sqlite"
	"github.com/iudanet/stocksync/pkg/api"
)

func streamServer(t *testing.T, store *sqlite.Storage, hub *push.Hub) *httptest.Server {
	t.Helper()
	stream := NewStreamHandler(setupTestLogger(), store, hub)
	stream.pingPeriod = 50 * time.Millisecond

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/scopes/{scope}/stream", stream.Stream)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialStream(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readChange(t *testing.T, conn *websocket.Conn) api.ChangeMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg api.ChangeMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamHandler_DeliversPublishedChanges(t *testing.T) {
	store := setupTestStore(t)
	hub := push.NewHub(8, setupTestLogger())
	srv := streamServer(t, store, hub)

	conn := dialStream(t, srv, "/api/v1/scopes/p1/stream")
	require.Eventually(t, func() bool { return hub.Subscribers("p1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(models.ChangeEvent{
		ScopeID:  "p1",
		EntityID: "i1",
		Kind:     models.ChangeInsert,
		Seq:      7,
		Entity:   &models.EntityState{ID: "i1", ScopeID: "p1", Version: 1, Seq: 7, Data: models.Fields{"name": "bolt"}},
	})
	hub.Publish(models.ChangeEvent{ScopeID: "p2", EntityID: "x", Kind: models.ChangeDelete, Seq: 8})
	hub.Publish(models.ChangeEvent{ScopeID: "p1", EntityID: "i1", Kind: models.ChangeDelete, Seq: 9})

	msg := readChange(t, conn)
	assert.Equal(t, "insert", msg.Kind)
	assert.Equal(t, int64(7), msg.Seq)
	require.NotNil(t, msg.Entity)
	assert.Equal(t, "bolt", msg.Entity.Data["name"])

	msg = readChange(t, conn)
	assert.Equal(t, "delete", msg.Kind)
	assert.Equal(t, int64(9), msg.Seq)
	assert.Nil(t, msg.Entity)

	// Клиент отключился - подписка снята
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("p1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandler_ReplaysBacklog(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	hub := push.NewHub(8, setupTestLogger())
	srv := streamServer(t, store, hub)

	m := storage.Mutation{At: time.Now().UTC(), UserID: "alice"}
	first, err := store.CreateEntity(ctx, m, &models.EntityState{ID: "i1", Type: models.EntityTypeInventoryItem, ScopeID: "p1", Data: models.Fields{"name": "bolt"}})
	require.NoError(t, err)
	second, err := store.CreateEntity(ctx, m, &models.EntityState{ID: "i2", Type: models.EntityTypeInventoryItem, ScopeID: "p1", Data: models.Fields{"name": "nut"}})
	require.NoError(t, err)

	conn := dialStream(t, srv, "/api/v1/scopes/p1/stream?after="+itoa(first.Seq))

	msg := readChange(t, conn)
	assert.Equal(t, second.Seq, msg.Seq)
	assert.Equal(t, "i2", msg.EntityID)

	// Изменение, уже отправленное из журнала, не дублируется
	require.Eventually(t, func() bool { return hub.Subscribers("p1") == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(models.ChangeEvent{ScopeID: "p1", EntityID: "i2", Kind: models.ChangeInsert, Seq: second.Seq})
	hub.Publish(models.ChangeEvent{ScopeID: "p1", EntityID: "i3", Kind: models.ChangeDelete, Seq: second.Seq + 1})

	msg = readChange(t, conn)
	assert.Equal(t, "i3", msg.EntityID)
}

func TestStreamHandler_RejectsBadRequests(t *testing.T) {
	srv := streamServer(t, setupTestStore(t), push.NewHub(1, setupTestLogger()))

	resp, err := http.Get(srv.URL + "/api/v1/scopes/p1/stream?after=-1")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Без websocket заголовков upgrade не выполняется
	resp, err = http.Get(srv.URL + "/api/v1/scopes/p1/stream")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
