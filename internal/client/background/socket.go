package background

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const writeTimeout = 2 * time.Second

// lineConn соединение, передающее сообщения строками JSON
type lineConn struct {
	conn net.Conn
	enc  *json.Encoder
	mu   sync.Mutex
}

func newLineConn(conn net.Conn) *lineConn {
	return &lineConn{conn: conn, enc: json.NewEncoder(conn)}
}

func (c *lineConn) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.enc.Encode(msg)
}

// readLines читает сообщения до закрытия соединения
func readLines(conn net.Conn, logger *slog.Logger, fn func(Message)) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			logger.Warn("Invalid bus message", "error", err)
			continue
		}
		fn(msg)
	}
}

// SocketHub шина foreground процесса на unix сокете. Сообщение от любого
// подключения доставляется локальным подписчикам и остальным подключениям.
type SocketHub struct {
	ln     net.Listener
	local  *MemoryBus
	logger *slog.Logger
	conns  map[*lineConn]struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

var _ Bus = (*SocketHub)(nil)

// ListenSocket открывает сокет path. Оставшийся от упавшего процесса файл удаляется,
// если на нем никто не слушает.
func ListenSocket(path string, logger *slog.Logger) (*SocketHub, error) {
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bus socket %s is already in use", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}

	h := &SocketHub{
		ln:     ln,
		local:  NewMemoryBus(),
		logger: logger,
		conns:  make(map[*lineConn]struct{}),
	}
	h.wg.Add(1)
	go h.acceptLoop()

	logger.Info("Background bus listening", "socket", path)
	return h, nil
}

func (h *SocketHub) acceptLoop() {
	defer h.wg.Done()
	for {
		conn, err := h.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				h.logger.Error("Bus accept failed", "error", err)
			}
			return
		}

		c := newLineConn(conn)
		h.mu.Lock()
		h.conns[c] = struct{}{}
		h.mu.Unlock()

		h.wg.Add(1)
		go h.serve(c)
	}
}

func (h *SocketHub) serve(c *lineConn) {
	defer h.wg.Done()
	defer h.drop(c)

	readLines(c.conn, h.logger, func(msg Message) {
		_ = h.local.Publish(context.Background(), msg)
		h.broadcast(msg, c)
	})
}

func (h *SocketHub) broadcast(msg Message, from *lineConn) {
	h.mu.Lock()
	conns := make([]*lineConn, 0, len(h.conns))
	for c := range h.conns {
		if c != from {
			conns = append(conns, c)
		}
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.write(msg); err != nil {
			h.logger.Debug("Bus peer write failed", "error", err)
			h.drop(c)
		}
	}
}

func (h *SocketHub) drop(c *lineConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Publish доставляет сообщение локальным подписчикам и всем подключениям
func (h *SocketHub) Publish(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	_ = h.local.Publish(ctx, msg)
	h.broadcast(msg, nil)
	return nil
}

// Subscribe подписывает на сообщения всех участников
func (h *SocketHub) Subscribe(ctx context.Context) (<-chan Message, error) {
	return h.local.Subscribe(ctx)
}

// Close закрывает сокет и все подключения
func (h *SocketHub) Close() error {
	err := h.ln.Close()

	h.mu.Lock()
	for c := range h.conns {
		_ = c.conn.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
	return err
}

// SocketClient подключение к SocketHub другого процесса
type SocketClient struct {
	conn   *lineConn
	local  *MemoryBus
	logger *slog.Logger
	done   chan struct{}
}

var _ Bus = (*SocketClient)(nil)

// DialSocket подключается к шине foreground процесса
func DialSocket(ctx context.Context, path string, logger *slog.Logger) (*SocketClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus %s: %w", path, err)
	}

	c := &SocketClient{
		conn:   newLineConn(conn),
		local:  NewMemoryBus(),
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(c.done)
		readLines(conn, logger, func(msg Message) {
			_ = c.local.Publish(context.Background(), msg)
		})
	}()
	return c, nil
}

// Publish отправляет сообщение в hub
func (c *SocketClient) Publish(ctx context.Context, msg Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	if err := c.conn.write(msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	return nil
}

// Subscribe подписывает на сообщения, пришедшие из hub
func (c *SocketClient) Subscribe(ctx context.Context) (<-chan Message, error) {
	return c.local.Subscribe(ctx)
}

// Close закрывает подключение
func (c *SocketClient) Close() error {
	err := c.conn.conn.Close()
	<-c.done
	return err
}
