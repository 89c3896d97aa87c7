package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	"lenslink/pkg/utils"
)

// Config tunes connection handling
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string
	RequirePairing bool

	// MessagesPerSecond of zero disables the per-connection limit
	MessagesPerSecond float64
	Burst             int

	ICEServers []webrtc.ICEServer
}

func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     64,
		MaxMessageSize: 512 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

// Observer receives hub events, typically the metrics collector
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageReceived(msgType string)
	RelayDelivered(kind string)
	RelayDropped(kind string)
	SlowClientDropped()
}

type noopObserver struct{}

func (noopObserver) ConnectionOpened()      {}
func (noopObserver) ConnectionClosed()      {}
func (noopObserver) MessageReceived(string) {}
func (noopObserver) RelayDelivered(string)  {}
func (noopObserver) RelayDropped(string)    {}
func (noopObserver) SlowClientDropped()     {}

// Hub owns every websocket connection. It relays signaling between
// connections, handles pairing and fans out state changes.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	registry ports.DeviceRegistry
	pairs    ports.PairingStore
	history  ports.HistoryStore
	scans    ports.ScanService
	observer Observer

	clients map[domain.ConnectionID]*client
	mu      sync.RWMutex

	// background follow-ups, cancelled on Shutdown
	baseCtx context.Context
	cancel  context.CancelFunc
	tasks   sync.WaitGroup
	// taskMu orders tasks.Add against Shutdown
	taskMu  sync.Mutex
	closing bool

	logger *zap.SugaredLogger
}

func NewHub(cfg Config, registry ports.DeviceRegistry, pairs ports.PairingStore, history ports.HistoryStore, logger *zap.SugaredLogger) *Hub {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg,
		registry: registry,
		pairs:    pairs,
		history:  history,
		observer: noopObserver{},
		clients:  make(map[domain.ConnectionID]*client),
		baseCtx:  ctx,
		cancel:   cancel,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	registry.OnChange(h.broadcastDeviceList)
	return h
}

var _ ports.Broadcaster = (*Hub)(nil)

// SetScanService wires the follow-up flow. The scan service itself
// broadcasts through the hub, so it is created after it.
func (h *Hub) SetScanService(scans ports.ScanService) {
	h.scans = scans
}

func (h *Hub) SetObserver(observer Observer) {
	if observer != nil {
		h.observer = observer
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warnw("rejected websocket origin", "origin", origin)
	return false
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes. Messages from one connection are handled in order.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	var limiter *rate.Limiter
	if h.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.Burst)
	}

	c := newClient(domain.ConnectionID(utils.GenerateConnectionID()), conn, h.cfg.SendBuffer, limiter)

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.observer.ConnectionOpened()

	h.logger.Infow("client connected", "connection_id", c.id, "remote_addr", r.RemoteAddr)

	go c.writePump(h.cfg.PingInterval, h.cfg.WriteTimeout)
	h.SendTo(c.id, domain.OutboundMessage{
		Type:    domain.MsgConnected,
		Payload: ConnectedPayload{ConnectionID: c.id},
	})

	h.readPump(c)
	h.unregister(c)
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) && !c.closed() {
				h.logger.Infow("error reading message from client", "connection_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))

		if !c.allow() {
			h.SendTo(c.id, domain.ErrorMessage("rate limit exceeded"))
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.SendTo(c.id, domain.ErrorMessage("invalid message: "+err.Error()))
			continue
		}

		if err := h.handleMessage(h.baseCtx, c.id, msg); err != nil {
			h.logger.Infow("error handling message from client",
				"connection_id", c.id,
				"type", msg.Type,
				"error", err,
			)
			h.SendTo(c.id, domain.ErrorMessage(err.Error()))
		}
	}
}

func (h *Hub) unregister(c *client) {
	c.close()

	h.mu.Lock()
	_, existed := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if !existed {
		return
	}

	h.observer.ConnectionClosed()
	h.registry.Remove(c.id)
	h.logger.Infow("client disconnected", "connection_id", c.id)
}

// Broadcast delivers msg to every open connection
func (h *Hub) Broadcast(msg domain.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("failed to encode broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		if !c.enqueue(data) && !c.closed() {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// SendTo delivers msg to one connection. It reports false when the
// connection is unknown, closed or too slow to keep up.
func (h *Hub) SendTo(connID domain.ConnectionID, msg domain.OutboundMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("failed to encode message", "type", msg.Type, "error", err)
		return false
	}

	h.mu.RLock()
	c, exists := h.clients[connID]
	h.mu.RUnlock()

	if !exists {
		return false
	}
	if !c.enqueue(data) {
		if !c.closed() {
			h.dropSlow([]*client{c})
		}
		return false
	}
	return true
}

// SendToStable delivers msg to every live connection registered under
// stableID and returns how many received it.
func (h *Hub) SendToStable(stableID domain.StableID, msg domain.OutboundMessage) int {
	delivered := 0
	for _, device := range h.registry.FindByStableID(stableID) {
		if h.SendTo(device.ConnectionID, msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) dropSlow(slow []*client) {
	for _, c := range slow {
		h.logger.Warnw("send queue full, closing connection", "connection_id", c.id)
		h.observer.SlowClientDropped()
		c.close()
	}
}

// broadcastDeviceList runs under the registry lock, so snapshots are queued in
// mutation order.
func (h *Hub) broadcastDeviceList(devices []domain.Device) {
	h.Broadcast(domain.OutboundMessage{Type: domain.MsgDeviceList, Payload: devices})
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ErrShuttingDown is returned for work submitted after Shutdown started
var ErrShuttingDown = errors.New("hub is shutting down")

// Go runs fn in the background under the hub's lifetime. Once Shutdown has
// started no new work is accepted.
func (h *Hub) Go(fn func(ctx context.Context)) error {
	h.taskMu.Lock()
	defer h.taskMu.Unlock()
	if h.closing {
		return ErrShuttingDown
	}

	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()
		fn(h.baseCtx)
	}()
	return nil
}

// Shutdown closes every connection and waits for background work
func (h *Hub) Shutdown(ctx context.Context) error {
	h.taskMu.Lock()
	h.closing = true
	h.cancel()
	h.taskMu.Unlock()

	h.mu.RLock()
	for _, c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
	h.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		h.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
