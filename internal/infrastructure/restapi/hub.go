package restapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// snapshotMessage is the only frame the hub sends.
type snapshotMessage struct {
	Type    string                    `json:"type"`
	Payload *entity.PortfolioSnapshot `json:"payload"`
	Error   string                    `json:"error,omitempty"`
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes every published portfolio snapshot to connected WebSocket
// clients. A new client gets the current snapshot right away.
type Hub struct {
	portfolio port.PortfolioService
	logger    *zap.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a hub fed by the portfolio service.
func NewHub(portfolio port.PortfolioService, logger *zap.Logger) *Hub {
	return &Hub{
		portfolio: portfolio,
		logger:    logger,
		clients:   make(map[*wsClient]struct{}),
	}
}

// Run forwards snapshots until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	snaps, cancel := h.portfolio.Subscribe()
	defer cancel()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			h.broadcast(snap)
		}
	}
}

func (h *Hub) encode(snap *entity.PortfolioSnapshot) ([]byte, error) {
	return json.Marshal(snapshotMessage{Type: "snapshot", Payload: snap, Error: h.portfolio.LastError()})
}

func (h *Hub) broadcast(snap *entity.PortfolioSnapshot) {
	msg, err := h.encode(snap)
	if err != nil {
		h.logger.Error("ws: failed to encode snapshot", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("ws: dropping snapshot for slow client")
		}
	}
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS handles GET /ws.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	// первый снапшот кладём до регистрации: после неё канал может закрыть shutdown
	if snap := h.portfolio.Snapshot(); snap != nil {
		if msg, err := h.encode(snap); err == nil {
			client.send <- msg
		}
	}
	if !h.register(client) {
		conn.Close()
		return
	}
	h.logger.Debug("ws: client connected", zap.Int("total_clients", h.ClientCount()))

	go client.writePump()
	go client.readPump()
}

// readPump only keeps the connection alive; clients send nothing useful.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws: unexpected close", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
