package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jananikolasekar/hut8-janani/internal/market"
	"github.com/jananikolasekar/hut8-janani/internal/profitability"
)

const writeWait = 10 * time.Second

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"` // "market", "report" or "error"
	Data interface{} `json:"data"`
}

func errorMessage(err error) Message {
	return Message{Type: "error", Data: errorResponse{Detail: err.Error()}}
}

// streamClient is one subscriber. rig is nil until the client sends one.
// frames bounds how often the client may trigger a fetch; nil is unlimited.
type streamClient struct {
	conn    *websocket.Conn
	frames  *rate.Limiter
	writeMu sync.Mutex

	mu  sync.Mutex
	rig *profitability.Request
}

func (c *streamClient) setRig(req profitability.Request) {
	c.mu.Lock()
	c.rig = &req
	c.mu.Unlock()
}

func (c *streamClient) currentRig() (profitability.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rig == nil {
		return profitability.Request{}, false
	}
	return *c.rig, true
}

func (c *streamClient) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// StreamHub pushes a fresh market snapshot to every client on each tick,
// followed by a report for clients that subscribed a rig. Every tick
// fetches the feeds again.
type StreamHub struct {
	market       market.Source
	calculator   *profitability.Calculator
	interval     time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger

	clients   map[*streamClient]struct{}
	clientsMu sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// NewStreamHub creates a hub ticking every interval
func NewStreamHub(src market.Source, calc *profitability.Calculator, interval, fetchTimeout time.Duration, logger *zap.Logger) *StreamHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHub{
		market:       src,
		calculator:   calc,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		clients:      make(map[*streamClient]struct{}),
		done:         make(chan struct{}),
	}
}

// Run ticks until Stop is called
func (h *StreamHub) Run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			// Close all connections on shutdown
			h.clientsMu.Lock()
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			h.clientsMu.Unlock()
			return

		case <-ticker.C:
			clients := h.snapshotClients()
			if len(clients) == 0 {
				continue
			}

			snapshot, err := h.fetch()
			for _, c := range clients {
				h.push(c, snapshot, err)
			}
		}
	}
}

// Stop stops the hub and disconnects every client
func (h *StreamHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Count returns the number of connected clients
func (h *StreamHub) Count() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *StreamHub) register(conn *websocket.Conn, frames *rate.Limiter) *streamClient {
	c := &streamClient{conn: conn, frames: frames}

	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Debug("websocket client connected", zap.Int("clients", n))
	return c
}

func (h *StreamHub) unregister(c *streamClient) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.conn.Close()
	}
	n := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Debug("websocket client disconnected", zap.Int("clients", n))
}

func (h *StreamHub) snapshotClients() []*streamClient {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *StreamHub) fetch() (profitability.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.fetchTimeout)
	defer cancel()
	return h.market.Snapshot(ctx)
}

// update fetches and pushes to a single client outside the tick
func (h *StreamHub) update(c *streamClient) {
	snapshot, err := h.fetch()
	h.push(c, snapshot, err)
}

func (h *StreamHub) push(c *streamClient, snapshot profitability.MarketSnapshot, fetchErr error) {
	for _, msg := range h.messagesFor(c, snapshot, fetchErr) {
		if err := c.send(msg); err != nil {
			h.logger.Debug("websocket write error", zap.Error(err))
			h.unregister(c)
			return
		}
	}
}

func (h *StreamHub) messagesFor(c *streamClient, snapshot profitability.MarketSnapshot, fetchErr error) []Message {
	if fetchErr != nil {
		return []Message{errorMessage(fetchErr)}
	}

	msgs := []Message{{Type: "market", Data: snapshot}}
	if rig, ok := c.currentRig(); ok {
		report, err := h.calculator.Compute(rig, snapshot)
		if err != nil {
			msgs = append(msgs, errorMessage(err))
		} else {
			msgs = append(msgs, Message{Type: "report", Data: report.Rounded()})
		}
	}
	return msgs
}

// newUpgrader enforces same-origin unless CORS origins are configured
func newUpgrader(origins []string) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(origins) == 0 {
		return u
	}

	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
	return u
}

// handleStream upgrades to a websocket receiving periodic market updates.
// Each text frame the client sends is a /calculate body; a valid one
// subscribes the connection to reports for that rig. Frames above the
// per-minute request limit get an error frame and trigger no fetch.
// GET /ws
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxRequestBytes)

	client := s.hub.register(conn, newRequestLimiter(s.cfg.Server.RateLimitPerMinute))
	defer s.hub.unregister(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if client.frames != nil && !client.frames.Allow() {
			if client.send(errorMessage(errRateLimited)) != nil {
				return
			}
			continue
		}

		req, err := decodeCalculateRequest(bytes.NewReader(data))
		if err != nil {
			if client.send(errorMessage(err)) != nil {
				return
			}
			continue
		}

		client.setRig(req)
		s.hub.update(client)
	}
}
