package v2

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/observability/metrics"
	"github.com/camruler/camruler/internal/video"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 8 << 20
	peerSendBuffer = 2
)

// Reasons a pushed frame is dropped.
const (
	rejectNoPushSource = "no_push_source"
	rejectRateLimited  = "rate_limited"
	rejectInvalid      = "invalid_jpeg"
	rejectText         = "text_message"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the session cookie is SameSite=Lax and CORS is configured on the
	// server; the stream carries no session state
	CheckOrigin: func(r *http.Request) bool { return true },
}

type peer struct {
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	receive bool
}

// frameHub fans live frames out to websocket peers.
type frameHub struct {
	mu      sync.Mutex
	peers   map[*peer]struct{}
	rate    float64
	metrics *metrics.VideoMetrics
	log     logger.Logger
}

func newFrameHub(ingestRate float64, m *metrics.VideoMetrics, log logger.Logger) *frameHub {
	return &frameHub{
		peers:   make(map[*peer]struct{}),
		rate:    ingestRate,
		metrics: m,
		log:     log.Module("stream"),
	}
}

func (h *frameHub) newLimiter() *rate.Limiter {
	if h.rate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := max(int(h.rate), 1)
	return rate.NewLimiter(rate.Limit(h.rate), burst)
}

func (h *frameHub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	h.setPeers(n)
}

func (h *frameHub) remove(p *peer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
	n := len(h.peers)
	h.mu.Unlock()
	h.setPeers(n)
}

func (h *frameHub) setPeers(n int) {
	if h.metrics != nil {
		h.metrics.WebsocketPeers.Set(float64(n))
	}
}

// Len returns the number of connected peers.
func (h *frameHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Broadcast queues f for every receiving peer. Peers that are behind skip
// the frame.
func (h *frameHub) Broadcast(f video.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.peers) == 0 {
		return
	}
	data := slices.Clone(f.Data)
	for p := range h.peers {
		if !p.receive {
			continue
		}
		select {
		case p.send <- data:
		default:
		}
	}
}

// Close disconnects all peers.
func (h *frameHub) Close() {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = p.conn.Close()
	}
}

func (h *frameHub) reject(reason string) {
	if h.metrics != nil {
		h.metrics.RejectedFrames.WithLabelValues(reason).Inc()
	}
}

// HandleFrameStream handles GET /api/v2/frames/ws
//
// Binary messages are JPEG frames pushed into the live slot, limited per
// connection. Unless receive=false, the connection also gets every live
// frame as a binary message.
func (c *Controller) HandleFrameStream(ctx echo.Context) error {
	receive := true
	if v := ctx.QueryParam("receive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.HandleError(ctx, err, "Parameter 'receive' must be a boolean", http.StatusBadRequest)
		}
		receive = b
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		c.log.Warn("websocket upgrade failed", logger.Error(err), logger.String("ip", ctx.RealIP()))
		return nil
	}

	p := &peer{
		conn:    conn,
		send:    make(chan []byte, peerSendBuffer),
		limiter: c.hub.newLimiter(),
		receive: receive,
	}
	c.hub.add(p)
	c.log.Debug("stream peer connected", logger.String("ip", ctx.RealIP()), logger.Bool("receive", receive))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(p)
	}()
	c.readPump(p)
	c.hub.remove(p)
	<-done
	_ = conn.Close()
	c.log.Debug("stream peer disconnected", logger.String("ip", ctx.RealIP()))
	return nil
}

func (c *Controller) readPump(p *peer) {
	p.conn.SetReadLimit(maxFrameBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("stream read error", logger.Error(err))
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch {
		case kind != websocket.BinaryMessage:
			c.hub.reject(rejectText)
		case c.push == nil:
			c.hub.reject(rejectNoPushSource)
		case !p.limiter.Allow():
			c.hub.reject(rejectRateLimited)
		default:
			if _, err := c.push.Ingest(data); err != nil {
				c.hub.reject(rejectInvalid)
			}
		}
	}
}

// writePump exits when the hub closes p.send or a write fails. A failed
// write closes the connection so readPump returns too.
func (c *Controller) writePump(p *peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				_ = p.conn.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = p.conn.Close()
				return
			}
		}
	}
}

func (c *Controller) videoMetrics() *metrics.VideoMetrics {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Video
}
