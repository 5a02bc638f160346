package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/logging"
	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/playout"
)

// Message types on the WebSocket.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Event channels.
const (
	ChannelPlaylistUpdated  = "playlist.updated"
	ChannelLookaheadUpdated = "lookahead.updated"
)

var channels = []string{ChannelPlaylistUpdated, ChannelLookaheadUpdated}

const (
	wsSendBuffer         = 64
	defaultWSPing        = 30 * time.Second
	defaultWSPongTimeout = 10 * time.Second
	defaultWSMaxMessage  = 8192
)

// PlaylistEvent is the payload of playlist.updated: which part instances
// are previous, current and next after a job committed.
type PlaylistEvent struct {
	StudioID               string `json:"studioId"`
	PlaylistID             string `json:"playlistId"`
	ActivationID           string `json:"activationId,omitempty"`
	Rehearsal              bool   `json:"rehearsal"`
	CurrentPartInstanceID  string `json:"currentPartInstanceId,omitempty"`
	NextPartInstanceID     string `json:"nextPartInstanceId,omitempty"`
	PreviousPartInstanceID string `json:"previousPartInstanceId,omitempty"`
	GeneratedAt            int64  `json:"generatedAt"`
}

// LookaheadEvent is the payload of lookahead.updated.
type LookaheadEvent struct {
	StudioID   string           `json:"studioId"`
	PlaylistID string           `json:"playlistId"`
	Lookahead  lookahead.Result `json:"lookahead"`
}

// WSMessage is the envelope of every server-to-client message.
type WSMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	EventType string    `json:"event_type,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Payload   any       `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels and, optionally, the playlists of
// interest. No playlist ids means every playlist.
type WSSubscribePayload struct {
	Channels    []string `json:"channels"`
	PlaylistIDs []string `json:"playlistIds,omitempty"`
}

type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans committed timeline updates out to WebSocket clients. It keeps
// the last playlist event per playlist so a view that subscribes mid-show
// starts from the current on-air state.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	lastMu sync.Mutex
	last   map[string]PlaylistEvent
}

var _ playout.TimelineSink = (*Hub)(nil)

// WSClient is one WebSocket connection.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	subject string // token subject; empty when auth is disabled

	mu sync.RWMutex
	// channel -> playlist filter; a nil filter matches every playlist.
	subs map[string]map[string]struct{}
}

func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
		last:    make(map[string]PlaylistEvent),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

// Unregister removes c. Only the call that removes it closes its send
// channel, so concurrent shutdown paths cannot double-close.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "clients", n, "subject", c.subject)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishTimeline implements playout.TimelineSink. The on-air selection
// and the lookahead go out on separate channels so a rundown view need
// not receive lookahead payloads.
func (h *Hub) PublishTimeline(_ context.Context, u playout.TimelineUpdate) error {
	ev := PlaylistEvent{
		StudioID:               u.StudioID,
		PlaylistID:             u.PlaylistID,
		ActivationID:           u.ActivationID,
		Rehearsal:              u.Rehearsal,
		CurrentPartInstanceID:  u.CurrentPartInstanceID,
		NextPartInstanceID:     u.NextPartInstanceID,
		PreviousPartInstanceID: u.PreviousPartInstanceID,
		GeneratedAt:            u.GeneratedAt,
	}
	h.lastMu.Lock()
	h.last[u.PlaylistID] = ev
	h.lastMu.Unlock()

	h.broadcast(ChannelPlaylistUpdated, u.PlaylistID, ev)
	h.broadcast(ChannelLookaheadUpdated, u.PlaylistID, LookaheadEvent{
		StudioID:   u.StudioID,
		PlaylistID: u.PlaylistID,
		Lookahead:  u.Lookahead,
	})
	return nil
}

func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func (h *Hub) broadcast(channel, playlistID string, payload any) {
	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.wants(channel, playlistID) && c.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "playlist_id", playlistID, "recipients", sent)
	}
}

// snapshot sends c the last known state of every playlist it now follows.
func (h *Hub) snapshot(c *WSClient) {
	h.lastMu.Lock()
	events := make([]PlaylistEvent, 0, len(h.last))
	for _, ev := range h.last {
		events = append(events, ev)
	}
	h.lastMu.Unlock()

	slices.SortFunc(events, func(a, b PlaylistEvent) int {
		switch {
		case a.PlaylistID < b.PlaylistID:
			return -1
		case a.PlaylistID > b.PlaylistID:
			return 1
		}
		return 0
	})
	for _, ev := range events {
		if !c.wants(ChannelPlaylistUpdated, ev.PlaylistID) {
			continue
		}
		if data, err := eventMessage(ChannelPlaylistUpdated, ev); err == nil {
			c.trySend(data)
		}
	}
}

// handleWebSocket upgrades the connection. With auth enabled a single-use
// ticket from POST /auth/ws-ticket must be passed as ?ticket=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeInternalError(w, "websocket hub not running")
		return
	}

	var subject string
	if s.cfg.AuthEnabled {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.consume(ticket, time.Now())
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = entry.subject
	}

	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBuffer),
		subject: subject,
		subs:    make(map[string]map[string]struct{}),
	}
	s.hub.Register(c)

	t := newWSTiming(s.wsCfg)
	go c.writePump(t)
	go c.readPump(t)
}

type wsTiming struct {
	ping, pongWait time.Duration
	maxMessage     int64
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	t := wsTiming{
		ping:       time.Duration(cfg.PingInterval) * time.Second,
		pongWait:   time.Duration(cfg.PongTimeout) * time.Second,
		maxMessage: int64(cfg.MaxMessageSize),
	}
	if t.ping <= 0 {
		t.ping = defaultWSPing
	}
	if t.pongWait <= 0 {
		t.pongWait = defaultWSPongTimeout
	}
	if t.maxMessage <= 0 {
		t.maxMessage = defaultWSMaxMessage
	}
	return t
}

func (c *WSClient) readPump(t wsTiming) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.ping + t.pongWait)) }
	c.conn.SetReadLimit(t.maxMessage)
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err, "subject", c.subject)
			}
			return
		}
		// Browsers do not always answer protocol pings; any message counts.
		_ = extend()
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(t wsTiming) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Channels) == 0 {
			c.reply(req.ID, WSTypeError, map[string]string{"message": "payload.channels is required"})
			return
		}
		for _, ch := range p.Channels {
			if !slices.Contains(channels, ch) {
				c.reply(req.ID, WSTypeError, map[string]any{"message": "unknown channel " + ch, "channels": channels})
				return
			}
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(p)
			c.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": p.Channels})
			if slices.Contains(p.Channels, ChannelPlaylistUpdated) {
				c.hub.snapshot(c)
			}
		} else {
			c.unsubscribe(p.Channels)
			c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": p.Channels})
		}
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type " + req.Type})
	}
}

// subscribe replaces the playlist filter of each named channel.
func (c *WSClient) subscribe(p WSSubscribePayload) {
	var filter map[string]struct{}
	if len(p.PlaylistIDs) > 0 {
		filter = make(map[string]struct{}, len(p.PlaylistIDs))
		for _, id := range p.PlaylistIDs {
			filter[id] = struct{}{}
		}
	}
	c.mu.Lock()
	for _, ch := range p.Channels {
		c.subs[ch] = filter
	}
	c.mu.Unlock()
}

func (c *WSClient) unsubscribe(chs []string) {
	c.mu.Lock()
	for _, ch := range chs {
		delete(c.subs, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) wants(channel, playlistID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filter, ok := c.subs[channel]
	if !ok {
		return false
	}
	if filter == nil {
		return true
	}
	_, ok = filter[playlistID]
	return ok
}

// trySend queues data without blocking. It reports false when the client
// is slow (buffer full) or already unregistered (channel closed).
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err == nil {
		c.trySend(data)
	}
}
