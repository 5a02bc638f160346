package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/playout"
)

var testUpdate = playout.TimelineUpdate{
	StudioID:              "studio-a",
	PlaylistID:            "evening",
	ActivationID:          "act-1",
	CurrentPartInstanceID: "pi-1",
	NextPartInstanceID:    "pi-2",
	Lookahead:             lookahead.Result{},
	GeneratedAt:           1000,
}

// newTestClient registers a connection-less client following every
// playlist on channels.
func newTestClient(h *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:  h,
		send: make(chan []byte, 8),
		subs: make(map[string]map[string]struct{}),
	}
	if len(channels) > 0 {
		c.subscribe(WSSubscribePayload{Channels: channels})
	}
	h.Register(c)
	return c
}

func readEvent(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return WSMessage{}
	}
}

func TestHub_PublishTimelineRoutesByChannel(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	hub := srv.hub

	rundownView := newTestClient(hub, ChannelPlaylistUpdated)
	deviceView := newTestClient(hub, ChannelLookaheadUpdated)
	idle := newTestClient(hub)

	require.NoError(t, hub.PublishTimeline(context.Background(), testUpdate))

	msg := readEvent(t, rundownView)
	assert.Equal(t, WSTypeEvent, msg.Type)
	assert.Equal(t, ChannelPlaylistUpdated, msg.EventType)
	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pi-1", payload["currentPartInstanceId"])
	assert.NotContains(t, payload, "lookahead")

	msg = readEvent(t, deviceView)
	assert.Equal(t, ChannelLookaheadUpdated, msg.EventType)
	payload, ok = msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "evening", payload["playlistId"])
	assert.Contains(t, payload, "lookahead")

	assert.Empty(t, idle.send)
	assert.Empty(t, rundownView.send, "one event per channel")
	assert.Equal(t, 3, hub.ClientCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	c := newTestClient(srv.hub, ChannelPlaylistUpdated)

	srv.hub.Unregister(c)
	srv.hub.Unregister(c)
	assert.Equal(t, 0, srv.hub.ClientCount())

	// Broadcasting after removal must not panic on the closed channel.
	c.trySend([]byte("late"))
}

func TestHub_PlaylistFilter(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	hub := srv.hub

	evening := newTestClient(hub)
	evening.subscribe(WSSubscribePayload{Channels: []string{ChannelPlaylistUpdated}, PlaylistIDs: []string{"evening"}})
	morning := newTestClient(hub)
	morning.subscribe(WSSubscribePayload{Channels: []string{ChannelPlaylistUpdated}, PlaylistIDs: []string{"morning"}})

	require.NoError(t, hub.PublishTimeline(context.Background(), testUpdate))

	msg := readEvent(t, evening)
	assert.Equal(t, ChannelPlaylistUpdated, msg.EventType)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Empty(t, morning.send)

	evening.unsubscribe([]string{ChannelPlaylistUpdated})
	require.NoError(t, hub.PublishTimeline(context.Background(), testUpdate))
	assert.Empty(t, evening.send)
}

func TestHub_SnapshotOnSubscribe(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	hub := srv.hub

	later := testUpdate
	later.PlaylistID = "late-news"
	later.CurrentPartInstanceID = "pi-9"
	require.NoError(t, hub.PublishTimeline(context.Background(), later))
	require.NoError(t, hub.PublishTimeline(context.Background(), testUpdate))

	c := newTestClient(hub, ChannelPlaylistUpdated)
	hub.snapshot(c)

	first := readEvent(t, c).Payload.(map[string]any)
	second := readEvent(t, c).Payload.(map[string]any)
	assert.Equal(t, "evening", first["playlistId"])
	assert.Equal(t, "late-news", second["playlistId"])
	assert.Equal(t, "pi-9", second["currentPartInstanceId"])
	assert.Empty(t, c.send)
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	if query != "" {
		u += "?" + query
	}
	return u
}

func subscribe(t *testing.T, conn *websocket.Conn, channels ...string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: channels},
	}))

	var resp WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, WSTypeResponse, resp.Type)
	require.Equal(t, "sub-1", resp.ID)
}

func TestWebSocket_ReceivesTimeline(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	subscribe(t, conn, ChannelPlaylistUpdated)
	require.NoError(t, srv.hub.PublishTimeline(context.Background(), testUpdate))

	var event WSMessage
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, ChannelPlaylistUpdated, event.EventType)

	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pi-2", payload["nextPartInstanceId"])
}

func TestWebSocket_SubscribeReplaysState(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	require.NoError(t, srv.hub.PublishTimeline(context.Background(), testUpdate))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	subscribe(t, conn, ChannelPlaylistUpdated)

	var event WSMessage
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, ChannelPlaylistUpdated, event.EventType)
	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pi-1", payload["currentPartInstanceId"])
}

func TestWebSocket_UnknownChannel(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-x",
		Payload: WSSubscribePayload{Channels: []string{"device.state"}},
	}))
	var resp WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, WSTypeError, resp.Type)
	assert.Equal(t, "sub-x", resp.ID)

	payload, ok := resp.Payload.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload["message"], "device.state")
}

func TestWebSocket_Ping(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}))
	var resp WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, WSTypePong, resp.Type)
	assert.Equal(t, "p1", resp.ID)
}

func TestWebSocket_TicketAuth(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, withAuth)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := IssueToken(srv.secCfg.JWT, "director", time.Now())
	require.NoError(t, err)
	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/auth/ws-ticket", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Ticket)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "ticket="+body.Ticket), nil)
	require.NoError(t, err)
	conn.Close()

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts, "ticket="+body.Ticket), nil)
	require.Error(t, err, "tickets are single-use")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTicketStore_Expiry(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()

	ticket := ts.issue("director", now)
	_, ok := ts.consume(ticket, now.Add(2*ticketTTL))
	assert.False(t, ok, "expired")

	stale := ts.issue("director", now)
	ts.clean(now.Add(2 * ticketTTL))
	_, ok = ts.consume(stale, now)
	assert.False(t, ok, "cleaned")

	fresh := ts.issue("director", now)
	entry, ok := ts.consume(fresh, now)
	assert.True(t, ok)
	assert.Equal(t, "director", entry.subject)
}

func TestTicketStore_Cap(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()
	for range maxPendingTickets {
		require.NotEmpty(t, ts.issue("director", now))
	}
	assert.Empty(t, ts.issue("director", now), "store full of live tickets")
	assert.NotEmpty(t, ts.issue("director", now.Add(2*ticketTTL)), "expired tickets make room")
}
