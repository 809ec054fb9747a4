package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// startTestApp 启动 Hub 与 httptest 服务，测试结束时按顺序关闭
func startTestApp(t *testing.T, mutate func(*Config)) (*App, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StaticDir = t.TempDir()
	cfg.StatsInterval = 0
	if err := os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("<html>arena</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if mutate != nil {
		mutate(&cfg)
	}

	app := NewApp(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		app.Hub().Run(ctx)
	}()
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		cancel()
		<-hubDone
		srv.Close()
	})
	return app, srv
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   PlayerID
}

// dialClient 建立连接并读完握手帧
func dialClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket.io"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second, Subprotocols: []string{"relay.v1"}}
	conn, resp, err := dialer.Dial(url, http.Header{"Origin": {"http://elsewhere.example"}})
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{t: t, conn: conn}
	hello := c.expect(EvtConnected)
	c.id = decodeData[connectedOut](t, hello).ID
	if c.id == "" {
		t.Fatal("empty connection id")
	}
	return c
}

func (c *testClient) read() Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		c.t.Fatalf("decode frame %s: %v", b, err)
	}
	return env
}

func (c *testClient) expect(event string) Envelope {
	c.t.Helper()
	env := c.read()
	if env.Event != event {
		c.t.Fatalf("got %s (%s), want %s", env.Event, env.Data, event)
	}
	return env
}

func (c *testClient) expectCount(n int) {
	c.t.Helper()
	if got := decodeData[int](c.t, c.expect(EvtUpdateOnlineCount)); got != n {
		c.t.Fatalf("count = %d, want %d", got, n)
	}
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	frame, err := EncodeFrame(event, data)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) sendRaw(raw string) {
	c.t.Helper()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func TestThreePlayerSession(t *testing.T) {
	_, srv := startTestApp(t, nil)

	a := dialClient(t, srv)
	snap := decodeData[map[PlayerID]PlayerState](t, a.expect(EvtCurrentPlayers))
	if _, ok := snap[a.id]; !ok || len(snap) != 1 {
		t.Fatalf("A snapshot = %+v", snap)
	}
	a.expectCount(1)

	b := dialClient(t, srv)
	b.expect(EvtCurrentPlayers)
	b.expectCount(2)
	if joined := decodeData[PlayerState](t, a.expect(EvtNewPlayer)); joined.ID != b.id {
		t.Fatalf("A saw newPlayer %q, want %q", joined.ID, b.id)
	}
	a.expectCount(2)

	c := dialClient(t, srv)
	snap = decodeData[map[PlayerID]PlayerState](t, c.expect(EvtCurrentPlayers))
	if len(snap) != 3 {
		t.Fatalf("C snapshot size = %d, want 3", len(snap))
	}
	c.expectCount(3)
	for _, peer := range []*testClient{a, b} {
		peer.expect(EvtNewPlayer)
		peer.expectCount(3)
	}

	a.send(EvtPlayerMovement, Pose{X: 400, Y: 220, FlipX: true})
	for _, peer := range []*testClient{b, c} {
		moved := decodeData[PlayerState](t, peer.expect(EvtPlayerMoved))
		want := PlayerState{ID: a.id, X: 400, Y: 220, FlipX: true}
		if moved != want {
			t.Fatalf("playerMoved = %+v, want %+v", moved, want)
		}
	}
	// 同一连接的帧按序到达：A 下一帧若是快照，说明移动没有回显给 A
	a.send(EvtGetPlayers, nil)
	snap = decodeData[map[PlayerID]PlayerState](t, a.expect(EvtCurrentPlayers))
	if snap[a.id].X != 400 || !snap[a.id].FlipX {
		t.Fatalf("A state after move = %+v", snap[a.id])
	}
	for _, cl := range []*testClient{a, b, c} {
		cl.expectCount(3)
	}

	_ = c.conn.Close()
	for _, peer := range []*testClient{a, b} {
		if gone := decodeData[PlayerID](t, peer.expect(EvtPlayerDisconnected)); gone != c.id {
			t.Fatalf("playerDisconnected %q, want %q", gone, c.id)
		}
		peer.expectCount(2)
	}
}

func TestChatEchoesToSender(t *testing.T) {
	_, srv := startTestApp(t, nil)
	a := dialClient(t, srv)
	a.expect(EvtCurrentPlayers)
	a.expectCount(1)
	b := dialClient(t, srv)
	b.expect(EvtCurrentPlayers)
	b.expectCount(2)
	a.expect(EvtNewPlayer)
	a.expectCount(2)

	b.sendRaw(`{"event":"chatMessage","data":"gg <3"}`)
	for _, cl := range []*testClient{a, b} {
		env := cl.expect(EvtChatMessage)
		msg := decodeData[struct {
			PlayerID PlayerID `json:"playerId"`
			Message  string   `json:"message"`
		}](t, env)
		if msg.PlayerID != b.id || msg.Message != "gg <3" {
			t.Fatalf("chat = %+v", msg)
		}
	}
}

func TestMalformedFramesKeepConnectionOpen(t *testing.T) {
	app, srv := startTestApp(t, nil)
	a := dialClient(t, srv)
	a.expect(EvtCurrentPlayers)
	a.expectCount(1)

	a.sendRaw(`garbage`)
	a.sendRaw(`{"event":"fly","data":{}}`)
	a.send(EvtGetPlayers, nil)

	a.expect(EvtCurrentPlayers)
	a.expectCount(1)
	if got := app.Hub().Metrics().MalformedCount(); got != 2 {
		t.Fatalf("malformed = %d, want 2", got)
	}
}

func TestSubprotocolNegotiated(t *testing.T) {
	_, srv := startTestApp(t, nil)
	a := dialClient(t, srv)
	if got := a.conn.Subprotocol(); got != "relay.v1" {
		t.Fatalf("subprotocol = %q, want relay.v1", got)
	}
}

func TestSilentPeerIsDisconnected(t *testing.T) {
	_, srv := startTestApp(t, func(c *Config) {
		c.PingInterval = 50 * time.Millisecond
		c.PingTimeout = 250 * time.Millisecond
	})
	a := dialClient(t, srv)
	a.expect(EvtCurrentPlayers)
	a.expectCount(1)

	// B 读完握手帧后不再读取，因此永远不会回 pong
	b := dialClient(t, srv)
	a.expect(EvtNewPlayer)
	a.expectCount(2)

	// A 持续读取，gorilla 默认的 ping 处理会替它回 pong
	if gone := decodeData[PlayerID](t, a.expect(EvtPlayerDisconnected)); gone != b.id {
		t.Fatalf("playerDisconnected %q, want %q", gone, b.id)
	}
	a.expectCount(1)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StatsInterval = 0
	app := NewApp(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		app.Hub().Run(ctx)
	}()
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	a := dialClient(t, srv)
	a.expect(EvtCurrentPlayers)
	a.expectCount(1)

	cancel()
	<-hubDone

	_ = a.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := a.conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("read after shutdown: %v, want normal close", err)
	}
	if err := app.Hub().Connect(context.Background(), "late", &fakeSender{}); err != ErrHubClosed {
		t.Fatalf("connect after shutdown: %v, want ErrHubClosed", err)
	}
}
