package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// ClientConn 一个 WebSocket 连接：读协程把消息转成事件交给 Hub，写协程负责发送与心跳
type ClientConn struct {
	id   PlayerID
	ws   *websocket.Conn
	send chan []byte

	pingInterval time.Duration
	readTimeout  time.Duration
	readLimit    int64

	closeOnce sync.Once
}

func NewClientConn(id PlayerID, ws *websocket.Conn, cfg Config) *ClientConn {
	limit := cfg.MaxMessageBytes
	if limit <= 0 {
		limit = 1 << 20 // 1MB
	}
	return &ClientConn{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, cfg.SendQueueSize),
		pingInterval: cfg.PingInterval,
		readTimeout:  cfg.ReadTimeout(),
		readLimit:    limit,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）。
// 只由 Hub 工作协程调用，与 Close 不会并发。
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性直接丢弃，不对慢连接施加背压
		return false
	}
}

// Close 关闭发送队列，写协程发出 close 帧后关闭底层连接；可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logWriteError(c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logWriteError(c.id, err)
				return
			}
		}
	}
}

// readPump 读取客户端消息并转换为事件。
// 退出（对端关闭、超时、协议错误）时总是提交一次断开事件。
func (c *ClientConn) readPump(hub *Hub) {
	defer func() {
		_ = c.ws.Close()
		if err := hub.Disconnect(context.Background(), c.id, c); err != nil && !errors.Is(err, ErrHubClosed) {
			Log.Warnw("submit disconnect failed", "player", c.id, "err", err)
		}
	}()

	c.ws.SetReadLimit(c.readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			logReadError(c.id, err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.readTimeout))

		ev, err := DecodeEvent(c.id, payload)
		if err != nil {
			hub.metrics.IncMalformedFrames()
			Log.Debugw("dropping frame", "player", c.id, "err", err)
			continue
		}
		if err := hub.Submit(context.Background(), ev); err != nil {
			return
		}
	}
}

func logReadError(id PlayerID, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		Log.Warnw("frame exceeded read limit", "player", id)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		Log.Debugw("client closed connection", "player", id, "err", err)
	default:
		Log.Infow("connection read ended", "player", id, "err", err)
	}
}

func logWriteError(id PlayerID, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	Log.Debugw("connection write failed", "player", id, "err", err)
}

// newUpgrader 只提供 WebSocket 一种传输，允许所有来源
func newUpgrader(cfg Config) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	if cfg.SubProtocol != "" {
		u.Subprotocols = []string{cfg.SubProtocol}
	}
	return u
}

// HandleWS WebSocket 接入：分配连接标识，登记到 Hub 后启动读写协程
func (a *App) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		Log.Warnw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := PlayerID(uuid.NewString())
	client := NewClientConn(id, ws, a.cfg)

	// 接入事件必须先于该连接的任何消息事件入队
	if err := a.hub.Connect(context.Background(), id, client); err != nil {
		Log.Warnw("hub rejected connection", "player", id, "err", err)
		_ = ws.Close()
		return
	}

	go client.writePump()
	go client.readPump(a.hub)
}
