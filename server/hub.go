package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrHubClosed Hub 已停止，不再接受事件
var ErrHubClosed = errors.New("hub closed")

// Hub 中继世界：玩家状态维护在内存，由单个工作协程顺序处理所有事件。
// store 只在工作协程中访问，因此不需要锁。
type Hub struct {
	store    *Store
	events   chan Event
	commands chan func()
	done     chan struct{}

	spawn         SpawnBand
	rng           *rand.Rand
	statsInterval time.Duration

	metrics *RelayMetrics
	tracer  trace.Tracer
	log     *zap.SugaredLogger
}

// NewHub 创建 Hub，初始化数据结构
func NewHub(cfg Config) *Hub {
	return newHub(cfg, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func newHub(cfg Config, rng *rand.Rand) *Hub {
	return &Hub{
		store:         NewStore(),
		events:        make(chan Event, cfg.EventQueueSize), // 足够缓冲，避免网络读阻塞
		commands:      make(chan func()),
		done:          make(chan struct{}),
		spawn:         cfg.Spawn,
		rng:           rng,
		statsInterval: cfg.StatsInterval,
		metrics:       &RelayMetrics{},
		tracer:        otel.Tracer("relayarena/server"),
		log:           Log,
	}
}

// Metrics 运行指标（可在任意协程读取）
func (h *Hub) Metrics() *RelayMetrics { return h.metrics }

// Submit 将事件放入工作队列。阻塞写入以保证同一连接的事件不丢失、不乱序。
func (h *Hub) Submit(ctx context.Context, ev Event) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect 请求在工作协程中登记一个新连接
func (h *Hub) Connect(ctx context.Context, id PlayerID, conn Sender) error {
	return h.Submit(ctx, Event{Kind: EventConnect, PlayerID: id, Conn: conn})
}

// Disconnect 请求在工作协程中移除连接（重复调用无副作用）。
// conn 非空时只有它仍是该 id 的持有者才会移除。
func (h *Hub) Disconnect(ctx context.Context, id PlayerID, conn Sender) error {
	return h.Submit(ctx, Event{Kind: EventDisconnect, PlayerID: id, Conn: conn})
}

// Do 在工作协程中执行 fn 并等待其完成（管理接口使用）
func (h *Hub) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case h.commands <- wrapped:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle 处理单个事件：接入 / 断开交给连接管理，其余交给路由
func (h *Hub) handle(ev Event) {
	h.metrics.IncEventsHandled()
	switch ev.Kind {
	case EventConnect:
		h.onConnect(ev.PlayerID, ev.Conn)
	case EventDisconnect:
		h.onDisconnect(ev.PlayerID, ev.Conn)
	default:
		h.route(ev)
	}
}

// sendTo 向单个连接发送
func (h *Hub) sendTo(id PlayerID, frame []byte) {
	if conn := h.store.sender(id); conn != nil {
		h.enqueue(conn, frame)
	}
}

// broadcast 向所有连接发送；except 非空时跳过该连接
func (h *Hub) broadcast(frame []byte, except PlayerID) {
	h.store.Each(func(id PlayerID, p *Player) {
		if except != "" && id == except {
			return
		}
		if p.Conn != nil {
			h.enqueue(p.Conn, frame)
		}
	})
}

func (h *Hub) enqueue(conn Sender, frame []byte) {
	if conn.Enqueue(frame) {
		h.metrics.IncFramesSent()
		return
	}
	h.metrics.IncSendDropped()
}

// emit 编码后按策略扇出；编码失败只记录日志
func (h *Hub) emit(event string, data any, except PlayerID) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		h.log.Errorw("encode frame failed", "event", event, "err", err)
		return
	}
	h.broadcast(frame, except)
}

func (h *Hub) emitTo(id PlayerID, event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		h.log.Errorw("encode frame failed", "event", event, "err", err)
		return
	}
	h.sendTo(id, frame)
}

// shutdown 关闭所有仍在线的连接（只在工作协程退出时调用）
func (h *Hub) shutdown() {
	n := h.store.Count()
	h.store.Each(func(_ PlayerID, p *Player) {
		if p.Conn != nil {
			p.Conn.Close()
		}
	})
	h.store = NewStore()
	h.metrics.SetOnline(0)
	h.log.Infof("hub stopped, closed %d connections", n)
}
