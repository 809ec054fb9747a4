package server

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// spawnState 随机出生点，朝向默认向右
func (h *Hub) spawnState(id PlayerID) PlayerState {
	return PlayerState{
		ID:    id,
		X:     float64(h.spawn.MinX + h.rng.IntN(h.spawn.Width)),
		Y:     float64(h.spawn.MinY + h.rng.IntN(h.spawn.Height)),
		FlipX: false,
	}
}

// onConnect 新连接：先给它完整快照，再通知其他人，最后广播在线人数。
// 顺序很重要：新连接必须在别人得知它之前拿到快照。
func (h *Hub) onConnect(id PlayerID, conn Sender) {
	_, span := h.tracer.Start(context.Background(), "relay.connect",
		trace.WithAttributes(attribute.String("relay.player_id", string(id))))
	defer span.End()

	if h.store.Has(id) {
		h.metrics.IncDuplicateIDs()
		h.log.Errorw("duplicate connection id rejected", "player", id)
		if conn != nil {
			conn.Close()
		}
		return
	}

	state := h.spawnState(id)
	h.store.Put(id, &Player{State: state, Conn: conn})
	h.metrics.IncConnects()
	h.metrics.SetOnline(h.store.Count())
	h.log.Infow("player connected", "player", id, "x", state.X, "y", state.Y, "online", h.store.Count())

	// 握手帧先于快照，客户端据此区分自己与其他玩家
	h.emitTo(id, EvtConnected, connectedOut{ID: id})
	h.emitTo(id, EvtCurrentPlayers, h.store.Snapshot())
	h.emit(EvtNewPlayer, state, id)
	h.broadcastCount()
}

// onDisconnect 移除条目并通知剩余连接；条目已不存在时为 no-op。
// conn 非空且不是当前持有者（例如被拒绝的重复接入）时同样忽略。
func (h *Hub) onDisconnect(id PlayerID, conn Sender) {
	if owner := h.store.sender(id); conn != nil && owner != nil && owner != conn {
		h.log.Debugw("disconnect from stale connection ignored", "player", id)
		return
	}
	p, ok := h.store.Remove(id)
	if !ok {
		h.log.Debugw("disconnect for unknown player ignored", "player", id)
		return
	}
	_, span := h.tracer.Start(context.Background(), "relay.disconnect",
		trace.WithAttributes(attribute.String("relay.player_id", string(id))))
	defer span.End()

	if p.Conn != nil {
		p.Conn.Close()
	}
	h.metrics.IncDisconnects()
	h.metrics.SetOnline(h.store.Count())
	h.log.Infow("player disconnected", "player", id, "online", h.store.Count())

	h.emit(EvtPlayerDisconnected, id, "")
	h.broadcastCount()
}

// broadcastCount 向所有连接广播在线人数
func (h *Hub) broadcastCount() {
	h.emit(EvtUpdateOnlineCount, h.store.Count(), "")
}
