package server

// route 按入站事件类型映射到一次状态操作和一种扇出策略：
//
//	movement   覆盖 x/y/flipX → playerMoved   除发送者外所有人
//	dash       覆盖 x/y/flipX → playerDashed  除发送者外所有人
//	chat       无状态变更     → chatMessage   所有人（含发送者）
//	getPlayers 无状态变更     → currentPlayers 给请求者，updateOnlineCount 给所有人
//
// 发送者条目不存在时（断开后迟到的消息）静默忽略，不产生任何出站消息。
func (h *Hub) route(ev Event) {
	if !h.store.Has(ev.PlayerID) {
		h.metrics.IncMissingSender()
		h.log.Debugw("event from unknown player dropped", "player", ev.PlayerID, "kind", ev.Kind)
		return
	}

	switch ev.Kind {
	case EventMovement:
		h.relayPose(ev, EvtPlayerMoved)
	case EventDash:
		// 冲刺位移由客户端计算，服务端只做转发，不校验距离与冷却
		h.relayPose(ev, EvtPlayerDashed)
	case EventChat:
		h.emit(EvtChatMessage, chatOut{PlayerID: ev.PlayerID, Message: ev.Chat}, "")
	case EventGetPlayers:
		h.emitTo(ev.PlayerID, EvtCurrentPlayers, h.store.Snapshot())
		h.broadcastCount()
	default:
		h.log.Warnw("unroutable event", "player", ev.PlayerID, "kind", ev.Kind)
	}
}

func (h *Hub) relayPose(ev Event, out string) {
	var state PlayerState
	ok := h.store.Mutate(ev.PlayerID, func(s *PlayerState) {
		s.applyPose(ev.Pose)
		state = *s
	})
	if !ok {
		return
	}
	h.emit(out, state, ev.PlayerID)
}
