package server

import (
	"context"
	"time"
)

// Run 启动 Hub 的工作循环（单协程处理全部事件），ctx 取消后返回
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.shutdown()

	var statsC <-chan time.Time
	if h.statsInterval > 0 {
		ticker := time.NewTicker(h.statsInterval)
		defer ticker.Stop()
		statsC = ticker.C
	}

	for {
		// 核心循环：事件 → 状态变更 → 扇出
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.handle(ev)
		case fn := <-h.commands:
			fn()
		case <-statsC:
			h.log.Debugw("relay stats", "online", h.store.Count(), "metrics", h.metrics.Snapshot())
		}
	}
}
