package server

import (
	"sync/atomic"
)

// RelayMetrics 记录中继运行期的关键指标（Hub 协程写，HTTP 协程读）
type RelayMetrics struct {
	Online          int64 // 当前在线连接数
	Connects        int64 // 累计接入
	Disconnects     int64 // 累计断开
	DuplicateIDs    int64 // 因标识重复被拒绝的接入
	EventsHandled   int64 // 已处理的入站事件
	MissingSender   int64 // 发送者条目已不存在而被忽略的事件
	MalformedFrames int64 // 无法解析的入站帧
	FramesSent      int64 // 入队成功的出站帧
	SendDropped     int64 // 因发送队列满被丢弃的出站帧
}

func (m *RelayMetrics) SetOnline(n int)       { atomic.StoreInt64(&m.Online, int64(n)) }
func (m *RelayMetrics) IncConnects()          { atomic.AddInt64(&m.Connects, 1) }
func (m *RelayMetrics) IncDisconnects()       { atomic.AddInt64(&m.Disconnects, 1) }
func (m *RelayMetrics) IncDuplicateIDs()      { atomic.AddInt64(&m.DuplicateIDs, 1) }
func (m *RelayMetrics) IncEventsHandled()     { atomic.AddInt64(&m.EventsHandled, 1) }
func (m *RelayMetrics) IncMissingSender()     { atomic.AddInt64(&m.MissingSender, 1) }
func (m *RelayMetrics) IncMalformedFrames()   { atomic.AddInt64(&m.MalformedFrames, 1) }
func (m *RelayMetrics) IncFramesSent()        { atomic.AddInt64(&m.FramesSent, 1) }
func (m *RelayMetrics) IncSendDropped()       { atomic.AddInt64(&m.SendDropped, 1) }
func (m *RelayMetrics) OnlineCount() int64    { return atomic.LoadInt64(&m.Online) }
func (m *RelayMetrics) DroppedCount() int64   { return atomic.LoadInt64(&m.SendDropped) }
func (m *RelayMetrics) MalformedCount() int64 { return atomic.LoadInt64(&m.MalformedFrames) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RelayMetrics) Snapshot() map[string]any {
	return map[string]any{
		"online":           atomic.LoadInt64(&m.Online),
		"connects":         atomic.LoadInt64(&m.Connects),
		"disconnects":      atomic.LoadInt64(&m.Disconnects),
		"duplicate_ids":    atomic.LoadInt64(&m.DuplicateIDs),
		"events_handled":   atomic.LoadInt64(&m.EventsHandled),
		"missing_sender":   atomic.LoadInt64(&m.MissingSender),
		"malformed_frames": atomic.LoadInt64(&m.MalformedFrames),
		"frames_sent":      atomic.LoadInt64(&m.FramesSent),
		"send_dropped":     atomic.LoadInt64(&m.SendDropped),
	}
}
