package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 线上事件名（入站与出站共用同一套名字，playerDashed / chatMessage 双向复用）
const (
	EvtConnected          = "connected"
	EvtCurrentPlayers     = "currentPlayers"
	EvtNewPlayer          = "newPlayer"
	EvtUpdateOnlineCount  = "updateOnlineCount"
	EvtPlayerMovement     = "playerMovement"
	EvtPlayerMoved        = "playerMoved"
	EvtPlayerDashed       = "playerDashed"
	EvtChatMessage        = "chatMessage"
	EvtGetPlayers         = "getPlayers"
	EvtPlayerDisconnected = "playerDisconnected"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Envelope 每个 WebSocket 文本帧的结构
// 示例：{"event":"playerMovement","data":{"x":120,"y":80,"flipX":true}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventKind Hub 工作协程处理的事件类别
type EventKind int

const (
	EventConnect EventKind = iota
	EventDisconnect
	EventMovement
	EventDash
	EventChat
	EventGetPlayers
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventMovement:
		return "movement"
	case EventDash:
		return "dash"
	case EventChat:
		return "chat"
	case EventGetPlayers:
		return "getPlayers"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Pose 移动 / 冲刺的入站载荷
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	FlipX bool    `json:"flipX"`
}

// Event 入站事件（带标签的联合体），Kind 决定哪些字段有效
type Event struct {
	Kind     EventKind
	PlayerID PlayerID
	Conn     Sender          // 仅 EventConnect
	Pose     Pose            // EventMovement / EventDash
	Chat     json.RawMessage // EventChat，原样转发
}

// connectedOut 握手帧：告诉新连接它自己的标识
type connectedOut struct {
	ID PlayerID `json:"id"`
}

// chatOut 出站聊天载荷
type chatOut struct {
	PlayerID PlayerID        `json:"playerId"`
	Message  json.RawMessage `json:"message"`
}

// DecodeEvent 将一帧客户端消息解析为事件
func DecodeEvent(id PlayerID, raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	ev := Event{PlayerID: id}
	switch env.Event {
	case EvtPlayerMovement, EvtPlayerDashed:
		ev.Kind = EventMovement
		if env.Event == EvtPlayerDashed {
			ev.Kind = EventDash
		}
		// 缺失字段按零值处理，不做校验
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &ev.Pose); err != nil {
				return Event{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Event, err)
			}
		}
	case EvtChatMessage:
		ev.Kind = EventChat
		ev.Chat = env.Data
		if len(ev.Chat) == 0 {
			ev.Chat = json.RawMessage("null")
		}
	case EvtGetPlayers:
		ev.Kind = EventGetPlayers
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return ev, nil
}

// EncodeFrame 编码一条出站帧。不做 HTML 转义，聊天内容原样转发（JSON 记号间的空白会被压缩）。
func EncodeFrame(event string, data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	frame := struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data}
	if err := enc.Encode(frame); err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
