package server

// PlayerID 连接标识，同时作为玩家状态的键（连接存活期间唯一）
type PlayerID string

// PlayerState 玩家的共享状态，既用于内存存储也直接作为广播载荷
type PlayerState struct {
	ID    PlayerID `json:"id"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	FlipX bool     `json:"flipX"`
}

// Sender 出站发送端：Enqueue 非阻塞，队列满时丢弃并返回 false
type Sender interface {
	Enqueue(b []byte) bool
	Close()
}

// Player 存储中的条目：状态 + 所属连接的发送端
type Player struct {
	State PlayerState
	Conn  Sender
}

// applyPose 覆盖位置与朝向。
// 注意：客户端提交的坐标不做任何物理校验，原样信任。
func (s *PlayerState) applyPose(p Pose) {
	s.X = p.X
	s.Y = p.Y
	s.FlipX = p.FlipX
}
