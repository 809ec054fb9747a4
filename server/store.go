package server

// Store 玩家状态的唯一来源：连接标识 → 条目。
// 不加锁，只允许 Hub 的工作协程访问。
type Store struct {
	players map[PlayerID]*Player
}

func NewStore() *Store {
	return &Store{players: make(map[PlayerID]*Player)}
}

// Put 写入（覆盖）一个条目
func (s *Store) Put(id PlayerID, p *Player) {
	s.players[id] = p
}

// Get 返回状态副本
func (s *Store) Get(id PlayerID) (PlayerState, bool) {
	p, ok := s.players[id]
	if !ok {
		return PlayerState{}, false
	}
	return p.State, true
}

// Has 条目是否存在
func (s *Store) Has(id PlayerID) bool {
	_, ok := s.players[id]
	return ok
}

// Remove 删除条目并返回被删除的条目；不存在时返回 nil, false
func (s *Store) Remove(id PlayerID) (*Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return nil, false
	}
	delete(s.players, id)
	return p, true
}

// Mutate 对已存在的条目执行更新；条目不存在（断开后迟到的消息）时不做任何事
func (s *Store) Mutate(id PlayerID, fn func(*PlayerState)) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	fn(&p.State)
	return true
}

// Snapshot 当前全部状态的拷贝
func (s *Store) Snapshot() map[PlayerID]PlayerState {
	out := make(map[PlayerID]PlayerState, len(s.players))
	for id, p := range s.players {
		out[id] = p.State
	}
	return out
}

func (s *Store) Count() int { return len(s.players) }

// Each 遍历所有条目（用于扇出），回调中不得修改存储
func (s *Store) Each(fn func(id PlayerID, p *Player)) {
	for id, p := range s.players {
		fn(id, p)
	}
}

// sender 返回某连接的发送端
func (s *Store) sender(id PlayerID) Sender {
	if p, ok := s.players[id]; ok {
		return p.Conn
	}
	return nil
}
