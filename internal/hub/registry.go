package hub

import (
	"github.com/google/uuid"

	"peer-rendezvous/internal/domain"
)

// Connection 是连接注册表中的一个条目：传输句柄加当前房间成员关系。
// RoomID 非空时，该连接必然也出现在 RoomRegistry 对应房间的成员表里，
// 双向一致性由 Hub 的串行事件路径维护。
type Connection struct {
	ID     string
	Client *Client
	RoomID string
	Role   domain.Role
}

// ConnectionRegistry 把连接标识映射到存活的传输句柄和房间成员关系。
// 只允许从 Hub 的串行事件路径访问，因此无需加锁。
type ConnectionRegistry struct {
	conns map[string]*Connection
}

// NewConnectionRegistry 创建空的连接注册表
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*Connection)}
}

// Register 为连接分配全新的唯一标识并登记，分配永远成功
func (r *ConnectionRegistry) Register(client *Client) *Connection {
	conn := &Connection{
		ID:     uuid.NewString(),
		Client: client,
	}
	r.conns[conn.ID] = conn
	return conn
}

// Lookup 按标识查找连接，不存在时返回 nil
func (r *ConnectionRegistry) Lookup(id string) *Connection {
	return r.conns[id]
}

// Remove 删除条目。房间成员关系的清理是调用方（Hub）的责任。
func (r *ConnectionRegistry) Remove(id string) {
	delete(r.conns, id)
}

// Len 返回当前登记的连接数
func (r *ConnectionRegistry) Len() int {
	return len(r.conns)
}

// All 返回所有条目的快照，供清扫器遍历（遍历期间可能触发删除）
func (r *ConnectionRegistry) All() []*Connection {
	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}
