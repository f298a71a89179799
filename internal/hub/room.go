package hub

import (
	"errors"

	"peer-rendezvous/internal/domain"
)

// ErrRoomFull 目标房间已有两名成员
var ErrRoomFull = errors.New("room is full")

// roomMember 房间内的一名成员。角色在加入那一刻确定：
// 加入空房间（即创建房间）的是 initiator，加入非空房间的是 receiver。
// 角色不随后续成员变动而改变：initiator 离开后，留下的 receiver
// 不会追溯地变成 initiator，新加入者也仍然是 receiver。
type roomMember struct {
	ID   string
	Role domain.Role
}

// RoomRegistry 把房间标识映射到按到达顺序排列的成员表（容量 2）。
// 占用数为 0 的房间立即删除，空房间从不存在；
// 只有空房间迎来新客户端时才会创建新的房间对象。
// 只允许从 Hub 的串行事件路径访问。
type RoomRegistry struct {
	rooms map[string][]roomMember
}

// NewRoomRegistry 创建空的房间注册表
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string][]roomMember)}
}

// Join 把连接加入房间，房间不存在时创建。
// 返回加入时确定的角色和加入后的占用数。
// 已是成员时原样返回当前角色与占用数；满员时返回 ErrRoomFull。
func (r *RoomRegistry) Join(roomID, connID string) (domain.Role, int, error) {
	members := r.rooms[roomID]
	for _, m := range members {
		if m.ID == connID {
			return m.Role, len(members), nil
		}
	}
	if len(members) >= domain.MaxRoomSize {
		return domain.RoleNone, len(members), ErrRoomFull
	}
	role := domain.RoleReceiver
	if len(members) == 0 {
		role = domain.RoleInitiator
	}
	members = append(members, roomMember{ID: connID, Role: role})
	r.rooms[roomID] = members
	return role, len(members), nil
}

// Leave 把连接移出房间，占用数归零时删除房间。
// 房间或成员不存在时是 no-op，不是错误。返回剩余占用数。
func (r *RoomRegistry) Leave(roomID, connID string) int {
	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	for i, m := range members {
		if m.ID == connID {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(r.rooms, roomID)
		return 0
	}
	r.rooms[roomID] = members
	return len(members)
}

// PeersOf 返回房间内除 excluding 之外的成员标识（0 或 1 个）
func (r *RoomRegistry) PeersOf(roomID, excluding string) []string {
	members := r.rooms[roomID]
	peers := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID != excluding {
			peers = append(peers, m.ID)
		}
	}
	return peers
}

// Occupancy 返回房间占用数，房间不存在时为 0
func (r *RoomRegistry) Occupancy(roomID string) int {
	return len(r.rooms[roomID])
}

// RoleOf 从注册表重新读取成员角色。occupancy 达到 2 的那一刻
// 以这里为准，而不是连接上可能过期的缓存标记。
func (r *RoomRegistry) RoleOf(roomID, connID string) domain.Role {
	for _, m := range r.rooms[roomID] {
		if m.ID == connID {
			return m.Role
		}
	}
	return domain.RoleNone
}

// Members 返回房间成员标识的到达顺序快照
func (r *RoomRegistry) Members(roomID string) []string {
	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}
