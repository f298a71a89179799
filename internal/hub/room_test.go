package hub // 白盒测试：注册表只在 Hub 的串行路径上使用

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peer-rendezvous/internal/domain"
)

func TestRoomRegistry_JoinAssignsRoles(t *testing.T) {
	r := NewRoomRegistry()

	// 第一个加入者创建房间，成为 initiator
	role, occupancy, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInitiator, role)
	assert.Equal(t, 1, occupancy)

	// 第二个加入者是 receiver，房间就绪
	role, occupancy, err = r.Join("room-1", "conn-b")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReceiver, role)
	assert.Equal(t, 2, occupancy)
}

func TestRoomRegistry_JoinIsIdempotentForMember(t *testing.T) {
	r := NewRoomRegistry()
	_, _, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)

	// 同一连接重复加入：返回已有角色，占用数不变
	role, occupancy, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleInitiator, role)
	assert.Equal(t, 1, occupancy)
}

func TestRoomRegistry_JoinFullRoomRejected(t *testing.T) {
	r := NewRoomRegistry()
	_, _, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)
	_, _, err = r.Join("room-1", "conn-b")
	require.NoError(t, err)

	_, occupancy, err := r.Join("room-1", "conn-c")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, occupancy)
	// 被拒绝的连接不是成员
	assert.Equal(t, domain.RoleNone, r.RoleOf("room-1", "conn-c"))
}

func TestRoomRegistry_RolesSurviveInitiatorLeaving(t *testing.T) {
	r := NewRoomRegistry()
	_, _, err := r.Join("room-1", "conn-a") // initiator
	require.NoError(t, err)
	_, _, err = r.Join("room-1", "conn-b") // receiver
	require.NoError(t, err)

	// initiator 离开，留下的 receiver 不会追溯地变成 initiator
	remaining := r.Leave("room-1", "conn-a")
	assert.Equal(t, 1, remaining)
	assert.Equal(t, domain.RoleReceiver, r.RoleOf("room-1", "conn-b"))

	// 新加入者加入的是非空房间，同样是 receiver
	role, occupancy, err := r.Join("room-1", "conn-c")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleReceiver, role)
	assert.Equal(t, 2, occupancy)
}

func TestRoomRegistry_LeaveRemovesEmptyRoom(t *testing.T) {
	r := NewRoomRegistry()
	_, _, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)

	remaining := r.Leave("room-1", "conn-a")
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, r.Occupancy("room-1"))
	// 房间对象已删除，而不是留下一个空成员表
	_, exists := r.rooms["room-1"]
	assert.False(t, exists)
}

func TestRoomRegistry_LeaveUnknownIsNoop(t *testing.T) {
	r := NewRoomRegistry()
	assert.Equal(t, 0, r.Leave("missing-room", "conn-a"))

	_, _, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Leave("room-1", "conn-not-a-member"))
	assert.Equal(t, 1, r.Occupancy("room-1"))
}

func TestRoomRegistry_PeersOf(t *testing.T) {
	r := NewRoomRegistry()
	_, _, err := r.Join("room-1", "conn-a")
	require.NoError(t, err)

	assert.Empty(t, r.PeersOf("room-1", "conn-a"))

	_, _, err = r.Join("room-1", "conn-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-b"}, r.PeersOf("room-1", "conn-a"))
	assert.Equal(t, []string{"conn-a"}, r.PeersOf("room-1", "conn-b"))
}

// 随机交错的加入/离开序列下，占用数从不超过 2，
// 且注册表里从不存在占用数为 0 的房间。
func TestRoomRegistry_RandomizedInterleaving(t *testing.T) {
	r := NewRoomRegistry()
	rng := rand.New(rand.NewSource(42))

	roomIDs := []string{"r1", "r2", "r3"}
	connIDs := make([]string, 12)
	for i := range connIDs {
		connIDs[i] = fmt.Sprintf("conn-%d", i)
	}
	inRoom := make(map[string]string) // connID -> roomID

	for step := 0; step < 2000; step++ {
		connID := connIDs[rng.Intn(len(connIDs))]
		if current, ok := inRoom[connID]; ok && rng.Intn(2) == 0 {
			r.Leave(current, connID)
			delete(inRoom, connID)
		} else if !ok {
			roomID := roomIDs[rng.Intn(len(roomIDs))]
			_, occupancy, err := r.Join(roomID, connID)
			if err == nil {
				inRoom[connID] = roomID
			} else {
				require.ErrorIs(t, err, ErrRoomFull)
			}
			require.LessOrEqual(t, occupancy, domain.MaxRoomSize)
		}

		for roomID, members := range r.rooms {
			require.NotEmpty(t, members, "room %s must not exist empty", roomID)
			require.LessOrEqual(t, len(members), domain.MaxRoomSize)
		}
	}
}
