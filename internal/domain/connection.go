package domain

// Role 表示连接在房间内的角色，由到达顺序决定：
// 先到者为 initiator，负责发起 WebRTC offer。
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleReceiver  Role = "receiver"
	// RoleNone 表示连接当前不在任何房间内
	RoleNone Role = ""
)

// MaxRoomSize 房间容量上限，本系统只做两两配对
const MaxRoomSize = 2
