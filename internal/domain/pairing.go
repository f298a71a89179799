package domain

import "time"

// PushMeta 某一侧设备的推送投递信息（可选）
type PushMeta struct {
	Token    string
	Platform string
}

// Pending 表示一条待接受的配对邀请。
// 过期时间总是由服务端时钟计算得出，绝不接受调用方提供的绝对时间戳。
type Pending struct {
	JoinID        string    `gorm:"primaryKey;size:191;column:join_id"`
	Client1       string    `gorm:"size:191;not null;index:idx_pendings_client1"` // 创建者
	Client2       *string   `gorm:"size:191;index:idx_pendings_client2"`          // 接受者，未接受时为 NULL
	RoomID        *string   `gorm:"size:191"`                                     // 接受后生成的房间 ID
	ExpiresAt     time.Time `gorm:"not null;index:idx_pendings_expires_at"`
	PushToken1    *string   `gorm:"size:255"`
	PushPlatform1 *string   `gorm:"size:32"`
	PushToken2    *string   `gorm:"size:255"`
	PushPlatform2 *string   `gorm:"size:32"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Pending) TableName() string {
	return "pendings"
}

// Accepted 判断该邀请是否已被第二个客户端接受
func (p *Pending) Accepted() bool {
	return p.Client2 != nil
}

// Expired 判断该邀请在给定时刻是否已过期
func (p *Pending) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

// PairedRoom 表示一对客户端配对成功后落库的房间记录。
// 房间 ID 由服务端派生，不可猜测、不连续。
type PairedRoom struct {
	RoomID        string  `gorm:"primaryKey;size:191;column:room_id"`
	Client1       string  `gorm:"size:191;not null;index:idx_rooms_client1"`
	Client2       string  `gorm:"size:191;not null;index:idx_rooms_client2"`
	PushToken1    *string `gorm:"size:255"`
	PushPlatform1 *string `gorm:"size:32"`
	PushToken2    *string `gorm:"size:255"`
	PushPlatform2 *string `gorm:"size:32"`
	CreatedAt     time.Time
}

func (PairedRoom) TableName() string {
	return "paired_rooms"
}
