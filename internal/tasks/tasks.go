package tasks

import "encoding/json"

// 任务类型常量
const (
	TypePendingSweep = "pairing:sweep_expired" // 周期性清理过期邀请
	TypePushNotify   = "pairing:push_notify"   // 尽力而为的推送投递
)

// PushNotifyPayload 定义推送任务的数据结构
type PushNotifyPayload struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	RoomID   string `json:"room_id"`
	Message  string `json:"message"`
}

// NewPushNotifyTask 创建推送任务的序列化 payload
func NewPushNotifyTask(token, platform, roomID, message string) ([]byte, error) {
	payload := PushNotifyPayload{
		Token:    token,
		Platform: platform,
		RoomID:   roomID,
		Message:  message,
	}
	return json.Marshal(payload)
}

// NewPendingSweepTask 创建清理任务的 payload（无参数任务）
func NewPendingSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
