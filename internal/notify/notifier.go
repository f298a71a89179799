package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier 是推送投递能力的抽象。实现方负责把 "房间已就绪" 之类的
// 消息送达持有 token 的设备（APNs/FCM 等）。
// 投递结果只影响是否标记 token 待清理，绝不影响配对流程的正确性。
type Notifier interface {
	Notify(ctx context.Context, token, platform, roomID, message string) error
}

// LogNotifier 只记录日志的空实现，在未接入真实推送通道时使用。
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, token, platform, roomID, message string) error {
	logrus.WithFields(logrus.Fields{
		"platform": platform,
		"room_id":  roomID,
		"token":    truncateToken(token),
	}).Infof("Push notification (log only): %s", message)
	return nil
}

func truncateToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
