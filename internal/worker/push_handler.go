package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/notify"
	"peer-rendezvous/internal/tasks"
)

// PushNotifyHandler 调用注入的 Notifier 能力执行尽力而为的推送投递。
// 投递失败只记日志，不参与配对流程的正确性。
type PushNotifyHandler struct {
	notifier notify.Notifier
}

// NewPushNotifyHandler 创建 Handler 实例
func NewPushNotifyHandler(notifier notify.Notifier) *PushNotifyHandler {
	if notifier == nil {
		panic("Notifier cannot be nil for PushNotifyHandler")
	}
	return &PushNotifyHandler{notifier: notifier}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *PushNotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.PushNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// payload 坏了重试也没用
		return fmt.Errorf("unmarshal push payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"platform":  payload.Platform,
		"room_id":   payload.RoomID,
	})

	if err := h.notifier.Notify(ctx, payload.Token, payload.Platform, payload.RoomID, payload.Message); err != nil {
		// TODO: 连续投递失败时把 token 标记为待清理
		logCtx.WithError(err).Warn("Push delivery failed (best effort, not retried)")
		return nil
	}
	logCtx.Debug("Push delivered")
	return nil
}
