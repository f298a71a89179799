package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/service"
)

// PendingSweepHandler 处理周期性的过期邀请清理任务。
// 懒清理已经保证了正确性，这里只是 housekeeping，
// 单次失败不值得重试，下个周期会补上。
type PendingSweepHandler struct {
	pairingService *service.PairingService
}

// NewPendingSweepHandler 创建 Handler 实例
func NewPendingSweepHandler(pairingService *service.PairingService) *PendingSweepHandler {
	if pairingService == nil {
		panic("PairingService cannot be nil for PendingSweepHandler")
	}
	return &PendingSweepHandler{pairingService: pairingService}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *PendingSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	deleted, err := h.pairingService.SweepExpired(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Pending sweep failed")
		return nil // 不触发重试，下个周期重新扫
	}
	logCtx.WithField("deleted", deleted).Debug("Pending sweep complete")
	return nil
}
