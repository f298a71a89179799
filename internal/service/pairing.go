package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"peer-rendezvous/internal/domain"
	"peer-rendezvous/internal/repository"
	"peer-rendezvous/internal/tasks"
)

// 邀请有效期的允许区间（秒）
const (
	minExpirySeconds = 1
	maxExpirySeconds = 86400
)

// PairingService 负责持久化配对流程的业务逻辑。
// 过期时间永远由服务端时钟计算，调用方只能提供相对时长，
// 这样不同设备之间的时钟偏差不会造成误判。
type PairingService struct {
	repo        repository.PairingRepository
	asynqClient *asynq.Client // 可为 nil（测试或未启用推送时）
}

// NewPairingService 创建 PairingService 实例
func NewPairingService(repo repository.PairingRepository, asynqClient *asynq.Client) *PairingService {
	if repo == nil {
		panic("PairingRepository cannot be nil for PairingService")
	}
	return &PairingService{
		repo:        repo,
		asynqClient: asynqClient,
	}
}

// CreatePending 创建一条邀请，返回服务端计算出的过期时间。
func (s *PairingService) CreatePending(ctx context.Context, joinID, client1 string, expiresInSeconds int, push *domain.PushMeta) (time.Time, error) {
	logCtx := logrus.WithFields(logrus.Fields{"join_id": joinID, "client1": client1})

	if joinID == "" || client1 == "" {
		return time.Time{}, ErrInvalidInput
	}
	if expiresInSeconds < minExpirySeconds || expiresInSeconds > maxExpirySeconds {
		logCtx.Warnf("CreatePending: duration out of range: %d", expiresInSeconds)
		return time.Time{}, ErrInvalidDuration
	}

	expiresAt := time.Now().Add(time.Duration(expiresInSeconds) * time.Second)
	pending := &domain.Pending{
		JoinID:    joinID,
		Client1:   client1,
		ExpiresAt: expiresAt,
	}
	if push != nil {
		pending.PushToken1 = &push.Token
		pending.PushPlatform1 = &push.Platform
	}

	if err := s.repo.CreatePending(ctx, pending); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("CreatePending: join code already in use")
			return time.Time{}, ErrConflict
		}
		logCtx.WithError(err).Error("CreatePending: repository error")
		return time.Time{}, ErrInternalServer
	}

	logCtx.WithField("expires_at", expiresAt).Info("Pending pairing created")
	return expiresAt, nil
}

// AcceptPending 接受一条邀请，原子地创建配对房间并返回房间 ID。
// 成功后尽力而为地给创建者投递一条推送（失败只记日志）。
func (s *PairingService) AcceptPending(ctx context.Context, joinID, client2 string, push *domain.PushMeta) (string, error) {
	logCtx := logrus.WithFields(logrus.Fields{"join_id": joinID, "client2": client2})

	if joinID == "" || client2 == "" {
		return "", ErrInvalidInput
	}

	roomID, err := deriveRoomID(joinID, client2)
	if err != nil {
		logCtx.WithError(err).Error("AcceptPending: failed to derive room id")
		return "", ErrInternalServer
	}

	pending, err := s.repo.AcceptPending(ctx, joinID, client2, roomID, push)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPendingNotFound):
			logCtx.Warn("AcceptPending: pending not found or expired")
			return "", ErrNotFoundOrExpired
		case errors.Is(err, repository.ErrAcceptConflict):
			logCtx.Warn("AcceptPending: lost the accept race")
			return "", ErrConflict
		default:
			logCtx.WithError(err).Error("AcceptPending: repository error")
			return "", ErrInternalServer
		}
	}

	logCtx.WithField("room_id", roomID).Info("Pending pairing accepted, room created")
	s.enqueuePush(pending, roomID)
	return roomID, nil
}

// CheckPending 创建者的确认读取。
// 返回 (roomID, nil) 表示已被接受；("", nil) 表示仍在等待；
// ErrNotFoundOrExpired 表示不存在或已过期。
// 已接受时服务端不自动删除邀请，删除由创建者在客户端落盘后显式发起。
func (s *PairingService) CheckPending(ctx context.Context, joinID, client1 string) (string, error) {
	if joinID == "" || client1 == "" {
		return "", ErrInvalidInput
	}

	pending, err := s.repo.FindPending(ctx, joinID, client1)
	if err != nil {
		if errors.Is(err, repository.ErrPendingNotFound) {
			return "", ErrNotFoundOrExpired
		}
		logrus.WithError(err).WithField("join_id", joinID).Error("CheckPending: repository error")
		return "", ErrInternalServer
	}

	if pending.Accepted() && pending.RoomID != nil {
		return *pending.RoomID, nil
	}
	return "", nil
}

// DeletePending 删除创建者自己的邀请，幂等
func (s *PairingService) DeletePending(ctx context.Context, joinID, client1 string) (int64, error) {
	if joinID == "" || client1 == "" {
		return 0, ErrInvalidInput
	}
	deleted, err := s.repo.DeletePending(ctx, joinID, client1)
	if err != nil {
		logrus.WithError(err).WithField("join_id", joinID).Error("DeletePending: repository error")
		return 0, ErrInternalServer
	}
	return deleted, nil
}

// GetRoom 查询配对房间记录
func (s *PairingService) GetRoom(ctx context.Context, roomID string) (*domain.PairedRoom, error) {
	if roomID == "" {
		return nil, ErrInvalidInput
	}
	room, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("GetRoom: repository error")
		return nil, ErrInternalServer
	}
	return room, nil
}

// DeleteRoom 删除配对房间记录，幂等
func (s *PairingService) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrInvalidInput
	}
	if err := s.repo.DeleteRoom(ctx, roomID); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("DeleteRoom: repository error")
		return ErrInternalServer
	}
	return nil
}

// PurgeByIdentity 批量删除涉及给定身份的全部持久化记录
func (s *PairingService) PurgeByIdentity(ctx context.Context, ids []string) (int64, int64, error) {
	if len(ids) == 0 {
		return 0, 0, ErrInvalidInput
	}
	for _, id := range ids {
		if id == "" {
			return 0, 0, ErrInvalidInput
		}
	}

	rooms, pendings, err := s.repo.PurgeByIdentity(ctx, ids)
	if err != nil {
		logrus.WithError(err).Error("PurgeByIdentity: repository error")
		return 0, 0, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{
		"device_ids":       len(ids),
		"rooms_deleted":    rooms,
		"pendings_deleted": pendings,
	}).Info("Purged pairing data by identity")
	return rooms, pendings, nil
}

// SweepExpired 删除所有已过期的邀请
func (s *PairingService) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.SweepExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("SweepExpired: repository error")
		return 0, ErrInternalServer
	}
	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Swept expired pendings")
	}
	return deleted, nil
}

// enqueuePush 给创建者投递 "房间已就绪" 推送，失败只记日志
func (s *PairingService) enqueuePush(pending *domain.Pending, roomID string) {
	if s.asynqClient == nil || pending == nil || pending.PushToken1 == nil {
		return
	}
	platform := ""
	if pending.PushPlatform1 != nil {
		platform = *pending.PushPlatform1
	}
	payload, err := tasks.NewPushNotifyTask(*pending.PushToken1, platform, roomID, "Your pairing request was accepted")
	if err != nil {
		logrus.WithError(err).Warn("Failed to build push notification payload")
		return
	}
	if _, err := s.asynqClient.Enqueue(asynq.NewTask(tasks.TypePushNotify, payload), asynq.Queue("low")); err != nil {
		logrus.WithError(err).Warn("Failed to enqueue push notification task")
	}
}

// deriveRoomID 从 join code、接受者和随机分量派生不可猜测的房间 ID
func deriveRoomID(joinID, client2 string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate random nonce: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(joinID))
	h.Write([]byte{0})
	h.Write([]byte(client2))
	h.Write([]byte{0})
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}
