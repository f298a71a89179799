package repository

import (
	"context"

	"peer-rendezvous/internal/domain"
)

// PairingRepository 定义了持久化配对流程的存储操作。
// 所有 "读前置条件 + 写派生行" 的复合操作必须在同一个事务内完成，
// 事务内所有过期判断使用同一次时钟读数。
type PairingRepository interface {
	// CreatePending 插入一条新邀请。插入前先懒清理已过期的行。
	// join code 已存在且未过期时返回 ErrDuplicateEntry。
	CreatePending(ctx context.Context, pending *domain.Pending) error

	// AcceptPending 原子地接受邀请：定位未过期且未被接受的邀请，
	// 以给定的 roomID 创建唯一的 PairedRoom 行，并把邀请标记为已接受
	// （写入 client2 与 roomID，而不是删除，留给创建者确认读取）。
	// 找不到可接受的邀请返回 ErrPendingNotFound；
	// 已被抢先接受返回 ErrAcceptConflict。
	// 成功时返回更新后的邀请（含创建者的推送信息）。
	AcceptPending(ctx context.Context, joinID, client2, roomID string, push *domain.PushMeta) (*domain.Pending, error)

	// FindPending 创建者的确认读取。除懒清理外只读。
	// 创建者不匹配或邀请不存在/已过期时返回 ErrPendingNotFound。
	FindPending(ctx context.Context, joinID, client1 string) (*domain.Pending, error)

	// DeletePending 删除创建者自己的邀请，幂等，返回删除行数（0 或 1）。
	DeletePending(ctx context.Context, joinID, client1 string) (int64, error)

	// FindRoom 按房间 ID 查找配对记录，不存在时返回 ErrRoomNotFound。
	FindRoom(ctx context.Context, roomID string) (*domain.PairedRoom, error)

	// DeleteRoom 删除房间记录，幂等。
	DeleteRoom(ctx context.Context, roomID string) error

	// PurgeByIdentity 批量删除所有以任一给定 id 作为创建者或接受者的
	// 房间与邀请记录，返回各自的删除行数。用于隐私数据清除。
	PurgeByIdentity(ctx context.Context, ids []string) (roomsDeleted, pendingsDeleted int64, err error)

	// SweepExpired 删除所有已过期的邀请，返回删除行数。
	// 既被周期任务调用，也可与各操作内的懒清理并发执行。
	SweepExpired(ctx context.Context) (int64, error)
}
