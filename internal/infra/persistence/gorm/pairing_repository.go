package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"peer-rendezvous/internal/domain"
	"peer-rendezvous/internal/repository"
)

// GormPairingRepository 是 PairingRepository 接口的 GORM 实现。
// 每个复合操作都是一个数据库事务，事务开始时读取一次时钟，
// 事务内所有过期比较都使用这同一个时间点。
type GormPairingRepository struct {
	db *gorm.DB
}

// NewGormPairingRepository 创建 GormPairingRepository 实例
func NewGormPairingRepository(db *gorm.DB) *GormPairingRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPairingRepository")
	}
	return &GormPairingRepository{db: db}
}

// CreatePending 实现邀请插入，先懒清理过期行再写入
func (r *GormPairingRepository) CreatePending(ctx context.Context, pending *domain.Pending) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purgeExpired(tx, now); err != nil {
			return err
		}
		return tx.Create(pending).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create pending '%s': %w", pending.JoinID, err)
	}
	return nil
}

// AcceptPending 实现原子接受。行锁保证并发的第二个接受者
// 要么等到第一个写入者提交后看到 ErrAcceptConflict，
// 要么（邀请已被懒清理）得到 ErrPendingNotFound；
// 绝不会为同一个 join code 创建两个房间。
func (r *GormPairingRepository) AcceptPending(ctx context.Context, joinID, client2, roomID string, push *domain.PushMeta) (*domain.Pending, error) {
	now := time.Now()
	var pending domain.Pending
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purgeExpired(tx, now); err != nil {
			return err
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("join_id = ? AND expires_at > ?", joinID, now).
			First(&pending).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrPendingNotFound
			}
			return err
		}
		if pending.Accepted() {
			return repository.ErrAcceptConflict
		}

		room := &domain.PairedRoom{
			RoomID:        roomID,
			Client1:       pending.Client1,
			Client2:       client2,
			PushToken1:    pending.PushToken1,
			PushPlatform1: pending.PushPlatform1,
		}
		if push != nil {
			room.PushToken2 = &push.Token
			room.PushPlatform2 = &push.Platform
		}
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		// 标记为已接受而不是删除，让创建者能通过确认读取观察到转变
		pending.Client2 = &client2
		pending.RoomID = &roomID
		if push != nil {
			pending.PushToken2 = &push.Token
			pending.PushPlatform2 = &push.Platform
		}
		return tx.Save(&pending).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrPendingNotFound) || errors.Is(err, repository.ErrAcceptConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: accept pending '%s': %w", joinID, err)
	}
	return &pending, nil
}

// FindPending 实现创建者的确认读取
func (r *GormPairingRepository) FindPending(ctx context.Context, joinID, client1 string) (*domain.Pending, error) {
	now := time.Now()
	var pending domain.Pending
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := purgeExpired(tx, now); err != nil {
			return err
		}
		err := tx.Where("join_id = ? AND client1 = ? AND expires_at > ?", joinID, client1, now).
			First(&pending).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrPendingNotFound
		}
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrPendingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find pending '%s': %w", joinID, err)
	}
	return &pending, nil
}

// DeletePending 实现幂等删除，只允许删除自己创建的邀请
func (r *GormPairingRepository) DeletePending(ctx context.Context, joinID, client1 string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("join_id = ? AND client1 = ?", joinID, client1).
		Delete(&domain.Pending{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: delete pending '%s': %w", joinID, result.Error)
	}
	return result.RowsAffected, nil
}

// FindRoom 实现按房间 ID 查找
func (r *GormPairingRepository) FindRoom(ctx context.Context, roomID string) (*domain.PairedRoom, error) {
	var room domain.PairedRoom
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room '%s': %w", roomID, err)
	}
	return &room, nil
}

// DeleteRoom 实现幂等的房间删除
func (r *GormPairingRepository) DeleteRoom(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.PairedRoom{}).Error
	if err != nil {
		return fmt.Errorf("gorm: delete room '%s': %w", roomID, err)
	}
	return nil
}

// PurgeByIdentity 实现批量隐私清除，单事务、单轮查询
func (r *GormPairingRepository) PurgeByIdentity(ctx context.Context, ids []string) (int64, int64, error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}
	var roomsDeleted, pendingsDeleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("client1 IN ? OR client2 IN ?", ids, ids).Delete(&domain.PairedRoom{})
		if result.Error != nil {
			return result.Error
		}
		roomsDeleted = result.RowsAffected

		result = tx.Where("client1 IN ? OR client2 IN ?", ids, ids).Delete(&domain.Pending{})
		if result.Error != nil {
			return result.Error
		}
		pendingsDeleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("gorm: purge by identity: %w", err)
	}
	return roomsDeleted, pendingsDeleted, nil
}

// SweepExpired 实现过期邀请的批量删除
func (r *GormPairingRepository) SweepExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&domain.Pending{})
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: sweep expired pendings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// purgeExpired 事务内的懒清理，使用事务统一的时钟读数
func purgeExpired(tx *gorm.DB, now time.Time) error {
	return tx.Where("expires_at <= ?", now).Delete(&domain.Pending{}).Error
}

// isDuplicateEntryError 检查是否为 MySQL 唯一约束冲突 (error 1062)
func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
