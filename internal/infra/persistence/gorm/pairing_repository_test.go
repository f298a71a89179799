package gormpersistence_test // 测试包

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"peer-rendezvous/internal/domain"
	gormpersistence "peer-rendezvous/internal/infra/persistence/gorm"
	"peer-rendezvous/internal/repository"
)

// newMockRepo 用 sqlmock 搭一个验证 SQL 形状的存储库。
// 事务边界、行锁和过期判断都发生在生成的 SQL 里，
// 这里按顺序断言它们，不需要真实的 MySQL。
func newMockRepo(t *testing.T) (*gormpersistence.GormPairingRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "创建 sqlmock 不应失败")
	t.Cleanup(func() { sqlDB.Close() })

	dialector := gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err, "打开 gorm 连接不应失败")

	return gormpersistence.NewGormPairingRepository(db), mock
}

func pendingRows(joinID, client1 string, client2, roomID interface{}, expiresAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"join_id", "client1", "client2", "room_id", "expires_at"}).
		AddRow(joinID, client1, client2, roomID, expiresAt)
}

// --- CreatePending ---

func TestGormPairingRepository_CreatePending_PurgesThenInserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	// 同一事务内：先按事务时钟懒清理过期行，再插入
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `pendings`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreatePending(context.Background(), &domain.Pending{
		JoinID:    "code-123",
		Client1:   "device-a",
		ExpiresAt: time.Now().Add(time.Minute),
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPairingRepository_CreatePending_DuplicateJoinCode(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 未过期的同名 join code 仍在，唯一约束拦下插入
	mock.ExpectExec("INSERT INTO `pendings`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'code-123' for key 'PRIMARY'"})
	mock.ExpectRollback()

	err := repo.CreatePending(context.Background(), &domain.Pending{
		JoinID:    "code-123",
		Client1:   "device-a",
		ExpiresAt: time.Now().Add(time.Minute),
	})

	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- AcceptPending ---

// 过期的邀请先被事务内的懒清理删掉，带 expires_at 守卫的行锁查询
// 随后一无所获：接受过期邀请得到 not found，而不是复活一条旧邀请。
func TestGormPairingRepository_AcceptPending_ExpiredIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `pendings` WHERE join_id = (.+) AND expires_at > (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"join_id"}))
	mock.ExpectRollback()

	pending, err := repo.AcceptPending(context.Background(), "code-123", "device-b", "room-1", nil)

	assert.Nil(t, pending)
	assert.ErrorIs(t, err, repository.ErrPendingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 两个并发接受者在行锁上串行化：后到的那个在锁释放后看到
// client2 已写入，得到冲突而不是第二个房间。
func TestGormPairingRepository_AcceptPending_AlreadyAcceptedConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `pendings` WHERE join_id = (.+) AND expires_at > (.+)FOR UPDATE").
		WillReturnRows(pendingRows("code-123", "device-a", "device-b", "room-1", time.Now().Add(time.Hour)))
	// 没有 INSERT INTO paired_rooms：事务回滚，不产生第二个房间
	mock.ExpectRollback()

	pending, err := repo.AcceptPending(context.Background(), "code-123", "device-c", "room-2", nil)

	assert.Nil(t, pending)
	assert.ErrorIs(t, err, repository.ErrAcceptConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormPairingRepository_AcceptPending_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `pendings` WHERE join_id = (.+) AND expires_at > (.+)FOR UPDATE").
		WillReturnRows(pendingRows("code-123", "device-a", nil, nil, time.Now().Add(time.Hour)))
	// 同一事务内：恰好一次房间插入 + 邀请标记为已接受
	mock.ExpectExec("INSERT INTO `paired_rooms`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `pendings` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pending, err := repo.AcceptPending(context.Background(), "code-123", "device-b", "room-1", nil)

	require.NoError(t, err)
	require.NotNil(t, pending)
	// 返回的邀请已带上接受者与房间（标记而非删除）
	require.NotNil(t, pending.Client2)
	assert.Equal(t, "device-b", *pending.Client2)
	require.NotNil(t, pending.RoomID)
	assert.Equal(t, "room-1", *pending.RoomID)
	assert.Equal(t, "device-a", pending.Client1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- FindPending ---

func TestGormPairingRepository_FindPending_GuardsCreatorAndExpiry(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// 查询同时约束创建者与过期守卫：创建者不匹配等同于不存在
	mock.ExpectQuery("SELECT (.+) FROM `pendings` WHERE join_id = (.+) AND client1 = (.+) AND expires_at >").
		WillReturnRows(sqlmock.NewRows([]string{"join_id"}))
	mock.ExpectRollback()

	pending, err := repo.FindPending(context.Background(), "code-123", "device-x")

	assert.Nil(t, pending)
	assert.ErrorIs(t, err, repository.ErrPendingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- SweepExpired ---

func TestGormPairingRepository_SweepExpired_ReturnsDeletedCount(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `pendings` WHERE expires_at <=").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	deleted, err := repo.SweepExpired(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- PurgeByIdentity ---

func TestGormPairingRepository_PurgeByIdentity_BatchInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `paired_rooms` WHERE client1 IN (.+) OR client2 IN").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `pendings` WHERE client1 IN (.+) OR client2 IN").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rooms, pendings, err := repo.PurgeByIdentity(context.Background(), []string{"device-a", "device-b"})

	assert.NoError(t, err)
	assert.Equal(t, int64(2), rooms)
	assert.Equal(t, int64(1), pendings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
