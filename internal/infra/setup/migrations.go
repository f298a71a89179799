package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"peer-rendezvous/internal/domain"
)

// MigrateDB 执行数据库迁移。
// pendings 和 paired_rooms 用原生 SQL 建表，保证各身份列的二级索引
// 使用受控的键长（purge-by-identity 依赖这些索引做扫描）。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migratePendingsTable(db); err != nil {
		return fmt.Errorf("failed to migrate pendings table: %w", err)
	}
	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate paired_rooms table: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func migratePendingsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'pendings'").Count(&count)

	if count == 0 {
		sql := `
		CREATE TABLE pendings (
			join_id VARCHAR(191) NOT NULL PRIMARY KEY,
			client1 VARCHAR(191) NOT NULL,
			client2 VARCHAR(191) NULL,
			room_id VARCHAR(191) NULL,
			expires_at DATETIME(3) NOT NULL,
			push_token1 VARCHAR(255) NULL,
			push_platform1 VARCHAR(32) NULL,
			push_token2 VARCHAR(255) NULL,
			push_platform2 VARCHAR(32) NULL,
			created_at DATETIME(3),
			updated_at DATETIME(3),
			INDEX idx_pendings_client1 (client1),
			INDEX idx_pendings_client2 (client2),
			INDEX idx_pendings_expires_at (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
		`
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create pendings table: %w", err)
		}
		logrus.Info("Pendings table created successfully")
		return nil
	}

	// 表已存在，让 AutoMigrate 补齐新列和索引
	if err := db.AutoMigrate(&domain.Pending{}); err != nil {
		return fmt.Errorf("failed to auto-migrate pendings table: %w", err)
	}
	logrus.Info("Pendings table schema checked/updated successfully")
	return nil
}

func migrateRoomsTable(db *gorm.DB) error {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = 'paired_rooms'").Count(&count)

	if count == 0 {
		sql := `
		CREATE TABLE paired_rooms (
			room_id VARCHAR(191) NOT NULL PRIMARY KEY,
			client1 VARCHAR(191) NOT NULL,
			client2 VARCHAR(191) NOT NULL,
			push_token1 VARCHAR(255) NULL,
			push_platform1 VARCHAR(32) NULL,
			push_token2 VARCHAR(255) NULL,
			push_platform2 VARCHAR(32) NULL,
			created_at DATETIME(3),
			INDEX idx_rooms_client1 (client1),
			INDEX idx_rooms_client2 (client2)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
		`
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create paired_rooms table: %w", err)
		}
		logrus.Info("Paired rooms table created successfully")
		return nil
	}

	if err := db.AutoMigrate(&domain.PairedRoom{}); err != nil {
		return fmt.Errorf("failed to auto-migrate paired_rooms table: %w", err)
	}
	logrus.Info("Paired rooms table schema checked/updated successfully")
	return nil
}
