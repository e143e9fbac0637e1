package mysql

import (
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/move-sure/ss-transport-sub000/internal/entity"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// DAO EWB 相关表的数据访问对象
type DAO struct {
	db *gorm.DB
}

// NewDAO 创建 DAO 实例
func NewDAO(dsn string) (*DAO, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DAO{
		db: db,
	}, nil
}

// NewDAOWithDB 使用已有连接创建 DAO
func NewDAOWithDB(db *gorm.DB) *DAO {
	return &DAO{db: db}
}

// AutoMigrate 同步表结构
func (dao *DAO) AutoMigrate() error {
	return dao.db.AutoMigrate(
		&entity.City{},
		&entity.Transport{},
		&entity.EwbValidation{},
		&entity.EwbTransporterUpdate{},
		&entity.EwbBulkRun{},
	)
}

// Close 关闭数据库连接
func (dao *DAO) Close() error {
	sqlDB, err := dao.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
