package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ObservatoireDelinquance/src/models"
)

const batchSize = 500

// OpenSQLite 打开 (或创建) SQLite 文件并迁移表结构; ":memory:" 用于测试
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// 每个连接都是独立的内存库
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&models.Record{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// RecordStore 合并后记录的SQLite副本
type RecordStore interface {
	// SaveRecords 在一个事务中替换全部记录
	SaveRecords(ctx context.Context, records []models.Record) error
	LoadRecords(ctx context.Context) ([]models.Record, error)
	Years(ctx context.Context) ([]int, error)
}

type recordStore struct {
	db *gorm.DB
}

func NewRecordStore(db *gorm.DB) RecordStore {
	return &recordStore{db: db}
}

func (s *recordStore) SaveRecords(ctx context.Context, records []models.Record) error {
	rows := make([]models.Record, len(records))
	copy(rows, records)
	for i := range rows {
		rows[i].ID = 0
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Record{}).Error; err != nil {
			return fmt.Errorf("clear records: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		return nil
	})
}

func (s *recordStore) LoadRecords(ctx context.Context) ([]models.Record, error) {
	var records []models.Record
	if err := s.db.WithContext(ctx).Order("codgeo, indicateur, annee").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *recordStore) Years(ctx context.Context) ([]int, error) {
	var years []int
	err := s.db.WithContext(ctx).Model(&models.Record{}).
		Distinct("annee").Order("annee").Pluck("annee", &years).Error
	if err != nil {
		return nil, err
	}
	return years, nil
}
