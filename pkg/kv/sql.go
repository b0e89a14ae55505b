package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

// entry is the single table backing the SQL store.
type entry struct {
	Key       string    `gorm:"column:entry_key;primaryKey"`
	Value     []byte    `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName pins the table name independent of gorm's pluralization.
func (entry) TableName() string {
	return "kv_entries"
}

// SQL stores values in a relational table through gorm.
type SQL struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) a SQLite database at path and migrates the table.
func NewSQLite(path string) (*SQL, error) {
	if path == "" {
		path = DefaultSQLiteFile
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	return NewSQL(db)
}

// NewSQL wraps an open gorm handle and migrates the table.
func NewSQL(db *gorm.DB) (*SQL, error) {
	err := db.AutoMigrate(&entry{})
	if err != nil {
		return nil, fmt.Errorf("migrate kv table: %w", err)
	}

	return &SQL{db: db}, nil
}

// Get implements Store.
func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var row entry

	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}

	return row.Value, nil
}

// Set implements Store as a single upsert.
func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	row := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}

	return nil
}

// Delete implements Store.
func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&entry{}).Error
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// Close implements Store.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	return sqlDB.Close()
}
