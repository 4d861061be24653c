package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ Store = (*DatabaseStore)(nil)

// Credential is a persisted key/value pair.
type Credential struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// DatabaseStore keeps the token in a local sqlite database.
type DatabaseStore struct {
	db  *gorm.DB
	key string
}

// NewDatabaseStore opens (and migrates) the sqlite database at dbpath.
func NewDatabaseStore(dbpath, key string) (*DatabaseStore, error) {
	if dir := filepath.Dir(dbpath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DatabaseStore{db: db, key: key}, nil
}

func (s *DatabaseStore) Load(ctx context.Context) (string, error) {
	var cred Credential
	if err := s.db.WithContext(ctx).Where("key = ?", s.key).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		log.Error("failed to load token", "error", err)
		return "", err
	}
	return cred.Value, nil
}

func (s *DatabaseStore) Save(ctx context.Context, token string) error {
	cred := Credential{Key: s.key, Value: token}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&cred).Error; err != nil {
		log.Error("failed to save token", "error", err)
		return err
	}
	return nil
}

func (s *DatabaseStore) Remove(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("key = ?", s.key).Delete(&Credential{}).Error; err != nil {
		log.Error("failed to remove token", "error", err)
		return err
	}
	return nil
}

func (s *DatabaseStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
