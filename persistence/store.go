package persistence

import (
	"context"
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists the bearer credential across restarts. Process-wide, single
// writer (the session manager).
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Load returns the stored API key, or "" when none is stored.
func (s *Store) Load(ctx context.Context) (string, error) {
	var cred Credential

	err := s.db.WithContext(ctx).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return cred.APIKey, nil
}

// Save stores the API key, replacing any previous one.
func (s *Store) Save(ctx context.Context, apiKey string) error {
	var cred Credential

	if err := s.db.WithContext(ctx).FirstOrCreate(&cred).Error; err != nil {
		return err
	}

	cred.APIKey = apiKey

	return s.db.WithContext(ctx).Save(&cred).Error
}

// Clear removes any stored credential. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Credential{}).Error
}
