package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flarexio/qarelay/history"
)

type historyEntry struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Role      string
	Content   string
	CreatedAt time.Time
}

func (historyEntry) TableName() string {
	return "history"
}

// NewHistoryStore opens (or creates) the history database at path and
// migrates the schema. Migration is idempotent.
func NewHistoryStore(path string) (history.Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&historyEntry{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	return &historyStore{db}, nil
}

type historyStore struct {
	db *gorm.DB
}

func (s *historyStore) Append(ctx context.Context, userID string, role history.Role, content string) error {
	entry := historyEntry{
		UserID:  userID,
		Role:    string(role),
		Content: content,
	}

	return s.db.WithContext(ctx).Create(&entry).Error
}

func (s *historyStore) Recent(ctx context.Context, userID string, maxTurns int) ([]history.Turn, error) {
	if maxTurns <= 0 {
		return []history.Turn{}, nil
	}

	var entries []historyEntry

	// Newest rows first, then reversed so callers consume
	// oldest-to-newest.
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(2 * maxTurns).
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	turns := make([]history.Turn, len(entries))
	for i, entry := range entries {
		turns[len(entries)-1-i] = history.Turn{
			UserID:    entry.UserID,
			Role:      history.Role(entry.Role),
			Content:   entry.Content,
			Timestamp: entry.CreatedAt,
		}
	}

	return turns, nil
}

func (s *historyStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
