package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// settingsRow is a single-row table (ID=1).
type settingsRow struct {
	ID           uint   `gorm:"primaryKey"`
	APIKey       string `gorm:"not null;default:''"`
	StudentLevel string `gorm:"not null;default:''"`
	UpdatedAt    time.Time
}

func (settingsRow) TableName() string { return "settings" }

// SQLStore keeps settings in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQL opens (or creates) the SQLite database at path and migrates it.
func OpenSQL(path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)

	gormLogger := logger.New(
		slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection avoids "database is locked" under concurrent writes.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&settingsRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Save(ctx context.Context, st Settings) error {
	row := settingsRow{
		ID:           1,
		APIKey:       st.APIKey,
		StudentLevel: string(st.StudentLevel),
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context) (Settings, error) {
	var row settingsRow
	if err := s.db.WithContext(ctx).First(&row, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Settings{}.withDefaults(), nil
		}
		return Settings{}, fmt.Errorf("sqlite get: %w", err)
	}
	return Settings{APIKey: row.APIKey, StudentLevel: Level(row.StudentLevel)}.withDefaults(), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
