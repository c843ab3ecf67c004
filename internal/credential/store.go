// Package credential stores the per-merchant KSE API key, keyed by session.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// IDPrefix prefixes every record id.
const IDPrefix = "KSE-"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("credential not found")

// Record is one stored credential.
type Record struct {
	ID        string `gorm:"primaryKey"`
	SessionID string `gorm:"uniqueIndex;not null"`
	APIKey    string `gorm:"column:api_key;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (Record) TableName() string {
	return "kse_settings"
}

// Open connects to the credential database and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(driver),
		otelgorm.WithoutQueryVariables(),
	)); err != nil {
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	if driver == DriverSQLite {
		// an in-memory database lives only as long as its single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate credential schema: %w", err)
	}
	return db, nil
}

// Store reads and writes credential records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// FindBySession returns the record for a session, or ErrNotFound.
func (s *Store) FindBySession(ctx context.Context, sessionID string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &rec, nil
}

// Upsert stores apiKey for a session, creating the record on first write.
func (s *Store) Upsert(ctx context.Context, sessionID, apiKey string) (*Record, error) {
	rec := Record{
		ID:        IDPrefix + uuid.NewString(),
		SessionID: sessionID,
		APIKey:    apiKey,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return s.FindBySession(ctx, sessionID)
}
