// Package gormstore implements storage.Store on SQLite through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists identities and sightings in SQLite.
type Store struct {
	DB  *gorm.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	gormLogger := logger.New(
		logging.Component("gorm"),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&identityModel{}, &sightingModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}

	logging.Component("gorm").WithField("path", path).Info("Database ready")
	return &Store{DB: db, now: time.Now}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListAll returns identities ordered by creation time, then id.
func (s *Store) ListAll(ctx context.Context) ([]storage.Identity, error) {
	var rows []identityModel
	err := s.DB.WithContext(ctx).Order("created_at_ns ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	out := make([]storage.Identity, len(rows))
	for i, r := range rows {
		out[i] = r.toIdentity()
	}
	return out, nil
}

// Get retrieves one identity by id.
func (s *Store) Get(ctx context.Context, id string) (*storage.Identity, error) {
	var row identityModel
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity %s: %w", id, err)
	}
	identity := row.toIdentity()
	return &identity, nil
}

// GetStatus returns the current status of an identity.
func (s *Store) GetStatus(ctx context.Context, id string) (storage.Status, error) {
	var row identityModel
	err := s.DB.WithContext(ctx).Select("status").Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", storage.ErrIdentityNotFound
		}
		return "", fmt.Errorf("failed to get status of %s: %w", id, err)
	}
	return storage.Status(row.Status), nil
}

// SetStatus overwrites the status of an existing identity.
func (s *Store) SetStatus(ctx context.Context, id string, status storage.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", storage.ErrInvalidIdentity, status)
	}

	result := s.DB.WithContext(ctx).Model(&identityModel{}).Where("id = ?", id).Update("status", string(status))
	if result.Error != nil {
		return fmt.Errorf("failed to update status of %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrIdentityNotFound
	}
	return nil
}

// Create inserts a new identity. The existence check and the insert share
// one transaction.
func (s *Store) Create(ctx context.Context, identity *storage.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = s.now().UTC()
	}

	row := fromIdentity(identity)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&identityModel{}).Where("id = ?", identity.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrIdentityExists
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrIdentityExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrIdentityExists
	default:
		return fmt.Errorf("failed to create identity %s: %w", identity.ID, err)
	}
}

// DeleteAllIdentities removes every identity.
func (s *Store) DeleteAllIdentities(ctx context.Context) (int, error) {
	result := s.DB.WithContext(ctx).Where("1 = 1").Delete(&identityModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete identities: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Append adds a sighting to the log.
func (s *Store) Append(ctx context.Context, sighting *storage.Sighting) error {
	if sighting.ID == "" {
		sighting.ID = uuid.NewString()
	}
	if sighting.CreatedAt.IsZero() {
		sighting.CreatedAt = s.now().UTC()
	}

	row := fromSighting(sighting)
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append sighting: %w", err)
	}
	return nil
}

// ListWhere returns sightings with the given snapshot status in creation order.
func (s *Store) ListWhere(ctx context.Context, status storage.Status) ([]storage.Sighting, error) {
	q := s.DB.WithContext(ctx).Order("created_at_ns ASC, rowid ASC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var rows []sightingModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}

	out := make([]storage.Sighting, len(rows))
	for i, r := range rows {
		out[i] = r.toSighting()
	}
	return out, nil
}

// GetSighting retrieves one sighting by id.
func (s *Store) GetSighting(ctx context.Context, id string) (*storage.Sighting, error) {
	var row sightingModel
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrSightingNotFound
		}
		return nil, fmt.Errorf("failed to get sighting %s: %w", id, err)
	}
	sighting := row.toSighting()
	return &sighting, nil
}

// DeleteAllSightings removes every sighting.
func (s *Store) DeleteAllSightings(ctx context.Context) (int, error) {
	result := s.DB.WithContext(ctx).Where("1 = 1").Delete(&sightingModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete sightings: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
