// Package gormstore persists object metadata in a relational database
// through gorm. MySQL, PostgreSQL and SQLite are supported.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"gorm.io/gorm"
)

// Store is a blobx.MetadataStore backed by gorm.
type Store struct {
	db     *gorm.DB
	opts   *blobx.Options
	logger logx.Logger
}

var _ blobx.MetadataStore = (*Store)(nil)

// New wraps an open database. The schema must already exist; use Migrate or
// Open to create it.
func New(db *gorm.DB, opts ...blobx.Option) *Store {
	o := blobx.NewOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.GetLogger(),
	}
}

// Migrate creates or updates the object_metadata table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&objectRecord{}); err != nil {
		return fmt.Errorf("gormstore: migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Create(ctx context.Context, loc blobx.Location) (blobx.ObjectMetadata, error) {
	if err := loc.Validate(); err != nil {
		return blobx.ObjectMetadata{}, err
	}

	now := s.opts.GetClock()().UTC()
	meta := blobx.ObjectMetadata{
		ID:          s.opts.GetIDGenerator()(),
		Location:    loc,
		AuditFields: blobx.AuditFields{CreatedAt: now, UpdatedAt: now},
	}

	rec := newRecord(meta)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return blobx.ObjectMetadata{}, fmt.Errorf("gormstore: create metadata: %w", err)
	}

	s.logger.Debug("Metadata created", blobx.ArgsToFields("id", meta.ID.String(), "provider", string(loc.Provider))...)
	return meta, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (blobx.ObjectMetadata, error) {
	rec, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return blobx.ObjectMetadata{}, err
	}
	return rec.toMetadata()
}

// Update loads the row, replaces its location and saves it inside one
// transaction.
func (s *Store) Update(ctx context.Context, id uuid.UUID, loc blobx.Location) (blobx.ObjectMetadata, error) {
	if err := loc.Validate(); err != nil {
		return blobx.ObjectMetadata{}, err
	}

	var updated objectRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.find(tx, id)
		if err != nil {
			return err
		}

		rec.StorageProvider = string(loc.Provider)
		rec.BucketName = loc.Bucket
		rec.KeyName = loc.Key
		rec.UpdatedAt = s.opts.GetClock()().UTC()

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("gormstore: update metadata %s: %w", id, err)
		}
		updated = rec
		return nil
	})
	if err != nil {
		return blobx.ObjectMetadata{}, err
	}

	s.logger.Debug("Metadata updated", blobx.ArgsToFields("id", id.String(), "provider", string(loc.Provider))...)
	return updated.toMetadata()
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("id = ?", id.String()).
		Delete(&objectRecord{}).Error
	if err != nil {
		return fmt.Errorf("gormstore: delete metadata %s: %w", id, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]blobx.ObjectMetadata, error) {
	var recs []objectRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("gormstore: list metadata: %w", err)
	}

	out := make([]blobx.ObjectMetadata, 0, len(recs))
	for _, rec := range recs {
		meta, err := rec.toMetadata()
		if err != nil {
			s.logger.Warn("Skipping metadata row with malformed id", blobx.ArgsToFields("id", rec.ID, "error", err)...)
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) find(db *gorm.DB, id uuid.UUID) (objectRecord, error) {
	var rec objectRecord
	err := db.Where("id = ?", id.String()).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return objectRecord{}, blobx.MetadataNotFound(id)
	}
	if err != nil {
		return objectRecord{}, fmt.Errorf("gormstore: get metadata %s: %w", id, err)
	}
	return rec, nil
}
