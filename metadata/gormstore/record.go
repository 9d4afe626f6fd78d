package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
)

// objectRecord is the row layout of the object_metadata table. Timestamps
// are written by the store's clock rather than by gorm callbacks.
type objectRecord struct {
	ID              string    `gorm:"column:id;primaryKey;size:36"`
	StorageProvider string    `gorm:"column:storage_provider;size:32;not null;index"`
	BucketName      string    `gorm:"column:bucket_name;size:255;not null"`
	KeyName         string    `gorm:"column:key_name;size:1024;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName returns the database table name.
func (objectRecord) TableName() string {
	return "object_metadata"
}

func newRecord(meta blobx.ObjectMetadata) objectRecord {
	return objectRecord{
		ID:              meta.ID.String(),
		StorageProvider: string(meta.Provider),
		BucketName:      meta.Bucket,
		KeyName:         meta.Key,
		CreatedAt:       meta.CreatedAt,
		UpdatedAt:       meta.UpdatedAt,
	}
}

func (r objectRecord) toMetadata() (blobx.ObjectMetadata, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return blobx.ObjectMetadata{}, err
	}
	return blobx.ObjectMetadata{
		ID: id,
		Location: blobx.Location{
			Provider: blobx.Provider(r.StorageProvider),
			Bucket:   r.BucketName,
			Key:      r.KeyName,
		},
		AuditFields: blobx.AuditFields{
			CreatedAt: r.CreatedAt.UTC(),
			UpdatedAt: r.UpdatedAt.UTC(),
		},
	}, nil
}
