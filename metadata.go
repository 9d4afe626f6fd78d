package blobx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditFields records when a metadata record was created and last modified.
type AuditFields struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location addresses an object inside a provider.
type Location struct {
	Provider Provider `json:"provider"`
	Bucket   string   `json:"bucket_name"`
	Key      string   `json:"key_name"`
}

// Validate checks that every field is set and the provider tag is supported.
func (l Location) Validate() error {
	if !l.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, l.Provider)
	}
	if strings.TrimSpace(l.Bucket) == "" {
		return fmt.Errorf("%w: bucket name is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(l.Key) == "" {
		return fmt.Errorf("%w: key name is required", ErrInvalidArgument)
	}
	return nil
}

// ObjectMetadata is the persisted record that maps an id to a Location.
type ObjectMetadata struct {
	ID uuid.UUID `json:"id"`
	Location
	AuditFields
}

// MetadataStore persists ObjectMetadata records.
type MetadataStore interface {
	// Create stores a new record, assigning its id and timestamps.
	Create(ctx context.Context, loc Location) (ObjectMetadata, error)

	// Get returns the record for id or ErrMetadataNotFound.
	Get(ctx context.Context, id uuid.UUID) (ObjectMetadata, error)

	// Update replaces the location of an existing record and refreshes
	// UpdatedAt. A missing record yields ErrMetadataNotFound.
	Update(ctx context.Context, id uuid.UUID, loc Location) (ObjectMetadata, error)

	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns every record in no particular order.
	List(ctx context.Context) ([]ObjectMetadata, error)
}

// MetadataNotFound builds the error returned for a missing record.
func MetadataNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrMetadataNotFound, id)
}
