package blobx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Domain Errors - use errors.Is for checking
var (
	// ErrObjectNotFound indicates the backend has no object at the given bucket and key
	ErrObjectNotFound = errors.New("blobx: object not found")

	// ErrMetadataNotFound indicates no metadata record exists for an id
	ErrMetadataNotFound = errors.New("blobx: metadata not found")

	// ErrInvalidProvider indicates a provider string outside the supported set
	ErrInvalidProvider = errors.New("blobx: invalid provider")

	// ErrUnknownProvider indicates a valid provider tag with no registered backend
	ErrUnknownProvider = errors.New("blobx: no backend registered for provider")

	// ErrStorageFailure is matched by every backend failure
	ErrStorageFailure = errors.New("blobx: storage failure")

	// ErrNotApplied indicates the backend reported that a delete did not take effect
	ErrNotApplied = errors.New("blobx: operation not applied")

	// ErrAborted indicates the operation was cancelled before completion
	ErrAborted = errors.New("blobx: operation aborted")

	// ErrTimeout indicates the operation timed out
	ErrTimeout = errors.New("blobx: operation timeout")

	// ErrInvalidArgument indicates a blank or malformed request argument
	ErrInvalidArgument = errors.New("blobx: invalid argument")

	// ErrNoProviders indicates that no backend was registered at startup
	ErrNoProviders = errors.New("blobx: no providers registered")

	// ErrInvalidConfig indicates the gateway configuration is invalid
	ErrInvalidConfig = errors.New("blobx: invalid configuration")
)

// StorageError carries the context of a failed storage operation.
// errors.Is(err, ErrStorageFailure) holds for every StorageError, and
// Unwrap exposes the specific cause (ErrObjectNotFound, ErrAborted, ...).
type StorageError struct {
	Op       string   // operation that failed
	Provider Provider // backend that served the call (if known)
	Bucket   string
	Key      string
	ID       string // metadata id (gateway calls only)
	Err      error  // underlying error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString("blobx ")
	b.WriteString(e.Op)
	if e.Provider != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Provider))
	}
	if e.Bucket != "" || e.Key != "" {
		fmt.Fprintf(&b, " %s/%s", e.Bucket, e.Key)
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " (id %s)", e.ID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports every StorageError as a storage failure.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFailure
}

// withID returns err annotated with a metadata id when it is a StorageError
// that does not already carry one.
func withID(err error, id string) error {
	var se *StorageError
	if !errors.As(err, &se) || se.ID != "" {
		return err
	}
	annotated := *se
	annotated.ID = id
	return &annotated
}

// IsNotFound checks if an error is or wraps ErrObjectNotFound or ErrMetadataNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrMetadataNotFound)
}

// IsClientError reports whether err was caused by the caller's input rather
// than by a backend or the gateway itself.
func IsClientError(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrInvalidProvider) ||
		errors.Is(err, ErrInvalidArgument)
}

// StoredObject is a retrieved blob. Body is a stream that the caller must
// close; it is consumed lazily and can be read only once.
type StoredObject struct {
	// FileName is the key the object was stored under
	FileName string

	// ContentType is the MIME type recorded by the backend
	ContentType string

	// Size is the content length in bytes, -1 if unknown
	Size int64

	// Body streams the object content
	Body io.ReadCloser
}

// Close releases the underlying stream.
func (o *StoredObject) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// Bytes reads the whole body and closes it.
func (o *StoredObject) Bytes() ([]byte, error) {
	if o == nil || o.Body == nil {
		return nil, nil
	}
	defer o.Body.Close()
	return io.ReadAll(o.Body)
}

// Backend is the uniform contract every object store implements.
// All failures are returned as *StorageError.
type Backend interface {
	// Get streams the object stored at bucket/key.
	// A missing object yields ErrObjectNotFound.
	Get(ctx context.Context, bucket, key string) (*StoredObject, error)

	// Upload writes content to bucket/key, overwriting any existing object.
	// It returns only after the store confirms completion; on failure no
	// partial object is left behind.
	Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error

	// Delete removes bucket/key. A delete the store reports as not applied
	// yields ErrNotApplied.
	Delete(ctx context.Context, bucket, key string) error
}
