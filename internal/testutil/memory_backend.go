package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/gostratum/blobx"
)

// Operation names accepted by FailNext.
const (
	OpGet    = "get"
	OpUpload = "upload"
	OpDelete = "delete"
)

// MemoryBackend is a thread-safe in-memory blobx.Backend with fault
// injection for tests.
type MemoryBackend struct {
	provider blobx.Provider

	mu       sync.RWMutex
	objects  map[string]*memoryObject
	failures map[string][]error
	calls    map[string]int

	// StrictDelete reports deletes of missing objects as not applied, the
	// way stores that return a deleted flag behave.
	StrictDelete bool
}

type memoryObject struct {
	data        []byte
	contentType string
}

var _ blobx.Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty backend reporting errors as provider.
func NewMemoryBackend(provider blobx.Provider) *MemoryBackend {
	return &MemoryBackend{
		provider: provider,
		objects:  make(map[string]*memoryObject),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next call of op fail with err. Calls queue up.
func (m *MemoryBackend) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Calls returns how many times op was invoked.
func (m *MemoryBackend) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Has reports whether bucket/key holds an object.
func (m *MemoryBackend) Has(bucket, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[objectKey(bucket, key)]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Get returns a copy of the stored bytes as a stream
func (m *MemoryBackend) Get(ctx context.Context, bucket, key string) (*blobx.StoredObject, error) {
	if err := m.begin(ctx, OpGet, bucket, key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	obj, ok := m.objects[objectKey(bucket, key)]
	m.mu.RUnlock()
	if !ok {
		return nil, m.fail(OpGet, bucket, key, blobx.ErrObjectNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return &blobx.StoredObject{
		FileName:    key,
		ContentType: obj.contentType,
		Size:        int64(len(data)),
		Body:        io.NopCloser(bytes.NewReader(data)),
	}, nil
}

// Upload reads content fully before storing it, so a failed read never
// leaves a partial object.
func (m *MemoryBackend) Upload(ctx context.Context, bucket, key string, content io.Reader, contentType string) error {
	if err := m.begin(ctx, OpUpload, bucket, key); err != nil {
		return err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return m.fail(OpUpload, bucket, key, err)
	}
	if err := ctx.Err(); err != nil {
		return m.fail(OpUpload, bucket, key, blobx.ErrAborted)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(bucket, key)] = &memoryObject{data: data, contentType: contentType}
	return nil
}

// Delete removes the object; missing objects are ignored unless StrictDelete is set
func (m *MemoryBackend) Delete(ctx context.Context, bucket, key string) error {
	if err := m.begin(ctx, OpDelete, bucket, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	k := objectKey(bucket, key)
	if _, ok := m.objects[k]; !ok && m.StrictDelete {
		return m.fail(OpDelete, bucket, key, blobx.ErrNotApplied)
	}
	delete(m.objects, k)
	return nil
}

// begin records the call and returns an injected or context error.
func (m *MemoryBackend) begin(ctx context.Context, op, bucket, key string) error {
	m.mu.Lock()
	m.calls[op]++
	var injected error
	if queue := m.failures[op]; len(queue) > 0 {
		injected = queue[0]
		m.failures[op] = queue[1:]
	}
	m.mu.Unlock()

	if injected != nil {
		return m.fail(op, bucket, key, injected)
	}
	if err := ctx.Err(); err != nil {
		return m.fail(op, bucket, key, blobx.ErrAborted)
	}
	return nil
}

func (m *MemoryBackend) fail(op, bucket, key string, err error) error {
	return &blobx.StorageError{
		Op:       op,
		Provider: m.provider,
		Bucket:   bucket,
		Key:      key,
		Err:      err,
	}
}

func objectKey(bucket, key string) string {
	return bucket + "\x00" + key
}
