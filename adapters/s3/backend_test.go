package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "bucket-a"

func newTestBackend(t *testing.T, mutate func(*blobx.S3Config)) *Backend {
	t.Helper()

	server := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(server.Close)

	cfg := blobx.DefaultConfig().AWS
	cfg.Region = "us-east-1"
	cfg.Endpoint = server.URL
	cfg.UsePathStyle = true
	cfg.AccessKey = "test"
	cfg.SecretKey = "test"
	if mutate != nil {
		mutate(&cfg)
	}

	client := s3.NewFromConfig(aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(server.URL)
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	cm := NewClientManagerFromClient(client, &cfg, logx.NewNoopLogger())
	require.NoError(t, cm.CreateBucketIfNotExists(context.Background(), testBucket))

	return NewBackendFromClientManager(cm)
}

func TestBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, nil)

	require.NoError(t, b.Upload(ctx, testBucket, "doc.txt", bytes.NewReader([]byte("hello")), "text/plain"))

	obj, err := b.Get(ctx, testBucket, "doc.txt")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "doc.txt", obj.FileName)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, int64(5), obj.Size)
}

func TestBackend_GetMissing(t *testing.T) {
	b := newTestBackend(t, nil)

	_, err := b.Get(context.Background(), testBucket, "missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, blobx.ErrObjectNotFound)
	assert.True(t, blobx.IsNotFound(err))
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, nil)

	require.NoError(t, b.Upload(ctx, testBucket, "doc.txt", bytes.NewReader([]byte("hello")), "text/plain"))
	require.NoError(t, b.Delete(ctx, testBucket, "doc.txt"))

	_, err := b.Get(ctx, testBucket, "doc.txt")
	assert.ErrorIs(t, err, blobx.ErrObjectNotFound)
}

func TestBackend_MultipartUpload(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, func(cfg *blobx.S3Config) {
		cfg.MultipartThreshold = minPartSize
		cfg.PartSize = minPartSize
		cfg.Parallel = 2
	})

	payload := bytes.Repeat([]byte("0123456789abcdef"), (2*minPartSize+1024)/16)
	require.NoError(t, b.Upload(ctx, testBucket, "big.bin", bytes.NewReader(payload), "application/octet-stream"))

	obj, err := b.Get(ctx, testBucket, "big.bin")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(data))
	assert.True(t, bytes.Equal(payload, data))
}

type failingReader struct {
	remaining int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, errors.New("disk on fire")
	}
	n := len(p)
	if n > r.remaining {
		n = r.remaining
	}
	r.remaining -= n
	return n, nil
}

func TestBackend_UploadReaderErrorLeavesNoObject(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, func(cfg *blobx.S3Config) {
		cfg.MultipartThreshold = minPartSize
		cfg.PartSize = minPartSize
	})

	// Fail in the multipart path after the threshold has been crossed.
	err := b.Upload(ctx, testBucket, "broken.bin", &failingReader{remaining: minPartSize + 10}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, blobx.ErrStorageFailure)

	_, err = b.Get(ctx, testBucket, "broken.bin")
	assert.ErrorIs(t, err, blobx.ErrObjectNotFound)

	// Fail in the single put path.
	err = b.Upload(ctx, testBucket, "small.bin", &failingReader{remaining: 10}, "")
	require.Error(t, err)
	_, err = b.Get(ctx, testBucket, "small.bin")
	assert.ErrorIs(t, err, blobx.ErrObjectNotFound)
}

func TestBackend_CancelledContext(t *testing.T) {
	b := newTestBackend(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Upload(ctx, testBucket, "doc.txt", bytes.NewReader([]byte("hello")), "text/plain")
	require.Error(t, err)
	assert.ErrorIs(t, err, blobx.ErrStorageFailure)
}

func TestLazyBackend_StartupFailure(t *testing.T) {
	proxy := newLazyBackend()
	proxy.setErr(errors.New("no credentials"))

	_, err := proxy.Get(context.Background(), testBucket, "doc.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, blobx.ErrStorageFailure)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestLazyBackend_WaitHonoursContext(t *testing.T) {
	proxy := newLazyBackend()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := proxy.Delete(ctx, testBucket, "doc.txt")
	assert.ErrorIs(t, err, blobx.ErrAborted)
}

func TestLazyBackend_Delegates(t *testing.T) {
	ctx := context.Background()
	proxy := newLazyBackend()
	proxy.setBackend(newTestBackend(t, nil))

	require.NoError(t, proxy.Upload(ctx, testBucket, "doc.txt", bytes.NewReader([]byte("hello")), "text/plain"))
	obj, err := proxy.Get(ctx, testBucket, "doc.txt")
	require.NoError(t, err)
	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, proxy.Delete(ctx, testBucket, "doc.txt"))
}
