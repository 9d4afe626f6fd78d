package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/internal/testutil"
	"github.com/gostratum/blobx/metadata/memstore"
	"github.com/gostratum/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	router   http.Handler
	gateway  *blobx.Gateway
	backends *testutil.Backends
	store    *memstore.Store
}

func newFixture(t *testing.T, cfg blobx.HTTPConfig, checks ...core.Check) *fixture {
	t.Helper()

	backends := testutil.NewTestBackends()
	reg, err := blobx.NewRegistry(
		blobx.Registration{Provider: blobx.ProviderAWSS3, Backend: backends.AWS, DefaultBucket: "default-aws"},
		blobx.Registration{Provider: blobx.ProviderGCP, Backend: backends.GCP, DefaultBucket: "default-gcp"},
	)
	require.NoError(t, err)

	policy, err := blobx.NewFixedPolicy(reg.Providers(), blobx.ProviderAWSS3)
	require.NoError(t, err)

	store := memstore.New()
	gw, err := blobx.NewGateway(reg, policy, store)
	require.NoError(t, err)

	handler := NewHandler(gw, checks, nil, cfg.MaxUploadBytes)
	srv := NewServer(cfg, handler, nil)

	return &fixture{router: srv.Router(), gateway: gw, backends: backends, store: store}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, method, target, field, fileName, contentType, body string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + fileName + `"`}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = io.WriteString(part, body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeID(t *testing.T, rec *httptest.ResponseRecorder) uuid.UUID {
	t.Helper()
	var resp uploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.ID
}

func TestUploadGetDelete(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "file", "doc.txt", "text/plain", "hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeID(t, rec)
	assert.True(t, f.backends.AWS.Has("bucket-a", "doc.txt"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/objects/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=doc.txt`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/objects/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.backends.AWS.Has("bucket-a", "doc.txt"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/objects/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "metadata not found")
}

func TestUploadWithExplicitProvider(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects?provider=GCP", "file", "doc.txt", "", "hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decodeID(t, rec)

	assert.True(t, f.backends.GCP.Has("bucket-a", "doc.txt"))
	assert.False(t, f.backends.AWS.Has("bucket-a", "doc.txt"))

	meta, err := f.gateway.GetObjectMetadata(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, blobx.ProviderGCP, meta.Provider)

	// No part content type falls back to octet-stream.
	obj, err := f.gateway.GetObject(context.Background(), id)
	require.NoError(t, err)
	defer obj.Close()
	assert.Equal(t, defaultContentType, obj.ContentType)
}

func TestUploadBadRequests(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{
			name: "invalid provider",
			req:  multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects?provider=aws_s3", "file", "doc.txt", "", "x"),
			want: http.StatusBadRequest,
		},
		{
			name: "wrong field name",
			req:  multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "upload", "doc.txt", "", "x"),
			want: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req:  httptest.NewRequest(http.MethodPost, "/api/buckets/bucket-a/objects", strings.NewReader("hello")),
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{MaxUploadBytes: 64})

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "file", "big.bin", "", strings.Repeat("x", 1024)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.backends.AWS.Len())
}

func TestBackendFailureIsServerError(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})
	f.backends.AWS.FailNext(testutil.OpUpload, errors.New("connection reset"))

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "file", "doc.txt", "", "hello"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, f.store.Len())
}

func TestDeleteFailureKeepsMetadata(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "file", "doc.txt", "", "hello"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeID(t, rec)

	f.backends.AWS.FailNext(testutil.OpDelete, errors.New("service unavailable"))
	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/objects/"+id.String(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/metadata/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidID(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/objects/not-a-uuid", nil),
		httptest.NewRequest(http.MethodDelete, "/api/objects/not-a-uuid", nil),
		httptest.NewRequest(http.MethodGet, "/api/metadata/not-a-uuid", nil),
	} {
		rec := f.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, req.Method+" "+req.URL.Path)
	}
}

func TestMetadataRoutes(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/metadata", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, multipartRequest(t, http.MethodPost, "/api/buckets/bucket-a/objects", "file", "doc.txt", "", "hello"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeID(t, rec)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/metadata", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []blobx.ObjectMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, "bucket-a", list[0].Bucket)

	body := `{"provider":"GCP","bucket_name":"bucket-b","key_name":"moved.txt"}`
	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/metadata/"+id.String(), strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated blobx.ObjectMetadata
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, blobx.ProviderGCP, updated.Provider)
	assert.Equal(t, "bucket-b", updated.Bucket)
	assert.Equal(t, "moved.txt", updated.Key)

	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/metadata/"+id.String(), strings.NewReader(`{"provider":"AZURE","bucket_name":"b","key_name":"k"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/metadata/"+id.String(), strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodPut, "/api/metadata/"+uuid.NewString(), strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDirectRoutes(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{})

	rec := f.do(t, multipartRequest(t, http.MethodPost, "/api/providers/GCP/objects", "file", "direct.txt", "text/plain", "hi"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"provider":"GCP","bucket_name":"default-gcp","key_name":"direct.txt"}`, rec.Body.String())
	assert.True(t, f.backends.GCP.Has("default-gcp", "direct.txt"))
	assert.Equal(t, 0, f.store.Len())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/providers/GCP/objects/direct.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/providers/GCP/objects/direct.txt?bucket=other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/providers/GCP/objects/direct.txt", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.backends.GCP.Has("default-gcp", "direct.txt"))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/providers/gcp/objects/direct.txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// MINIO is a valid tag but has no backend in this registry.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/providers/MINIO/objects/direct.txt", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{RateLimit: 0.001, RateBurst: 1})

	// The first request consumes the only token and reaches the gateway.
	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/objects/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/objects/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Reads are not limited.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/metadata", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubCheck struct {
	name string
	kind core.Kind
	err  error
}

func (c stubCheck) Name() string                    { return c.name }
func (c stubCheck) Kind() core.Kind                 { return c.kind }
func (c stubCheck) Check(ctx context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	f := newFixture(t, blobx.HTTPConfig{}, stubCheck{name: "blobx.metadata", kind: core.Readiness})

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []blobx.Provider{blobx.ProviderAWSS3, blobx.ProviderGCP}, resp.Providers)
	assert.Equal(t, "ok", resp.Checks["blobx.metadata"])

	failing := newFixture(t, blobx.HTTPConfig{}, stubCheck{name: "blobx.s3", kind: core.Readiness, err: errors.New("head bucket failed")})
	rec = failing.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "head bucket failed")
}
