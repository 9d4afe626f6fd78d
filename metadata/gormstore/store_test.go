package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/gostratum/blobx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func sqliteConfig(t *testing.T) blobx.MetadataConfig {
	t.Helper()
	return blobx.MetadataConfig{
		Driver:       blobx.DriverSQLite,
		DSN:          "file:" + filepath.Join(t.TempDir(), "meta.db"),
		MaxOpenConns: 1,
	}
}

func newTestStore(t *testing.T, opts ...blobx.Option) *Store {
	t.Helper()

	db, err := Open(sqliteConfig(t))
	require.NoError(t, err)

	store := New(db, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Contract(t *testing.T) {
	testutil.RunMetadataStoreTests(t, func(t *testing.T) blobx.MetadataStore {
		return newTestStore(t)
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	cfg := sqliteConfig(t)
	ctx := context.Background()

	db, err := Open(cfg)
	require.NoError(t, err)
	first := New(db)

	created, err := first.Create(ctx, blobx.Location{Provider: blobx.ProviderAWSS3, Bucket: "bucket-a", Key: "doc.txt"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	db, err = Open(cfg)
	require.NoError(t, err)
	second := New(db)
	defer second.Close()

	got, err := second.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Location, got.Location)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestStore_UsesClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, blobx.WithClock(testutil.FixedClock(start, time.Hour)))
	ctx := context.Background()

	created, err := store.Create(ctx, blobx.Location{Provider: blobx.ProviderGCP, Bucket: "b", Key: "k"})
	require.NoError(t, err)

	updated, err := store.Update(ctx, created.ID, blobx.Location{Provider: blobx.ProviderGCP, Bucket: "b", Key: "k2"})
	require.NoError(t, err)
	assert.True(t, start.Equal(updated.CreatedAt))
	assert.True(t, start.Add(time.Hour).Equal(updated.UpdatedAt))
}

func TestStore_ListSkipsMalformedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, blobx.Location{Provider: blobx.ProviderGCP, Bucket: "b", Key: "k"})
	require.NoError(t, err)

	bad := objectRecord{
		ID:              "not-a-uuid",
		StorageProvider: string(blobx.ProviderGCP),
		BucketName:      "b",
		KeyName:         "bad",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, store.DB().Create(&bad).Error)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_Ping(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))

	check := &dbHealthCheck{store: store}
	assert.Equal(t, "blobx.metadata", check.Name())
	assert.NoError(t, check.Check(context.Background()))
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: blobx.DriverSQLite, want: "sqlite"},
		{driver: blobx.DriverMySQL, want: "mysql"},
		{driver: blobx.DriverPostgres, want: "postgres"},
		{driver: blobx.DriverMemory, wantErr: true},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(blobx.MetadataConfig{Driver: tt.driver, DSN: "dsn"})
			if tt.wantErr {
				assert.ErrorIs(t, err, blobx.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestModule(t *testing.T) {
	cfg := blobx.DefaultConfig()
	cfg.Metadata = sqliteConfig(t)

	var store blobx.MetadataStore
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&store),
	)
	app.RequireStart()

	id := uuid.New()
	_, err := store.Get(context.Background(), id)
	assert.ErrorIs(t, err, blobx.ErrMetadataNotFound)

	app.RequireStop()
	require.NoError(t, store.(*Store).Close())
}
