package blobx

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the gateway configuration
type Config struct {
	// Policy selects the provider for new uploads
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`

	// AWS configures the AWS_S3 backend
	AWS S3Config `mapstructure:"aws" yaml:"aws"`

	// GCP configures the GCP backend
	GCP GCSConfig `mapstructure:"gcp" yaml:"gcp"`

	// MinIO configures the MINIO backend
	MinIO MinIOConfig `mapstructure:"minio" yaml:"minio"`

	// Metadata configures the metadata store
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// HTTP configures the HTTP API
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`
}

// PolicyConfig configures provider selection
type PolicyConfig struct {
	// Name is one of random, round_robin, weighted, fixed
	Name string `mapstructure:"name" yaml:"name" default:"random"`

	// FixedProvider is the provider tag used by the fixed policy
	FixedProvider string `mapstructure:"fixed_provider" yaml:"fixed_provider"`

	// Weights maps provider tags to relative weights for the weighted policy
	Weights map[string]int `mapstructure:"weights" yaml:"weights"`
}

// S3Config configures the AWS S3 backend
type S3Config struct {
	// Enabled registers the backend
	Enabled bool `mapstructure:"enabled" yaml:"enabled" default:"false"`

	// DefaultBucket is used by provider-scoped calls
	DefaultBucket string `mapstructure:"default_bucket" yaml:"default_bucket"`

	// Region is the AWS region (e.g., "us-west-2")
	Region string `mapstructure:"region" yaml:"region" default:"us-east-1"`

	// Endpoint is a custom endpoint URL (LocalStack, S3-compatible stores)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing
	UsePathStyle bool `mapstructure:"use_path_style" yaml:"use_path_style" default:"false"`

	// AccessKey is the access key ID
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`

	// SecretKey is the secret access key
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// SessionToken is the temporary session token (optional)
	SessionToken string `mapstructure:"session_token" yaml:"session_token"`

	// UseSDKDefaults lets the AWS SDK default credential chain (env, shared config, instance profile)
	// be used when explicit credentials are not provided
	UseSDKDefaults bool `mapstructure:"use_sdk_defaults" yaml:"use_sdk_defaults" default:"false"`

	// RoleARN optionally specifies a role to assume via STS
	RoleARN string `mapstructure:"role_arn" yaml:"role_arn"`

	// ExternalID is passed to STS AssumeRole when RoleARN is used
	ExternalID string `mapstructure:"external_id" yaml:"external_id"`

	// Profile selects a shared credentials/profile name
	Profile string `mapstructure:"profile" yaml:"profile"`

	// RequestTimeout is the timeout for individual requests
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" default:"3"`

	// BackoffInitial is the initial backoff delay
	BackoffInitial time.Duration `mapstructure:"backoff_initial" yaml:"backoff_initial" default:"200ms"`

	// BackoffMax is the maximum backoff delay
	BackoffMax time.Duration `mapstructure:"backoff_max" yaml:"backoff_max" default:"5s"`

	// MultipartThreshold is the size above which uploads use multipart
	MultipartThreshold int64 `mapstructure:"multipart_threshold" yaml:"multipart_threshold" default:"16777216"` // 16MB

	// PartSize is the multipart upload part size
	PartSize int64 `mapstructure:"part_size" yaml:"part_size" default:"8388608"` // 8MB

	// Parallel is the multipart upload concurrency
	Parallel int `mapstructure:"parallel" yaml:"parallel" default:"4"`

	// DisableSSL disables SSL for connections (development only)
	DisableSSL bool `mapstructure:"disable_ssl" yaml:"disable_ssl" default:"false"`
}

// GetEndpointURL returns the full endpoint URL
func (c *S3Config) GetEndpointURL() string {
	return endpointURL(c.Endpoint, c.DisableSSL)
}

// GCSConfig configures the Google Cloud Storage backend
type GCSConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" default:"false"`
	DefaultBucket string `mapstructure:"default_bucket" yaml:"default_bucket"`
	ProjectID     string `mapstructure:"project_id" yaml:"project_id"`

	// CredentialsFile points to a service account JSON key
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`

	// Endpoint overrides the API endpoint (emulators)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// WithoutAuth disables authentication (emulators only)
	WithoutAuth bool `mapstructure:"without_auth" yaml:"without_auth" default:"false"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`

	// ChunkSize is the resumable upload chunk size; 0 sends the object in one request
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size" default:"16777216"`
}

// MinIOConfig configures the MinIO backend
type MinIOConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled" default:"false"`
	DefaultBucket string `mapstructure:"default_bucket" yaml:"default_bucket"`

	// Endpoint is host:port without scheme
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region" default:"us-east-1"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl" default:"false"`

	// PartSize is the multipart part size used for streams of unknown length
	PartSize uint64 `mapstructure:"part_size" yaml:"part_size" default:"16777216"`
}

// Metadata drivers accepted by MetadataConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// MetadataConfig configures the metadata store
type MetadataConfig struct {
	// Driver is one of memory, sqlite, mysql, postgres
	Driver string `mapstructure:"driver" yaml:"driver" default:"sqlite"`

	// DSN is the driver-specific data source name
	DSN string `mapstructure:"dsn" yaml:"dsn" default:"file:blobx.db"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" default:"30m"`

	// CacheTTL enables the read-through cache when positive
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" default:"0s"`

	// CacheCapacity bounds the number of cached records (0 = unbounded)
	CacheCapacity uint64 `mapstructure:"cache_capacity" yaml:"cache_capacity" default:"10000"`
}

// HTTPConfig configures the HTTP API
type HTTPConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" default:":8080"`

	// MaxUploadBytes bounds the multipart form size accepted by upload routes
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" default:"104857600"` // 100MB

	// RateLimit is the sustained number of mutating requests per second (0 disables)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" default:"50"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" default:"100"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" default:"60s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" default:"15s"`
}

// Prefix implements configx.Configurable and returns the configuration prefix
func (Config) Prefix() string { return "gateway" }

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Policy: PolicyConfig{Name: PolicyRandom},
		AWS: S3Config{
			Region:             "us-east-1",
			RequestTimeout:     30 * time.Second,
			MaxRetries:         3,
			BackoffInitial:     200 * time.Millisecond,
			BackoffMax:         5 * time.Second,
			MultipartThreshold: 16 << 20,
			PartSize:           8 << 20,
			Parallel:           4,
		},
		GCP: GCSConfig{
			RequestTimeout: 30 * time.Second,
			ChunkSize:      16 << 20,
		},
		MinIO: MinIOConfig{
			Region:   "us-east-1",
			PartSize: 16 << 20,
		},
		Metadata: MetadataConfig{
			Driver:          DriverSQLite,
			DSN:             "file:blobx.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			CacheCapacity:   10000,
		},
		HTTP: HTTPConfig{
			ListenAddr:      ":8080",
			MaxUploadBytes:  100 << 20,
			RateLimit:       50,
			RateBurst:       100,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
	}
}

// EnabledProviders returns the providers whose backends are switched on.
func (c *Config) EnabledProviders() []Provider {
	var out []Provider
	if c.AWS.Enabled {
		out = append(out, ProviderAWSS3)
	}
	if c.GCP.Enabled {
		out = append(out, ProviderGCP)
	}
	if c.MinIO.Enabled {
		out = append(out, ProviderMinIO)
	}
	return out
}

// NewConfigFromLoader creates a Config from any loader exposing Unmarshal.
// This is useful for standalone usage without FX dependency injection.
func NewConfigFromLoader(loader interface {
	Unmarshal(any) error
}) (*Config, error) {
	cfg := DefaultConfig()
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	cfg = cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func endpointURL(endpoint string, disableSSL bool) string {
	if endpoint == "" {
		return ""
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}

	scheme := "https"
	if disableSSL {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, endpoint)
}

// String returns a safe string representation (redacts secrets)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Policy:%s, Providers:%v, Metadata:%s, Listen:%s}",
		c.Policy.Name, c.EnabledProviders(), c.Metadata.Driver, c.HTTP.ListenAddr)
}
