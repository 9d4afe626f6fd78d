package blobx

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures with ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// ValidateConfig checks the whole configuration and reports every problem
// in a single ValidationError.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "configuration cannot be nil"}
	}

	var errs []string

	enabled := cfg.EnabledProviders()
	if len(enabled) == 0 {
		errs = append(errs, "at least one provider must be enabled (aws, gcp or minio)")
	}

	errs = append(errs, validatePolicy(&cfg.Policy, enabled)...)

	if cfg.AWS.Enabled {
		errs = append(errs, prefixAll("aws.", validateS3(&cfg.AWS))...)
	}
	if cfg.GCP.Enabled {
		errs = append(errs, prefixAll("gcp.", validateGCS(&cfg.GCP))...)
	}
	if cfg.MinIO.Enabled {
		errs = append(errs, prefixAll("minio.", validateMinIO(&cfg.MinIO))...)
	}

	errs = append(errs, prefixAll("metadata.", validateMetadata(&cfg.Metadata))...)
	errs = append(errs, prefixAll("http.", validateHTTP(&cfg.HTTP))...)

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "config",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

func validatePolicy(p *PolicyConfig, enabled []Provider) []string {
	var errs []string

	switch p.Name {
	case PolicyRandom, PolicyRoundRobin:
	case PolicyFixed:
		prov, err := ParseProvider(p.FixedProvider)
		if err != nil {
			errs = append(errs, fmt.Sprintf("policy.fixed_provider %q is not a valid provider", p.FixedProvider))
		} else if !containsProvider(enabled, prov) {
			errs = append(errs, fmt.Sprintf("policy.fixed_provider %s is not enabled", prov))
		}
	case PolicyWeighted:
		if len(p.Weights) == 0 {
			errs = append(errs, "policy.weights must be set for the weighted policy")
		}
		for name, w := range p.Weights {
			prov, err := ParseProvider(name)
			if err != nil {
				errs = append(errs, fmt.Sprintf("policy.weights has invalid provider %q", name))
				continue
			}
			if !containsProvider(enabled, prov) {
				errs = append(errs, fmt.Sprintf("policy.weights names disabled provider %s", prov))
			}
			if w <= 0 {
				errs = append(errs, fmt.Sprintf("policy.weights[%s] must be positive", prov))
			}
		}
		for _, prov := range enabled {
			if _, ok := p.Weights[string(prov)]; !ok {
				errs = append(errs, fmt.Sprintf("policy.weights is missing enabled provider %s", prov))
			}
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported policy.name %q", p.Name))
	}

	return errs
}

func validateS3(cfg *S3Config) []string {
	var errs []string

	if cfg.DefaultBucket != "" {
		if err := validateBucketName(cfg.DefaultBucket); err != nil {
			errs = append(errs, fmt.Sprintf("invalid default_bucket: %v", err))
		}
	}

	// Region is required for AWS, optional for custom endpoints
	if cfg.Region == "" && cfg.Endpoint == "" {
		errs = append(errs, "region is required when endpoint is not specified")
	}

	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		errs = append(errs, "both access_key and secret_key must be set together")
	}

	// RoleARN is not a credential by itself: it needs a source for the STS call.
	if cfg.AccessKey == "" && cfg.Profile == "" && !cfg.UseSDKDefaults {
		errs = append(errs, "credentials required: provide access_key+secret_key, profile, or enable use_sdk_defaults")
	}

	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "request_timeout must be positive")
	}
	if cfg.RequestTimeout > 10*time.Minute {
		errs = append(errs, "request_timeout should not exceed 10 minutes")
	}

	if cfg.MaxRetries < 0 {
		errs = append(errs, "max_retries cannot be negative")
	}
	if cfg.MaxRetries > 10 {
		errs = append(errs, "max_retries should not exceed 10")
	}

	if cfg.BackoffInitial <= 0 {
		errs = append(errs, "backoff_initial must be positive")
	}
	if cfg.BackoffMax <= cfg.BackoffInitial {
		errs = append(errs, "backoff_max must be greater than backoff_initial")
	}

	if cfg.PartSize < 5<<20 { // 5MB minimum for S3
		errs = append(errs, "part_size must be at least 5MB for S3 compatibility")
	}
	if cfg.PartSize > 5<<30 { // 5GB maximum for S3
		errs = append(errs, "part_size must not exceed 5GB for S3 compatibility")
	}
	if cfg.MultipartThreshold < cfg.PartSize {
		errs = append(errs, "multipart_threshold must be at least part_size")
	}

	if cfg.Parallel <= 0 {
		errs = append(errs, "parallel must be positive")
	}
	if cfg.Parallel > 50 {
		errs = append(errs, "parallel should not exceed 50")
	}

	if cfg.Endpoint != "" {
		if err := validateEndpoint(cfg.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("invalid endpoint: %v", err))
		}
	}

	if cfg.RoleARN != "" && !isPlausibleRoleARN(cfg.RoleARN) {
		errs = append(errs, "role_arn looks invalid: must be a valid IAM role ARN (e.g., arn:aws:iam::123456789012:role/RoleName)")
	}

	return errs
}

func validateGCS(cfg *GCSConfig) []string {
	var errs []string

	if cfg.DefaultBucket != "" {
		if err := validateBucketName(cfg.DefaultBucket); err != nil {
			errs = append(errs, fmt.Sprintf("invalid default_bucket: %v", err))
		}
	}
	if cfg.WithoutAuth && cfg.Endpoint == "" {
		errs = append(errs, "without_auth is only allowed together with a custom endpoint")
	}
	if cfg.WithoutAuth && cfg.CredentialsFile != "" {
		errs = append(errs, "credentials_file and without_auth are mutually exclusive")
	}
	if cfg.Endpoint != "" {
		if err := validateEndpoint(cfg.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("invalid endpoint: %v", err))
		}
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "request_timeout must be positive")
	}
	if cfg.ChunkSize < 0 {
		errs = append(errs, "chunk_size cannot be negative")
	}

	return errs
}

func validateMinIO(cfg *MinIOConfig) []string {
	var errs []string

	if cfg.Endpoint == "" {
		errs = append(errs, "endpoint is required")
	} else if strings.Contains(cfg.Endpoint, "://") {
		errs = append(errs, "endpoint must be host:port without a scheme; use use_ssl to select https")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		errs = append(errs, "access_key and secret_key are required")
	}
	if cfg.DefaultBucket != "" {
		if err := validateBucketName(cfg.DefaultBucket); err != nil {
			errs = append(errs, fmt.Sprintf("invalid default_bucket: %v", err))
		}
	}
	if cfg.PartSize != 0 && cfg.PartSize < 5<<20 {
		errs = append(errs, "part_size must be at least 5MB")
	}

	return errs
}

func validateMetadata(cfg *MetadataConfig) []string {
	var errs []string

	switch cfg.Driver {
	case DriverMemory:
	case DriverSQLite, DriverMySQL, DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			errs = append(errs, fmt.Sprintf("dsn is required for driver %s", cfg.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}

	if cfg.MaxOpenConns < 0 || cfg.MaxIdleConns < 0 {
		errs = append(errs, "connection pool sizes cannot be negative")
	}
	if cfg.MaxOpenConns > 0 && cfg.MaxIdleConns > cfg.MaxOpenConns {
		errs = append(errs, "max_idle_conns cannot exceed max_open_conns")
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, "cache_ttl cannot be negative")
	}

	return errs
}

func validateHTTP(cfg *HTTPConfig) []string {
	var errs []string

	if cfg.ListenAddr == "" {
		errs = append(errs, "listen_addr cannot be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		errs = append(errs, "max_upload_bytes must be positive")
	}
	if cfg.RateLimit < 0 {
		errs = append(errs, "rate_limit cannot be negative")
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		errs = append(errs, "rate_burst must be positive when rate_limit is set")
	}

	return errs
}

func prefixAll(prefix string, msgs []string) []string {
	for i := range msgs {
		msgs[i] = prefix + msgs[i]
	}
	return msgs
}

// isPlausibleRoleARN performs a light-weight validation of an IAM role ARN
func isPlausibleRoleARN(arn string) bool {
	// Expected form: arn:partition:service:region:account-id:resource
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" || parts[2] != "iam" {
		return false
	}
	if !isNumeric(parts[4]) {
		return false
	}
	return strings.HasPrefix(parts[5], "role/")
}

// validateBucketName validates S3/GCS bucket naming rules
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}

	if strings.HasPrefix(bucket, "-") || strings.HasSuffix(bucket, "-") {
		return fmt.Errorf("bucket name cannot start or end with a hyphen")
	}

	if strings.HasPrefix(bucket, ".") || strings.HasSuffix(bucket, ".") {
		return fmt.Errorf("bucket name cannot start or end with a period")
	}

	if strings.Contains(bucket, "..") {
		return fmt.Errorf("bucket name cannot contain consecutive periods")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return fmt.Errorf("bucket name contains invalid character: %c", char)
		}
	}

	parts := strings.Split(bucket, ".")
	if len(parts) == 4 {
		allNumeric := true
		for _, part := range parts {
			if !isNumeric(part) {
				allNumeric = false
				break
			}
		}
		if allNumeric {
			return fmt.Errorf("bucket name cannot be formatted as an IP address")
		}
	}

	return nil
}

// isValidBucketChar checks if a character is valid in bucket names
func isValidBucketChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '.' || char == '_'
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

// validateEndpoint validates the endpoint URL format
func validateEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return nil
	}

	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("endpoint protocol must be http or https")
	}

	if strings.Contains(endpoint, " ") {
		return fmt.Errorf("endpoint cannot contain spaces")
	}

	return nil
}

// Normalize fills unset values with defaults and tidies user input. It
// returns a copy and never mutates the receiver.
func (cfg *Config) Normalize() *Config {
	if cfg == nil {
		return DefaultConfig()
	}

	n := *cfg
	def := DefaultConfig()

	if n.Policy.Name == "" {
		n.Policy.Name = PolicyRandom
	}
	n.Policy.Name = strings.ToLower(strings.TrimSpace(n.Policy.Name))
	n.Policy.FixedProvider = strings.TrimSpace(n.Policy.FixedProvider)
	if len(n.Policy.Weights) > 0 {
		// viper lowercases map keys, so weight keys are matched case-insensitively.
		weights := make(map[string]int, len(n.Policy.Weights))
		for name, w := range n.Policy.Weights {
			weights[strings.ToUpper(strings.TrimSpace(name))] = w
		}
		n.Policy.Weights = weights
	}

	if n.AWS.Region == "" && n.AWS.Endpoint == "" {
		n.AWS.Region = def.AWS.Region
	}
	if n.AWS.RequestTimeout == 0 {
		n.AWS.RequestTimeout = def.AWS.RequestTimeout
	}
	if n.AWS.MaxRetries == 0 {
		n.AWS.MaxRetries = def.AWS.MaxRetries
	}
	if n.AWS.BackoffInitial == 0 {
		n.AWS.BackoffInitial = def.AWS.BackoffInitial
	}
	if n.AWS.BackoffMax == 0 {
		n.AWS.BackoffMax = def.AWS.BackoffMax
	}
	if n.AWS.PartSize == 0 {
		n.AWS.PartSize = def.AWS.PartSize
	}
	if n.AWS.MultipartThreshold == 0 {
		n.AWS.MultipartThreshold = def.AWS.MultipartThreshold
	}
	if n.AWS.Parallel == 0 {
		n.AWS.Parallel = def.AWS.Parallel
	}
	n.AWS.Endpoint = strings.TrimSuffix(strings.TrimSpace(n.AWS.Endpoint), "/")

	if n.GCP.RequestTimeout == 0 {
		n.GCP.RequestTimeout = def.GCP.RequestTimeout
	}
	n.GCP.Endpoint = strings.TrimSuffix(strings.TrimSpace(n.GCP.Endpoint), "/")

	if n.MinIO.Region == "" {
		n.MinIO.Region = def.MinIO.Region
	}
	n.MinIO.Endpoint = strings.TrimSpace(n.MinIO.Endpoint)

	if n.Metadata.Driver == "" {
		n.Metadata.Driver = def.Metadata.Driver
	}
	n.Metadata.Driver = strings.ToLower(strings.TrimSpace(n.Metadata.Driver))

	if n.HTTP.ListenAddr == "" {
		n.HTTP.ListenAddr = def.HTTP.ListenAddr
	}
	if n.HTTP.MaxUploadBytes == 0 {
		n.HTTP.MaxUploadBytes = def.HTTP.MaxUploadBytes
	}
	if n.HTTP.ReadTimeout == 0 {
		n.HTTP.ReadTimeout = def.HTTP.ReadTimeout
	}
	if n.HTTP.WriteTimeout == 0 {
		n.HTTP.WriteTimeout = def.HTTP.WriteTimeout
	}
	if n.HTTP.ShutdownTimeout == 0 {
		n.HTTP.ShutdownTimeout = def.HTTP.ShutdownTimeout
	}

	return &n
}

const redacted = "[redacted]"

// Sanitize implements logx.Sanitizable: it returns a copy with every secret
// redacted so the config can be logged with logx.Any.
func (cfg *Config) Sanitize() any {
	if cfg == nil {
		return (*Config)(nil)
	}

	s := *cfg
	redact := func(v *string) {
		if *v != "" {
			*v = redacted
		}
	}
	redact(&s.AWS.AccessKey)
	redact(&s.AWS.SecretKey)
	redact(&s.AWS.SessionToken)
	redact(&s.AWS.ExternalID)
	redact(&s.MinIO.AccessKey)
	redact(&s.MinIO.SecretKey)
	if s.Metadata.Driver == DriverMySQL || s.Metadata.Driver == DriverPostgres {
		redact(&s.Metadata.DSN)
	}
	if s.Policy.Weights != nil {
		weights := make(map[string]int, len(s.Policy.Weights))
		for k, v := range s.Policy.Weights {
			weights[k] = v
		}
		s.Policy.Weights = weights
	}

	return &s
}
