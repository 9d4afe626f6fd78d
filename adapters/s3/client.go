package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/cenkalti/backoff/v4"
	"github.com/gostratum/blobx"
	"github.com/gostratum/core/logx"
)

// ClientConfig holds the configuration for creating S3 clients
type ClientConfig struct {
	Config *blobx.S3Config
	Logger logx.Logger
}

// ClientManager owns the S3 client and bucket-level helpers
type ClientManager struct {
	s3Client *s3.Client
	config   *blobx.S3Config
	logger   logx.Logger
}

// NewClientManager creates a new S3 client manager
func NewClientManager(ctx context.Context, clientConfig ClientConfig) (*ClientManager, error) {
	if clientConfig.Config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if clientConfig.Logger == nil {
		clientConfig.Logger = logx.NewNoopLogger()
	}

	cfg := clientConfig.Config
	logger := clientConfig.Logger

	logger.Debug("Creating S3 client manager", blobx.ArgsToFields(
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"use_path_style", cfg.UsePathStyle,
	)...)

	awsConfig, credSource, err := buildAWSConfigWithLoader(ctx, cfg, logger, func(ctx context.Context, opts ...func(*config.LoadOptions) error) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx, opts...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	logger.Info("Credential source selected", blobx.ArgsToFields("cred_source", credSource)...)

	manager := NewClientManagerFromClient(newS3Client(awsConfig, cfg), cfg, logger)

	if cfg.DefaultBucket != "" {
		if err := manager.validateConnection(ctx, cfg.DefaultBucket); err != nil {
			return nil, fmt.Errorf("failed to validate S3 connection: %w", err)
		}
	}

	logger.Info("S3 client manager created successfully", blobx.ArgsToFields("region", cfg.Region)...)

	return manager, nil
}

// NewClientManagerFromClient wraps an existing client. Useful for tests and
// for applications that build the client themselves.
func NewClientManagerFromClient(client *s3.Client, cfg *blobx.S3Config, logger logx.Logger) *ClientManager {
	if logger == nil {
		logger = logx.NewNoopLogger()
	}
	return &ClientManager{
		s3Client: client,
		config:   cfg,
		logger:   logger,
	}
}

func newS3Client(awsConfig aws.Config, cfg *blobx.S3Config) *s3.Client {
	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.GetEndpointURL())
			// S3-compatible endpoints often reject the SDK's default trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}

		o.RetryMaxAttempts = cfg.MaxRetries
		o.RetryMode = aws.RetryModeAdaptive

		o.HTTPClient = &http.Client{
			Timeout: cfg.RequestTimeout,
		}
	})
}

// awsConfigLoader is a function that loads an aws.Config given LoadOptions.
type awsConfigLoader func(ctx context.Context, opts ...func(*config.LoadOptions) error) (aws.Config, error)

// buildAWSConfigWithLoader builds an AWS config using the supplied loader (testable).
// It returns the loaded aws.Config and the detected credential source (one of:
// "static", "profile", "sdk-default", "assumed-role").
func buildAWSConfigWithLoader(ctx context.Context, cfg *blobx.S3Config, logger logx.Logger, loader awsConfigLoader) (aws.Config, string, error) {
	var options []func(*config.LoadOptions) error
	credSource := "unknown"

	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}

	logger.Debug("S3 credential settings", blobx.ArgsToFields(
		"access_key_set", cfg.AccessKey != "",
		"secret_key_set", cfg.SecretKey != "",
		"use_sdk_defaults", cfg.UseSDKDefaults,
		"profile", cfg.Profile,
	)...)

	switch {
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		credProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
		options = append(options, config.WithCredentialsProvider(credProvider))
		credSource = "static"
	case cfg.Profile != "":
		options = append(options, config.WithSharedConfigProfile(cfg.Profile))
		credSource = "profile"
	case !cfg.UseSDKDefaults:
		return aws.Config{}, credSource, fmt.Errorf("use_sdk_defaults is false but no explicit credentials provided (access_key/secret_key or profile)")
	}

	options = append(options, config.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = cfg.MaxRetries
			o.MaxBackoff = cfg.BackoffMax
			o.Backoff = createBackoffStrategy(cfg)
		})
	}))

	awsConfig, err := loader(ctx, options...)
	if err != nil {
		return aws.Config{}, credSource, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	if credSource == "unknown" {
		credSource = "sdk-default"
	}

	logger.Debug("AWS config loaded", blobx.ArgsToFields(
		"region", awsConfig.Region,
		"max_retries", cfg.MaxRetries,
		"cred_source", credSource,
	)...)

	// AssumeRole authenticates to STS with whatever credentials were loaded above.
	if cfg.RoleARN != "" {
		logger.Info("Config requests STS AssumeRole", blobx.ArgsToFields("role_arn", cfg.RoleARN)...)

		stsClient := sts.NewFromConfig(awsConfig)
		assumeProv := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.ExternalID != "" {
				o.ExternalID = aws.String(cfg.ExternalID)
			}
			o.RoleSessionName = "blobx-assume-role"
		})

		awsConfig.Credentials = aws.NewCredentialsCache(assumeProv)
		credSource = "assumed-role"
	}

	return awsConfig, credSource, nil
}

// createBackoffStrategy returns an exponential backoff with jitter for the SDK retryer
func createBackoffStrategy(cfg *blobx.S3Config) retry.BackoffDelayerFunc {
	return func(attempt int, err error) (time.Duration, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.BackoffInitial
		b.MaxInterval = cfg.BackoffMax
		b.MaxElapsedTime = 0
		b.Multiplier = 2.0
		b.RandomizationFactor = 0.1
		b.Reset()

		var delay time.Duration
		for i := 0; i < attempt; i++ {
			delay = b.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}

		return delay, nil
	}
}

// validateConnection heads bucket to verify access and connectivity
func (cm *ClientManager) validateConnection(ctx context.Context, bucket string) error {
	_, err := cm.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		cm.logger.Warn("Failed to validate bucket access", blobx.ArgsToFields(
			"bucket", bucket,
			"error", err,
		)...)
		return fmt.Errorf("cannot access bucket %q: %w", bucket, err)
	}

	cm.logger.Debug("Bucket access validated", blobx.ArgsToFields("bucket", bucket)...)
	return nil
}

// GetS3Client returns the configured S3 client
func (cm *ClientManager) GetS3Client() *s3.Client {
	return cm.s3Client
}

// GetConfig returns the S3 configuration
func (cm *ClientManager) GetConfig() *blobx.S3Config {
	return cm.config
}

// BucketExists checks if bucket exists and is accessible
func (cm *ClientManager) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := cm.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var notFound *s3Types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}

	return true, nil
}

// CreateBucketIfNotExists creates bucket if it doesn't exist
func (cm *ClientManager) CreateBucketIfNotExists(ctx context.Context, bucket string) error {
	exists, err := cm.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if exists {
		cm.logger.Debug("Bucket already exists", blobx.ArgsToFields("bucket", bucket)...)
		return nil
	}

	cm.logger.Info("Creating bucket", blobx.ArgsToFields("bucket", bucket)...)

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}

	// Regions other than us-east-1 need a location constraint
	if cm.config.Region != "" && cm.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &s3Types.CreateBucketConfiguration{
			LocationConstraint: s3Types.BucketLocationConstraint(cm.config.Region),
		}
	}

	if _, err := cm.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}

	cm.logger.Info("Bucket created successfully", blobx.ArgsToFields("bucket", bucket)...)
	return nil
}
