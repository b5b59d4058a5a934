package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/caskstore/cask/internal/logger"
	"github.com/caskstore/cask/pkg/registry"
	"github.com/caskstore/cask/pkg/storage"
	"github.com/caskstore/cask/pkg/storage/azure"
	"github.com/caskstore/cask/pkg/storage/localfs"
	"github.com/caskstore/cask/pkg/storage/memory"
	"github.com/caskstore/cask/pkg/storage/s3"
	"github.com/caskstore/cask/pkg/storage/sftp"
)

// BuildRegistry creates a backend for every configured profile and
// registers them under their profile names. The configured default
// profile becomes the registry default.
func BuildRegistry(ctx context.Context, cfg *Config) (*registry.Registry, error) {
	reg := registry.NewRegistry()

	for i := range cfg.Profiles {
		profile := &cfg.Profiles[i]
		backend, err := CreateBackend(ctx, profile)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("profile %q: %w", profile.Name, err)
		}
		if err := reg.Register(profile.Name, backend); err != nil {
			reg.Close()
			return nil, err
		}
	}

	if cfg.DefaultProfile != "" {
		if err := reg.SetDefault(cfg.DefaultProfile); err != nil {
			reg.Close()
			return nil, err
		}
	}

	return reg, nil
}

// CreateBackend creates a storage backend based on a profile's type.
//
// This factory function uses the Type field to determine which backend
// implementation to create, then decodes the type-specific options from
// the corresponding map and passes them to the backend's constructor.
func CreateBackend(ctx context.Context, profile *ProfileConfig) (storage.Backend, error) {
	switch profile.Type {
	case "s3":
		return createS3Backend(ctx, profile.Name, profile.S3)
	case "azure":
		return createAzureBackend(profile.Name, profile.Azure)
	case "sftp":
		return createSFTPBackend(profile.Name, profile.SFTP)
	case "localfs":
		return createLocalFSBackend(profile.Name, profile.LocalFS)
	case "memory":
		return createMemoryBackend(profile.Name, profile.Memory)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", profile.Type)
	}
}

// linkOptions are the internal-link settings shared by the backends
// without native pre-authorized URLs.
type linkOptions struct {
	Secret       string `mapstructure:"secret"`
	LinkEndpoint string `mapstructure:"link_endpoint"`
}

func createS3Backend(ctx context.Context, name string, options map[string]any) (storage.Backend, error) {
	type s3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		ChunkSize       int    `mapstructure:"chunk_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 options: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 backend: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 backend: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint support for MinIO, Localstack, etc.
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default chain.
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Path-style addressing for S3-compatible endpoints.
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	backend, err := s3.New(s3.Config{
		Name:      name,
		Client:    client,
		Presigner: awss3.NewPresignClient(client),
		Bucket:    opts.Bucket,
		ChunkSize: opts.ChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("S3 backend initialized: name=%s, bucket=%s, region=%s", name, opts.Bucket, opts.Region)
	return backend, nil
}

func createAzureBackend(name string, options map[string]any) (storage.Backend, error) {
	type azureOptions struct {
		AccountName string `mapstructure:"account_name"`
		AccountKey  string `mapstructure:"account_key"`
		ServiceURL  string `mapstructure:"service_url"`
		Container   string `mapstructure:"container"`
		ChunkSize   int    `mapstructure:"chunk_size"`
	}

	var opts azureOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode Azure options: %w", err)
	}

	if opts.AccountName == "" || opts.AccountKey == "" {
		return nil, fmt.Errorf("Azure backend: account_name and account_key are required")
	}
	if opts.Container == "" {
		return nil, fmt.Errorf("Azure backend: container is required")
	}

	serviceURL := opts.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}

	container, err := azure.NewSDKContainer(serviceURL, opts.Container, opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure container client: %w", err)
	}

	backend, err := azure.New(azure.Config{
		Name:      name,
		Container: container,
		ChunkSize: opts.ChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure backend: %w", err)
	}

	logger.Info("Azure backend initialized: name=%s, container=%s", name, opts.Container)
	return backend, nil
}

func createSFTPBackend(name string, options map[string]any) (storage.Backend, error) {
	type sftpOptions struct {
		linkOptions `mapstructure:",squash"`

		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		KeyFile  string `mapstructure:"key_file"`
		BasePath string `mapstructure:"base_path"`
	}

	var opts sftpOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode SFTP options: %w", err)
	}

	var privateKey []byte
	if opts.KeyFile != "" {
		key, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key file %s: %w", opts.KeyFile, err)
		}
		privateKey = key
	}

	backend, err := sftp.New(sftp.Config{
		Name:       name,
		Host:       opts.Host,
		Port:       opts.Port,
		Username:   opts.Username,
		Password:   opts.Password,
		PrivateKey: privateKey,
		BasePath:   opts.BasePath,
		Secret:     []byte(opts.Secret),
		Endpoint:   opts.LinkEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP backend: %w", err)
	}

	logger.Info("SFTP backend initialized: name=%s, host=%s", name, opts.Host)
	return backend, nil
}

func createLocalFSBackend(name string, options map[string]any) (storage.Backend, error) {
	type localOptions struct {
		linkOptions `mapstructure:",squash"`

		Root string `mapstructure:"root"`
	}

	var opts localOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode localfs options: %w", err)
	}

	if opts.Root == "" {
		return nil, fmt.Errorf("localfs backend: root is required")
	}

	backend, err := localfs.New(name, opts.Root, []byte(opts.Secret), opts.LinkEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create localfs backend: %w", err)
	}

	logger.Info("localfs backend initialized: name=%s, root=%s", name, opts.Root)
	return backend, nil
}

func createMemoryBackend(name string, options map[string]any) (storage.Backend, error) {
	var opts linkOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory options: %w", err)
	}

	return memory.New(name, []byte(opts.Secret), opts.LinkEndpoint), nil
}
