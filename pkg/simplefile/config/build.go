package config

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/simple-file/pkg/simplefile"
	"github.com/tendant/simple-file/pkg/simplefile/blob"
	badgerdriver "github.com/tendant/simple-file/pkg/simplefile/driver/badger"
	"github.com/tendant/simple-file/pkg/simplefile/driver/memory"
	"github.com/tendant/simple-file/pkg/simplefile/driver/postgres"
	s3driver "github.com/tendant/simple-file/pkg/simplefile/driver/s3"
	"github.com/tendant/simple-file/pkg/simplefile/objectkey"
	"github.com/tendant/simple-file/pkg/simplefile/urlstrategy"
)

// BuildService creates a Service from the configuration. The driver is
// constructed on first use; extra options are applied last.
func (c *Config) BuildService(extra ...simplefile.Option) (simplefile.Service, error) {
	mb, err := c.UploadMaxSizeMB()
	if err != nil {
		return nil, err
	}

	keys, err := objectkey.NewGenerator(c.KeyLayout)
	if err != nil {
		return nil, err
	}

	provider := simplefile.NewProvider(c.Registry(), c.Driver)
	strategy, err := c.URLStrategyFor(provider)
	if err != nil {
		return nil, err
	}

	options := []simplefile.Option{
		simplefile.WithProvider(provider),
		simplefile.WithLinker(simplefile.NewLinker(c.BaseURL, c.AssetBaseURL, simplefile.WithURLStrategy(strategy))),
		simplefile.WithKeyGenerator(keys),
		simplefile.WithUploadMaxSizeMB(mb),
		simplefile.WithNameNormalization(!c.KeepOriginalName),
		simplefile.WithFetchTimeout(c.FetchTimeout),
	}
	if c.UserAgent != "" {
		options = append(options, simplefile.WithUserAgent(c.UserAgent))
	}
	if c.TempDir != "" {
		options = append(options, simplefile.WithTempDir(c.TempDir))
	}
	options = append(options, extra...)

	return simplefile.New(options...)
}

// URLStrategyFor builds the configured download URL strategy. The
// storage-delegated strategy presigns through the provider's driver, which
// is built on first use.
func (c *Config) URLStrategyFor(provider *simplefile.Provider) (urlstrategy.Strategy, error) {
	sc := urlstrategy.Config{
		Type:       urlstrategy.StrategyType(c.URLStrategy),
		APIBaseURL: c.BaseURL,
		CDNBaseURL: c.CDNBaseURL,
	}
	if sc.Type == urlstrategy.StrategyTypeStorageDelegated {
		sc.Presigners = map[string]urlstrategy.Presigner{
			"s3": urlstrategy.PresignerFunc(func(ctx context.Context, storagePath, filename string) (string, error) {
				d, err := provider.Driver()
				if err != nil {
					return "", err
				}
				p, ok := d.(urlstrategy.Presigner)
				if !ok {
					return "", fmt.Errorf("driver %s cannot presign downloads", provider.Name())
				}
				return p.PresignDownload(ctx, storagePath, filename)
			}),
		}
	}
	return urlstrategy.NewStrategy(sc)
}

// Registry returns a registry holding a factory for every built-in driver
func (c *Config) Registry() *simplefile.Registry {
	r := simplefile.NewRegistry()
	r.Register(memory.Name, func() (simplefile.Driver, error) {
		return memory.New(), nil
	})
	r.Register(postgres.Name, c.buildPostgres)
	r.Register(badgerdriver.Name, c.buildBadger)
	r.Register(s3driver.Name, c.buildS3)
	return r
}

func (c *Config) buildPostgres() (simplefile.Driver, error) {
	blobs, err := blob.NewOS(c.Blob.Dir)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	d, err := postgres.Open(ctx, c.Postgres.URL, c.Postgres.Schema, blobs)
	if err != nil {
		return nil, err
	}
	if c.Postgres.Migrate {
		if err := d.Migrate(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return d, nil
}

func (c *Config) buildBadger() (simplefile.Driver, error) {
	blobs, err := blob.NewOS(c.Blob.Dir)
	if err != nil {
		return nil, err
	}
	return badgerdriver.Open(c.Badger.Dir, blobs)
}

func (c *Config) buildS3() (simplefile.Driver, error) {
	return s3driver.New(s3driver.Config{
		Region:                 c.S3.Region,
		Bucket:                 c.S3.Bucket,
		Prefix:                 c.S3.Prefix,
		AccessKeyID:            c.S3.AccessKeyID,
		SecretAccessKey:        c.S3.SecretAccessKey,
		Endpoint:               c.S3.Endpoint,
		UsePathStyle:           c.S3.UsePathStyle,
		EnableSSE:              c.S3.EnableSSE,
		SSEAlgorithm:           c.S3.SSEAlgorithm,
		SSEKMSKeyID:            c.S3.SSEKMSKeyID,
		CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		PresignDuration:        int(c.S3.PresignDuration / time.Second),
	})
}
