package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/store/content"
	contentfs "github.com/marmos91/dittodrive/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittodrive/pkg/store/content/memory"
	"github.com/marmos91/dittodrive/pkg/store/content/s3"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata/sqldb"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
)

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	s3.ClientConfig `mapstructure:",squash"`

	Bucket    string `mapstructure:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix"`
	PartSize  int64  `mapstructure:"part_size"`
}

// decodeOptions decodes a backend option map into out. Durations may be
// written as strings ("30s") and numbers may arrive as strings from env.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// CreateMetadataStore creates the metadata store selected by cfg.Type.
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.MetadataStore, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryMetadataStore(cfg.Memory)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	case "sql":
		return createSQLMetadataStore(ctx, cfg.SQL)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

func createMemoryMetadataStore(options map[string]any) (metadata.MetadataStore, error) {
	var memoryCfg metadatamemory.MemoryMetadataStoreConfig
	if err := decodeOptions(options, &memoryCfg); err != nil {
		return nil, fmt.Errorf("invalid memory metadata config: %w", err)
	}
	return metadatamemory.NewMemoryMetadataStore(memoryCfg), nil
}

func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.MetadataStore, error) {
	var badgerCfg badger.BadgerMetadataStoreConfig
	if err := decodeOptions(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return store, nil
}

func createSQLMetadataStore(ctx context.Context, options map[string]any) (metadata.MetadataStore, error) {
	var sqlCfg sqldb.SQLMetadataStoreConfig
	if err := decodeOptions(options, &sqlCfg); err != nil {
		return nil, fmt.Errorf("invalid sql config: %w", err)
	}

	store, err := sqldb.NewSQLMetadataStore(ctx, sqlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", sqlCfg.Dialect, err)
	}
	return store, nil
}

// CreateContentStore creates the payload store selected by cfg.Type and
// wraps it with m. Pass nil to skip instrumentation.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, m metrics.ContentMetrics) (content.ContentStore, error) {
	var (
		store content.ContentStore
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = contentmemory.NewMemoryContentStore()
	case "filesystem":
		store, err = createFilesystemContentStore(ctx, cfg.Filesystem)
	case "s3":
		store, err = createS3ContentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return content.Instrument(store, m), nil
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var fsCfg contentfs.FSContentStoreConfig
	if err := decodeOptions(options, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid filesystem config: %w", err)
	}

	store, err := contentfs.NewFSContentStore(ctx, afero.NewOsFs(), fsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize filesystem store: %w", err)
	}
	return store, nil
}

func createS3ContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var yamlCfg s3YAMLConfig
	if err := decodeOptions(options, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}
	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	client, err := s3.NewS3ClientFromConfig(ctx, yamlCfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	store, err := s3.NewS3ContentStore(ctx, s3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
		PartSize:  yamlCfg.PartSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}
	return store, nil
}
