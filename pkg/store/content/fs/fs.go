// Package fs implements the content store on a filesystem through afero.
//
// Layout:
//
//	<base>/<ref[0:2]>/<ref>     committed payloads
//	<base>/.tmp/<ref>           payloads being written
//
// A write lands in .tmp and is renamed into place once fully flushed, so a
// crash mid-upload never leaves a truncated payload under a valid ref.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/spf13/afero"
)

const tmpDir = ".tmp"

// FSContentStoreConfig contains configuration for the filesystem store.
type FSContentStoreConfig struct {
	// BasePath is the root directory of the store
	BasePath string `mapstructure:"path" validate:"required"`

	// DirMode is the permission used for created directories (default: 0755)
	DirMode os.FileMode `mapstructure:"dir_mode"`

	// FileMode is the permission used for payload files (default: 0644)
	FileMode os.FileMode `mapstructure:"file_mode"`
}

// FSContentStore implements content.GarbageCollectableStore on an afero.Fs.
type FSContentStore struct {
	fs       afero.Fs
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

var _ content.GarbageCollectableStore = (*FSContentStore)(nil)

// NewFSContentStore creates a store rooted at config.BasePath on fsys.
// Pass afero.NewOsFs() for real disks and afero.NewMemMapFs() in tests.
func NewFSContentStore(ctx context.Context, fsys afero.Fs, config FSContentStoreConfig) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.BasePath == "" {
		return nil, fmt.Errorf("filesystem content path is required")
	}
	if config.DirMode == 0 {
		config.DirMode = 0755
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}

	if err := fsys.MkdirAll(filepath.Join(config.BasePath, tmpDir), config.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{
		fs:       fsys,
		basePath: config.BasePath,
		dirMode:  config.DirMode,
		fileMode: config.FileMode,
	}, nil
}

// payloadPath maps a ref to its file. Refs are UUIDs minted by WriteContent;
// anything else is rejected so a ref can never escape the base directory.
func (s *FSContentStore) payloadPath(ref string) (string, bool) {
	if _, err := uuid.Parse(ref); err != nil {
		return "", false
	}
	return filepath.Join(s.basePath, ref[:2], ref), true
}

func (s *FSContentStore) WriteContent(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ref := uuid.NewString()
	tmpPath := filepath.Join(s.basePath, tmpDir, ref)

	f, err := s.fs.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.fileMode)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create payload file: %w", err)
	}

	n, err := io.Copy(f, &contextReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to write payload: %w", err)
	}

	finalPath, _ := s.payloadPath(ref)
	if err := s.fs.MkdirAll(filepath.Dir(finalPath), s.dirMode); err != nil {
		_ = s.fs.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := s.fs.Rename(tmpPath, finalPath); err != nil {
		_ = s.fs.Remove(tmpPath)
		return "", 0, fmt.Errorf("failed to commit payload: %w", err)
	}

	return ref, n, nil
}

func (s *FSContentStore) ReadContent(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, ok := s.payloadPath(ref)
	if !ok {
		return nil, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
	}

	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

func (s *FSContentStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, ok := s.payloadPath(ref)
	if !ok {
		return nil
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", ref, err)
	}
	return nil
}

func (s *FSContentStore) GetContentSize(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path, ok := s.payloadPath(ref)
	if !ok {
		return 0, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	return info.Size(), nil
}

func (s *FSContentStore) ContentExists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, ok := s.payloadPath(ref)
	if !ok {
		return false, nil
	}
	return afero.Exists(s.fs, path)
}

func (s *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	var count, used int64
	err := s.walkPayloads(ctx, func(_ string, info os.FileInfo) {
		count++
		used += info.Size()
	})
	if err != nil {
		return nil, err
	}
	return content.NewStorageStats(count, used), nil
}

func (s *FSContentStore) ListAllContent(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.walkPayloads(ctx, func(ref string, _ os.FileInfo) {
		refs = append(refs, ref)
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (s *FSContentStore) DeleteBatch(ctx context.Context, refs []string) (map[string]error, error) {
	failures := make(map[string]error)
	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			for _, rest := range refs[i:] {
				failures[rest] = err
			}
			return failures, err
		}
		if err := s.Delete(ctx, ref); err != nil {
			failures[ref] = err
		}
	}
	return failures, nil
}

func (s *FSContentStore) Close() error {
	return nil
}

// walkPayloads visits every committed payload, skipping in-flight writes.
func (s *FSContentStore) walkPayloads(ctx context.Context, visit func(ref string, info os.FileInfo)) error {
	err := afero.Walk(s.fs, s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}

		name := info.Name()
		if _, err := uuid.Parse(name); err != nil || filepath.Base(filepath.Dir(path)) != name[:2] {
			logger.Debug("Ignoring stray file in content store: %s", path)
			return nil
		}
		visit(name, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk content store: %w", err)
	}
	return nil
}

// contextReader aborts a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
