package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

const tmpSuffix = ".tmp"

// localStorage stores blobs as files under a root directory of an afero filesystem.
type localStorage struct {
	fs afero.Fs
}

// NewLocal creates a disk-backed store rooted at root, creating the directory if needed.
func NewLocal(root string) (Storage, error) {
	return NewLocalFs(afero.NewOsFs(), root)
}

// NewLocalFs creates a store on an arbitrary afero filesystem. Tests pass afero.NewMemMapFs().
func NewLocalFs(base afero.Fs, root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := base.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &localStorage{fs: afero.NewBasePathFs(base, root)}, nil
}

func cleanKey(key string) (string, error) {
	k := path.Clean("/" + key)
	if k == "/" || strings.HasSuffix(k, tmpSuffix) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}

// Put writes to a temp file, syncs it and renames it into place.
func (s *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	k, err := cleanKey(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0o750); err != nil {
		return ObjectInfo{}, fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp := k + tmpSuffix
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}

	size, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("write data: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("close: %w", err)
	}
	if opt.Size >= 0 && size != opt.Size {
		_ = s.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("size mismatch: wrote %d bytes, expected %d", size, opt.Size)
	}
	if err := s.fs.Rename(tmp, k); err != nil {
		_ = s.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("rename into place: %w", err)
	}

	st, err := s.fs.Stat(k)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         size,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

func (s *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := s.fs.Open(k)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", key, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return f, ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime()}, nil
}

func (s *localStorage) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(k); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *localStorage) Exists(ctx context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, k)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return ok, nil
}

// ctxReader stops a long copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
