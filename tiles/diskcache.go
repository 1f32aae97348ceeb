package tiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNotCached is returned by DiskCache.Get for tiles without a file.
var ErrNotCached = errors.New("tile not cached")

// DiskCache stores raw tile bytes as one file per key. Files are written
// once and never expired; concurrent readers see either no file or a
// complete one.
type DiskCache struct {
	dir  string
	exts map[Layer]string
	log  *zap.Logger
}

// NewDiskCache creates dir if needed. exts maps each layer to the file
// extension of its images; layers without an entry use ".png".
func NewDiskCache(dir string, exts map[Layer]string, log *zap.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tile cache dir: %w", err)
	}
	return &DiskCache{dir: dir, exts: exts, log: log.Named("diskcache")}, nil
}

// Path returns the file holding key.
func (d *DiskCache) Path(key Key) string {
	ext, ok := d.exts[key.Layer]
	if !ok {
		ext = ".png"
	}
	return filepath.Join(d.dir, key.String()+ext)
}

// Has reports whether key has a file.
func (d *DiskCache) Has(key Key) bool {
	_, err := os.Stat(d.Path(key))
	return err == nil
}

// Get returns the bytes stored for key, or ErrNotCached.
func (d *DiskCache) Get(key Key) ([]byte, error) {
	data, err := os.ReadFile(d.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("read tile %s: %w", key, err)
	}
	return data, nil
}

// Put stores data for key unless a file already exists.
func (d *DiskCache) Put(key Key, data []byte) error {
	path := d.Path(key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(d.dir, ".tile-*")
	if err != nil {
		return fmt.Errorf("create temp tile: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod tile %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write tile %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close tile %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store tile %s: %w", key, err)
	}
	d.log.Debug("stored tile", zap.String("key", key.String()), zap.Int("bytes", len(data)))
	return nil
}
