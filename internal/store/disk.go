package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"gismap/internal/tile"
)

// Disk is a filesystem tile cache. The directory tree mirrors the tile
// address ({root}/{server}/{z}/{x}/{y}.png) and the file modification time
// doubles as the freshness and eviction timestamp; there is no separate
// metadata store.
type Disk struct {
	mu       sync.Mutex
	root     string
	maxBytes int64
	maxAge   time.Duration
	log      *zap.Logger
}

func NewDisk(root string, maxBytes int64, maxAge time.Duration, log *zap.Logger) (*Disk, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Disk{
		root:     root,
		maxBytes: maxBytes,
		maxAge:   maxAge,
		log:      log,
	}, nil
}

// Root returns the cache root directory.
func (d *Disk) Root() string { return d.root }

func (d *Disk) path(addr tile.Address) string {
	return filepath.Join(d.root, addr.Path())
}

func (d *Disk) TryGet(addr tile.Address) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.path(addr)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if d.maxAge > 0 && time.Since(info.ModTime()) > d.maxAge {
		d.log.Debug("Removing stale tile", zap.String("tile", addr.String()))
		os.Remove(path)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	// Self-healing: an undecodable file is corrupt, drop it.
	if _, err := tile.Decode(data); err != nil {
		d.log.Debug("Removing corrupt tile", zap.String("tile", addr.String()), zap.Error(err))
		os.Remove(path)
		return nil, false
	}

	return data, true
}

func (d *Disk) Put(addr tile.Address, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.path(addr)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}

	// Write atomically
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write tile: %w", err)
	}

	if d.maxBytes > 0 {
		return d.reclaimLocked(d.maxBytes)
	}
	return nil
}

func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return os.MkdirAll(d.root, 0755)
}

func (d *Disk) SizeBytes() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sizeLocked()
}

func (d *Disk) sizeLocked() (int64, error) {
	var total int64
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func (d *Disk) Reclaim(maxBytes int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reclaimLocked(maxBytes)
}

// reclaimLocked deletes oldest-written files until the cache fits maxBytes.
// This is LRU by write time, not by access: reads do not bump mtime.
func (d *Disk) reclaimLocked(maxBytes int64) error {
	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var totalSize int64

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			files = append(files, fileInfo{path: path, size: info.Size(), modTime: info.ModTime()})
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if totalSize <= maxBytes {
		return nil
	}

	slices.SortFunc(files, func(a, b fileInfo) int {
		return a.modTime.Compare(b.modTime)
	})

	for _, f := range files {
		if totalSize <= maxBytes {
			break
		}
		if err := os.Remove(f.path); err == nil {
			totalSize -= f.size
		}
	}

	d.log.Debug("Cache reclaimed", zap.Int64("size_bytes", totalSize), zap.Int64("max_bytes", maxBytes))
	return nil
}
