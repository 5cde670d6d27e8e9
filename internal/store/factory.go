package store

import (
	"time"

	"go.uber.org/zap"
)

// New creates the tile store for the given cache settings: a disk-backed
// store when caching is enabled, otherwise a no-op store.
func New(enabled bool, dir string, maxBytes int64, maxAge time.Duration, log *zap.Logger) (Store, error) {
	if !enabled {
		log.Info("Tile cache disabled")
		return NewNoop(), nil
	}
	log.Info("Using disk tile cache",
		zap.String("cache_dir", dir),
		zap.Int64("max_bytes", maxBytes),
		zap.Duration("max_age", maxAge),
	)
	return NewDisk(dir, maxBytes, maxAge, log)
}
