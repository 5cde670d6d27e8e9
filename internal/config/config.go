package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port    int
	DataDir string

	DefaultCenterLat float64
	DefaultCenterLon float64
	DefaultZoom      int
	MinZoom          int
	MaxZoom          int
	TileSize         int

	TileServer   string
	UserAgent    string
	Referer      string
	FetchTimeout time.Duration

	CacheEnabled bool
	CacheDir     string
	MaxCacheMB   int
	TileMaxAge   time.Duration
	MemoryTiles  int

	PrefetchRadius      int
	PrefetchMaxRequests int
	PrefetchWorkers     int
	PrefetchRPS         float64

	LogLevel string
}

func Load() *Config {
	dataDir := getEnv("DATA_DIR", "data")

	cfg := &Config{
		Port:    getEnvInt("PORT", 8080),
		DataDir: dataDir,

		DefaultCenterLat: getEnvFloat("DEFAULT_CENTER_LAT", 21.03),
		DefaultCenterLon: getEnvFloat("DEFAULT_CENTER_LON", 105.85),
		DefaultZoom:      getEnvInt("DEFAULT_ZOOM", 12),
		MinZoom:          getEnvInt("MIN_ZOOM", 3),
		MaxZoom:          getEnvInt("MAX_ZOOM", 18),
		TileSize:         getEnvInt("TILE_SIZE", 256),

		TileServer:   getEnv("TILE_SERVER", "openstreetmap"),
		UserAgent:    getEnv("TILE_USER_AGENT", "GISMap/1.0"),
		Referer:      getEnv("TILE_REFERER", "https://www.openstreetmap.org/"),
		FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SEC", 15)) * time.Second,

		CacheEnabled: getEnvBool("CACHE_ENABLED", true),
		CacheDir:     getEnv("CACHE_DIR", filepath.Join(dataDir, "tiles")),
		MaxCacheMB:   getEnvInt("MAX_CACHE_MB", 100),
		TileMaxAge:   time.Duration(getEnvInt("TILE_MAX_AGE_DAYS", 7)) * 24 * time.Hour,
		MemoryTiles:  getEnvInt("MEMORY_TILES", 100),

		PrefetchRadius:      getEnvInt("PREFETCH_RADIUS", 1),
		PrefetchMaxRequests: getEnvInt("PREFETCH_MAX_REQUESTS", 25),
		PrefetchWorkers:     getEnvInt("PREFETCH_WORKERS", 2),
		PrefetchRPS:         getEnvFloat("PREFETCH_RPS", 4),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// MaxCacheBytes returns the cache budget in bytes.
func (c *Config) MaxCacheBytes() int64 {
	return int64(c.MaxCacheMB) * 1024 * 1024
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
