package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gismap/internal/config"
	"gismap/internal/fetch"
	"gismap/internal/geo"
	httphandlers "gismap/internal/http"
	"gismap/internal/logger"
	"gismap/internal/prefetch"
	"gismap/internal/store"
	"gismap/internal/tile"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting gismap tile server",
		zap.Int("port", cfg.Port),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("tile_server", cfg.TileServer),
	)

	tileStore, err := store.New(cfg.CacheEnabled, cfg.CacheDir, cfg.MaxCacheBytes(), cfg.TileMaxAge, log)
	if err != nil {
		log.Fatal("Failed to initialize tile cache", zap.Error(err))
	}

	mem, err := store.NewMemory(cfg.MemoryTiles)
	if err != nil {
		log.Fatal("Failed to initialize memory cache", zap.Error(err))
	}

	servers := tile.DefaultServers(cfg.UserAgent, cfg.Referer)
	if _, err := servers.Get(cfg.TileServer); err != nil {
		log.Fatal("Unknown default tile server", zap.String("server", cfg.TileServer))
	}

	client := &http.Client{Timeout: cfg.FetchTimeout}
	coordinator := fetch.New(client, servers, tileStore, mem, cfg.TileSize, log)

	if cfg.PrefetchRadius > 0 {
		go warmupTiles(cfg, coordinator, log)
	}

	handlers := httphandlers.New(cfg, log, coordinator, tileStore, servers)

	mux := http.NewServeMux()

	mux.HandleFunc("/tiles/", handlers.HandleTiles)
	mux.HandleFunc("/api/servers", handlers.HandleServers)
	mux.HandleFunc("/api/cache/size", handlers.HandleCacheSize)
	mux.HandleFunc("/api/cache/clear", handlers.HandleCacheClear)
	mux.HandleFunc("/api/grid", handlers.HandleGrid)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

// warmupTiles fills the disk cache around the configured home position so
// the first map paint after startup hits locally.
func warmupTiles(cfg *config.Config, coordinator *fetch.Coordinator, log *zap.Logger) {
	center := geo.Point{Lat: cfg.DefaultCenterLat, Lon: cfg.DefaultCenterLon}

	log.Info("Starting tile warmup",
		zap.Float64("lat", center.Lat),
		zap.Float64("lon", center.Lon),
		zap.Int("zoom", cfg.DefaultZoom),
		zap.Int("radius", cfg.PrefetchRadius),
	)

	prefetcher := prefetch.New(coordinator, cfg.PrefetchRPS, cfg.PrefetchMaxRequests, cfg.PrefetchWorkers, cfg.TileSize, log)
	issued := prefetcher.Prefetch(context.Background(), cfg.TileServer, center, cfg.DefaultZoom, cfg.PrefetchRadius)

	log.Info("Tile warmup completed", zap.Int("fetched", issued))
}
